package engine

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	LevelTrace   = 0
	LevelDebug   = 1
	LevelInfo    = 2
	LevelWarn    = 3
	LevelError   = 4
	LevelFatal   = 5
	LevelUnknown = 255
)

var levelRe = regexp.MustCompile(`(?i)\b(TRACE|DEBUG|INFO|WARN|WARNING|ERROR|ERR|FATAL|CRITICAL|PANIC)\b`)

// LineStore holds the raw lines of one source. It is append-only: lines
// already handed out by Snapshot are never rewritten.
type LineStore struct {
	mu sync.RWMutex

	lines   []string
	levels  map[uint8]int64
	version uint64 // bumped on every append or reset

	bytesRead  int64
	totalBytes int64
	complete   bool

	// Stats
	writeCounter int64   // Atomic counter for ingestion
	currentRate  float64 // Lines per second
}

// NewLineStore initializes an empty store.
func NewLineStore() *LineStore {
	return &LineStore{
		lines:  make([]string, 0, 4096),
		levels: make(map[uint8]int64),
	}
}

// Append adds a batch of lines. bytes is the number of source bytes the
// batch was read from.
func (ls *LineStore) Append(batch []string, bytes int64) {
	if len(batch) == 0 && bytes == 0 {
		return
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	ls.lines = append(ls.lines, batch...)
	for _, l := range batch {
		ls.levels[DetectLevel(l)]++
	}
	ls.bytesRead += bytes
	if ls.bytesRead > ls.totalBytes {
		ls.totalBytes = ls.bytesRead
	}
	ls.version++

	atomic.AddInt64(&ls.writeCounter, int64(len(batch)))
}

// SetTotalBytes records the expected source size for progress reporting.
func (ls *LineStore) SetTotalBytes(n int64) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.totalBytes = max(n, ls.bytesRead)
}

// Complete marks the end of the source.
func (ls *LineStore) Complete() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.complete = true
}

// Reset clears the store for a reload. The version keeps increasing.
func (ls *LineStore) Reset() {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	ls.lines = make([]string, 0, 4096)
	ls.levels = make(map[uint8]int64)
	ls.bytesRead, ls.totalBytes = 0, 0
	ls.complete = false
	ls.version++
}

// Snapshot returns the current lines and the version they belong to. The
// slice is capacity-clipped, so later appends never show through it.
func (ls *LineStore) Snapshot() ([]string, uint64) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	n := len(ls.lines)
	return ls.lines[:n:n], ls.version
}

// Len returns the number of lines.
func (ls *LineStore) Len() int {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return len(ls.lines)
}

// Version returns the current source version.
func (ls *LineStore) Version() uint64 {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return ls.version
}

// Progress returns bytes read, expected total and whether the source is complete.
func (ls *LineStore) Progress() (read, total int64, complete bool) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return ls.bytesRead, ls.totalBytes, ls.complete
}

// LevelDist returns line counts per detected level name.
func (ls *LineStore) LevelDist() map[string]int {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	out := make(map[string]int, len(ls.levels))
	for lvl, n := range ls.levels {
		out[DecodeLevel(lvl)] += int(n)
	}
	return out
}

// StartStatsTicker computes the ingestion rate until ctx is done.
func (ls *LineStore) StartStatsTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				count := atomic.SwapInt64(&ls.writeCounter, 0)
				rate := float64(count) / interval.Seconds()
				ls.mu.Lock()
				ls.currentRate = rate
				ls.mu.Unlock()
			}
		}
	}()
}

// IngestionRate returns the current ingestion rate (lines/sec).
func (ls *LineStore) IngestionRate() float64 {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return ls.currentRate
}

// DetectLevel finds the first level keyword in a line.
func DetectLevel(line string) uint8 {
	m := levelRe.FindString(line)
	if m == "" {
		return LevelUnknown
	}
	return EncodeLevel(m)
}

// EncodeLevel converts a level name to its code.
func EncodeLevel(l string) uint8 {
	switch strings.ToUpper(l) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR", "ERR":
		return LevelError
	case "FATAL", "CRITICAL", "PANIC":
		return LevelFatal
	default:
		return LevelUnknown
	}
}

// DecodeLevel converts a level code to its name.
func DecodeLevel(l uint8) string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}
