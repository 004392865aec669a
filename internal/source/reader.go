// Package source streams log files into a session in batches.
package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
)

const (
	// DefaultBatchLines is how many lines are handed to the sink at once.
	DefaultBatchLines = 50_000
	maxLineSize       = 16 << 20
)

var (
	ErrNotRegular = errors.New("source: not a regular file")
	ErrCompressed = errors.New("source: compressed sources cannot be followed")
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Sink receives raw lines. *engine.Session implements it.
type Sink interface {
	AppendLines(batch []string, bytes int64)
	SetTotalBytes(n int64)
	Complete()
}

// Compression identifies a source encoding.
type Compression int

const (
	None Compression = iota
	Gzip
	Zstd
)

func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	}
	return "none"
}

// Loader reads whole sources into a sink.
type Loader struct {
	BatchLines int
	log        zerolog.Logger
}

// NewLoader returns a loader with the given batch size; non-positive
// values select DefaultBatchLines.
func NewLoader(batchLines int, log zerolog.Logger) *Loader {
	if batchLines <= 0 {
		batchLines = DefaultBatchLines
	}
	return &Loader{BatchLines: batchLines, log: log}
}

// Stats summarises one load.
type Stats struct {
	Lines       int
	Bytes       int64
	Compression Compression
	Duration    time.Duration
}

// LoadFile streams path into sink and marks the sink complete on success.
// Gzip and zstd input is detected from the leading magic bytes. Progress
// is reported in on-disk bytes.
func (l *Loader) LoadFile(ctx context.Context, path string, sink Sink) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Stats{}, fmt.Errorf("stat source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return Stats{}, fmt.Errorf("%s: %w", path, ErrNotRegular)
	}
	sink.SetTotalBytes(info.Size())

	st, err := l.Load(ctx, f, sink)
	if err != nil {
		return st, err
	}
	l.log.Info().
		Str("path", path).
		Int("lines", st.Lines).
		Int64("bytes", st.Bytes).
		Str("compression", st.Compression.String()).
		Dur("took", st.Duration).
		Msg("source loaded")
	return st, nil
}

// Load streams r into sink, then marks it complete. It stops between
// batches when ctx is cancelled.
func (l *Loader) Load(ctx context.Context, r io.Reader, sink Sink) (Stats, error) {
	start := time.Now()
	counted := &countingReader{r: r}
	br := bufio.NewReaderSize(counted, 64<<10)

	comp, body, closeFn, err := decompress(br)
	if err != nil {
		return Stats{}, err
	}
	defer closeFn()

	st := Stats{Compression: comp}
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)

	batch := make([]string, 0, l.BatchLines)
	var reported int64
	flush := func() {
		read := counted.n.Load()
		sink.AppendLines(batch, read-reported)
		reported = read
		st.Lines += len(batch)
		batch = make([]string, 0, l.BatchLines)
	}

	for scanner.Scan() {
		batch = append(batch, strings.TrimSuffix(scanner.Text(), "\r"))
		if len(batch) < l.BatchLines {
			continue
		}
		flush()
		if err := ctx.Err(); err != nil {
			st.Bytes = reported
			return st, err
		}
	}
	if err := scanner.Err(); err != nil {
		return st, fmt.Errorf("read source: %w", err)
	}
	flush()
	sink.Complete()

	st.Bytes = reported
	st.Duration = time.Since(start)
	return st, nil
}

// Detect reports the compression of the file at path.
func Detect(path string) (Compression, error) {
	f, err := os.Open(path)
	if err != nil {
		return None, err
	}
	defer f.Close()
	head := make([]byte, len(zstdMagic))
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return None, err
	}
	return sniff(head[:n]), nil
}

func sniff(head []byte) Compression {
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return Gzip
	case bytes.HasPrefix(head, zstdMagic):
		return Zstd
	}
	return None
}

func decompress(br *bufio.Reader) (Compression, io.Reader, func(), error) {
	head, _ := br.Peek(len(zstdMagic))
	switch sniff(head) {
	case Gzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return Gzip, nil, nil, fmt.Errorf("open gzip source: %w", err)
		}
		return Gzip, zr, func() { zr.Close() }, nil
	case Zstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return Zstd, nil, nil, fmt.Errorf("open zstd source: %w", err)
		}
		return Zstd, zr, zr.Close, nil
	}
	return None, br, func() {}, nil
}

type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}
