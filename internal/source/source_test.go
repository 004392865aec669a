package source

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu       sync.Mutex
	lines    []string
	batches  int
	bytes    int64
	total    int64
	complete bool
	resets   int
}

func (s *recordingSink) AppendLines(batch []string, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, batch...)
	s.bytes += n
	if len(batch) > 0 {
		s.batches++
	}
}

func (s *recordingSink) SetTotalBytes(n int64) { s.mu.Lock(); s.total = n; s.mu.Unlock() }
func (s *recordingSink) Complete()             { s.mu.Lock(); s.complete = true; s.mu.Unlock() }
func (s *recordingSink) ResetSource() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines, s.bytes = nil, 0
	s.resets++
}

const sample = "INFO start\r\nERROR boom\nINFO done\n"

func TestLoader_PlainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))

	sink := &recordingSink{}
	st, err := NewLoader(2, zerolog.Nop()).LoadFile(context.Background(), path, sink)
	require.NoError(t, err)

	assert.Equal(t, []string{"INFO start", "ERROR boom", "INFO done"}, sink.lines)
	assert.Equal(t, 2, sink.batches)
	assert.Equal(t, int64(len(sample)), sink.bytes)
	assert.Equal(t, int64(len(sample)), sink.total)
	assert.True(t, sink.complete)
	assert.Equal(t, 3, st.Lines)
	assert.Equal(t, None, st.Compression)
}

func TestLoader_Compressed(t *testing.T) {
	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, err := gw.Write([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	zs := enc.EncodeAll([]byte(sample), nil)

	tests := []struct {
		name string
		data []byte
		want Compression
	}{
		{"gzip", gz.Bytes(), Gzip},
		{"zstd", zs, Zstd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			st, err := NewLoader(0, zerolog.Nop()).Load(context.Background(), bytes.NewReader(tt.data), sink)
			require.NoError(t, err)
			assert.Equal(t, tt.want, st.Compression)
			assert.Equal(t, []string{"INFO start", "ERROR boom", "INFO done"}, sink.lines)
			assert.Equal(t, int64(len(tt.data)), sink.bytes)
		})
	}
}

func TestLoader_CancelledBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &recordingSink{}
	_, err := NewLoader(1, zerolog.Nop()).Load(ctx, strings.NewReader(sample), sink)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, sink.lines, 1)
	assert.False(t, sink.complete)
}

func TestLoader_RejectsDirectory(t *testing.T) {
	_, err := NewLoader(0, zerolog.Nop()).LoadFile(context.Background(), t.TempDir(), &recordingSink{})
	assert.ErrorIs(t, err, ErrNotRegular)
}

func TestFollower_ReadNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("one\n"), 0644))

	sink := &recordingSink{}
	f, err := NewFollower(path, 4, sink, zerolog.Nop())
	require.NoError(t, err)

	appendFile(t, path, "two\nthr")
	require.NoError(t, f.ReadNew())
	assert.Equal(t, []string{"two"}, sink.lines)

	appendFile(t, path, "ee\n")
	require.NoError(t, f.ReadNew())
	assert.Equal(t, []string{"two", "three"}, sink.lines)
	assert.Equal(t, int64(14), f.Offset())
	assert.Equal(t, int64(10), sink.bytes)

	// Truncation restarts from the beginning.
	require.NoError(t, os.WriteFile(path, []byte("new\n"), 0644))
	require.NoError(t, f.ReadNew())
	assert.Equal(t, 1, sink.resets)
	assert.Equal(t, []string{"new"}, sink.lines)
}

func TestFollower_RejectsCompressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log.gz")
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	require.NoError(t, gw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	_, err := NewFollower(path, 0, &recordingSink{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrCompressed)
}

func appendFile(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(s)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}
