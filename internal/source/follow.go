package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ResettableSink is a Sink that can drop its lines when the followed file
// is truncated.
type ResettableSink interface {
	Sink
	ResetSource()
}

// Follower appends lines written to a file after it was loaded.
type Follower struct {
	path    string
	sink    ResettableSink
	log     zerolog.Logger
	offset  int64
	partial []byte
}

// NewFollower starts following path at offset, normally the byte count
// returned by a previous load.
func NewFollower(path string, offset int64, sink ResettableSink, log zerolog.Logger) (*Follower, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	comp, err := Detect(abs)
	if err != nil {
		return nil, fmt.Errorf("detect source: %w", err)
	}
	if comp != None {
		return nil, ErrCompressed
	}
	return &Follower{path: abs, sink: sink, log: log.With().Str("path", abs).Logger(), offset: offset}, nil
}

// Offset returns how far into the file lines have been delivered.
func (f *Follower) Offset() int64 { return f.offset }

// Run watches the file's directory so rotation and re-creation are seen,
// and blocks until ctx is done.
func (f *Follower) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(f.path), err)
	}

	// Catch up on anything written between the load and the watch.
	if err := f.ReadNew(); err != nil {
		f.log.Warn().Err(err).Msg("initial follow read failed")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := f.ReadNew(); err != nil {
					f.log.Warn().Err(err).Msg("follow read failed")
				}
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				f.log.Info().Msg("followed file rotated")
				f.offset, f.partial = 0, nil
				f.sink.ResetSource()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.log.Error().Err(err).Msg("watcher error")
		}
	}
}

// ReadNew delivers complete lines appended since the last read. A file
// that shrank is treated as truncated and re-read from the start. An
// unterminated last line is held back until its newline arrives.
func (f *Follower) ReadNew() error {
	file, err := os.Open(f.path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size < f.offset {
		f.log.Info().Int64("size", size).Int64("offset", f.offset).Msg("followed file truncated")
		f.offset, f.partial = 0, nil
		f.sink.ResetSource()
	}
	if size == f.offset {
		return nil
	}

	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return err
	}
	data, err := io.ReadAll(io.LimitReader(file, size-f.offset))
	if err != nil {
		return err
	}
	f.offset += int64(len(data))

	data = append(f.partial, data...)
	cut := bytes.LastIndexByte(data, '\n')
	if cut < 0 {
		f.partial = data
		f.sink.SetTotalBytes(size)
		return nil
	}
	f.partial = append([]byte(nil), data[cut+1:]...)

	raw := strings.Split(string(data[:cut]), "\n")
	for i, l := range raw {
		raw[i] = strings.TrimSuffix(l, "\r")
	}
	f.sink.AppendLines(raw, int64(cut+1))
	f.sink.SetTotalBytes(size)
	return nil
}
