package storage

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Journal is an append-only file of length-prefixed records. Sessions use
// it to autosave their layer list so a reopened log gets its layers back.
type Journal struct {
	file *os.File
	path string
	mu   sync.Mutex
}

// OpenJournal opens or creates a journal file at the specified path.
func OpenJournal(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	return &Journal{
		file: f,
		path: path,
	}, nil
}

// Append writes one record.
func (j *Journal) Append(data []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.appendLocked(data)
}

func (j *Journal) appendLocked(data []byte) error {
	// Format: [Len uint32][Bytes]
	buf := make([]byte, 0, 4+len(data))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(data)))
	buf = append(buf, data...)
	_, err := j.file.Write(buf)
	return err
}

// Sync flushes the journal file buffers to disk.
func (j *Journal) Sync() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Sync()
}

// Reset truncates the journal.
func (j *Journal) Reset() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.resetLocked()
}

func (j *Journal) resetLocked() error {
	if err := j.file.Truncate(0); err != nil {
		return err
	}
	_, err := j.file.Seek(0, 0)
	return err
}

// Compact replaces the whole journal with a single record.
func (j *Journal) Compact(data []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.resetLocked(); err != nil {
		return err
	}
	return j.appendLocked(data)
}

// Close closes the journal file.
func (j *Journal) Close() error {
	return j.file.Close()
}

// Replay reads every complete record. A torn tail record (crash during
// write) ends the replay without an error.
func (j *Journal) Replay() ([][]byte, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Seek(0, 0); err != nil {
		return nil, err
	}
	defer j.file.Seek(0, io.SeekEnd)

	var records [][]byte
	lenBuf := make([]byte, 4)
	for {
		_, err := io.ReadFull(j.file, lenBuf)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return records, fmt.Errorf("journal replay error (len): %w", err)
		}

		length := binary.LittleEndian.Uint32(lenBuf)
		data := make([]byte, length)
		if _, err := io.ReadFull(j.file, data); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return records, fmt.Errorf("journal replay error (data): %w", err)
		}
		records = append(records, data)
	}
	return records, nil
}

// Last returns the newest record, or nil for an empty journal.
func (j *Journal) Last() ([]byte, error) {
	records, err := j.Replay()
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[len(records)-1], nil
}
