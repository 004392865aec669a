// Package storage implements the on-disk formats used for presets and
// session autosave: zstd-compressed frame bundles and an append-only journal.
package storage

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

// MagicHeader starts every bundle file.
var MagicHeader = []byte("LLBUNDL1")

// footerSize is Count(4) + UpdatedAt(8).
const footerSize = 12

// Frame is one named, opaque payload inside a bundle.
type Frame struct {
	Name    string
	SavedAt int64 // unix millis
	Data    []byte
}

// BundleWriter compresses frames into a bundle file.
type BundleWriter struct {
	encoder *zstd.Encoder
}

// NewBundleWriter creates a writer with a reusable zstd encoder.
func NewBundleWriter() (*BundleWriter, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	return &BundleWriter{encoder: enc}, nil
}

// Close releases the encoder.
func (bw *BundleWriter) Close() error { return bw.encoder.Close() }

// WriteBundle replaces path with a bundle holding frames. The file is
// written next to path and renamed into place.
//
// Layout: Header | ([Size uint32][zstd(frame)])* | Footer
// A frame decodes to [NameLen uint32][Name][SavedAt int64][Data].
func (bw *BundleWriter) WriteBundle(path string, frames []Frame) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	if err := bw.write(f, frames); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// Atomic rename
	return os.Rename(tmpPath, path)
}

func (bw *BundleWriter) write(f *os.File, frames []Frame) error {
	// 1. Header
	if _, err := f.Write(MagicHeader); err != nil {
		return err
	}

	// 2. Frames
	for _, fr := range frames {
		if err := bw.compressAndWrite(f, encodeFrame(fr)); err != nil {
			return err
		}
	}

	// 3. Footer
	return writeFooter(f, uint32(len(frames)), time.Now().UnixMilli())
}

func encodeFrame(fr Frame) []byte {
	buf := make([]byte, 0, 4+len(fr.Name)+8+len(fr.Data))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(fr.Name)))
	buf = append(buf, fr.Name...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(fr.SavedAt))
	return append(buf, fr.Data...)
}

func (bw *BundleWriter) compressAndWrite(f *os.File, raw []byte) error {
	compressed := bw.encoder.EncodeAll(raw, make([]byte, 0, len(raw)))

	// Write Compressed Size (uint32)
	size := uint32(len(compressed))
	if err := binary.Write(f, binary.LittleEndian, size); err != nil {
		return err
	}

	// Write Data
	_, err := f.Write(compressed)
	return err
}

func writeFooter(f *os.File, count uint32, updatedAt int64) error {
	if err := binary.Write(f, binary.LittleEndian, count); err != nil {
		return err
	}
	return binary.Write(f, binary.LittleEndian, updatedAt)
}
