package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

var (
	ErrInvalidHeader = errors.New("invalid bundle file header")
	ErrCorrupt       = errors.New("corrupt bundle file")
)

// BundleReader decodes bundle files.
type BundleReader struct {
	decoder *zstd.Decoder
}

// NewBundleReader creates a reader with a reusable zstd decoder.
func NewBundleReader() (*BundleReader, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &BundleReader{decoder: dec}, nil
}

// Close releases the decoder.
func (br *BundleReader) Close() { br.decoder.Close() }

// ReadBundle returns every frame of the bundle at path. A missing file
// is an empty bundle.
func (br *BundleReader) ReadBundle(path string) ([]Frame, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// 1. Validate Header
	header := make([]byte, len(MagicHeader))
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, ErrInvalidHeader
	}
	if !bytes.Equal(header, MagicHeader) {
		return nil, ErrInvalidHeader
	}

	// 2. Read Footer (at end of file)
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < int64(len(MagicHeader)+footerSize) {
		return nil, fmt.Errorf("%w: file too small", ErrCorrupt)
	}
	footer := make([]byte, footerSize)
	if _, err := f.ReadAt(footer, info.Size()-footerSize); err != nil {
		return nil, err
	}
	count := int(binary.LittleEndian.Uint32(footer[0:4]))

	// 3. Read and decompress frames
	body := io.LimitReader(f, info.Size()-int64(len(MagicHeader))-footerSize)
	frames := make([]Frame, 0, count)
	for i := 0; i < count; i++ {
		raw, err := br.readAndDecompress(body)
		if err != nil {
			return nil, fmt.Errorf("%w: frame %d: %v", ErrCorrupt, i, err)
		}
		fr, err := decodeFrame(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: frame %d: %v", ErrCorrupt, i, err)
		}
		frames = append(frames, fr)
	}
	return frames, nil
}

// readAndDecompress reads a compressed block (size + data) and decompresses it.
func (br *BundleReader) readAndDecompress(r io.Reader) ([]byte, error) {
	// Read compressed size (uint32)
	var size uint32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, err
	}

	// Read compressed data
	compressed := make([]byte, size)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, err
	}

	return br.decoder.DecodeAll(compressed, nil)
}

func decodeFrame(raw []byte) (Frame, error) {
	if len(raw) < 4 {
		return Frame{}, io.ErrUnexpectedEOF
	}
	nameLen := int(binary.LittleEndian.Uint32(raw[0:4]))
	if len(raw) < 4+nameLen+8 {
		return Frame{}, io.ErrUnexpectedEOF
	}
	fr := Frame{Name: string(raw[4 : 4+nameLen])}
	rest := raw[4+nameLen:]
	fr.SavedAt = int64(binary.LittleEndian.Uint64(rest[0:8]))
	fr.Data = append([]byte(nil), rest[8:]...)
	return fr, nil
}
