package preset

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/qmjianda/loglayout-sub001/internal/layer"
	"github.com/qmjianda/loglayout-sub001/internal/storage"
)

// FileStore keeps every preset in one compressed bundle file and rewrites
// it on each change.
type FileStore struct {
	path   string
	mu     sync.RWMutex
	data   map[string]Preset
	writer *storage.BundleWriter
	reader *storage.BundleReader
}

// OpenFileStore loads the bundle at path; a missing file is an empty store.
func OpenFileStore(path string) (*FileStore, error) {
	w, err := storage.NewBundleWriter()
	if err != nil {
		return nil, err
	}
	r, err := storage.NewBundleReader()
	if err != nil {
		w.Close()
		return nil, err
	}
	s := &FileStore{path: path, data: make(map[string]Preset), writer: w, reader: r}
	if err := s.Load(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Load reads presets from disk, replacing the in-memory set.
func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames, err := s.reader.ReadBundle(s.path)
	if err != nil {
		return fmt.Errorf("read presets: %w", err)
	}
	data := make(map[string]Preset, len(frames))
	for _, f := range frames {
		layers, err := layer.Import(f.Data)
		if err != nil {
			return fmt.Errorf("preset %q: %w", f.Name, err)
		}
		data[f.Name] = Preset{Name: f.Name, SavedAt: time.UnixMilli(f.SavedAt).UTC(), Layers: layers}
	}
	s.data = data
	return nil
}

func (s *FileStore) saveLocked() error {
	names := make([]string, 0, len(s.data))
	for n := range s.data {
		names = append(names, n)
	}
	sort.Strings(names)

	frames := make([]storage.Frame, 0, len(names))
	for _, n := range names {
		p := s.data[n]
		body, err := layer.Export(p.Layers)
		if err != nil {
			return err
		}
		frames = append(frames, storage.Frame{Name: n, SavedAt: p.SavedAt.UnixMilli(), Data: body})
	}
	return s.writer.WriteBundle(s.path, frames)
}

// List returns presets sorted by name.
func (s *FileStore) List() ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Info, 0, len(s.data))
	for _, p := range s.data {
		out = append(out, p.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get returns a copy of the named preset.
func (s *FileStore) Get(name string) (Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	p.Layers = layer.CloneList(p.Layers)
	return p, nil
}

// Save inserts or replaces a preset.
func (s *FileStore) Save(p Preset) error {
	name, err := ValidateName(p.Name)
	if err != nil {
		return err
	}
	if p.SavedAt.IsZero() {
		p.SavedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.data[name]
	s.data[name] = Preset{Name: name, SavedAt: p.SavedAt, Layers: layer.CloneList(p.Layers)}
	if err := s.saveLocked(); err != nil {
		if had {
			s.data[name] = prev
		} else {
			delete(s.data, name)
		}
		return err
	}
	return nil
}

// Delete removes the named preset.
func (s *FileStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.data[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(s.data, name)
	if err := s.saveLocked(); err != nil {
		s.data[name] = prev
		return err
	}
	return nil
}

// Close releases the codec resources.
func (s *FileStore) Close() error {
	s.writer.Close()
	s.reader.Close()
	return nil
}
