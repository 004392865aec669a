// Package preset persists named layer lists.
package preset

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/qmjianda/loglayout-sub001/internal/layer"
)

var (
	ErrNotFound    = errors.New("preset not found")
	ErrInvalidName = errors.New("invalid preset name")
)

// Preset is a named, deep-copied layer list.
type Preset struct {
	Name    string
	SavedAt time.Time
	Layers  []*layer.Layer
}

// Info is the listing view of a preset.
type Info struct {
	Name    string    `json:"name"`
	Layers  int       `json:"layers"`
	SavedAt time.Time `json:"saved_at"`
}

// Store is a preset backend.
type Store interface {
	List() ([]Info, error)
	Get(name string) (Preset, error)
	Save(p Preset) error
	Delete(name string) error
	Close() error
}

// New returns a preset stamped with the current time. The layer list is
// copied.
func New(name string, layers []*layer.Layer) Preset {
	return Preset{Name: name, SavedAt: time.Now().UTC(), Layers: layer.CloneList(layers)}
}

// ValidateName trims and checks a preset name.
func ValidateName(name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" || len(n) > 128 || strings.ContainsAny(n, "/\\\x00") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return n, nil
}

func (p Preset) info() Info {
	return Info{Name: p.Name, Layers: len(p.Layers), SavedAt: p.SavedAt}
}

// Open picks a backend by driver name: "bundle" or "sqlite".
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", "bundle":
		return OpenFileStore(path)
	case "sqlite":
		return OpenSQLStore(path)
	}
	return nil, fmt.Errorf("unknown preset driver %q", driver)
}
