package preset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/qmjianda/loglayout-sub001/internal/layer"
)

// Format is a preset file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// document is the on-disk shape of an exported preset file.
type document struct {
	Name    string         `json:"name" yaml:"name" toml:"name"`
	SavedAt time.Time      `json:"savedAt" yaml:"savedAt" toml:"savedAt"`
	Layers  []layer.Record `json:"layers" yaml:"layers" toml:"layers"`
}

// ParseFormat accepts a format name or file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("unsupported preset format %q", s)
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Encode serialises a preset.
func Encode(p Preset, f Format) ([]byte, error) {
	doc := document{Name: p.Name, SavedAt: p.SavedAt.UTC(), Layers: layer.ToRecords(p.Layers)}
	switch f {
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case FormatYAML:
		return yaml.Marshal(doc)
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unsupported preset format %q", f)
}

// Decode parses a preset file. Layer invariants are normalised the same
// way as for a JSON layer import.
func Decode(data []byte, f Format) (Preset, error) {
	var doc document
	var err error
	switch f {
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatTOML:
		_, err = toml.Decode(string(data), &doc)
	default:
		return Preset{}, fmt.Errorf("unsupported preset format %q", f)
	}
	if err != nil {
		return Preset{}, fmt.Errorf("decode %s preset: %w", f, err)
	}
	return Preset{Name: doc.Name, SavedAt: doc.SavedAt, Layers: layer.FromRecords(doc.Layers)}, nil
}
