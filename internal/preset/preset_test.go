package preset

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qmjianda/loglayout-sub001/internal/layer"
)

func sampleLayers() []*layer.Layer {
	folder := layer.New("f", "Noise", layer.TypeFolder, nil)
	hl := layer.New("hl", "Timeouts", layer.TypeHighlight, layer.HighlightConfig{
		MatchOptions: layer.MatchOptions{Query: "timeout", WholeWord: true},
		Color:        "#ff0000",
		Opacity:      60,
	})
	hl.GroupID = "f"
	rng := layer.New("r", "Head", layer.TypeRange, layer.RangeConfig{From: layer.IntPtr(1), To: layer.IntPtr(500)})
	rng.Enabled = false
	lv := layer.New("lv", "Errors", layer.TypeLevel, layer.LevelConfig{Levels: []string{"ERROR", "FATAL"}})
	return []*layer.Layer{folder, hl, rng, lv}
}

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	fs, err := OpenFileStore(filepath.Join(dir, "presets.llb"))
	require.NoError(t, err)
	sq, err := OpenSQLStore(filepath.Join(dir, "presets.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		fs.Close()
		sq.Close()
	})
	return map[string]Store{"bundle": fs, "sqlite": sq}
}

func TestStores_CRUD(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			saved := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
			require.NoError(t, store.Save(Preset{Name: " errors ", SavedAt: saved, Layers: sampleLayers()}))
			require.NoError(t, store.Save(Preset{Name: "empty", Layers: nil}))

			list, err := store.List()
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "empty", list[0].Name)
			assert.Equal(t, "errors", list[1].Name)
			assert.Equal(t, 4, list[1].Layers)

			got, err := store.Get("errors")
			require.NoError(t, err)
			assert.True(t, saved.Equal(got.SavedAt))
			assert.True(t, layer.EqualList(sampleLayers(), got.Layers))

			// Overwrite keeps a single entry.
			require.NoError(t, store.Save(Preset{Name: "errors", Layers: sampleLayers()[:1]}))
			got, err = store.Get("errors")
			require.NoError(t, err)
			assert.Len(t, got.Layers, 1)

			require.NoError(t, store.Delete("errors"))
			_, err = store.Get("errors")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, store.Delete("errors"), ErrNotFound)
			assert.ErrorIs(t, store.Save(Preset{Name: "a/b"}), ErrInvalidName)
		})
	}
}

func TestFileStore_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.llb")
	s, err := OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(New("errors", sampleLayers())))
	require.NoError(t, s.Close())

	s, err = OpenFileStore(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get("errors")
	require.NoError(t, err)
	assert.True(t, layer.EqualList(sampleLayers(), got.Layers))
}

func TestFormats_RoundTrip(t *testing.T) {
	p := Preset{Name: "errors", SavedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), Layers: sampleLayers()}
	for _, f := range []Format{FormatJSON, FormatYAML, FormatTOML} {
		t.Run(string(f), func(t *testing.T) {
			data, err := Encode(p, f)
			require.NoError(t, err)
			got, err := Decode(data, f)
			require.NoError(t, err)
			assert.Equal(t, "errors", got.Name)
			assert.True(t, p.SavedAt.Equal(got.SavedAt))
			assert.True(t, layer.EqualList(p.Layers, got.Layers))
		})
	}
}

func TestDecode_NormalisesLayers(t *testing.T) {
	doc := `
name: broken
layers:
  - {id: a, name: A, type: LEVEL, enabled: true, groupId: missing, config: {levels: [ERROR]}}
  - {id: a, name: Dup, type: FILTER, enabled: true, config: {}}
  - {id: b, name: B, type: SPARKLE, enabled: true, config: {}}
`
	got, err := Decode([]byte(doc), FormatYAML)
	require.NoError(t, err)
	require.Len(t, got.Layers, 1)
	assert.Equal(t, "", got.Layers[0].GroupID)
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"json": FormatJSON, ".yml": FormatYAML, "YAML": FormatYAML, ".toml": FormatTOML}
	for in, want := range tests {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := FormatFromPath("presets.xml")
	assert.Error(t, err)
}
