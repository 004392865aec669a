package layer

import "slices"

// Layer is one stage of the pipeline or a grouping folder.
type Layer struct {
	ID        string
	Name      string
	Type      Type
	Enabled   bool
	GroupID   string // id of the parent FOLDER, "" for top level
	Collapsed bool   // FOLDER only, presentational
	Config    Config
}

// New builds an enabled layer of type t. A nil cfg takes the type defaults.
func New(id, name string, t Type, cfg Config) *Layer {
	if cfg == nil {
		cfg = DefaultConfig(t)
	}
	return &Layer{ID: id, Name: name, Type: t, Enabled: true, Config: cfg}
}

// Clone returns a deep copy.
func (l *Layer) Clone() *Layer {
	c := *l
	c.Config = CloneConfig(l.Config)
	return &c
}

// IsFolder reports whether the layer is structural only.
func (l *Layer) IsFolder() bool { return l.Type == TypeFolder }

// CloneList deep-copies a layer list.
func CloneList(list []*Layer) []*Layer {
	out := make([]*Layer, len(list))
	for i, l := range list {
		out[i] = l.Clone()
	}
	return out
}

// EqualList reports whether two lists are identical in order and content,
// cosmetic fields included.
func EqualList(a, b []*Layer) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Equal compares two layers field by field.
func Equal(a, b *Layer) bool {
	if a.ID != b.ID || a.Name != b.Name || a.Type != b.Type || a.Enabled != b.Enabled ||
		a.GroupID != b.GroupID || a.Collapsed != b.Collapsed {
		return false
	}
	return equalConfig(a.Config, b.Config)
}

func equalConfig(a, b Config) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case RangeConfig:
		y, ok := b.(RangeConfig)
		return ok && equalIntPtr(x.From, y.From) && equalIntPtr(x.To, y.To)
	case LevelConfig:
		y, ok := b.(LevelConfig)
		return ok && slices.Equal(x.Levels, y.Levels)
	default:
		return a == b
	}
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
