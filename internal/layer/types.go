package layer

import "strings"

// Type identifies the kind of a layer.
type Type string

const (
	TypeFolder    Type = "FOLDER"
	TypeFilter    Type = "FILTER"
	TypeHighlight Type = "HIGHLIGHT"
	TypeTransform Type = "TRANSFORM"
	TypeRange     Type = "RANGE"
	TypeTimeRange Type = "TIME_RANGE"
	TypeLevel     Type = "LEVEL"
)

// Types lists every known layer type in display order.
var Types = []Type{TypeFolder, TypeFilter, TypeHighlight, TypeTransform, TypeRange, TypeTimeRange, TypeLevel}

// ParseType converts a case-insensitive name to a Type.
func ParseType(s string) (Type, bool) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case TypeFolder, TypeFilter, TypeHighlight, TypeTransform, TypeRange, TypeTimeRange, TypeLevel:
		return t, true
	case "TIMERANGE", "TIME-RANGE":
		return TypeTimeRange, true
	}
	return "", false
}

// Title returns the human form used for default layer names.
func (t Type) Title() string {
	switch t {
	case TypeFolder:
		return "Folder"
	case TypeFilter:
		return "Filter"
	case TypeHighlight:
		return "Highlight"
	case TypeTransform:
		return "Transform"
	case TypeRange:
		return "Range"
	case TypeTimeRange:
		return "Time Range"
	case TypeLevel:
		return "Level"
	default:
		return string(t)
	}
}

// Config is the type-specific configuration of a layer. Exactly one
// variant exists per Type.
type Config interface {
	Type() Type
	clone() Config
}

// MatchOptions is the pattern description shared by FILTER, HIGHLIGHT
// and TRANSFORM layers.
type MatchOptions struct {
	Query         string
	Regex         bool
	CaseSensitive bool
	WholeWord     bool
}

type FolderConfig struct{}

type FilterConfig struct {
	MatchOptions
	Invert bool
}

type HighlightConfig struct {
	MatchOptions
	Color   string
	Opacity int
}

type TransformConfig struct {
	MatchOptions
	ReplaceWith string
}

// RangeConfig bounds are 1-based and inclusive; nil means unbounded.
type RangeConfig struct {
	From *int
	To   *int
}

type TimeRangeConfig struct {
	StartTime  string
	EndTime    string
	TimeFormat string
}

type LevelConfig struct {
	Levels []string
}

const (
	DefaultHighlightColor = "#facc15"
	DefaultOpacity        = 100
)

func (FolderConfig) Type() Type    { return TypeFolder }
func (FilterConfig) Type() Type    { return TypeFilter }
func (HighlightConfig) Type() Type { return TypeHighlight }
func (TransformConfig) Type() Type { return TypeTransform }
func (RangeConfig) Type() Type     { return TypeRange }
func (TimeRangeConfig) Type() Type { return TypeTimeRange }
func (LevelConfig) Type() Type     { return TypeLevel }

func (c FolderConfig) clone() Config    { return c }
func (c FilterConfig) clone() Config    { return c }
func (c HighlightConfig) clone() Config { return c }
func (c TransformConfig) clone() Config { return c }
func (c TimeRangeConfig) clone() Config { return c }

func (c RangeConfig) clone() Config {
	out := RangeConfig{}
	if c.From != nil {
		v := *c.From
		out.From = &v
	}
	if c.To != nil {
		v := *c.To
		out.To = &v
	}
	return out
}

func (c LevelConfig) clone() Config {
	return LevelConfig{Levels: append([]string(nil), c.Levels...)}
}

// DefaultConfig returns the initial configuration for a new layer of type t.
func DefaultConfig(t Type) Config {
	switch t {
	case TypeFolder:
		return FolderConfig{}
	case TypeFilter:
		return FilterConfig{}
	case TypeHighlight:
		return HighlightConfig{Color: DefaultHighlightColor, Opacity: DefaultOpacity}
	case TypeTransform:
		return TransformConfig{}
	case TypeRange:
		return RangeConfig{}
	case TypeTimeRange:
		return TimeRangeConfig{}
	case TypeLevel:
		return LevelConfig{}
	default:
		return nil
	}
}

// CloneConfig deep-copies a config value; nil stays nil.
func CloneConfig(c Config) Config {
	if c == nil {
		return nil
	}
	return c.clone()
}

// IntPtr is a convenience for building RangeConfig literals.
func IntPtr(v int) *int { return &v }
