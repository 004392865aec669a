package layer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/valyala/fastjson"
)

// ErrInvalidDocument is returned when an import payload is not a layer list.
var ErrInvalidDocument = errors.New("layer document must be a JSON array or an object with a \"layers\" array")

// Record is the flat, serialisable form of a layer. Config keys follow
// the option names used by presets.
type Record struct {
	ID        string       `json:"id" yaml:"id" toml:"id"`
	Name      string       `json:"name" yaml:"name" toml:"name"`
	Type      string       `json:"type" yaml:"type" toml:"type"`
	Enabled   bool         `json:"enabled" yaml:"enabled" toml:"enabled"`
	GroupID   string       `json:"groupId,omitempty" yaml:"groupId,omitempty" toml:"groupId,omitempty"`
	Collapsed bool         `json:"isCollapsed,omitempty" yaml:"isCollapsed,omitempty" toml:"isCollapsed,omitempty"`
	Config    RecordConfig `json:"config" yaml:"config" toml:"config"`
}

// RecordConfig is the union of every option name; each layer type reads
// only its own keys.
type RecordConfig struct {
	Query         string   `json:"query,omitempty" yaml:"query,omitempty" toml:"query,omitempty"`
	Regex         bool     `json:"regex,omitempty" yaml:"regex,omitempty" toml:"regex,omitempty"`
	CaseSensitive bool     `json:"caseSensitive,omitempty" yaml:"caseSensitive,omitempty" toml:"caseSensitive,omitempty"`
	WholeWord     bool     `json:"wholeWord,omitempty" yaml:"wholeWord,omitempty" toml:"wholeWord,omitempty"`
	Invert        bool     `json:"invert,omitempty" yaml:"invert,omitempty" toml:"invert,omitempty"`
	ReplaceWith   string   `json:"replaceWith,omitempty" yaml:"replaceWith,omitempty" toml:"replaceWith,omitempty"`
	From          *int     `json:"from,omitempty" yaml:"from,omitempty" toml:"from,omitempty"`
	To            *int     `json:"to,omitempty" yaml:"to,omitempty" toml:"to,omitempty"`
	StartTime     string   `json:"startTime,omitempty" yaml:"startTime,omitempty" toml:"startTime,omitempty"`
	EndTime       string   `json:"endTime,omitempty" yaml:"endTime,omitempty" toml:"endTime,omitempty"`
	TimeFormat    string   `json:"timeFormat,omitempty" yaml:"timeFormat,omitempty" toml:"timeFormat,omitempty"`
	Levels        []string `json:"levels,omitempty" yaml:"levels,omitempty" toml:"levels,omitempty"`
	Color         string   `json:"color,omitempty" yaml:"color,omitempty" toml:"color,omitempty"`
	Opacity       *int     `json:"opacity,omitempty" yaml:"opacity,omitempty" toml:"opacity,omitempty"`
}

// ToRecord flattens a layer.
func ToRecord(l *Layer) Record {
	r := Record{
		ID:        l.ID,
		Name:      l.Name,
		Type:      string(l.Type),
		Enabled:   l.Enabled,
		GroupID:   l.GroupID,
		Collapsed: l.Collapsed,
	}
	r.Config = recordConfig(l.Config)
	return r
}

func recordConfig(c Config) RecordConfig {
	var rc RecordConfig
	match := func(m MatchOptions) {
		rc.Query, rc.Regex, rc.CaseSensitive, rc.WholeWord = m.Query, m.Regex, m.CaseSensitive, m.WholeWord
	}
	switch c := c.(type) {
	case FilterConfig:
		match(c.MatchOptions)
		rc.Invert = c.Invert
	case HighlightConfig:
		match(c.MatchOptions)
		rc.Color = c.Color
		op := c.Opacity
		rc.Opacity = &op
	case TransformConfig:
		match(c.MatchOptions)
		rc.ReplaceWith = c.ReplaceWith
	case RangeConfig:
		c = c.clone().(RangeConfig)
		rc.From, rc.To = c.From, c.To
	case TimeRangeConfig:
		rc.StartTime, rc.EndTime, rc.TimeFormat = c.StartTime, c.EndTime, c.TimeFormat
	case LevelConfig:
		rc.Levels = append([]string(nil), c.Levels...)
	}
	return rc
}

// ToLayer rebuilds the typed layer.
func (r Record) ToLayer() (*Layer, error) {
	t, ok := ParseType(r.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, r.Type)
	}
	l := &Layer{
		ID:        r.ID,
		Name:      r.Name,
		Type:      t,
		Enabled:   r.Enabled,
		GroupID:   r.GroupID,
		Collapsed: r.Collapsed,
		Config:    r.Config.typed(t),
	}
	return l, nil
}

func (rc RecordConfig) typed(t Type) Config {
	m := MatchOptions{Query: rc.Query, Regex: rc.Regex, CaseSensitive: rc.CaseSensitive, WholeWord: rc.WholeWord}
	switch t {
	case TypeFilter:
		return FilterConfig{MatchOptions: m, Invert: rc.Invert}
	case TypeHighlight:
		hc := HighlightConfig{MatchOptions: m, Color: rc.Color, Opacity: DefaultOpacity}
		if hc.Color == "" {
			hc.Color = DefaultHighlightColor
		}
		if rc.Opacity != nil {
			hc.Opacity = *rc.Opacity
		}
		return hc
	case TypeTransform:
		return TransformConfig{MatchOptions: m, ReplaceWith: rc.ReplaceWith}
	case TypeRange:
		return RangeConfig{From: rc.From, To: rc.To}.clone()
	case TypeTimeRange:
		return TimeRangeConfig{StartTime: rc.StartTime, EndTime: rc.EndTime, TimeFormat: rc.TimeFormat}
	case TypeLevel:
		return LevelConfig{Levels: append([]string(nil), rc.Levels...)}
	default:
		return FolderConfig{}
	}
}

// ToRecords flattens a whole list.
func ToRecords(list []*Layer) []Record {
	out := make([]Record, len(list))
	for i, l := range list {
		out[i] = ToRecord(l)
	}
	return out
}

// FromRecords rebuilds a list and normalises it so that it satisfies the
// model invariants: unknown types and duplicate ids are dropped (first
// occurrence wins), missing ids are generated, group references to
// missing or non-folder layers are cleared and cycles are broken by
// promoting the offending layer to top level.
func FromRecords(records []Record) []*Layer {
	list := make([]*Layer, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		l, err := r.ToLayer()
		if err != nil {
			continue
		}
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		if seen[l.ID] {
			continue
		}
		seen[l.ID] = true
		list = append(list, l)
	}
	return normalize(list)
}

func normalize(list []*Layer) []*Layer {
	byID := make(map[string]*Layer, len(list))
	for _, l := range list {
		byID[l.ID] = l
	}
	for _, l := range list {
		if l.GroupID == "" {
			continue
		}
		if p, ok := byID[l.GroupID]; !ok || !p.IsFolder() {
			l.GroupID = ""
		}
	}
	for _, l := range list {
		seen := map[string]bool{l.ID: true}
		for cur := l; cur.GroupID != ""; {
			if seen[cur.GroupID] {
				l.GroupID = ""
				break
			}
			seen[cur.GroupID] = true
			cur = byID[cur.GroupID]
		}
	}
	return list
}

// Export serialises a layer list as indented JSON.
func Export(list []*Layer) ([]byte, error) {
	return json.MarshalIndent(ToRecords(list), "", "  ")
}

var parserPool fastjson.ParserPool

// Import parses a JSON layer document (an array of records, or an object
// with a "layers" array) and returns a normalised list.
func Import(data []byte) ([]*Layer, error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse layers: %w", err)
	}
	if v.Type() == fastjson.TypeObject {
		v = v.Get("layers")
	}
	if v == nil || v.Type() != fastjson.TypeArray {
		return nil, ErrInvalidDocument
	}

	items, _ := v.Array()
	records := make([]Record, 0, len(items))
	for _, item := range items {
		if item.Type() != fastjson.TypeObject {
			continue
		}
		records = append(records, RecordFromValue(item))
	}
	return FromRecords(records), nil
}

// RecordFromValue reads one record from a parsed JSON object. Strings are
// copied, so the result outlives the parser. A missing "enabled" key
// means enabled.
func RecordFromValue(v *fastjson.Value) Record {
	r := Record{
		ID:        string(v.GetStringBytes("id")),
		Name:      string(v.GetStringBytes("name")),
		Type:      string(v.GetStringBytes("type")),
		Enabled:   true,
		GroupID:   string(v.GetStringBytes("groupId")),
		Collapsed: v.GetBool("isCollapsed"),
	}
	if v.Exists("enabled") {
		r.Enabled = v.GetBool("enabled")
	}
	if c := v.Get("config"); c != nil && c.Type() == fastjson.TypeObject {
		r.Config = RecordConfigFromValue(c)
	}
	return r
}

// RecordConfigFromValue reads the option bag of a record.
func RecordConfigFromValue(c *fastjson.Value) RecordConfig {
	rc := RecordConfig{
		Query:         string(c.GetStringBytes("query")),
		Regex:         c.GetBool("regex"),
		CaseSensitive: c.GetBool("caseSensitive"),
		WholeWord:     c.GetBool("wholeWord"),
		Invert:        c.GetBool("invert"),
		ReplaceWith:   string(c.GetStringBytes("replaceWith")),
		StartTime:     string(c.GetStringBytes("startTime")),
		EndTime:       string(c.GetStringBytes("endTime")),
		TimeFormat:    string(c.GetStringBytes("timeFormat")),
		Color:         string(c.GetStringBytes("color")),
	}
	rc.From = optionalInt(c, "from")
	rc.To = optionalInt(c, "to")
	rc.Opacity = optionalInt(c, "opacity")
	for _, lv := range c.GetArray("levels") {
		if b, err := lv.StringBytes(); err == nil {
			rc.Levels = append(rc.Levels, string(b))
		}
	}
	return rc
}

func optionalInt(c *fastjson.Value, key string) *int {
	f := c.Get(key)
	if f == nil || f.Type() != fastjson.TypeNumber {
		return nil
	}
	n := int(f.GetFloat64())
	return &n
}

// MergeRecordConfig overlays the keys present in c onto base. Keys that
// are absent keep their base value; a JSON null clears an optional bound.
func MergeRecordConfig(base RecordConfig, c *fastjson.Value) RecordConfig {
	str := func(key string, dst *string) {
		if c.Exists(key) {
			*dst = string(c.GetStringBytes(key))
		}
	}
	boolean := func(key string, dst *bool) {
		if c.Exists(key) {
			*dst = c.GetBool(key)
		}
	}
	optional := func(key string, dst **int) {
		if c.Exists(key) {
			*dst = optionalInt(c, key)
		}
	}

	out := base
	str("query", &out.Query)
	boolean("regex", &out.Regex)
	boolean("caseSensitive", &out.CaseSensitive)
	boolean("wholeWord", &out.WholeWord)
	boolean("invert", &out.Invert)
	str("replaceWith", &out.ReplaceWith)
	str("startTime", &out.StartTime)
	str("endTime", &out.EndTime)
	str("timeFormat", &out.TimeFormat)
	str("color", &out.Color)
	optional("from", &out.From)
	optional("to", &out.To)
	optional("opacity", &out.Opacity)
	if c.Exists("levels") {
		out.Levels = nil
		for _, lv := range c.GetArray("levels") {
			if b, err := lv.StringBytes(); err == nil {
				out.Levels = append(out.Levels, string(b))
			}
		}
	}
	return out
}
