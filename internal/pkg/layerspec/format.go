package layerspec

import (
	"strconv"
	"strings"

	"github.com/qmjianda/loglayout-sub001/internal/layer"
)

// Format renders a layer as a spec that Parse reads back to the same
// type, name, enablement and config.
func Format(l *layer.Layer) string {
	var parts []string
	add := func(key, val string) { parts = append(parts, key+":"+quote(val)) }
	flagIf := func(key string, on bool) {
		if on {
			parts = append(parts, key)
		}
	}
	match := func(head string, m layer.MatchOptions) {
		add(head, m.Query)
		flagIf("regex", m.Regex)
		flagIf("case", m.CaseSensitive)
		flagIf("word", m.WholeWord)
	}

	switch c := l.Config.(type) {
	case layer.FolderConfig:
		parts = append(parts, "folder")
	case layer.FilterConfig:
		match("filter", c.MatchOptions)
		flagIf("invert", c.Invert)
	case layer.HighlightConfig:
		match("highlight", c.MatchOptions)
		add("color", c.Color)
		add("opacity", strconv.Itoa(c.Opacity))
	case layer.TransformConfig:
		match("transform", c.MatchOptions)
		add("with", c.ReplaceWith)
	case layer.RangeConfig:
		parts = append(parts, "range")
		if c.From != nil {
			add("from", strconv.Itoa(*c.From))
		}
		if c.To != nil {
			add("to", strconv.Itoa(*c.To))
		}
	case layer.TimeRangeConfig:
		parts = append(parts, "time")
		if c.StartTime != "" {
			add("from", c.StartTime)
		}
		if c.EndTime != "" {
			add("to", c.EndTime)
		}
		if c.TimeFormat != "" {
			add("format", c.TimeFormat)
		}
	case layer.LevelConfig:
		if len(c.Levels) == 0 {
			parts = append(parts, "level")
		} else {
			add("level", strings.Join(c.Levels, ","))
		}
	}

	if l.Name != "" {
		add("name", l.Name)
	}
	flagIf("off", !l.Enabled)
	return strings.Join(parts, " ")
}

// quote leaves simple values bare and double-quotes the rest.
func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t\n\"|\\") {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}
