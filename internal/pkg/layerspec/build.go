package layerspec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/qmjianda/loglayout-sub001/internal/layer"
)

// Spec is a fully resolved layer definition.
type Spec struct {
	Type    layer.Type
	Name    string
	Enabled bool
	Config  layer.Config
}

// Layer materialises the spec with the given id.
func (s Spec) Layer(id string) *layer.Layer {
	l := layer.New(id, s.Name, s.Type, layer.CloneConfig(s.Config))
	l.Enabled = s.Enabled
	return l
}

var typeAliases = map[string]layer.Type{
	"folder":     layer.TypeFolder,
	"group":      layer.TypeFolder,
	"filter":     layer.TypeFilter,
	"highlight":  layer.TypeHighlight,
	"hl":         layer.TypeHighlight,
	"transform":  layer.TypeTransform,
	"replace":    layer.TypeTransform,
	"range":      layer.TypeRange,
	"lines":      layer.TypeRange,
	"time":       layer.TypeTimeRange,
	"timerange":  layer.TypeTimeRange,
	"time_range": layer.TypeTimeRange,
	"level":      layer.TypeLevel,
	"lvl":        layer.TypeLevel,
}

var matchOptions = []string{"query", "regex", "case", "word"}

// allowed lists the option keys each type accepts besides name and off.
var allowed = map[layer.Type][]string{
	layer.TypeFolder:    nil,
	layer.TypeFilter:    append([]string{"invert"}, matchOptions...),
	layer.TypeHighlight: append([]string{"color", "opacity"}, matchOptions...),
	layer.TypeTransform: append([]string{"with"}, matchOptions...),
	layer.TypeRange:     {"from", "to"},
	layer.TypeTimeRange: {"from", "to", "format"},
	layer.TypeLevel:     {"levels"},
}

// Parse parses a '|' separated list of layer definitions.
func Parse(input string) ([]Spec, error) {
	defs, err := ParseDefinitions(input)
	if err != nil {
		return nil, err
	}
	specs := make([]Spec, 0, len(defs))
	for _, d := range defs {
		s, err := Build(d)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return specs, nil
}

// ParseOne parses exactly one layer definition.
func ParseOne(input string) (Spec, error) {
	specs, err := Parse(input)
	if err != nil {
		return Spec{}, err
	}
	if len(specs) != 1 {
		return Spec{}, fmt.Errorf("%w: expected one layer definition, got %d", ErrSyntax, len(specs))
	}
	return specs[0], nil
}

// Build resolves a parsed definition into a typed layer config.
func Build(d Definition) (Spec, error) {
	t, ok := typeAliases[d.Head.Key]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", ErrUnknownType, d.Head.Key)
	}
	rec := layer.Record{Type: string(t), Enabled: true}
	if t == layer.TypeHighlight {
		rec.Config.Color = layer.DefaultHighlightColor
		rec.Config.Opacity = layer.IntPtr(layer.DefaultOpacity)
	}

	if d.Head.HasValue {
		if err := applyHead(t, d.Head.Value, &rec); err != nil {
			return Spec{}, err
		}
	}
	for _, opt := range d.Options {
		if err := applyOption(t, opt, &rec); err != nil {
			return Spec{}, err
		}
	}

	l, err := rec.ToLayer()
	if err != nil {
		return Spec{}, err
	}
	return Spec{Type: t, Name: rec.Name, Enabled: rec.Enabled, Config: l.Config}, nil
}

func applyHead(t layer.Type, v string, rec *layer.Record) error {
	switch t {
	case layer.TypeFolder:
		rec.Name = v
	case layer.TypeFilter, layer.TypeHighlight, layer.TypeTransform:
		rec.Config.Query = v
	case layer.TypeLevel:
		rec.Config.Levels = splitLevels(v)
	case layer.TypeRange:
		from, to, err := parseLineRange(v)
		if err != nil {
			return err
		}
		rec.Config.From, rec.Config.To = from, to
	case layer.TypeTimeRange:
		start, end, _ := strings.Cut(v, "..")
		rec.Config.StartTime, rec.Config.EndTime = start, end
	}
	return nil
}

func applyOption(t layer.Type, opt Term, rec *layer.Record) error {
	switch opt.Key {
	case "name":
		rec.Name = opt.Value
		return nil
	case "off":
		on, err := flag(opt)
		if err != nil {
			return fmt.Errorf("%w: off:%s", ErrInvalidValue, opt.Value)
		}
		rec.Enabled = !on
		return nil
	}
	if !accepts(t, opt.Key) {
		return fmt.Errorf("%w: %q for %s layers", ErrUnknownOption, opt.Key, strings.ToLower(string(t)))
	}

	var err error
	c := &rec.Config
	switch opt.Key {
	case "query":
		c.Query = opt.Value
	case "regex":
		c.Regex, err = flag(opt)
	case "case":
		c.CaseSensitive, err = flag(opt)
	case "word":
		c.WholeWord, err = flag(opt)
	case "invert":
		c.Invert, err = flag(opt)
	case "with":
		c.ReplaceWith = opt.Value
	case "color":
		c.Color = opt.Value
	case "opacity":
		var n int
		n, err = strconv.Atoi(opt.Value)
		if err == nil && (n < 0 || n > 100) {
			err = strconv.ErrRange
		}
		c.Opacity = &n
	case "levels":
		c.Levels = splitLevels(opt.Value)
	case "format":
		c.TimeFormat = opt.Value
	case "from", "to":
		if t == layer.TypeTimeRange {
			if opt.Key == "from" {
				c.StartTime = opt.Value
			} else {
				c.EndTime = opt.Value
			}
			break
		}
		var n int
		n, err = strconv.Atoi(opt.Value)
		if opt.Key == "from" {
			c.From = &n
		} else {
			c.To = &n
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %s:%s (%v)", ErrInvalidValue, opt.Key, opt.Value, err)
	}
	return nil
}

func accepts(t layer.Type, key string) bool {
	for _, k := range allowed[t] {
		if k == key {
			return true
		}
	}
	return false
}

// flag reads a boolean option; a bare key means true.
func flag(opt Term) (bool, error) {
	if !opt.HasValue {
		return true, nil
	}
	switch strings.ToLower(opt.Value) {
	case "yes", "on":
		return true, nil
	case "no":
		return false, nil
	}
	return strconv.ParseBool(opt.Value)
}

func splitLevels(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}

// parseLineRange reads "A-B", "A..B", "A-" or "-B".
func parseLineRange(v string) (*int, *int, error) {
	lo, hi, ok := strings.Cut(v, "..")
	if !ok {
		lo, hi, ok = strings.Cut(v, "-")
	}
	if !ok {
		hi = lo
	}
	from, err := optionalInt(lo)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: range %q", ErrInvalidValue, v)
	}
	to, err := optionalInt(hi)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: range %q", ErrInvalidValue, v)
	}
	return from, to, nil
}

func optionalInt(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
