package view

import (
	"fmt"
	"sort"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/qmjianda/loglayout-sub001/internal/model"
)

// DefaultBackground is blended under highlight colours when no theme
// background is configured.
const DefaultBackground = "#1e1e1e"

// Segment is a run of display text with uniform styling.
type Segment struct {
	Text        string `json:"text"`
	Highlighted bool   `json:"highlighted,omitempty"`
	Color       string `json:"color,omitempty"`
	Opacity     int    `json:"opacity,omitempty"`
	// Fill is Color blended over the background at Opacity.
	Fill string `json:"fill,omitempty"`
}

// Compositor splits lines into segments and resolves highlight colours
// against a fixed background.
type Compositor struct {
	background colorful.Color
}

// NewCompositor parses the background colour.
func NewCompositor(background string) (*Compositor, error) {
	if background == "" {
		background = DefaultBackground
	}
	bg, err := colorful.Hex(background)
	if err != nil {
		return nil, fmt.Errorf("parse background %q: %w", background, err)
	}
	return &Compositor{background: bg}, nil
}

// Line renders one output line.
func (c *Compositor) Line(l model.LogLine) []Segment {
	segs := Compose(l.Text(), l.Highlights)
	for i := range segs {
		if segs[i].Highlighted {
			segs[i].Fill = c.Blend(segs[i].Color, segs[i].Opacity)
		}
	}
	return segs
}

// Lines renders a window of output lines.
func (c *Compositor) Lines(lines []model.LogLine) [][]Segment {
	out := make([][]Segment, len(lines))
	for i, l := range lines {
		out[i] = c.Line(l)
	}
	return out
}

// Blend mixes color over the background with opacity in [0, 100].
// Unparseable colours come back unchanged.
func (c *Compositor) Blend(color string, opacity int) string {
	fg, err := colorful.Hex(color)
	if err != nil {
		return color
	}
	alpha := float64(clampOpacity(opacity)) / 100
	return c.background.BlendRgb(fg, alpha).Clamped().Hex()
}

func clampOpacity(o int) int {
	if o < 0 {
		return 0
	}
	if o > 100 {
		return 100
	}
	return o
}

// Compose splits text by spans. Spans are ordered by start ascending and
// longer spans first on equal starts. A span overlapping an already
// painted region is dropped. Offsets are clamped to the text length.
func Compose(text string, spans []model.Span) []Segment {
	if len(spans) == 0 {
		if text == "" {
			return nil
		}
		return []Segment{{Text: text}}
	}

	sorted := make([]model.Span, len(spans))
	copy(sorted, spans)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End > sorted[j].End
	})

	n := len(text)
	var segs []Segment
	cursor := 0
	for _, sp := range sorted {
		start, end := sp.Start, sp.End
		if start < 0 {
			start = 0
		}
		if end > n {
			end = n
		}
		if end <= start || start < cursor {
			continue
		}
		if start > cursor {
			segs = append(segs, Segment{Text: text[cursor:start]})
		}
		segs = append(segs, Segment{
			Text:        text[start:end],
			Highlighted: true,
			Color:       sp.Color,
			Opacity:     clampOpacity(sp.Opacity),
		})
		cursor = end
	}
	if cursor < n {
		segs = append(segs, Segment{Text: text[cursor:]})
	}
	return segs
}
