package model

// Span marks a highlighted byte range [Start, End) of a line's display text.
type Span struct {
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Color   string `json:"color"`
	Opacity int    `json:"opacity"` // 0-100
}

// LogLine is the structured (objectified) view of one raw line.
// Index is the 0-based position in the raw input and never changes.
type LogLine struct {
	Index          int    `json:"index"`
	Content        string `json:"content"`
	DisplayContent string `json:"displayContent,omitempty"`
	Transformed    bool   `json:"transformed,omitempty"`
	Highlights     []Span `json:"highlights,omitempty"`
	IsMarked       bool   `json:"isMarked,omitempty"`
}

// Text returns the text later layers match against: the latest
// transformed text if a TRANSFORM layer fired, the original otherwise.
func (l *LogLine) Text() string {
	if l.Transformed {
		return l.DisplayContent
	}
	return l.Content
}

// Clone returns a copy whose highlight slice can be appended to
// without touching the receiver.
func (l *LogLine) Clone() *LogLine {
	c := *l
	if len(l.Highlights) > 0 {
		c.Highlights = make([]Span, len(l.Highlights), len(l.Highlights)+1)
		copy(c.Highlights, l.Highlights)
	}
	return &c
}

// LayerStats holds the per-layer match count and positional distribution.
type LayerStats struct {
	Count        int       `json:"count"`
	Distribution []float64 `json:"distribution"`
}

// EmptyStats returns zero stats with a zeroed distribution of the given size.
func EmptyStats(buckets int) LayerStats {
	if buckets < 0 {
		buckets = 0
	}
	return LayerStats{Distribution: make([]float64, buckets)}
}
