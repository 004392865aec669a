package processor

import (
	"github.com/qmjianda/loglayout-sub001/internal/layer"
	"github.com/qmjianda/loglayout-sub001/internal/model"
)

// Highlight appends one span per non-empty match to every matching line.
// Lines are never dropped; count is the number of lines that got a span.
func Highlight(seq model.Sequence, c layer.HighlightConfig, buckets int) Result {
	re, err := Compile(c.MatchOptions)
	if err != nil {
		return passthrough(seq, buckets, err)
	}
	color := c.Color
	if color == "" {
		color = layer.DefaultHighlightColor
	}
	opacity := min(max(c.Opacity, 0), 100)

	seq = seq.Objectify()
	in := seq.Lines()
	out := make([]*model.LogLine, len(in))
	cnt := newCounter(len(in), buckets)

	for p, line := range in {
		var spans []model.Span
		for _, loc := range re.FindAllStringIndex(line.Text(), -1) {
			if loc[0] == loc[1] {
				continue
			}
			spans = append(spans, model.Span{Start: loc[0], End: loc[1], Color: color, Opacity: opacity})
		}
		if len(spans) == 0 {
			out[p] = line
			continue
		}
		cl := line.Clone()
		cl.Highlights = append(cl.Highlights, spans...)
		out[p] = cl
		cnt.hit(p)
	}
	return Result{Lines: seq.WithLines(out), Stats: cnt.stats}
}
