package processor

import (
	"regexp"

	"github.com/qmjianda/loglayout-sub001/internal/layer"
	"github.com/qmjianda/loglayout-sub001/internal/model"
)

// Transform rewrites every match in the current text with ReplaceWith
// (regexp expansion syntax, e.g. ${1}) and stores the result as the
// line's display text. The original content is never touched.
// Highlight spans from earlier layers follow the rewrite: spans outside
// every match are shifted, spans overlapping a match are dropped.
func Transform(seq model.Sequence, c layer.TransformConfig, buckets int) Result {
	re, err := Compile(c.MatchOptions)
	if err != nil {
		return passthrough(seq, buckets, err)
	}

	seq = seq.Objectify()
	in := seq.Lines()
	out := make([]*model.LogLine, len(in))
	cnt := newCounter(len(in), buckets)

	for p, line := range in {
		text := line.Text()
		locs := re.FindAllStringSubmatchIndex(text, -1)
		if len(locs) == 0 {
			out[p] = line
			continue
		}
		cl := line.Clone()
		var edits []edit
		cl.DisplayContent, edits = replace(re, text, locs, c.ReplaceWith)
		cl.Transformed = true
		if len(cl.Highlights) > 0 {
			cl.Highlights = remapSpans(cl.Highlights, edits)
		}
		out[p] = cl
		cnt.hit(p)
	}
	return Result{Lines: seq.WithLines(out), Stats: cnt.stats}
}

// edit records one replaced range [start, end) and the length change.
type edit struct {
	start, end int
	delta      int
}

// replace expands template at every match, as regexp.ReplaceAllString
// does, and reports where the text changed.
func replace(re *regexp.Regexp, text string, locs [][]int, template string) (string, []edit) {
	buf := make([]byte, 0, len(text))
	edits := make([]edit, 0, len(locs))
	last := 0
	for _, loc := range locs {
		buf = append(buf, text[last:loc[0]]...)
		before := len(buf)
		buf = re.ExpandString(buf, template, text, loc)
		edits = append(edits, edit{start: loc[0], end: loc[1], delta: len(buf) - before - (loc[1] - loc[0])})
		last = loc[1]
	}
	buf = append(buf, text[last:]...)
	return string(buf), edits
}

func remapSpans(spans []model.Span, edits []edit) []model.Span {
	out := spans[:0:0]
	for _, sp := range spans {
		shift, keep := 0, true
		for _, e := range edits {
			if e.start < sp.End && sp.Start < e.end {
				keep = false
				break
			}
			if e.end <= sp.Start {
				shift += e.delta
			}
		}
		if keep {
			sp.Start += shift
			sp.End += shift
			out = append(out, sp)
		}
	}
	return out
}
