// Package processor implements the per-type layer transformations.
//
// Every processor is a pure function of (sequence, config, bucket count).
// A malformed config never fails: the input comes back unchanged with
// zero stats and a Diagnostic describing the problem.
package processor

import (
	"errors"

	"github.com/qmjianda/loglayout-sub001/internal/layer"
	"github.com/qmjianda/loglayout-sub001/internal/model"
)

var (
	ErrEmptyQuery     = errors.New("query is empty")
	ErrInvalidPattern = errors.New("invalid pattern")
	ErrNoLevels       = errors.New("no levels selected")
	ErrNoBounds       = errors.New("no time bounds set")
	ErrInvalidTime    = errors.New("time bound cannot be parsed")
)

// DefaultBuckets is the distribution size used by the heat map.
const DefaultBuckets = 20

// Result is the output of one processor invocation.
type Result struct {
	Lines      model.Sequence
	Stats      model.LayerStats
	Diagnostic error
}

// NeedsObjects reports whether layers of type t annotate or rewrite lines
// and therefore need an objectified sequence.
func NeedsObjects(t layer.Type) bool {
	return t == layer.TypeHighlight || t == layer.TypeTransform
}

// Process dispatches on the config variant.
func Process(seq model.Sequence, cfg layer.Config, buckets int) Result {
	switch c := cfg.(type) {
	case layer.FilterConfig:
		return Filter(seq, c, buckets)
	case layer.HighlightConfig:
		return Highlight(seq, c, buckets)
	case layer.TransformConfig:
		return Transform(seq, c, buckets)
	case layer.RangeConfig:
		return Range(seq, c, buckets)
	case layer.TimeRangeConfig:
		return TimeRange(seq, c, buckets)
	case layer.LevelConfig:
		return Level(seq, c, buckets)
	default:
		// FOLDER and nil configs are structural.
		return passthrough(seq, buckets, nil)
	}
}

func passthrough(seq model.Sequence, buckets int, diag error) Result {
	return Result{Lines: seq, Stats: model.EmptyStats(buckets), Diagnostic: diag}
}

// counter accumulates the count and raw distribution of one layer.
type counter struct {
	stats   model.LayerStats
	n       int
	buckets int
}

func newCounter(n, buckets int) *counter {
	buckets = max(buckets, 0)
	return &counter{stats: model.EmptyStats(buckets), n: n, buckets: buckets}
}

// hit counts the line at input position p.
func (c *counter) hit(p int) {
	c.stats.Count++
	if b := Bucket(p, c.n, c.buckets); b >= 0 {
		c.stats.Distribution[b]++
	}
}

// Bucket maps position p of an n-line working set to one of buckets
// slots, or -1 when there is nothing to map into.
func Bucket(p, n, buckets int) int {
	if buckets <= 0 || n <= 0 || p < 0 {
		return -1
	}
	b := p * buckets / n
	if b >= buckets {
		b = buckets - 1
	}
	return b
}
