package processor

import (
	"math"

	"github.com/qmjianda/loglayout-sub001/internal/layer"
	"github.com/qmjianda/loglayout-sub001/internal/model"
)

// Range keeps lines whose 1-based original index lies in [From, To].
// Missing bounds are open. It works on plain sequences directly.
func Range(seq model.Sequence, c layer.RangeConfig, buckets int) Result {
	lo, hi := 1, math.MaxInt
	if c.From != nil {
		lo = *c.From
	}
	if c.To != nil {
		hi = *c.To
	}

	n := seq.Len()
	cnt := newCounter(n, buckets)
	keep := make([]int, 0)
	for p := 0; p < n; p++ {
		if line := seq.Index(p) + 1; line >= lo && line <= hi {
			keep = append(keep, p)
			cnt.hit(p)
		}
	}
	return Result{Lines: seq.Select(keep), Stats: cnt.stats}
}
