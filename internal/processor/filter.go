package processor

import (
	"github.com/qmjianda/loglayout-sub001/internal/layer"
	"github.com/qmjianda/loglayout-sub001/internal/model"
)

// Filter keeps the lines whose current text matches, or does not match
// when Invert is set.
func Filter(seq model.Sequence, c layer.FilterConfig, buckets int) Result {
	re, err := Compile(c.MatchOptions)
	if err != nil {
		return passthrough(seq, buckets, err)
	}

	n := seq.Len()
	cnt := newCounter(n, buckets)
	keep := make([]int, 0, n/2)
	for p := 0; p < n; p++ {
		if re.MatchString(seq.Text(p)) != c.Invert {
			keep = append(keep, p)
			cnt.hit(p)
		}
	}
	return Result{Lines: seq.Select(keep), Stats: cnt.stats}
}
