package processor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/qmjianda/loglayout-sub001/internal/layer"
	"github.com/qmjianda/loglayout-sub001/internal/model"
)

// Level keeps lines that contain any configured level as a whole word,
// ignoring case.
func Level(seq model.Sequence, c layer.LevelConfig, buckets int) Result {
	var alts []string
	for _, lv := range c.Levels {
		if lv = strings.TrimSpace(lv); lv != "" {
			alts = append(alts, regexp.QuoteMeta(lv))
		}
	}
	if len(alts) == 0 {
		return passthrough(seq, buckets, ErrNoLevels)
	}
	re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
	if err != nil {
		return passthrough(seq, buckets, fmt.Errorf("%w: %w", ErrInvalidPattern, err))
	}

	n := seq.Len()
	cnt := newCounter(n, buckets)
	keep := make([]int, 0, n/4)
	for p := 0; p < n; p++ {
		if re.MatchString(seq.Text(p)) {
			keep = append(keep, p)
			cnt.hit(p)
		}
	}
	return Result{Lines: seq.Select(keep), Stats: cnt.stats}
}
