package processor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/qmjianda/loglayout-sub001/internal/layer"
	"github.com/qmjianda/loglayout-sub001/internal/model"
)

// DefaultTimePattern finds an ISO date-time (T or space separated, with
// optional fraction and zone) or a floating-point seconds value.
const DefaultTimePattern = `\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}(?::\d{2}(?:[.,]\d+)?)?(?:Z|[+-]\d{2}:?\d{2})?|\d+\.\d+`

var defaultTimeRe = regexp.MustCompile(DefaultTimePattern)

// Date layouts tried in order once the token is not a plain number.
// Zone-less values are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

var bracketStripper = strings.NewReplacer("[", "", "]", "")

// ParseTimeValue converts a timestamp token into a comparable number:
// decimals are taken as is, dates become Unix milliseconds.
func ParseTimeValue(token string) (float64, bool) {
	token = strings.TrimSpace(bracketStripper.Replace(token))
	if token == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return f, true
	}
	token = strings.Replace(token, " ", "T", 1)
	token = strings.Replace(token, ",", ".", 1)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, token); err == nil {
			return float64(t.UnixMilli()), true
		}
	}
	return 0, false
}

// TimeRange keeps lines whose extracted timestamp lies within
// [StartTime, EndTime]. Lines without a parseable timestamp are dropped.
func TimeRange(seq model.Sequence, c layer.TimeRangeConfig, buckets int) Result {
	if c.StartTime == "" && c.EndTime == "" {
		return passthrough(seq, buckets, ErrNoBounds)
	}
	lo, hi := -1e308, 1e308
	if c.StartTime != "" {
		v, ok := ParseTimeValue(c.StartTime)
		if !ok {
			return passthrough(seq, buckets, fmt.Errorf("%w: %q", ErrInvalidTime, c.StartTime))
		}
		lo = v
	}
	if c.EndTime != "" {
		v, ok := ParseTimeValue(c.EndTime)
		if !ok {
			return passthrough(seq, buckets, fmt.Errorf("%w: %q", ErrInvalidTime, c.EndTime))
		}
		hi = v
	}

	re := defaultTimeRe
	if c.TimeFormat != "" {
		var err error
		if re, err = regexp.Compile(c.TimeFormat); err != nil {
			return passthrough(seq, buckets, fmt.Errorf("%w: %w", ErrInvalidPattern, err))
		}
	}

	n := seq.Len()
	cnt := newCounter(n, buckets)
	keep := make([]int, 0, n/2)
	for p := 0; p < n; p++ {
		m := re.FindStringSubmatch(seq.Text(p))
		if m == nil {
			continue
		}
		token := m[0]
		if len(m) > 1 && m[1] != "" {
			token = m[1]
		}
		v, ok := ParseTimeValue(token)
		if !ok || v < lo || v > hi {
			continue
		}
		keep = append(keep, p)
		cnt.hit(p)
	}
	return Result{Lines: seq.Select(keep), Stats: cnt.stats}
}
