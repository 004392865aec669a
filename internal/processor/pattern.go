package processor

import (
	"fmt"
	"regexp"

	"github.com/qmjianda/loglayout-sub001/internal/layer"
)

// Compile builds the matcher shared by FILTER, HIGHLIGHT and TRANSFORM
// layers and by the global search. The query is escaped unless Regex is
// set, wrapped in word boundaries for WholeWord, and matched without case
// unless CaseSensitive.
func Compile(m layer.MatchOptions) (*regexp.Regexp, error) {
	if m.Query == "" {
		return nil, ErrEmptyQuery
	}
	expr := m.Query
	if !m.Regex {
		expr = regexp.QuoteMeta(expr)
	}
	if m.WholeWord {
		expr = `\b(?:` + expr + `)\b`
	}
	if !m.CaseSensitive {
		expr = `(?i)` + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}
	return re, nil
}
