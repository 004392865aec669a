package engine

import (
	"errors"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/qmjianda/loglayout-sub001/internal/layer"
	"github.com/qmjianda/loglayout-sub001/internal/model"
	"github.com/qmjianda/loglayout-sub001/internal/processor"
)

// ErrStale is returned by a run that was superseded by a newer generation.
// It is a normal discard, not a failure.
var ErrStale = errors.New("run superseded by a newer generation")

const (
	// GlobalSearchID is the id of the synthetic search highlight layer.
	GlobalSearchID = "__global_search__"
	// GlobalSearchColor is the highlight color of search matches.
	GlobalSearchColor = "#ff9632"

	DefaultBatchSize = 250000
)

// SearchOptions are the match flags of the global search.
type SearchOptions struct {
	Regex         bool `json:"regex"`
	CaseSensitive bool `json:"caseSensitive"`
	WholeWord     bool `json:"wholeWord"`
}

// Search is the transient global query. An empty Query means no search.
type Search struct {
	Query   string        `json:"query"`
	Options SearchOptions `json:"options"`
}

func (s Search) layer() *layer.Layer {
	cfg := layer.HighlightConfig{
		MatchOptions: layer.MatchOptions{
			Query:         s.Query,
			Regex:         s.Options.Regex,
			CaseSensitive: s.Options.CaseSensitive,
			WholeWord:     s.Options.WholeWord,
		},
		Color:   GlobalSearchColor,
		Opacity: 100,
	}
	return layer.New(GlobalSearchID, "Search", layer.TypeHighlight, cfg)
}

// Run is one dispatched pipeline execution.
type Run struct {
	Generation uint64
	Raw        []string
	Layers     []*layer.Layer // full list; the executor resolves the active subset
	Search     Search
}

// Result is the complete output of a run. It is never modified after commit.
type Result struct {
	Generation  uint64
	Lines       model.Sequence
	Stats       map[string]model.LayerStats
	Order       []string          // executed layer ids, search layer last
	Diagnostics map[string]string // layer id -> config problem
	SearchHits  []int             // output positions matched by the search
	SourceLines int
	Duration    time.Duration
}

// Executor applies the active layers to a raw source.
type Executor struct {
	BatchSize int
	Buckets   int
	Yield     func() // called between objectification batches

	log zerolog.Logger
}

// NewExecutor returns an executor with default batching and buckets.
func NewExecutor(log zerolog.Logger) *Executor {
	return &Executor{
		BatchSize: DefaultBatchSize,
		Buckets:   processor.DefaultBuckets,
		Yield:     runtime.Gosched,
		log:       log.With().Str("component", "executor").Logger(),
	}
}

// Execute runs the pipeline. fresh reports whether the run is still the
// current generation; it is consulted between layers and around every
// yield, and a false answer abandons the run with ErrStale.
func (e *Executor) Execute(run Run, fresh func() bool) (*Result, error) {
	start := time.Now()

	// 1. Resolve the active layers, plus the search layer if any.
	active := layer.NewStore(run.Layers).Active()
	if run.Search.Query != "" {
		active = append(active, run.Search.layer())
	}

	res := &Result{
		Generation:  run.Generation,
		Stats:       make(map[string]model.LayerStats, len(active)),
		Order:       make([]string, 0, len(active)),
		Diagnostics: make(map[string]string),
		SourceLines: len(run.Raw),
	}

	// 2. Thread the working sequence through each processor.
	seq := model.Plain(run.Raw)
	for _, l := range active {
		if !fresh() {
			return nil, ErrStale
		}
		if processor.NeedsObjects(l.Type) && !seq.Objectified() {
			var err error
			if seq, err = e.objectify(seq, fresh); err != nil {
				return nil, err
			}
		}

		out := processor.Process(seq, l.Config, e.Buckets)
		if out.Diagnostic != nil {
			res.Diagnostics[l.ID] = out.Diagnostic.Error()
			e.log.Debug().Str("layer", l.ID).Err(out.Diagnostic).Msg("layer skipped")
		}
		if l.ID == GlobalSearchID {
			res.SearchHits = searchHits(seq, out.Lines)
		}
		res.Stats[l.ID] = out.Stats
		res.Order = append(res.Order, l.ID)
		seq = out.Lines
	}

	// 3. Scale every distribution to its own peak.
	NormalizeDistributions(res.Stats)

	if !fresh() {
		return nil, ErrStale
	}
	res.Lines = seq
	res.Duration = time.Since(start)
	return res, nil
}

// objectify upgrades a plain sequence in bounded batches, yielding
// between batches.
func (e *Executor) objectify(seq model.Sequence, fresh func() bool) (model.Sequence, error) {
	batch := e.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	n := seq.Len()
	lines := make([]*model.LogLine, 0, n)
	for from := 0; from < n; from += batch {
		to := min(from+batch, n)
		lines = seq.AppendObjects(lines, from, to)
		if to == n {
			break
		}
		if !fresh() {
			return model.Sequence{}, ErrStale
		}
		if e.Yield != nil {
			e.Yield()
		}
		if !fresh() {
			return model.Sequence{}, ErrStale
		}
	}
	return seq.WithLines(lines), nil
}

// searchHits lists the output positions the search layer annotated.
// Highlight clones exactly the records it adds spans to.
func searchHits(in, out model.Sequence) []int {
	if !in.Objectified() || !out.Objectified() {
		return nil
	}
	before, after := in.Lines(), out.Lines()
	var hits []int
	for p := range after {
		if after[p] != before[p] {
			hits = append(hits, p)
		}
	}
	return hits
}
