package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/qmjianda/loglayout-sub001/internal/layer"
)

// Debounce picks the delay before a requested run starts, growing with
// the size of the source.
type Debounce struct {
	Small       time.Duration `mapstructure:"small"`
	Medium      time.Duration `mapstructure:"medium"`
	Large       time.Duration `mapstructure:"large"`
	SmallLines  int           `mapstructure:"small_lines"`
	MediumLines int           `mapstructure:"medium_lines"`
}

// DefaultDebounce is 50ms below 100k lines, 150ms below 1M, 300ms above.
var DefaultDebounce = Debounce{
	Small:       50 * time.Millisecond,
	Medium:      150 * time.Millisecond,
	Large:       300 * time.Millisecond,
	SmallLines:  100_000,
	MediumLines: 1_000_000,
}

// Delay returns the debounce delay for a source of n lines.
func (d Debounce) Delay(n int) time.Duration {
	switch {
	case n < d.SmallLines:
		return d.Small
	case n < d.MediumLines:
		return d.Medium
	default:
		return d.Large
	}
}

// Request is the state a run should be computed from.
type Request struct {
	Raw           []string
	SourceVersion uint64
	Layers        []*layer.Layer
	Search        Search
}

// requestKey identifies the functional content of a request.
type requestKey struct {
	source uint64
	layers uint64
	search uint64
}

func keyOf(req Request) requestKey {
	d := xxhash.New()
	d.WriteString(req.Search.Query)
	for _, b := range []bool{req.Search.Options.Regex, req.Search.Options.CaseSensitive, req.Search.Options.WholeWord} {
		if b {
			d.WriteString("1")
		} else {
			d.WriteString("0")
		}
	}
	return requestKey{
		source: req.SourceVersion,
		layers: layer.Fingerprint(req.Layers),
		search: d.Sum64(),
	}
}

// Scheduler decides when the executor runs and makes sure only the
// latest generation is ever committed.
//
// Request stamps a new generation immediately, which invalidates any run
// in flight, then (re)arms a debounce timer. A single worker goroutine
// picks up the latest pending run. Commits are atomic pointer swaps, so
// readers always see a complete result.
type Scheduler struct {
	exec     *Executor
	debounce Debounce
	metrics  *Metrics
	log      zerolog.Logger
	onCommit func(*Result)

	mu         sync.Mutex
	generation atomic.Uint64
	committed  uint64 // generation of the last committed result
	pending    *Run
	lastKey    requestKey
	hasKey     bool
	timer      *time.Timer
	notify     chan struct{} // closed and replaced on every commit

	current atomic.Pointer[Result]
	wake    chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SchedulerOptions configures a Scheduler. Zero values take defaults.
type SchedulerOptions struct {
	Debounce Debounce
	Metrics  *Metrics
	Logger   zerolog.Logger
	OnCommit func(*Result)
}

// NewScheduler starts the worker goroutine. Call Close to stop it.
func NewScheduler(exec *Executor, opts SchedulerOptions) *Scheduler {
	if opts.Debounce == (Debounce{}) {
		opts.Debounce = DefaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		exec:     exec,
		debounce: opts.Debounce,
		metrics:  opts.Metrics,
		log:      opts.Logger.With().Str("component", "scheduler").Logger(),
		onCommit: opts.OnCommit,
		notify:   make(chan struct{}),
		wake:     make(chan struct{}, 1),
		cancel:   cancel,
	}
	s.wg.Add(1)
	go s.loop(ctx)
	return s
}

// Request asks for a run over req. Requests identical to the latest one
// are ignored. It returns the generation that will satisfy the request.
func (s *Scheduler) Request(req Request) uint64 {
	key := keyOf(req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasKey && key == s.lastKey {
		return s.generation.Load()
	}
	s.lastKey, s.hasKey = key, true

	gen := s.generation.Add(1)
	s.pending = &Run{
		Generation: gen,
		Raw:        req.Raw,
		Layers:     layer.CloneList(req.Layers),
		Search:     req.Search,
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce.Delay(len(req.Raw)), s.signal)
	s.metrics.requested()
	return gen
}

// Invalidate forgets the last request key so the next Request always runs.
func (s *Scheduler) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasKey = false
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}

		s.mu.Lock()
		run := s.pending
		s.pending = nil
		s.mu.Unlock()
		if run == nil {
			continue
		}
		s.execute(run)
	}
}

func (s *Scheduler) execute(run *Run) {
	gen := run.Generation
	fresh := func() bool { return s.generation.Load() == gen }

	res, err := s.exec.Execute(*run, fresh)
	if errors.Is(err, ErrStale) {
		s.log.Debug().Uint64("generation", gen).Msg("stale run discarded")
		s.metrics.discarded()
		return
	}
	if err != nil {
		s.log.Error().Err(err).Uint64("generation", gen).Msg("run failed")
		return
	}
	s.Commit(res)
}

// Commit publishes res if it still belongs to the current generation and
// reports whether it did.
func (s *Scheduler) Commit(res *Result) bool {
	s.mu.Lock()
	if res.Generation != s.generation.Load() {
		s.mu.Unlock()
		s.metrics.discarded()
		return false
	}
	s.current.Store(res)
	s.committed = res.Generation
	close(s.notify)
	s.notify = make(chan struct{})
	s.mu.Unlock()

	s.metrics.committed(res)
	s.log.Debug().
		Uint64("generation", res.Generation).
		Int("lines", res.Lines.Len()).
		Dur("took", res.Duration).
		Msg("run committed")
	if s.onCommit != nil {
		s.onCommit(res)
	}
	return true
}

// Current returns the last committed result, or nil before the first commit.
func (s *Scheduler) Current() *Result {
	return s.current.Load()
}

// Generation returns the latest stamped generation.
func (s *Scheduler) Generation() uint64 {
	return s.generation.Load()
}

// Settled reports whether the latest requested state has been committed.
func (s *Scheduler) Settled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed == s.generation.Load()
}

// Wait blocks until the latest requested state has been committed or ctx
// is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.committed == s.generation.Load() {
			s.mu.Unlock()
			return nil
		}
		ch := s.notify
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Close stops the worker. In-flight runs are abandoned.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.generation.Add(1)
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
