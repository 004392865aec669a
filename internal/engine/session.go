package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/qmjianda/loglayout-sub001/internal/history"
	"github.com/qmjianda/loglayout-sub001/internal/layer"
	"github.com/qmjianda/loglayout-sub001/internal/model"
)

// Options configures a Session. Zero values take defaults.
type Options struct {
	BatchSize    int
	Buckets      int
	Yield        func()
	Debounce     Debounce
	HistoryLimit int
	Metrics      *Metrics
	Logger       zerolog.Logger

	// OnLayersChanged is called after every successful layer change,
	// outside the session lock and in mutation order. The list must not
	// be modified, and the hook must not mutate the session.
	OnLayersChanged func(s *Session, list []*layer.Layer)
}

// Session is one open log: its raw lines, layer tree, undo history,
// search state and the scheduler that keeps the output current.
// All methods are safe for concurrent use.
type Session struct {
	ID        string
	Name      string
	CreatedAt time.Time

	source *LineStore
	sched  *Scheduler

	mu      sync.Mutex
	notifMu sync.Mutex // orders OnLayersChanged calls by mutation
	layers  *layer.Store
	history *history.Manager
	search  Search
	cursor  int // output position of the current search hit, -1 for none

	metrics   *Metrics
	log       zerolog.Logger
	onChanged func(*Session, []*layer.Layer)
}

// NewSession creates a session with an empty source and no layers. An
// empty id gets a generated one.
func NewSession(id, name string, opts Options) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	log := opts.Logger.With().Str("session", id).Logger()

	exec := NewExecutor(log)
	if opts.BatchSize > 0 {
		exec.BatchSize = opts.BatchSize
	}
	if opts.Buckets > 0 {
		exec.Buckets = opts.Buckets
	}
	if opts.Yield != nil {
		exec.Yield = opts.Yield
	}

	s := &Session{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now(),
		source:    NewLineStore(),
		layers:    layer.NewStore(nil),
		history:   history.New(opts.HistoryLimit),
		cursor:    -1,
		metrics:   opts.Metrics,
		log:       log,
		onChanged: opts.OnLayersChanged,
	}
	s.sched = NewScheduler(exec, SchedulerOptions{
		Debounce: opts.Debounce,
		Metrics:  opts.Metrics,
		Logger:   log,
	})
	s.metrics.SessionOpened()
	return s
}

// Close stops the scheduler.
func (s *Session) Close() {
	s.sched.Close()
	s.metrics.SessionClosed()
}

// requestLocked asks the scheduler for a run over the current state.
// Callers hold s.mu.
func (s *Session) requestLocked() {
	raw, version := s.source.Snapshot()
	s.sched.Request(Request{
		Raw:           raw,
		SourceVersion: version,
		Layers:        s.layers.List(),
		Search:        s.search,
	})
}

// Refresh requests a run even if nothing changed.
func (s *Session) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sched.Invalidate()
	s.requestLocked()
}

// --- line source input ---

// AppendLines adds a batch of raw lines read from bytes source bytes.
func (s *Session) AppendLines(batch []string, bytes int64) {
	s.source.Append(batch, bytes)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestLocked()
}

// SetTotalBytes records the source size for progress reporting.
func (s *Session) SetTotalBytes(n int64) { s.source.SetTotalBytes(n) }

// Complete marks the source as fully read.
func (s *Session) Complete() {
	s.source.Complete()
	s.log.Info().Int("lines", s.source.Len()).Msg("source complete")
}

// ResetSource drops all raw lines, e.g. before a reload.
func (s *Session) ResetSource() {
	s.source.Reset()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestLocked()
}

// Source exposes the raw line store.
func (s *Session) Source() *LineStore { return s.source }

// --- output surface ---

// Result returns the last committed result, or nil before the first run.
func (s *Session) Result() *Result { return s.sched.Current() }

// Wait blocks until the current state has been computed and committed.
func (s *Session) Wait(ctx context.Context) error { return s.sched.Wait(ctx) }

// TotalLineCount is the number of lines in the committed output.
func (s *Session) TotalLineCount() int {
	if res := s.sched.Current(); res != nil {
		return res.Lines.Len()
	}
	return 0
}

// Stats returns the committed per-layer stats keyed by layer id.
func (s *Session) Stats() map[string]model.LayerStats {
	res := s.sched.Current()
	if res == nil {
		return map[string]model.LayerStats{}
	}
	out := make(map[string]model.LayerStats, len(res.Stats))
	for id, st := range res.Stats {
		out[id] = st
	}
	return out
}

// Window materializes output lines [start, end), clamped to the output.
func (s *Session) Window(start, end int) []model.LogLine {
	return WindowOf(s.sched.Current(), start, end)
}

// WindowOf materializes lines [start, end) of one committed result.
// Callers that also need the line count take both from the same res.
func WindowOf(res *Result, start, end int) []model.LogLine {
	if res == nil {
		return nil
	}
	n := res.Lines.Len()
	start = max(start, 0)
	end = min(end, n)
	if start >= end {
		return []model.LogLine{}
	}
	out := make([]model.LogLine, 0, end-start)
	for p := start; p < end; p++ {
		out = append(out, res.Lines.Materialize(p))
	}
	return out
}

// --- layer model ---

// Layers returns a deep copy of the layer list.
func (s *Session) Layers() []*layer.Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return layer.CloneList(s.layers.List())
}

// Flatten returns the depth-first view of the layer tree.
func (s *Session) Flatten() []layer.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layers.Flatten()
}

// mutate applies fn, records history when the list changed and requests
// a run. A failed mutation leaves everything untouched.
func (s *Session) mutate(fn func(*layer.Store) error) error {
	s.mu.Lock()
	prev := s.layers.List()
	if err := fn(s.layers); err != nil {
		s.layers.Replace(prev)
		s.mu.Unlock()
		return err
	}
	next := s.layers.List()
	s.history.RecordIfChanged(prev, next, false)
	s.requestLocked()
	s.unlockAndNotify(next)
	return nil
}

// unlockAndNotify releases s.mu and reports list to the change hook. The
// hook lock is taken before s.mu is released, so hooks see lists in the
// order the mutations were applied.
func (s *Session) unlockAndNotify(list []*layer.Layer) {
	if s.onChanged == nil {
		s.mu.Unlock()
		return
	}
	s.notifMu.Lock()
	s.mu.Unlock()
	defer s.notifMu.Unlock()
	s.onChanged(s, list)
}

// replace swaps the list without touching history.
func (s *Session) replace(list []*layer.Layer) {
	s.mu.Lock()
	s.layers.Replace(list)
	s.requestLocked()
	s.unlockAndNotify(list)
}

// AddLayer creates a layer next to (or inside) targetID and returns its id.
func (s *Session) AddLayer(t layer.Type, cfg layer.Config, targetID string) (string, error) {
	var id string
	err := s.mutate(func(st *layer.Store) (err error) {
		id, err = st.Add(t, cfg, targetID)
		return err
	})
	return id, err
}

// InsertLayer adds a prepared layer, keeping its name (when set),
// enablement and config, as a single undoable edit. The layer's id and
// group are assigned as for AddLayer.
func (s *Session) InsertLayer(l *layer.Layer, targetID string) (string, error) {
	var id string
	err := s.mutate(func(st *layer.Store) (err error) {
		id, err = st.Add(l.Type, l.Config, targetID)
		if err != nil {
			return err
		}
		p := layer.Patch{Enabled: &l.Enabled}
		if l.Name != "" {
			p.Name = &l.Name
		}
		return st.Update(id, p)
	})
	return id, err
}

// UpdateLayer applies a partial update.
func (s *Session) UpdateLayer(id string, p layer.Patch) error {
	return s.mutate(func(st *layer.Store) error { return st.Update(id, p) })
}

// ToggleLayer flips a layer's enabled flag.
func (s *Session) ToggleLayer(id string) error {
	return s.mutate(func(st *layer.Store) error { return st.Toggle(id) })
}

// RemoveLayer deletes a layer and its descendants.
func (s *Session) RemoveLayer(id string) error {
	return s.mutate(func(st *layer.Store) error { return st.Remove(id) })
}

// MoveLayer reorders or reparents a layer.
func (s *Session) MoveLayer(id, targetID string, pos layer.Position) error {
	return s.mutate(func(st *layer.Store) error { return st.Move(id, targetID, pos) })
}

// ApplyLayers replaces the whole list as an undoable edit (preset load).
func (s *Session) ApplyLayers(list []*layer.Layer) {
	list = layer.FromRecords(layer.ToRecords(list))
	_ = s.mutate(func(st *layer.Store) error {
		st.Replace(list)
		return nil
	})
}

// ImportLayers replaces the whole list without recording history.
func (s *Session) ImportLayers(list []*layer.Layer) {
	s.replace(layer.FromRecords(layer.ToRecords(list)))
}

// ExportLayers returns the layer list as JSON.
func (s *Session) ExportLayers() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return layer.Export(s.layers.List())
}

// --- history ---

// Undo restores the previous layer list. It reports false when there is
// nothing to undo.
func (s *Session) Undo() bool {
	s.mu.Lock()
	prev, ok := s.history.Undo(s.layers.List())
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.layers.Replace(prev)
	s.requestLocked()
	s.unlockAndNotify(prev)
	return true
}

// Redo re-applies an undone edit.
func (s *Session) Redo() bool {
	s.mu.Lock()
	next, ok := s.history.Redo(s.layers.List())
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.layers.Replace(next)
	s.requestLocked()
	s.unlockAndNotify(next)
	return true
}

// CanUndo reports whether Undo would do anything.
func (s *Session) CanUndo() bool { return s.history.CanUndo() }

// CanRedo reports whether Redo would do anything.
func (s *Session) CanRedo() bool { return s.history.CanRedo() }

// --- search ---

// SetGlobalQuery sets the transient search. An empty text clears it.
func (s *Session) SetGlobalQuery(text string, opts SearchOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = Search{Query: text, Options: opts}
	s.cursor = -1
	s.requestLocked()
}

// GlobalQuery returns the current search.
func (s *Session) GlobalQuery() Search {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.search
}

// FindNext moves to the next search hit in the committed output and
// returns its output position, wrapping at the end.
func (s *Session) FindNext() (int, bool) {
	return s.find(nextHit)
}

// FindPrev moves to the previous search hit, wrapping at the start.
func (s *Session) FindPrev() (int, bool) {
	return s.find(prevHit)
}

func (s *Session) find(step func([]int, int) (int, bool)) (int, bool) {
	res := s.sched.Current()
	if res == nil {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := step(res.SearchHits, s.cursor)
	if ok {
		s.cursor = pos
	}
	return pos, ok
}
