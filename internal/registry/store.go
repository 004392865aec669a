// Package registry tracks the open log sessions of a server process.
package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/qmjianda/loglayout-sub001/internal/engine"
	"github.com/qmjianda/loglayout-sub001/internal/layer"
	"github.com/qmjianda/loglayout-sub001/internal/source"
)

var ErrNotFound = errors.New("session not found")

// Info describes a registered session.
type Info struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Path         string `json:"path,omitempty"`
	Follow       bool   `json:"follow"`
	Lines        int    `json:"lines"`
	Complete     bool   `json:"complete"`
	Error        string `json:"error,omitempty"`
	RegisteredAt int64  `json:"registered_at"`
	LastSeenAt   int64  `json:"last_seen_at"`
}

// OpenRequest asks the registry to load a file into a new session.
type OpenRequest struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Follow bool   `json:"follow"`
	// Layers, when set, seed the session without an undo entry.
	Layers []*layer.Layer `json:"-"`
}

type entry struct {
	session      *engine.Session
	path         string
	follow       bool
	registeredAt int64
	lastSeenAt   int64
	cancel       context.CancelFunc
	done         chan struct{}
	err          error
	autosave     *autosaver
}

// Store handles the lifetime of sessions.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	opts          engine.Options
	loader        *source.Loader
	autosaveDir   string
	statsInterval time.Duration
	log           zerolog.Logger
}

// Config holds the settings the registry applies to every new session.
type Config struct {
	Engine engine.Options
	Loader *source.Loader
	// AutosaveDir, when set, keeps a layer journal per source path so
	// reopening a file restores its last layer list.
	AutosaveDir string
	// StatsInterval is how often ingestion rate is sampled; default 1s.
	StatsInterval time.Duration
	Logger        zerolog.Logger
}

// NewStore creates a new registry store.
func NewStore(cfg Config) *Store {
	if cfg.Loader == nil {
		cfg.Loader = source.NewLoader(0, cfg.Logger)
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = time.Second
	}
	return &Store{
		sessions:      make(map[string]*entry),
		opts:          cfg.Engine,
		loader:        cfg.Loader,
		autosaveDir:   cfg.AutosaveDir,
		statsInterval: cfg.StatsInterval,
		log:           cfg.Logger.With().Str("component", "registry").Logger(),
	}
}

// Open creates a session for req.Path and starts loading it in the
// background. The session is usable immediately; output fills in as
// batches arrive.
func (s *Store) Open(req OpenRequest) (*engine.Session, error) {
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", abs, source.ErrNotRegular)
	}
	name := req.Name
	if name == "" {
		name = filepath.Base(abs)
	}

	opts := s.opts
	var saver *autosaver
	if s.autosaveDir != "" {
		saver, err = openAutosaver(s.autosaveDir, abs, s.log)
		if err != nil {
			s.log.Warn().Err(err).Str("path", abs).Msg("layer autosave disabled")
		} else {
			opts.OnLayersChanged = saver.save
		}
	}

	sess := engine.NewSession("", name, opts)
	switch {
	case req.Layers != nil:
		sess.ImportLayers(req.Layers)
	case saver != nil:
		if restored := saver.restore(); restored != nil {
			sess.ImportLayers(restored)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := s.register(sess, abs, req.Follow, cancel, saver)
	sess.Source().StartStatsTicker(ctx, s.statsInterval)

	go s.load(ctx, e)
	return sess, nil
}

func (s *Store) load(ctx context.Context, e *entry) {
	defer close(e.done)
	log := s.log.With().Str("session", e.session.ID).Str("path", e.path).Logger()

	st, err := s.loader.LoadFile(ctx, e.path, e.session)
	if err == nil && e.follow {
		var f *source.Follower
		f, err = source.NewFollower(e.path, st.Bytes, e.session, log)
		if err == nil {
			err = f.Run(ctx)
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("session source failed")
		s.mu.Lock()
		e.err = err
		s.mu.Unlock()
	}
}

// Register adds a session fed by the caller (stdin, tests).
func (s *Store) Register(sess *engine.Session) {
	e := s.register(sess, "", false, func() {}, nil)
	close(e.done)
}

func (s *Store) register(sess *engine.Session, path string, follow bool, cancel context.CancelFunc, saver *autosaver) *entry {
	now := time.Now().Unix()
	e := &entry{
		session:      sess,
		path:         path,
		follow:       follow,
		registeredAt: now,
		lastSeenAt:   now,
		cancel:       cancel,
		done:         make(chan struct{}),
		autosave:     saver,
	}
	s.mu.Lock()
	s.sessions[sess.ID] = e
	s.mu.Unlock()
	s.log.Info().Str("session", sess.ID).Str("path", path).Bool("follow", follow).Msg("session registered")
	return e
}

// Get returns a session and marks it as seen.
func (s *Store) Get(id string) (*engine.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeenAt = time.Now().Unix()
	return e.session, true
}

// Info describes one session.
func (s *Store) Info(id string) (Info, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return Info{}, false
	}
	return e.info(), true
}

func (e *entry) info() Info {
	_, _, complete := e.session.Source().Progress()
	in := Info{
		ID:           e.session.ID,
		Name:         e.session.Name,
		Path:         e.path,
		Follow:       e.follow,
		Lines:        e.session.Source().Len(),
		Complete:     complete,
		RegisteredAt: e.registeredAt,
		LastSeenAt:   e.lastSeenAt,
	}
	if e.err != nil {
		in.Error = e.err.Error()
	}
	return in
}

// List returns all sessions, oldest first.
func (s *Store) List() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]Info, 0, len(s.sessions))
	for _, e := range s.sessions {
		list = append(list, e.info())
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].RegisteredAt != list[j].RegisteredAt {
			return list[i].RegisteredAt < list[j].RegisteredAt
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// KeepAlive updates the LastSeenAt timestamp for a given session.
func (s *Store) KeepAlive(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if ok {
		e.lastSeenAt = time.Now().Unix()
	}
	return ok
}

// WaitLoaded blocks until the session's source goroutine has finished
// (load done, follow stopped) or ctx ends.
func (s *Store) WaitLoaded(ctx context.Context, id string) error {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	select {
	case <-e.done:
		s.mu.RLock()
		defer s.mu.RUnlock()
		return e.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops loading and releases the session.
func (s *Store) Close(id string) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.shutdown(e)
	return nil
}

func (s *Store) shutdown(e *entry) {
	e.cancel()
	<-e.done
	e.session.Close()
	if e.autosave != nil {
		e.autosave.close()
	}
	s.log.Info().Str("session", e.session.ID).Msg("session closed")
}

// CloseAll releases every session.
func (s *Store) CloseAll() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*entry)
	s.mu.Unlock()
	for _, e := range all {
		s.shutdown(e)
	}
}

// PruneIdle closes sessions that haven't been seen for timeout.
func (s *Store) PruneIdle(timeout time.Duration) int {
	now := time.Now().Unix()
	timeoutSec := int64(timeout.Seconds())

	s.mu.Lock()
	var stale []*entry
	for id, e := range s.sessions {
		if now-e.lastSeenAt > timeoutSec {
			delete(s.sessions, id)
			stale = append(stale, e)
		}
	}
	s.mu.Unlock()

	for _, e := range stale {
		s.shutdown(e)
	}
	if len(stale) > 0 {
		s.log.Info().Int("count", len(stale)).Dur("timeout", timeout).Msg("pruned idle sessions")
	}
	return len(stale)
}

// StartCleanupLoop starts a background goroutine to prune idle sessions.
func (s *Store) StartCleanupLoop(ctx context.Context, interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.PruneIdle(timeout)
			case <-ctx.Done():
				return
			}
		}
	}()
}
