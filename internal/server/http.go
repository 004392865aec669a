// Package server exposes sessions over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/valyala/fastjson"

	"github.com/qmjianda/loglayout-sub001/internal/engine"
	"github.com/qmjianda/loglayout-sub001/internal/pkg/security"
	"github.com/qmjianda/loglayout-sub001/internal/preset"
	"github.com/qmjianda/loglayout-sub001/internal/registry"
	"github.com/qmjianda/loglayout-sub001/internal/view"
)

// Options configures the API server.
type Options struct {
	// TokenHash is a bcrypt hash of the bearer token. Empty disables auth.
	TokenHash string
	// Background is the theme colour highlight fills are blended over.
	Background string
	// MaxWindow caps the number of lines one window request returns.
	MaxWindow int
	// WebDir, when set, is served at "/".
	WebDir   string
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
}

// APIServer serves the session API.
type APIServer struct {
	sessions   *registry.Store
	lifecycle  *registry.Server
	presets    preset.Store
	compositor *view.Compositor
	gatherer   prometheus.Gatherer
	auth       *security.Verifier
	maxWindow  int
	webDir     string
	srv        *http.Server
	parser     fastjson.ParserPool
	log        zerolog.Logger
}

// New builds the server. presets may be nil.
func New(sessions *registry.Store, presets preset.Store, opts Options) (*APIServer, error) {
	comp, err := view.NewCompositor(opts.Background)
	if err != nil {
		return nil, err
	}
	auth, err := security.NewVerifier(opts.TokenHash)
	if err != nil {
		return nil, err
	}
	if opts.MaxWindow <= 0 {
		opts.MaxWindow = 5000
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &APIServer{
		sessions:   sessions,
		lifecycle:  registry.NewServer(sessions, presets),
		presets:    presets,
		compositor: comp,
		gatherer:   opts.Gatherer,
		auth:       auth,
		maxWindow:  opts.MaxWindow,
		webDir:     opts.WebDir,
		log:        opts.Logger.With().Str("component", "http").Logger(),
	}, nil
}

// Handler returns the routed API.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	auth := s.AuthMiddleware

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.lifecycle.Routes(mux, auth)

	route := func(pattern string, h func(http.ResponseWriter, *http.Request, *engine.Session)) {
		mux.Handle(pattern, auth(s.withSession(h)))
	}
	route("GET /api/sessions/{id}/summary", s.handleSummary)
	route("GET /api/sessions/{id}/stats", s.handleStats)
	route("GET /api/sessions/{id}/window", s.handleWindow)

	route("GET /api/sessions/{id}/layers", s.handleListLayers)
	route("POST /api/sessions/{id}/layers", s.handleAddLayer)
	route("PUT /api/sessions/{id}/layers", s.handleImportLayers)
	route("GET /api/sessions/{id}/layers/export", s.handleExportLayers)
	route("PATCH /api/sessions/{id}/layers/{layer}", s.handleUpdateLayer)
	route("DELETE /api/sessions/{id}/layers/{layer}", s.handleRemoveLayer)
	route("POST /api/sessions/{id}/layers/{layer}/toggle", s.handleToggleLayer)
	route("POST /api/sessions/{id}/layers/{layer}/move", s.handleMoveLayer)

	route("POST /api/sessions/{id}/undo", s.handleUndo)
	route("POST /api/sessions/{id}/redo", s.handleRedo)

	route("PUT /api/sessions/{id}/search", s.handleSetSearch)
	route("POST /api/sessions/{id}/search/next", s.handleFindNext)
	route("POST /api/sessions/{id}/search/prev", s.handleFindPrev)

	route("POST /api/sessions/{id}/presets/{name}", s.handleSavePreset)
	route("POST /api/sessions/{id}/presets/{name}/apply", s.handleApplyPreset)
	mux.Handle("GET /api/presets", auth(http.HandlerFunc(s.handleListPresets)))
	mux.Handle("GET /api/presets/{name}", auth(http.HandlerFunc(s.handleGetPreset)))
	mux.Handle("DELETE /api/presets/{name}", auth(http.HandlerFunc(s.handleDeletePreset)))

	if s.webDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.webDir)))
	}
	return s.logRequests(mux)
}

// Start runs the HTTP server.
func (s *APIServer) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Str("addr", addr).Bool("auth", s.auth.Enabled()).Msg("api listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *APIServer) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

// AuthMiddleware checks for a valid token in the Authorization header or
// the token query parameter.
func (s *APIServer) AuthMiddleware(next http.Handler) http.Handler {
	if !s.auth.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		var token string
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		} else {
			token = r.URL.Query().Get("token")
		}

		if token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="loglayout"`)
			http.Error(w, "Unauthorized: Missing token", http.StatusUnauthorized)
			return
		}
		if err := s.auth.Check(token); err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="loglayout"`)
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *APIServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

// withSession resolves {id} and refreshes the session's last-seen time.
func (s *APIServer) withSession(h func(http.ResponseWriter, *http.Request, *engine.Session)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.Get(r.PathValue("id"))
		if !ok {
			http.Error(w, registry.ErrNotFound.Error(), http.StatusNotFound)
			return
		}
		h(w, r, sess)
	})
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": len(s.sessions.List())})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
