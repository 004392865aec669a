package registry

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/qmjianda/loglayout-sub001/internal/preset"
)

// Server handles session lifecycle HTTP requests.
type Server struct {
	store   *Store
	presets preset.Store
}

// NewServer creates a new registry server. presets may be nil.
func NewServer(store *Store, presets preset.Store) *Server {
	return &Server{store: store, presets: presets}
}

// Routes registers the lifecycle endpoints on mux.
func (s *Server) Routes(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	mux.Handle("POST /api/sessions", wrap(http.HandlerFunc(s.HandleOpen)))
	mux.Handle("GET /api/sessions", wrap(http.HandlerFunc(s.HandleList)))
	mux.Handle("GET /api/sessions/{id}", wrap(http.HandlerFunc(s.HandleInfo)))
	mux.Handle("DELETE /api/sessions/{id}", wrap(http.HandlerFunc(s.HandleClose)))
	mux.Handle("POST /api/sessions/{id}/keepalive", wrap(http.HandlerFunc(s.HandleKeepAlive)))
}

type openBody struct {
	OpenRequest
	Preset string `json:"preset"`
}

// HandleOpen opens a log file as a new session.
// POST /api/sessions
func (s *Server) HandleOpen(w http.ResponseWriter, r *http.Request) {
	var body openBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if body.Path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}

	req := body.OpenRequest
	if body.Preset != "" {
		if s.presets == nil {
			http.Error(w, "presets are not configured", http.StatusBadRequest)
			return
		}
		p, err := s.presets.Get(body.Preset)
		if errors.Is(err, preset.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		req.Layers = p.Layers
	}

	sess, err := s.store.Open(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	info, _ := s.store.Info(sess.ID)
	writeJSON(w, http.StatusCreated, info)
}

// HandleList returns the open sessions.
// GET /api/sessions
func (s *Server) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.List())
}

// HandleInfo describes one session.
// GET /api/sessions/{id}
func (s *Server) HandleInfo(w http.ResponseWriter, r *http.Request) {
	info, ok := s.store.Info(r.PathValue("id"))
	if !ok {
		http.Error(w, ErrNotFound.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// HandleClose closes a session.
// DELETE /api/sessions/{id}
func (s *Server) HandleClose(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Close(r.PathValue("id")); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleKeepAlive marks a session as in use so idle pruning skips it.
// POST /api/sessions/{id}/keepalive
func (s *Server) HandleKeepAlive(w http.ResponseWriter, r *http.Request) {
	if !s.store.KeepAlive(r.PathValue("id")) {
		http.Error(w, ErrNotFound.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
