package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/qmjianda/loglayout-sub001/internal/engine"
	"github.com/qmjianda/loglayout-sub001/internal/layer"
	"github.com/qmjianda/loglayout-sub001/internal/preset"
	"github.com/qmjianda/loglayout-sub001/internal/registry"
)

var testLines = []string{
	"2024-01-01T00:00:00 INFO start",
	"2024-01-01T00:00:05 ERROR boom",
	"2024-01-01T00:00:10 INFO done",
	"2024-01-01T00:00:15 WARN slow boom",
}

type fixture struct {
	handler http.Handler
	sess    *engine.Session
	token   string
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	opts := engine.Options{
		Debounce: engine.Debounce{Small: time.Millisecond, Medium: time.Millisecond, Large: time.Millisecond},
		Metrics:  engine.RegisterMetrics(reg),
		Logger:   zerolog.Nop(),
	}
	store := registry.NewStore(registry.Config{Engine: opts, Logger: zerolog.Nop()})
	t.Cleanup(store.CloseAll)

	sess := engine.NewSession("s1", "app.log", opts)
	sess.AppendLines(testLines, 120)
	sess.Complete()
	store.Register(sess)

	presets, err := preset.OpenSQLStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { presets.Close() })

	var hash string
	if token != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
		require.NoError(t, err)
		hash = string(h)
	}
	api, err := New(store, presets, Options{TokenHash: hash, Gatherer: reg, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return &fixture{handler: api.Handler(), sess: sess, token: token}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func (f *fixture) settle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.sess.Wait(ctx))
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestAuthMiddleware(t *testing.T) {
	f := newFixture(t, "s3cret")

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/sessions", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Missing token")

	w = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	f.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/sessions/s1/summary?token=s3cret", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusOK, f.do(t, "GET", "/api/sessions", "").Code)

	// health stays open
	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLayerLifecycle(t *testing.T) {
	f := newFixture(t, "")

	w := f.do(t, "POST", "/api/sessions/s1/layers", `{"spec":"filter:boom"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	filterID := decode[map[string]string](t, w)["id"]
	require.NotEmpty(t, filterID)

	w = f.do(t, "POST", "/api/sessions/s1/layers", `{"type":"HIGHLIGHT","name":"Errors","config":{"query":"ERROR","color":"#ff0000"}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	hlID := decode[map[string]string](t, w)["id"]

	f.settle(t)
	assert.Equal(t, 2, f.sess.TotalLineCount())

	w = f.do(t, "GET", "/api/sessions/s1/layers", "")
	require.Equal(t, http.StatusOK, w.Code)
	views := decode[[]layerView](t, w)
	require.Len(t, views, 2)
	assert.Equal(t, "FILTER", views[0].Type)
	assert.Equal(t, "Errors", views[1].Name)
	assert.True(t, views[1].Effective)
	assert.NotEmpty(t, views[0].Spec)

	// a config patch merges with the existing options
	w = f.do(t, "PATCH", "/api/sessions/s1/layers/"+filterID, `{"config":{"invert":true}}`)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	f.settle(t)
	assert.Equal(t, 2, f.sess.TotalLineCount())
	for _, l := range f.sess.Layers() {
		if l.ID == filterID {
			cfg := l.Config.(layer.FilterConfig)
			assert.True(t, cfg.Invert)
			assert.Equal(t, "boom", cfg.Query)
		}
	}

	w = f.do(t, "POST", "/api/sessions/s1/layers/"+hlID+"/toggle", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, "POST", "/api/sessions/s1/layers/"+hlID+"/move", `{"target":"`+filterID+`","position":"before"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, hlID, f.sess.Layers()[0].ID)

	w = f.do(t, "POST", "/api/sessions/s1/layers/"+hlID+"/move", `{"target":"`+filterID+`","position":"inside"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, "PATCH", "/api/sessions/s1/layers/missing", `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, "DELETE", "/api/sessions/s1/layers/"+hlID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Len(t, f.sess.Layers(), 1)

	w = f.do(t, "POST", "/api/sessions/s1/undo", "")
	require.Equal(t, http.StatusOK, w.Code)
	hist := decode[historyResponse](t, w)
	assert.True(t, hist.Changed)
	assert.True(t, hist.CanRedo)
	assert.Len(t, f.sess.Layers(), 2)

	w = f.do(t, "POST", "/api/sessions/s1/layers", `{"spec":"nonsense:1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(t, "POST", "/api/sessions/s1/layers", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(t, "GET", "/api/sessions/nope/layers", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestImportExportLayers(t *testing.T) {
	f := newFixture(t, "")
	doc := `[{"id":"a","name":"Levels","type":"LEVEL","enabled":true,"config":{"levels":["ERROR","WARN"]}}]`

	w := f.do(t, "PUT", "/api/sessions/s1/layers", doc)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, f.sess.CanUndo())
	f.settle(t)
	assert.Equal(t, 2, f.sess.TotalLineCount())

	w = f.do(t, "PUT", "/api/sessions/s1/layers?undoable=true", `[]`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, f.sess.CanUndo())

	f.sess.Undo()
	w = f.do(t, "GET", "/api/sessions/s1/layers/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"LEVEL"`)

	w = f.do(t, "PUT", "/api/sessions/s1/layers", `{"nope":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWindowAndStats(t *testing.T) {
	f := newFixture(t, "")
	w := f.do(t, "POST", "/api/sessions/s1/layers", `{"spec":"highlight:boom color:#00ff00 opacity:50"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[map[string]string](t, w)["id"]
	f.settle(t)

	w = f.do(t, "GET", "/api/sessions/s1/window?start=1&end=100&segments=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	win := decode[windowResponse](t, w)
	assert.Equal(t, 4, win.Total)
	assert.Equal(t, 1, win.Start)
	assert.Equal(t, 4, win.End)
	require.Len(t, win.Lines, 3)
	assert.Equal(t, 1, win.Lines[0].Index)
	require.NotEmpty(t, win.Lines[0].Segments)
	var lit []string
	for _, seg := range win.Lines[0].Segments {
		if seg.Highlighted {
			lit = append(lit, seg.Text)
		}
	}
	assert.Equal(t, []string{"boom"}, lit)

	w = f.do(t, "GET", "/api/sessions/s1/window?start=x&end=2", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, "GET", "/api/sessions/s1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[statsResponse](t, w)
	assert.Equal(t, 2, stats.Stats[id].Count)
	assert.Equal(t, []string{id}, stats.Order)

	w = f.do(t, "GET", "/api/sessions/s1/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	sum := decode[engine.Summary](t, w)
	assert.Equal(t, 4, sum.SourceLines)
	assert.True(t, sum.Complete)
}

func TestSearch(t *testing.T) {
	f := newFixture(t, "")

	w := f.do(t, "PUT", "/api/sessions/s1/search", `{"query":"BOOM"}`)
	require.Equal(t, http.StatusNoContent, w.Code)
	f.settle(t)

	w = f.do(t, "POST", "/api/sessions/s1/search/next", "")
	first := decode[findResponse](t, w)
	assert.True(t, first.Found)
	assert.Equal(t, 1, first.Position)

	w = f.do(t, "POST", "/api/sessions/s1/search/next", "")
	assert.Equal(t, 3, decode[findResponse](t, w).Position)
	w = f.do(t, "POST", "/api/sessions/s1/search/next", "")
	assert.Equal(t, 1, decode[findResponse](t, w).Position)
	w = f.do(t, "POST", "/api/sessions/s1/search/prev", "")
	assert.Equal(t, 3, decode[findResponse](t, w).Position)

	w = f.do(t, "PUT", "/api/sessions/s1/search", `{"query":"BOOM","caseSensitive":true}`)
	require.Equal(t, http.StatusNoContent, w.Code)
	f.settle(t)
	w = f.do(t, "POST", "/api/sessions/s1/search/next", "")
	assert.False(t, decode[findResponse](t, w).Found)
}

func TestPresets(t *testing.T) {
	f := newFixture(t, "")
	w := f.do(t, "POST", "/api/sessions/s1/layers", `{"spec":"level:ERROR"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, "POST", "/api/sessions/s1/presets/errors", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(t, "GET", "/api/presets", "")
	require.Equal(t, http.StatusOK, w.Code)
	infos := decode[[]preset.Info](t, w)
	require.Len(t, infos, 1)
	assert.Equal(t, "errors", infos[0].Name)
	assert.Equal(t, 1, infos[0].Layers)

	w = f.do(t, "GET", "/api/presets/errors", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"LEVEL"`)

	f.sess.ImportLayers(nil)
	w = f.do(t, "POST", "/api/sessions/s1/presets/errors/apply", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Len(t, f.sess.Layers(), 1)
	assert.True(t, f.sess.CanUndo())

	w = f.do(t, "DELETE", "/api/presets/errors", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, "GET", "/api/presets/errors", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = f.do(t, "POST", "/api/sessions/s1/presets/errors/apply", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, "")
	f.sess.Refresh()
	f.settle(t)

	w := f.do(t, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "loglayout_open_sessions 1")
	assert.Contains(t, w.Body.String(), "loglayout_runs_requested_total")
}
