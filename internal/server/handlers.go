package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/valyala/fastjson"

	"github.com/qmjianda/loglayout-sub001/internal/engine"
	"github.com/qmjianda/loglayout-sub001/internal/layer"
	"github.com/qmjianda/loglayout-sub001/internal/model"
	"github.com/qmjianda/loglayout-sub001/internal/pkg/layerspec"
	"github.com/qmjianda/loglayout-sub001/internal/preset"
	"github.com/qmjianda/loglayout-sub001/internal/view"
)

const maxBody = 4 << 20

// layerError maps layer model errors to HTTP statuses.
func layerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, layer.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, layer.ErrCycle):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

// parseBody reads and parses a JSON object body. The returned value is
// only valid until release is called.
func (s *APIServer) parseBody(w http.ResponseWriter, r *http.Request) (*fastjson.Value, func(), bool) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return nil, nil, false
	}
	p := s.parser.Get()
	v, err := p.ParseBytes(data)
	if err != nil || v.Type() != fastjson.TypeObject {
		s.parser.Put(p)
		http.Error(w, "Invalid JSON object", http.StatusBadRequest)
		return nil, nil, false
	}
	return v, func() { s.parser.Put(p) }, true
}

// --- output surface ---

func (s *APIServer) handleSummary(w http.ResponseWriter, r *http.Request, sess *engine.Session) {
	writeJSON(w, http.StatusOK, sess.Summary())
}

type statsResponse struct {
	Generation  uint64                      `json:"generation"`
	Order       []string                    `json:"order"`
	Stats       map[string]model.LayerStats `json:"stats"`
	Diagnostics map[string]string           `json:"diagnostics"`
	SearchHits  int                         `json:"search_hits"`
}

func (s *APIServer) handleStats(w http.ResponseWriter, r *http.Request, sess *engine.Session) {
	resp := statsResponse{Stats: map[string]model.LayerStats{}, Diagnostics: map[string]string{}}
	if res := sess.Result(); res != nil {
		resp.Generation = res.Generation
		resp.Order = res.Order
		resp.Stats = res.Stats
		resp.Diagnostics = res.Diagnostics
		resp.SearchHits = len(res.SearchHits)
	}
	writeJSON(w, http.StatusOK, resp)
}

type windowLine struct {
	model.LogLine
	Segments []view.Segment `json:"segments,omitempty"`
}

type windowResponse struct {
	Total int          `json:"total"`
	Start int          `json:"start"`
	End   int          `json:"end"`
	Lines []windowLine `json:"lines"`
}

// handleWindow returns output lines [start, end). With segments=true each
// line also carries its composited highlight segments.
func (s *APIServer) handleWindow(w http.ResponseWriter, r *http.Request, sess *engine.Session) {
	q := r.URL.Query()
	start, err1 := strconv.Atoi(q.Get("start"))
	end, err2 := strconv.Atoi(q.Get("end"))
	if err1 != nil || err2 != nil {
		http.Error(w, "start and end must be integers", http.StatusBadRequest)
		return
	}
	if end-start > s.maxWindow {
		end = start + s.maxWindow
	}
	res := sess.Result()
	total := 0
	if res != nil {
		total = res.Lines.Len()
	}
	win := view.Clamp(start, end, total)
	lines := engine.WindowOf(res, win.Start, win.End)
	segments := q.Get("segments") == "true"

	resp := windowResponse{Total: total, Start: win.Start, End: win.Start + len(lines), Lines: make([]windowLine, len(lines))}
	for i, l := range lines {
		resp.Lines[i] = windowLine{LogLine: l}
		if segments {
			resp.Lines[i].Segments = s.compositor.Line(l)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- layers ---

type layerView struct {
	layer.Record
	Depth     int    `json:"depth"`
	Effective bool   `json:"effective"`
	Spec      string `json:"spec"`
}

func (s *APIServer) handleListLayers(w http.ResponseWriter, r *http.Request, sess *engine.Session) {
	entries := sess.Flatten()
	out := make([]layerView, len(entries))
	for i, e := range entries {
		out[i] = layerView{
			Record:    layer.ToRecord(e.Layer),
			Depth:     e.Depth,
			Effective: e.Effective,
			Spec:      layerspec.Format(e.Layer),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleAddLayer accepts either {"spec": "level:ERROR"} or a layer record
// ({"type", "name", "enabled", "config"}), plus an optional "target".
func (s *APIServer) handleAddLayer(w http.ResponseWriter, r *http.Request, sess *engine.Session) {
	v, release, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	defer release()

	target := string(v.GetStringBytes("target"))
	var l *layer.Layer
	if v.Exists("spec") {
		spec, err := layerspec.ParseOne(string(v.GetStringBytes("spec")))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		l = spec.Layer("")
	} else {
		rec := layer.RecordFromValue(v)
		var err error
		if l, err = rec.ToLayer(); err != nil {
			layerError(w, err)
			return
		}
		if !v.Exists("config") {
			l.Config = layer.DefaultConfig(l.Type)
		}
	}

	id, err := sess.InsertLayer(l, target)
	if err != nil {
		layerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// handleUpdateLayer applies the fields present in the body. Config keys
// are merged into the current config.
func (s *APIServer) handleUpdateLayer(w http.ResponseWriter, r *http.Request, sess *engine.Session) {
	id := r.PathValue("layer")
	current := findLayer(sess, id)
	if current == nil {
		http.Error(w, layer.ErrNotFound.Error(), http.StatusNotFound)
		return
	}

	v, release, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	defer release()

	var p layer.Patch
	if v.Exists("name") {
		name := string(v.GetStringBytes("name"))
		p.Name = &name
	}
	if v.Exists("enabled") {
		enabled := v.GetBool("enabled")
		p.Enabled = &enabled
	}
	if v.Exists("isCollapsed") {
		collapsed := v.GetBool("isCollapsed")
		p.Collapsed = &collapsed
	}
	if c := v.Get("config"); c != nil && c.Type() == fastjson.TypeObject {
		rec := layer.ToRecord(current)
		rec.Config = layer.MergeRecordConfig(rec.Config, c)
		merged, err := rec.ToLayer()
		if err != nil {
			layerError(w, err)
			return
		}
		p.Config = merged.Config
	}

	if err := sess.UpdateLayer(id, p); err != nil {
		layerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func findLayer(sess *engine.Session, id string) *layer.Layer {
	for _, l := range sess.Layers() {
		if l.ID == id {
			return l
		}
	}
	return nil
}

func (s *APIServer) handleToggleLayer(w http.ResponseWriter, r *http.Request, sess *engine.Session) {
	if err := sess.ToggleLayer(r.PathValue("layer")); err != nil {
		layerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) handleRemoveLayer(w http.ResponseWriter, r *http.Request, sess *engine.Session) {
	if err := sess.RemoveLayer(r.PathValue("layer")); err != nil {
		layerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMoveLayer takes {"target": id, "position": "before|after|inside"};
// an empty target promotes the layer to top level.
func (s *APIServer) handleMoveLayer(w http.ResponseWriter, r *http.Request, sess *engine.Session) {
	v, release, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	target := string(v.GetStringBytes("target"))
	pos := layer.Position(v.GetStringBytes("position"))
	release()

	if err := sess.MoveLayer(r.PathValue("layer"), target, pos); err != nil {
		layerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImportLayers replaces the layer list. The import is not undoable
// unless undoable=true is given.
func (s *APIServer) handleImportLayers(w http.ResponseWriter, r *http.Request, sess *engine.Session) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	list, err := layer.Import(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("undoable") == "true" {
		sess.ApplyLayers(list)
	} else {
		sess.ImportLayers(list)
	}
	writeJSON(w, http.StatusOK, map[string]int{"layers": len(sess.Layers())})
}

func (s *APIServer) handleExportLayers(w http.ResponseWriter, r *http.Request, sess *engine.Session) {
	data, err := sess.ExportLayers()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// --- history ---

type historyResponse struct {
	Changed bool `json:"changed"`
	CanUndo bool `json:"can_undo"`
	CanRedo bool `json:"can_redo"`
}

func (s *APIServer) handleUndo(w http.ResponseWriter, r *http.Request, sess *engine.Session) {
	changed := sess.Undo()
	writeJSON(w, http.StatusOK, historyResponse{Changed: changed, CanUndo: sess.CanUndo(), CanRedo: sess.CanRedo()})
}

func (s *APIServer) handleRedo(w http.ResponseWriter, r *http.Request, sess *engine.Session) {
	changed := sess.Redo()
	writeJSON(w, http.StatusOK, historyResponse{Changed: changed, CanUndo: sess.CanUndo(), CanRedo: sess.CanRedo()})
}

// --- search ---

func (s *APIServer) handleSetSearch(w http.ResponseWriter, r *http.Request, sess *engine.Session) {
	v, release, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	query := string(v.GetStringBytes("query"))
	opts := engine.SearchOptions{
		Regex:         v.GetBool("regex"),
		CaseSensitive: v.GetBool("caseSensitive"),
		WholeWord:     v.GetBool("wholeWord"),
	}
	release()

	sess.SetGlobalQuery(query, opts)
	w.WriteHeader(http.StatusNoContent)
}

type findResponse struct {
	Found    bool `json:"found"`
	Position int  `json:"position"`
}

func (s *APIServer) handleFindNext(w http.ResponseWriter, r *http.Request, sess *engine.Session) {
	pos, ok := sess.FindNext()
	writeJSON(w, http.StatusOK, findResponse{Found: ok, Position: pos})
}

func (s *APIServer) handleFindPrev(w http.ResponseWriter, r *http.Request, sess *engine.Session) {
	pos, ok := sess.FindPrev()
	writeJSON(w, http.StatusOK, findResponse{Found: ok, Position: pos})
}

// --- presets ---

func (s *APIServer) requirePresets(w http.ResponseWriter) bool {
	if s.presets == nil {
		http.Error(w, "presets are not configured", http.StatusNotImplemented)
		return false
	}
	return true
}

func presetError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, preset.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, preset.ErrInvalidName):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *APIServer) handleListPresets(w http.ResponseWriter, r *http.Request) {
	if !s.requirePresets(w) {
		return
	}
	list, err := s.presets.List()
	if err != nil {
		presetError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *APIServer) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	if !s.requirePresets(w) {
		return
	}
	p, err := s.presets.Get(r.PathValue("name"))
	if err != nil {
		presetError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":     p.Name,
		"saved_at": p.SavedAt,
		"layers":   layer.ToRecords(p.Layers),
	})
}

func (s *APIServer) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	if !s.requirePresets(w) {
		return
	}
	if err := s.presets.Delete(r.PathValue("name")); err != nil {
		presetError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSavePreset stores the session's current layers under {name}.
func (s *APIServer) handleSavePreset(w http.ResponseWriter, r *http.Request, sess *engine.Session) {
	if !s.requirePresets(w) {
		return
	}
	p := preset.New(r.PathValue("name"), sess.Layers())
	if err := s.presets.Save(p); err != nil {
		presetError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"name": p.Name, "layers": len(p.Layers)})
}

// handleApplyPreset loads {name} into the session as an undoable edit.
func (s *APIServer) handleApplyPreset(w http.ResponseWriter, r *http.Request, sess *engine.Session) {
	if !s.requirePresets(w) {
		return
	}
	p, err := s.presets.Get(r.PathValue("name"))
	if err != nil {
		presetError(w, err)
		return
	}
	sess.ApplyLayers(p.Layers)
	w.WriteHeader(http.StatusNoContent)
}
