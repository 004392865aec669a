package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Summary contains high-level session figures for API and CLI output.
type Summary struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	SourceLines   int            `json:"source_lines"`
	OutputLines   int            `json:"output_lines"`
	BytesRead     int64          `json:"bytes_read"`
	TotalBytes    int64          `json:"total_bytes"`
	Complete      bool           `json:"complete"`
	Progress      float64        `json:"progress"`       // 0-1
	IngestionRate float64        `json:"ingestion_rate"` // lines/sec
	LevelDist     map[string]int `json:"level_dist"`     // e.g. "ERROR": 12
	Layers        int            `json:"layers"`
	ActiveLayers  int            `json:"active_layers"`
	Diagnostics   int            `json:"diagnostics"`
	Generation    uint64         `json:"generation"`
	LastRunMillis float64        `json:"last_run_ms"`
	Settled       bool           `json:"settled"`
	CanUndo       bool           `json:"can_undo"`
	CanRedo       bool           `json:"can_redo"`
}

// Summary gathers the current figures.
func (s *Session) Summary() Summary {
	read, total, complete := s.source.Progress()
	sum := Summary{
		ID:            s.ID,
		Name:          s.Name,
		SourceLines:   s.source.Len(),
		BytesRead:     read,
		TotalBytes:    total,
		Complete:      complete,
		IngestionRate: s.source.IngestionRate(),
		LevelDist:     s.source.LevelDist(),
		Settled:       s.sched.Settled(),
		CanUndo:       s.history.CanUndo(),
		CanRedo:       s.history.CanRedo(),
	}
	switch {
	case complete:
		sum.Progress = 1
	case total > 0:
		sum.Progress = float64(read) / float64(total)
	}

	s.mu.Lock()
	sum.Layers = s.layers.Len()
	sum.ActiveLayers = len(s.layers.Active())
	s.mu.Unlock()

	if res := s.sched.Current(); res != nil {
		sum.OutputLines = res.Lines.Len()
		sum.Diagnostics = len(res.Diagnostics)
		sum.Generation = res.Generation
		sum.LastRunMillis = float64(res.Duration.Microseconds()) / 1000
	}
	return sum
}

// SaveSummary writes a summary to path atomically.
func SaveSummary(path string, sum Summary) error {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmpPath := path + ".tmp"

	// Write to temp file first
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}

	// Atomic rename
	return os.Rename(tmpPath, path)
}
