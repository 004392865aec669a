// Package history keeps bounded undo/redo stacks of layer-list snapshots.
package history

import (
	"sync"

	"github.com/qmjianda/loglayout-sub001/internal/layer"
)

// DefaultLimit bounds each stack.
const DefaultLimit = 100

// Manager holds the past and future snapshots of one open log.
// Every snapshot is a deep copy owned by the manager.
type Manager struct {
	mu     sync.Mutex
	past   [][]*layer.Layer
	future [][]*layer.Layer
	limit  int
}

// New creates a manager; limit <= 0 selects DefaultLimit.
func New(limit int) *Manager {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Manager{limit: limit}
}

// RecordIfChanged pushes prev onto the past stack and clears the future
// when prev and next differ. skip is for programmatic loads that must not
// be undoable. It reports whether an entry was recorded.
func (m *Manager) RecordIfChanged(prev, next []*layer.Layer, skip bool) bool {
	if skip || layer.EqualList(prev, next) {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.past = append(m.past, layer.CloneList(prev))
	if len(m.past) > m.limit {
		m.past = m.past[len(m.past)-m.limit:]
	}
	m.future = nil
	return true
}

// Undo returns the snapshot to restore, pushing current onto the future
// stack. ok is false when there is nothing to undo.
func (m *Manager) Undo(current []*layer.Layer) ([]*layer.Layer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step(&m.past, &m.future, current)
}

// Redo is the mirror of Undo.
func (m *Manager) Redo(current []*layer.Layer) ([]*layer.Layer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step(&m.future, &m.past, current)
}

func (m *Manager) step(from, to *[][]*layer.Layer, current []*layer.Layer) ([]*layer.Layer, bool) {
	n := len(*from)
	if n == 0 {
		return nil, false
	}
	snap := (*from)[n-1]
	(*from)[n-1] = nil
	*from = (*from)[:n-1]

	*to = append(*to, layer.CloneList(current))
	if len(*to) > m.limit {
		*to = (*to)[len(*to)-m.limit:]
	}
	return layer.CloneList(snap), true
}

// CanUndo reports whether Undo would do anything.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.past) > 0
}

// CanRedo reports whether Redo would do anything.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.future) > 0
}

// Depth returns the sizes of the past and future stacks.
func (m *Manager) Depth() (past, future int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.past), len(m.future)
}
