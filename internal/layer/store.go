package layer

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("layer not found")
	ErrNotFolder       = errors.New("target is not a folder")
	ErrCycle           = errors.New("move would make a folder its own descendant")
	ErrTypeMismatch    = errors.New("config does not match layer type")
	ErrUnknownType     = errors.New("unknown layer type")
	ErrInvalidPosition = errors.New("invalid drop position")
)

// Position is where a dragged layer lands relative to its drop target.
type Position string

const (
	PositionBefore Position = "before"
	PositionAfter  Position = "after"
	PositionInside Position = "inside"
)

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Name      *string
	Enabled   *bool
	Collapsed *bool
	Config    Config
}

// Entry is one row of the flattened, depth-first view of the tree.
type Entry struct {
	Layer     *Layer
	Depth     int
	Effective bool // own flag AND every ancestor folder's flag
}

// Store keeps the layer tree as a single flat list with parent pointers.
//
// Layers held by the store are treated as immutable and the backing
// array is never written in place: every mutation builds a new slice
// with modified clones, so a slice returned by List() stays a stable
// snapshot. Store is not safe for concurrent use.
type Store struct {
	layers []*Layer
	newID  func() string
}

// NewStore takes ownership of list.
func NewStore(list []*Layer) *Store {
	return &Store{layers: list, newID: uuid.NewString}
}

// List returns the flat list in storage order. Do not modify.
func (s *Store) List() []*Layer { return s.layers }

// Snapshot returns a copy of the list that later mutations will not affect.
func (s *Store) Snapshot() []*Layer { return slices.Clone(s.layers) }

// Replace swaps the whole list (undo/redo/import).
func (s *Store) Replace(list []*Layer) { s.layers = list }

// Len returns the number of layers, folders included.
func (s *Store) Len() int { return len(s.layers) }

// Get looks a layer up by id.
func (s *Store) Get(id string) (*Layer, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.layers[i], true
	}
	return nil, false
}

func (s *Store) indexOf(id string) int {
	for i, l := range s.layers {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// Add creates a layer and returns its id. When targetID names a folder
// the new layer goes inside it; when it names any other layer the new
// layer becomes its sibling. Either way it is placed right after the
// target. Without a (known) target it is appended at top level.
func (s *Store) Add(t Type, cfg Config, targetID string) (string, error) {
	if DefaultConfig(t) == nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	if cfg != nil && cfg.Type() != t {
		return "", ErrTypeMismatch
	}

	l := New(s.newID(), s.defaultName(t), t, CloneConfig(cfg))

	at := len(s.layers)
	if ti := s.indexOf(targetID); ti >= 0 {
		target := s.layers[ti]
		if target.IsFolder() {
			l.GroupID = target.ID
		} else {
			l.GroupID = target.GroupID
		}
		at = ti + 1
	}
	s.layers = slices.Insert(slices.Clone(s.layers), at, l)
	return l.ID, nil
}

func (s *Store) defaultName(t Type) string {
	n := 1
	for _, l := range s.layers {
		if l.Type == t {
			n++
		}
	}
	return fmt.Sprintf("%s %d", t.Title(), n)
}

// Update applies a partial update to one layer.
func (s *Store) Update(id string, p Patch) error {
	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	l := s.layers[i].Clone()
	if p.Config != nil {
		if p.Config.Type() != l.Type {
			return ErrTypeMismatch
		}
		l.Config = CloneConfig(p.Config)
	}
	if p.Name != nil {
		l.Name = *p.Name
	}
	if p.Enabled != nil {
		l.Enabled = *p.Enabled
	}
	if p.Collapsed != nil {
		l.Collapsed = *p.Collapsed
	}
	next := slices.Clone(s.layers)
	next[i] = l
	s.layers = next
	return nil
}

// Toggle flips a layer's own enabled flag.
func (s *Store) Toggle(id string) error {
	l, ok := s.Get(id)
	if !ok {
		return ErrNotFound
	}
	enabled := !l.Enabled
	return s.Update(id, Patch{Enabled: &enabled})
}

// Remove deletes a layer together with all of its descendants.
func (s *Store) Remove(id string) error {
	if s.indexOf(id) < 0 {
		return ErrNotFound
	}
	doomed := map[string]bool{id: true}
	for changed := true; changed; {
		changed = false
		for _, l := range s.layers {
			if !doomed[l.ID] && l.GroupID != "" && doomed[l.GroupID] {
				doomed[l.ID] = true
				changed = true
			}
		}
	}
	s.layers = slices.DeleteFunc(slices.Clone(s.layers), func(l *Layer) bool { return doomed[l.ID] })
	return nil
}

// Move is the drag-and-drop reorder/reparent operation.
//
// inside: target must be a folder; the layer joins it right after the
// target. before/after: the layer becomes the target's sibling and is
// spliced next to it. An empty targetID promotes the layer to top level
// and appends it. Children of a moved folder keep their groupId and are
// not repositioned.
func (s *Store) Move(id, targetID string, pos Position) error {
	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	moved := s.layers[i].Clone()

	if targetID == "" {
		moved.GroupID = ""
		rest := slices.Delete(slices.Clone(s.layers), i, i+1)
		s.layers = append(rest, moved)
		return nil
	}
	if targetID == id {
		return nil
	}

	ti := s.indexOf(targetID)
	if ti < 0 {
		return ErrNotFound
	}
	target := s.layers[ti]

	var group string
	switch pos {
	case PositionInside:
		if !target.IsFolder() {
			return ErrNotFolder
		}
		group = target.ID
	case PositionBefore, PositionAfter:
		group = target.GroupID
	default:
		return ErrInvalidPosition
	}
	if group != "" && (group == id || s.IsDescendant(group, id)) {
		return ErrCycle
	}
	moved.GroupID = group

	rest := slices.Delete(slices.Clone(s.layers), i, i+1)
	at := slices.IndexFunc(rest, func(l *Layer) bool { return l.ID == targetID })
	if pos != PositionBefore {
		at++
	}
	s.layers = slices.Insert(rest, at, moved)
	return nil
}

// IsDescendant reports whether id sits, directly or transitively, inside
// the folder ancestorID.
func (s *Store) IsDescendant(id, ancestorID string) bool {
	seen := map[string]bool{}
	cur, ok := s.Get(id)
	for ok && cur.GroupID != "" && !seen[cur.ID] {
		seen[cur.ID] = true
		if cur.GroupID == ancestorID {
			return true
		}
		cur, ok = s.Get(cur.GroupID)
	}
	return false
}

// EffectivelyEnabled is the layer's own flag AND that of every ancestor.
func (s *Store) EffectivelyEnabled(id string) bool {
	seen := map[string]bool{}
	cur, ok := s.Get(id)
	if !ok {
		return false
	}
	for ok && !seen[cur.ID] {
		if !cur.Enabled {
			return false
		}
		seen[cur.ID] = true
		if cur.GroupID == "" {
			return true
		}
		cur, ok = s.Get(cur.GroupID)
	}
	return true
}

// Flatten walks the tree depth first from the top-level layers, keeping
// storage order among siblings. The result is both the render order and
// the execution order.
func (s *Store) Flatten() []Entry {
	ids := make(map[string]bool, len(s.layers))
	for _, l := range s.layers {
		ids[l.ID] = true
	}
	children := make(map[string][]*Layer, len(s.layers))
	for _, l := range s.layers {
		parent := l.GroupID
		if !ids[parent] {
			parent = ""
		}
		children[parent] = append(children[parent], l)
	}

	out := make([]Entry, 0, len(s.layers))
	visited := make(map[string]bool, len(s.layers))
	var walk func(parent string, depth int, effective bool)
	walk = func(parent string, depth int, effective bool) {
		for _, l := range children[parent] {
			if visited[l.ID] {
				continue
			}
			visited[l.ID] = true
			e := effective && l.Enabled
			out = append(out, Entry{Layer: l, Depth: depth, Effective: e})
			if l.IsFolder() {
				walk(l.ID, depth+1, e)
			}
		}
	}
	walk("", 0, true)
	return out
}

// Active returns the execution sequence: flattened order, effectively
// enabled, folders excluded.
func (s *Store) Active() []*Layer {
	var out []*Layer
	for _, e := range s.Flatten() {
		if e.Effective && !e.Layer.IsFolder() {
			out = append(out, e.Layer)
		}
	}
	return out
}
