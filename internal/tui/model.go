// Package tui is a terminal viewer for one session: the layer tree with
// per-layer heat bars on the left, the composited output on the right.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/qmjianda/loglayout-sub001/internal/engine"
	"github.com/qmjianda/loglayout-sub001/internal/layer"
	"github.com/qmjianda/loglayout-sub001/internal/pkg/layerspec"
	"github.com/qmjianda/loglayout-sub001/internal/view"
)

const (
	refreshInterval = 150 * time.Millisecond
	layerPaneWidth  = 38
	heatWidth       = 10
)

type focus int

const (
	focusLog focus = iota
	focusLayers
)

type inputMode int

const (
	inputNone inputMode = iota
	inputLayer
	inputSearch
)

type tickMsg time.Time

// Model is the bubbletea model of the viewer.
type Model struct {
	sess *engine.Session
	comp *view.Compositor

	keys  KeyMap
	help  help.Model
	input textinput.Model
	pane  viewport.Model

	scroll view.Viewport
	// follow keeps the view pinned to the last line while the source grows.
	follow bool
	focus  focus
	mode   inputMode

	layerCursor int
	current     int // output position of the current search hit, -1 for none

	status string
	width  int
	height int
}

// New builds a viewer for sess.
func New(sess *engine.Session, comp *view.Compositor) *Model {
	in := textinput.New()
	in.CharLimit = 512

	m := &Model{
		sess:    sess,
		comp:    comp,
		keys:    DefaultKeys,
		help:    help.New(),
		input:   in,
		pane:    viewport.New(80, 20),
		scroll:  view.Viewport{RowHeight: 1},
		current: -1,
		width:   120,
		height:  30,
	}
	m.resize()
	return m
}

// Run starts the viewer full-screen and blocks until it exits.
func Run(ctx context.Context, sess *engine.Session, comp *view.Compositor) error {
	_, err := tea.NewProgram(New(sess, comp), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) Init() tea.Cmd {
	return tick()
}

func (m *Model) resize() {
	bodyHeight := max(m.height-3, 1)
	m.pane.Width = max(m.width-layerPaneWidth-1, 10)
	m.pane.Height = bodyHeight
	m.scroll.Height = bodyHeight
	m.help.Width = m.width
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case tickMsg:
		if m.follow {
			m.scrollToBottom()
		}
		return m, tick()

	case tea.KeyMsg:
		if m.mode != inputNone {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m *Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closeInput()
		return m, nil
	case tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		mode := m.mode
		m.closeInput()
		if mode == inputLayer {
			m.addLayer(value)
		} else {
			m.setSearch(value)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) openInput(mode inputMode) tea.Cmd {
	m.mode = mode
	m.input.Reset()
	if mode == inputLayer {
		m.input.Prompt = "layer> "
		m.input.Placeholder = `level:ERROR | filter:"timeout" invert`
	} else {
		m.input.Prompt = "/"
		m.input.Placeholder = "text or /regex/"
		m.input.SetValue(m.sess.GlobalQuery().Query)
	}
	return m.input.Focus()
}

func (m *Model) closeInput() {
	m.mode = inputNone
	m.input.Blur()
}

func (m *Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	case key.Matches(msg, k.ToggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()
	case key.Matches(msg, k.Focus):
		if m.focus == focusLog {
			m.focus = focusLayers
		} else {
			m.focus = focusLog
		}
	case key.Matches(msg, k.AddLayer):
		return m, m.openInput(inputLayer)
	case key.Matches(msg, k.Search):
		return m, m.openInput(inputSearch)
	case key.Matches(msg, k.FindNext):
		m.jump(m.sess.FindNext())
	case key.Matches(msg, k.FindPrev):
		m.jump(m.sess.FindPrev())
	case key.Matches(msg, k.Undo):
		if !m.sess.Undo() {
			m.status = "nothing to undo"
		}
	case key.Matches(msg, k.Redo):
		if !m.sess.Redo() {
			m.status = "nothing to redo"
		}
	case m.focus == focusLayers:
		m.updateLayerKeys(msg)
	default:
		m.updateScrollKeys(msg)
	}
	return m, nil
}

func (m *Model) updateScrollKeys(msg tea.KeyMsg) {
	k := m.keys
	total := m.sess.TotalLineCount()
	switch {
	case key.Matches(msg, k.Up):
		m.scrollBy(-1, total)
	case key.Matches(msg, k.Down):
		m.scrollBy(1, total)
	case key.Matches(msg, k.PageUp):
		m.scrollBy(-m.scroll.Height, total)
	case key.Matches(msg, k.PageDown):
		m.scrollBy(m.scroll.Height, total)
	case key.Matches(msg, k.Top):
		m.follow = false
		m.scroll.ScrollTop = 0
	case key.Matches(msg, k.Bottom):
		m.follow = true
		m.scrollToBottom()
	}
}

func (m *Model) scrollBy(delta, total int) {
	top := m.scroll.ScrollTop + delta
	top = min(top, total-m.scroll.Height)
	m.scroll.ScrollTop = max(top, 0)
	m.follow = false
}

func (m *Model) scrollToBottom() {
	m.scroll.ScrollTop = max(m.sess.TotalLineCount()-m.scroll.Height, 0)
}

func (m *Model) jump(pos int, ok bool) {
	if !ok {
		m.status = "no matches"
		return
	}
	m.follow = false
	m.current = pos
	m.scroll.ScrollTop = m.scroll.Follow(pos)
	m.status = fmt.Sprintf("match at line %d", pos+1)
}

// visibleLayers returns the flattened tree minus children of collapsed
// folders.
func (m *Model) visibleLayers() []layer.Entry {
	var out []layer.Entry
	hideBelow := -1
	for _, e := range m.sess.Flatten() {
		if hideBelow >= 0 {
			if e.Depth > hideBelow {
				continue
			}
			hideBelow = -1
		}
		out = append(out, e)
		if e.Layer.IsFolder() && e.Layer.Collapsed {
			hideBelow = e.Depth
		}
	}
	return out
}

func (m *Model) selectedLayer() *layer.Layer {
	entries := m.visibleLayers()
	if len(entries) == 0 {
		return nil
	}
	m.layerCursor = min(max(m.layerCursor, 0), len(entries)-1)
	return entries[m.layerCursor].Layer
}

func (m *Model) updateLayerKeys(msg tea.KeyMsg) {
	k := m.keys
	switch {
	case key.Matches(msg, k.Up):
		m.layerCursor = max(m.layerCursor-1, 0)
		return
	case key.Matches(msg, k.Down):
		m.layerCursor++
		m.selectedLayer()
		return
	}

	sel := m.selectedLayer()
	if sel == nil {
		return
	}
	var err error
	switch {
	case key.Matches(msg, k.Toggle):
		err = m.sess.ToggleLayer(sel.ID)
	case key.Matches(msg, k.Collapse):
		if sel.IsFolder() {
			collapsed := !sel.Collapsed
			err = m.sess.UpdateLayer(sel.ID, layer.Patch{Collapsed: &collapsed})
		}
	case key.Matches(msg, k.Delete):
		err = m.sess.RemoveLayer(sel.ID)
	case key.Matches(msg, k.MoveUp):
		if prev := m.sibling(sel, -1); prev != nil {
			err = m.sess.MoveLayer(sel.ID, prev.ID, layer.PositionBefore)
			m.layerCursor--
		}
	case key.Matches(msg, k.MoveDown):
		if next := m.sibling(sel, 1); next != nil {
			err = m.sess.MoveLayer(sel.ID, next.ID, layer.PositionAfter)
			m.layerCursor++
		}
	}
	if err != nil {
		m.status = err.Error()
	}
}

// sibling returns the nearest layer with the same parent in the given
// direction, or nil.
func (m *Model) sibling(l *layer.Layer, dir int) *layer.Layer {
	list := m.sess.Layers()
	idx := -1
	for i, c := range list {
		if c.ID == l.ID {
			idx = i
			break
		}
	}
	for i := idx + dir; idx >= 0 && i >= 0 && i < len(list); i += dir {
		if list[i].GroupID == l.GroupID {
			return list[i]
		}
	}
	return nil
}

// addLayer parses a layer definition pipeline and inserts each layer
// after the selected one (or inside it, for a folder).
func (m *Model) addLayer(text string) {
	if text == "" {
		return
	}
	specs, err := layerspec.Parse(text)
	if err != nil {
		m.status = err.Error()
		return
	}
	target := ""
	if sel := m.selectedLayer(); sel != nil && m.focus == focusLayers {
		target = sel.ID
	}
	for _, spec := range specs {
		id, err := m.sess.InsertLayer(spec.Layer(""), target)
		if err != nil {
			m.status = err.Error()
			return
		}
		target = id
	}
	m.status = fmt.Sprintf("added %d layer(s)", len(specs))
}

// setSearch sets the global query; text wrapped in slashes is a regex.
func (m *Model) setSearch(text string) {
	opts := engine.SearchOptions{}
	if len(text) >= 2 && strings.HasPrefix(text, "/") && strings.HasSuffix(text, "/") {
		text = text[1 : len(text)-1]
		opts.Regex = true
	}
	m.sess.SetGlobalQuery(text, opts)
	m.current = -1
	if text == "" {
		m.status = "search cleared"
	} else {
		m.status = "searching " + text
	}
}

func (m *Model) View() string {
	layers := m.renderLayers(m.scroll.Height)
	m.pane.SetContent(m.renderLog())
	body := lipgloss.JoinHorizontal(lipgloss.Top, layers, separator(m.scroll.Height), m.pane.View())

	var footer string
	if m.mode != inputNone {
		footer = m.input.View()
	} else {
		footer = m.help.View(m.keys)
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderStatus(), footer)
}
