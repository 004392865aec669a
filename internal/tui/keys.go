package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the viewer's keybindings.
type KeyMap struct {
	Up         key.Binding
	Down       key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	Top        key.Binding
	Bottom     key.Binding
	Focus      key.Binding
	Toggle     key.Binding
	Collapse   key.Binding
	MoveUp     key.Binding
	MoveDown   key.Binding
	Delete     key.Binding
	AddLayer   key.Binding
	Search     key.Binding
	FindNext   key.Binding
	FindPrev   key.Binding
	Undo       key.Binding
	Redo       key.Binding
	ToggleHelp key.Binding
	Quit       key.Binding
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Focus, k.AddLayer, k.Toggle, k.Search, k.FindNext, k.Undo, k.ToggleHelp, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown, k.Top, k.Bottom},
		{k.Focus, k.AddLayer, k.Toggle, k.Collapse, k.MoveUp, k.MoveDown, k.Delete},
		{k.Search, k.FindNext, k.FindPrev, k.Undo, k.Redo, k.ToggleHelp, k.Quit},
	}
}

// DefaultKeys is the stock keymap.
var DefaultKeys = KeyMap{
	Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	PageUp:     key.NewBinding(key.WithKeys("pgup", "ctrl+b"), key.WithHelp("pgup", "page up")),
	PageDown:   key.NewBinding(key.WithKeys("pgdown", "ctrl+f", " "), key.WithHelp("pgdn", "page down")),
	Top:        key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "top")),
	Bottom:     key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "bottom")),
	Focus:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "layers/log")),
	Toggle:     key.NewBinding(key.WithKeys("x", "enter"), key.WithHelp("x", "toggle layer")),
	Collapse:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "collapse folder")),
	MoveUp:     key.NewBinding(key.WithKeys("K"), key.WithHelp("K", "move up")),
	MoveDown:   key.NewBinding(key.WithKeys("J"), key.WithHelp("J", "move down")),
	Delete:     key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "delete layer")),
	AddLayer:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add layer")),
	Search:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	FindNext:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next match")),
	FindPrev:   key.NewBinding(key.WithKeys("N"), key.WithHelp("N", "prev match")),
	Undo:       key.NewBinding(key.WithKeys("u", "ctrl+z"), key.WithHelp("u", "undo")),
	Redo:       key.NewBinding(key.WithKeys("ctrl+r", "ctrl+y"), key.WithHelp("^r", "redo")),
	ToggleHelp: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}
