package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap lists every binding of the hex view and the tab bar.
type KeyMap struct {
	Up        key.Binding
	Down      key.Binding
	Left      key.Binding
	Right     key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	LineStart key.Binding
	LineEnd   key.Binding

	HexMode   key.Binding
	ASCIIMode key.Binding
	GoTo      key.Binding
	Save      key.Binding
	Quit      key.Binding
	Suspend   key.Binding
	Help      key.Binding

	NextTab   key.Binding
	CloseTab  key.Binding
	ForceQuit key.Binding
}

// DefaultKeyMap uses control keys only, so every printable key stays
// available for editing.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:        key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "up")),
		Down:      key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "down")),
		Left:      key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "left")),
		Right:     key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "right")),
		PageUp:    key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "page up")),
		PageDown:  key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "page down")),
		LineStart: key.NewBinding(key.WithKeys("home"), key.WithHelp("home", "line start")),
		LineEnd:   key.NewBinding(key.WithKeys("end"), key.WithHelp("end", "line end")),

		HexMode:   key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("^X", "hex mode")),
		ASCIIMode: key.NewBinding(key.WithKeys("ctrl+a"), key.WithHelp("^A", "ascii mode")),
		GoTo:      key.NewBinding(key.WithKeys("ctrl+g"), key.WithHelp("^G", "go to byte")),
		Save:      key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("^S", "save")),
		Quit:      key.NewBinding(key.WithKeys("ctrl+q"), key.WithHelp("^Q", "close")),
		Suspend:   key.NewBinding(key.WithKeys("ctrl+z"), key.WithHelp("^Z", "suspend")),
		Help:      key.NewBinding(key.WithKeys("f1"), key.WithHelp("F1", "help")),

		NextTab:   key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("^T", "next tab")),
		CloseTab:  key.NewBinding(key.WithKeys("ctrl+w"), key.WithHelp("^W", "close tab")),
		ForceQuit: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("^C", "quit now")),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.HexMode, k.ASCIIMode, k.GoTo, k.Save, k.Quit, k.Help}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right, k.PageUp, k.PageDown, k.LineStart, k.LineEnd},
		{k.HexMode, k.ASCIIMode, k.GoTo, k.Save, k.Quit, k.Suspend},
		{k.NextTab, k.CloseTab, k.ForceQuit, k.Help},
	}
}
