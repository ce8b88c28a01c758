package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds all key bindings for the application.
type KeyMap struct {
	Up        key.Binding
	Down      key.Binding
	Enter     key.Binding
	Back      key.Binding
	Rescan    key.Binding
	Cancel    key.Binding
	Export    key.Binding
	Quit      key.Binding
	ForceQuit key.Binding
	Help      key.Binding

	SortSize  key.Binding
	SortName  key.Binding
	SortCount key.Binding
	DirsFirst key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter", "right", "l"),
			key.WithHelp("enter/→", "open dir"),
		),
		Back: key.NewBinding(
			key.WithKeys("backspace", "left", "h"),
			key.WithHelp("←/h", "parent"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("c", "esc"),
			key.WithHelp("c", "cancel scan"),
		),
		Export: key.NewBinding(
			key.WithKeys("E"),
			key.WithHelp("E", "export"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "force quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more keys"),
		),
		SortSize: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "sort: size"),
		),
		SortName: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "sort: name"),
		),
		SortCount: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "sort: count"),
		),
		DirsFirst: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "dirs first"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Back, k.Rescan, k.Quit, k.Help}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter, k.Back},
		{k.SortSize, k.SortName, k.SortCount, k.DirsFirst},
		{k.Rescan, k.Cancel, k.Export, k.Help},
		{k.Quit, k.ForceQuit},
	}
}
