package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the pipeline watch.
type KeyMap struct {
	Watch key.Binding
	Home  key.Binding
	Retry key.Binding
	Help  key.Binding
	Quit  key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Watch: key.NewBinding(
		key.WithKeys("w"),
		key.WithHelp("w", "suivi"),
	),
	Home: key.NewBinding(
		key.WithKeys("h"),
		key.WithHelp("h", "accueil"),
	),
	Retry: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "réessayer"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "aide"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quitter"),
	),
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Watch, k.Home, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Watch, k.Home}, {k.Retry, k.Help, k.Quit}}
}
