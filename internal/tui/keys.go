package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the shell's key bindings.
type KeyMap struct {
	Logout  key.Binding
	Refresh key.Binding
	Reload  key.Binding
	Quit    key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Logout: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "log out"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh token"),
		),
		Reload: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "reload profile"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp lists the bindings for the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Logout, k.Refresh, k.Reload, k.Quit}
}
