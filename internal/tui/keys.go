package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the application
type KeyMap struct {
	// Navigation
	Enter        key.Binding
	Back         key.Binding
	NextTab      key.Binding
	BrowseTab    key.Binding
	FavoritesTab key.Binding

	// Actions
	Quit     key.Binding
	Help     key.Binding
	Filter   key.Binding
	Filters  key.Binding
	Search   key.Binding
	Favorite key.Binding
	Remove   key.Binding
	Refresh  key.Binding
	Open     key.Binding
	Trailer  key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		// Navigation
		Enter: key.NewBinding(
			key.WithKeys("enter", "l", "right"),
			key.WithHelp("enter", "details"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "h", "left", "backspace"),
			key.WithHelp("esc", "back"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch tab"),
		),
		BrowseTab: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "browse"),
		),
		FavoritesTab: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "favorites"),
		),

		// Actions
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		Filters: key.NewBinding(
			key.WithKeys("F"),
			key.WithHelp("F", "browse filters"),
		),
		Search: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "search catalog"),
		),
		Favorite: key.NewBinding(
			key.WithKeys("f", " "),
			key.WithHelp("f", "toggle favorite"),
		),
		Remove: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "remove favorite"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Open: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open in browser"),
		),
		Trailer: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "play trailer"),
		),
	}
}

// Keys is the global key bindings instance
var Keys = DefaultKeyMap()
