package domain

// ListItem is the interface for items that can be displayed in lists.
// Anime and Favorite implement it so the TUI can render either.
type ListItem interface {
	// GetID returns the MyAnimeList id
	GetID() int

	// GetTitle returns the display title
	GetTitle() string

	// GetDescription returns secondary info for display (e.g., "TV · 24 eps · ★ 8.61")
	GetDescription() string
}
