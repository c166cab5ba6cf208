package tui

import (
	"github.com/mmcdole/anidex/internal/catalog"
	"github.com/mmcdole/anidex/internal/domain"
	"github.com/mmcdole/anidex/internal/query"
)

// Message types for the TUI

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e ErrMsg) Unwrap() error {
	return e.Err
}

// PageLoadedMsg signals that a FetchNextPage call on Listing finished
type PageLoadedMsg struct {
	Listing *query.Infinite[domain.Anime]
	Err     error
}

// ListingRefreshedMsg signals that a background refresh of Listing finished
type ListingRefreshedMsg struct {
	Listing *query.Infinite[domain.Anime]
}

// FiltersAppliedMsg carries browse params with resolved filters
type FiltersAppliedMsg struct {
	Params  domain.ListParams
	Filters domain.Filters
}

// DetailLoadedMsg signals that a detail page has been loaded
type DetailLoadedMsg struct {
	ID   int
	Page *catalog.DetailPage
	Err  error
}

// FavoritesLoadedMsg signals that the favorites list has been loaded
type FavoritesLoadedMsg struct {
	Favorites []domain.Favorite
}

// FavoriteToggledMsg signals that a favorite was added or removed
type FavoriteToggledMsg struct {
	ID       int
	Title    string
	Favorite bool
}

// OpenedMsg signals that a URL was handed to the browser
type OpenedMsg struct {
	URL string
}

// tickMsg advances the loading spinner
type tickMsg struct{}
