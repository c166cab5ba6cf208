package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/anidex/internal/catalog"
	"github.com/mmcdole/anidex/internal/domain"
	"github.com/mmcdole/anidex/internal/favorites"
	"github.com/mmcdole/anidex/internal/query"
)

// Command factories for async operations

// URLOpener opens a URL outside the terminal. *adapter.Launcher implements it.
type URLOpener interface {
	Open(url string) error
}

const spinnerInterval = 100 * time.Millisecond

// FetchNextPageCmd loads the next page of listing
func FetchNextPageCmd(listing *query.Infinite[domain.Anime]) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		_, err := listing.FetchNextPage(ctx)
		return PageLoadedMsg{Listing: listing, Err: err}
	}
}

// WaitRefreshCmd reports when the background refresh of listing finishes
func WaitRefreshCmd(listing *query.Infinite[domain.Anime], done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return ListingRefreshedMsg{Listing: listing}
	}
}

// RefreshListingCmd reloads the loaded pages of listing
func RefreshListingCmd(listing *query.Infinite[domain.Anime]) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		listing.Refresh(ctx)
		return ListingRefreshedMsg{Listing: listing}
	}
}

// ApplyFiltersCmd resolves f against base, looking up genre names if needed
func ApplyFiltersCmd(svc *catalog.Service, base domain.ListParams, f domain.Filters) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		params, err := svc.ApplyFilters(ctx, base, f)
		if err != nil {
			return ErrMsg{Err: err, Context: "applying filters"}
		}
		return FiltersAppliedMsg{Params: params, Filters: f}
	}
}

// LoadDetailCmd loads the detail page for id. Cancelling parent abandons the load.
func LoadDetailCmd(parent context.Context, svc *catalog.Service, id int) tea.Cmd {
	return func() tea.Msg {
		// Related entries are fetched one at a time, so allow for a slow page
		ctx, cancel := context.WithTimeout(parent, 90*time.Second)
		defer cancel()

		page, err := svc.DetailPage(ctx, id)
		return DetailLoadedMsg{ID: id, Page: page, Err: err}
	}
}

// LoadFavoritesCmd loads the favorites list
func LoadFavoritesCmd(svc *favorites.Service) tea.Cmd {
	return func() tea.Msg {
		favs, err := svc.List()
		if err != nil {
			return ErrMsg{Err: err, Context: "loading favorites"}
		}
		return FavoritesLoadedMsg{Favorites: favs}
	}
}

// ToggleFavoriteCmd adds or removes a from the favorites
func ToggleFavoriteCmd(svc *favorites.Service, a domain.Anime) tea.Cmd {
	return func() tea.Msg {
		on, err := svc.Toggle(a)
		if err != nil {
			return ErrMsg{Err: err, Context: "updating favorites"}
		}
		return FavoriteToggledMsg{ID: a.ID, Title: a.DisplayTitle(), Favorite: on}
	}
}

// RemoveFavoriteCmd removes id from the favorites
func RemoveFavoriteCmd(svc *favorites.Service, id int, title string) tea.Cmd {
	return func() tea.Msg {
		if _, err := svc.Remove(id); err != nil {
			return ErrMsg{Err: err, Context: "removing favorite"}
		}
		return FavoriteToggledMsg{ID: id, Title: title, Favorite: false}
	}
}

// OpenURLCmd hands url to the browser
func OpenURLCmd(opener URLOpener, url string) tea.Cmd {
	return func() tea.Msg {
		if err := opener.Open(url); err != nil {
			return ErrMsg{Err: err, Context: "opening browser"}
		}
		return OpenedMsg{URL: url}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(spinnerInterval, func(time.Time) tea.Msg { return tickMsg{} })
}
