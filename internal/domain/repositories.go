package domain

import (
	"context"
)

// CatalogClient provides access to the remote anime catalog.
// Every method returns an error on failure; degradation is applied by callers.
type CatalogClient interface {
	// SearchAnime returns one page of the catalog listing for the given filters
	SearchAnime(ctx context.Context, params ListParams) (Page[Anime], error)

	// GetAnime returns a single entry, ErrNotFound if it does not exist
	GetAnime(ctx context.Context, id int) (*Anime, error)

	// Enrichment for a detail page
	GetRelations(ctx context.Context, id int) ([]Relation, error)
	GetCharacters(ctx context.Context, id int) ([]Character, error)
	GetPictures(ctx context.Context, id int) ([]Images, error)
	GetVideos(ctx context.Context, id int) (*Videos, error)
	GetStatistics(ctx context.Context, id int) (*Statistics, error)

	// GetTopAnime returns the top listing, optionally filtered
	// ("airing", "upcoming", "bypopularity", "favorite")
	GetTopAnime(ctx context.Context, filter string, limit int) ([]Anime, error)

	// GetSeasonNow returns the currently airing season
	GetSeasonNow(ctx context.Context, limit int) ([]Anime, error)

	// GetGenres returns the genre taxonomy
	GetGenres(ctx context.Context) ([]Genre, error)

	// GetAnimeByTypeAndStatus returns the newest entries of a type, optionally by status
	GetAnimeByTypeAndStatus(ctx context.Context, kind, status string, limit int) ([]Anime, error)

	// GetAnimeByIDs fetches entries one at a time; failed ids are skipped
	GetAnimeByIDs(ctx context.Context, ids []int) ([]Anime, error)
}
