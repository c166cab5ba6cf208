// Package catalog is the cached query layer over the anime catalog client.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/mmcdole/anidex/internal/domain"
	"github.com/mmcdole/anidex/internal/query"
)

// Service answers catalog queries from the cache, fetching through the client
// when data is missing or stale.
type Service struct {
	client domain.CatalogClient
	cache  *query.Cache
	logger *slog.Logger
}

// NewService creates a new catalog service
func NewService(client domain.CatalogClient, cache *query.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client: client,
		cache:  cache,
		logger: logger,
	}
}

// Cache returns the underlying cache
func (s *Service) Cache() *query.Cache {
	return s.cache
}

// ParseID converts a path segment to an entry id. Anything that is not a
// positive integer is reported as not found.
func ParseID(slug string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(slug))
	if err != nil || id <= 0 {
		return 0, domain.ErrNotFound
	}
	return id, nil
}

// List returns one page of the filtered listing
func (s *Service) List(ctx context.Context, params domain.ListParams) (domain.Page[domain.Anime], error) {
	params = params.Normalize()
	if err := params.Validate(); err != nil {
		return domain.Page[domain.Anime]{}, err
	}
	return query.Query(ctx, s.cache, ListKey(params), ListPolicy, func(ctx context.Context) (domain.Page[domain.Anime], error) {
		return s.client.SearchAnime(ctx, params)
	})
}

// Browse returns the accumulated listing for params. Callers load pages with
// FetchNextPage; a filter change yields a different listing.
func (s *Service) Browse(params domain.ListParams) (*query.Infinite[domain.Anime], error) {
	params = params.Normalize()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return query.InfiniteQuery(s.cache, BrowseKey(params), ListPolicy, animeID,
		func(ctx context.Context, page int) (domain.Page[domain.Anime], error) {
			p := params
			p.Page = page
			return s.client.SearchAnime(ctx, p)
		}), nil
}

// InvalidateList drops every cached listing, e.g. after an explicit filter reset
func (s *Service) InvalidateList() {
	s.cache.InvalidatePrefix(OpList)
	s.cache.InvalidatePrefix(OpBrowse)
}

// Detail returns a single entry. Errors propagate: the caller shows an error state.
func (s *Service) Detail(ctx context.Context, id int) (*domain.Anime, error) {
	if id <= 0 {
		return nil, domain.ErrNotFound
	}
	return query.Query(ctx, s.cache, DetailKey(id, ""), DetailPolicy, func(ctx context.Context) (*domain.Anime, error) {
		return s.client.GetAnime(ctx, id)
	})
}

// Secondary sections. Each reports whether the data is available; on
// failure it returns an empty value and the failure is not cached.

// Relations returns the relations of id
func (s *Service) Relations(ctx context.Context, id int) ([]domain.Relation, bool) {
	return secondary(ctx, s, DetailKey(id, "relations"), RelationsPolicy, []domain.Relation{},
		func(ctx context.Context) ([]domain.Relation, error) { return s.client.GetRelations(ctx, id) })
}

// Characters returns the cast of id
func (s *Service) Characters(ctx context.Context, id int) ([]domain.Character, bool) {
	return secondary(ctx, s, DetailKey(id, "characters"), CharactersPolicy, []domain.Character{},
		func(ctx context.Context) ([]domain.Character, error) { return s.client.GetCharacters(ctx, id) })
}

// Pictures returns the gallery of id
func (s *Service) Pictures(ctx context.Context, id int) ([]domain.Images, bool) {
	return secondary(ctx, s, DetailKey(id, "pictures"), PicturesPolicy, []domain.Images{},
		func(ctx context.Context) ([]domain.Images, error) { return s.client.GetPictures(ctx, id) })
}

// Videos returns the videos of id, nil when unavailable
func (s *Service) Videos(ctx context.Context, id int) (*domain.Videos, bool) {
	return secondary(ctx, s, DetailKey(id, "videos"), VideosPolicy, (*domain.Videos)(nil),
		func(ctx context.Context) (*domain.Videos, error) { return s.client.GetVideos(ctx, id) })
}

// Statistics returns the statistics of id, nil when unavailable
func (s *Service) Statistics(ctx context.Context, id int) (*domain.Statistics, bool) {
	return secondary(ctx, s, DetailKey(id, "statistics"), StatsPolicy, (*domain.Statistics)(nil),
		func(ctx context.Context) (*domain.Statistics, error) { return s.client.GetStatistics(ctx, id) })
}

func secondary[T any](ctx context.Context, s *Service, key query.Key, policy query.Policy, empty T, fetch func(context.Context) (T, error)) (T, bool) {
	v, err := query.Query(ctx, s.cache, key, policy, fetch)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("secondary section unavailable", "key", string(key), "error", err)
		}
		return empty, false
	}
	return v, true
}

// Top returns the top listing for filter
func (s *Service) Top(ctx context.Context, filter string, limit int) ([]domain.Anime, error) {
	if !domain.ValidTopFilter(filter) {
		return nil, domain.ErrInvalidParams
	}
	return query.Query(ctx, s.cache, topKey(filter, limit), TopPolicy, func(ctx context.Context) ([]domain.Anime, error) {
		return s.client.GetTopAnime(ctx, filter, limit)
	})
}

// SeasonNow returns the currently airing season
func (s *Service) SeasonNow(ctx context.Context, limit int) ([]domain.Anime, error) {
	return query.Query(ctx, s.cache, seasonNowKey(limit), SeasonPolicy, func(ctx context.Context) ([]domain.Anime, error) {
		return s.client.GetSeasonNow(ctx, limit)
	})
}

// Genres returns the genre taxonomy
func (s *Service) Genres(ctx context.Context) ([]domain.Genre, error) {
	return query.Query(ctx, s.cache, query.Key(OpGenres), GenresPolicy, s.client.GetGenres)
}

// ByTypeAndStatus returns the newest entries of kind, optionally filtered by status
func (s *Service) ByTypeAndStatus(ctx context.Context, kind, status string, limit int) ([]domain.Anime, error) {
	return query.Query(ctx, s.cache, latestKey(kind, status, limit), ListPolicy, func(ctx context.Context) ([]domain.Anime, error) {
		return s.client.GetAnimeByTypeAndStatus(ctx, kind, status, limit)
	})
}

// RelatedAnime resolves ids to entries. Ids that fail are left out.
func (s *Service) RelatedAnime(ctx context.Context, ids []int) ([]domain.Anime, error) {
	if len(ids) == 0 {
		return []domain.Anime{}, nil
	}
	ids = slices.Clone(ids)
	related, err := query.Query(ctx, s.cache, RelatedKey(ids), RelatedPolicy, func(ctx context.Context) ([]domain.Anime, error) {
		return s.client.GetAnimeByIDs(ctx, ids)
	})
	if err != nil {
		return nil, err
	}
	s.seedDetails(related)
	return related, nil
}

// seedDetails stores entries fetched in bulk under their own detail keys so
// opening one needs no request. Cached copies are left alone.
func (s *Service) seedDetails(list []domain.Anime) {
	for i := range list {
		key := DetailKey(list[i].ID, "")
		if _, ok := query.Peek[*domain.Anime](s.cache, key); ok {
			continue
		}
		a := list[i]
		query.Set(s.cache, key, DetailPolicy, &a)
	}
}

// RefreshDetail drops everything cached about id
func (s *Service) RefreshDetail(id int) {
	s.cache.Invalidate(DetailKey(id, ""))
	s.cache.InvalidatePrefix(DetailPrefix(id))
}

func animeID(a domain.Anime) int {
	return a.ID
}
