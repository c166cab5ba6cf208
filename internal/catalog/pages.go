package catalog

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/mmcdole/anidex/internal/domain"
)

const (
	homeSectionLimit = 10
	maxRelated       = 10
)

// Section is a piece of a page that may be missing
type Section[T any] struct {
	Data      T
	Available bool
}

// DetailPage is an entry with its enrichment sections
type DetailPage struct {
	Anime      *domain.Anime
	Relations  Section[[]domain.Relation]
	Related    Section[[]domain.Anime]
	Characters Section[[]domain.Character]
	Pictures   Section[[]domain.Images]
	Videos     Section[*domain.Videos]
	Statistics Section[*domain.Statistics]
}

// DetailPage loads an entry and its sections. Only the entry itself can fail
// the page; sections that fail are marked unavailable.
func (s *Service) DetailPage(ctx context.Context, id int) (*DetailPage, error) {
	anime, err := s.Detail(ctx, id)
	if err != nil {
		return nil, err
	}

	page := &DetailPage{Anime: anime}
	var g errgroup.Group

	g.Go(func() error {
		page.Relations.Data, page.Relations.Available = s.Relations(ctx, id)
		if !page.Relations.Available {
			page.Related = Section[[]domain.Anime]{Data: []domain.Anime{}}
			return nil
		}
		ids := domain.AnimeIDs(page.Relations.Data)
		if len(ids) > maxRelated {
			ids = ids[:maxRelated]
		}
		related, err := s.RelatedAnime(ctx, ids)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.Warn("related anime unavailable", "id", id, "error", err)
			}
			page.Related = Section[[]domain.Anime]{Data: []domain.Anime{}}
			return nil
		}
		page.Related = Section[[]domain.Anime]{Data: related, Available: true}
		return nil
	})
	g.Go(func() error {
		page.Characters.Data, page.Characters.Available = s.Characters(ctx, id)
		return nil
	})
	g.Go(func() error {
		page.Pictures.Data, page.Pictures.Available = s.Pictures(ctx, id)
		return nil
	})
	g.Go(func() error {
		page.Videos.Data, page.Videos.Available = s.Videos(ctx, id)
		return nil
	})
	g.Go(func() error {
		page.Statistics.Data, page.Statistics.Available = s.Statistics(ctx, id)
		return nil
	})

	_ = g.Wait() // sections report their own failures
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return page, nil
}

// HomePage is the landing page
type HomePage struct {
	Popular      Section[[]domain.Anime]
	LatestSeries Section[[]domain.Anime]
	LatestMovies Section[[]domain.Anime]
}

// Home loads the landing page sections concurrently. It fails with
// domain.ErrAllSectionsFailed only when no section could be loaded.
func (s *Service) Home(ctx context.Context) (*HomePage, error) {
	page := &HomePage{}
	errs := make([]error, 3)

	var g errgroup.Group
	load := func(i int, dst *Section[[]domain.Anime], fetch func() ([]domain.Anime, error)) {
		g.Go(func() error {
			items, err := fetch()
			if err != nil {
				errs[i] = err
				s.logger.Warn("home section failed", "section", i, "error", err)
				return nil
			}
			*dst = Section[[]domain.Anime]{Data: items, Available: true}
			return nil
		})
	}

	load(0, &page.Popular, func() ([]domain.Anime, error) {
		return s.Top(ctx, "bypopularity", 0)
	})
	load(1, &page.LatestSeries, func() ([]domain.Anime, error) {
		return s.ByTypeAndStatus(ctx, "tv", "", homeSectionLimit)
	})
	load(2, &page.LatestMovies, func() ([]domain.Anime, error) {
		return s.ByTypeAndStatus(ctx, "movie", "", homeSectionLimit)
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if errs[0] != nil && errs[1] != nil && errs[2] != nil {
		return nil, errors.Join(append([]error{domain.ErrAllSectionsFailed}, errs...)...)
	}
	return page, nil
}
