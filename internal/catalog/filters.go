package catalog

import (
	"context"
	"fmt"

	"github.com/mmcdole/anidex/internal/domain"
)

// ApplyFilters replaces the filters of base with f. The query, page size
// and sfw flag of base are kept and the page starts over. Genre names are
// resolved through the genre list.
func (s *Service) ApplyFilters(ctx context.Context, base domain.ListParams, f domain.Filters) (domain.ListParams, error) {
	p := base
	p.Page = 0
	p.Type = f.Type
	p.Status = f.Status
	p.Rating = f.Rating
	p.MinScore = f.MinScore
	p.MaxScore = f.MaxScore
	p.OrderBy = f.OrderBy
	p.Sort = f.Sort
	p.Genres = nil
	if len(f.Genres) > 0 {
		ids, err := s.GenreIDs(ctx, f.Genres)
		if err != nil {
			return base, err
		}
		p.Genres = ids
	}

	if err := p.Normalize().Validate(); err != nil {
		return base, err
	}
	return p, nil
}

// GenreIDs resolves genre names or ids to ids. The genre list is only
// fetched when a name is given.
func (s *Service) GenreIDs(ctx context.Context, names []string) ([]int, error) {
	var ids []int
	var byName map[string]int
	for _, name := range names {
		if parsed, err := domain.ParseIDs(name); err == nil {
			ids = append(ids, parsed...)
			continue
		}
		if byName == nil {
			genres, err := s.Genres(ctx)
			if err != nil {
				return nil, fmt.Errorf("loading genres: %w", err)
			}
			byName = make(map[string]int, len(genres))
			for _, g := range genres {
				byName[domain.GenreKey(g.Name)] = g.ID
			}
		}
		id, ok := byName[domain.GenreKey(name)]
		if !ok {
			return nil, fmt.Errorf("%w: unknown genre %q", domain.ErrInvalidParams, name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
