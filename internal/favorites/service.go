// Package favorites manages the locally persisted favorites list.
// Favorites are never synced to the remote catalog.
package favorites

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/pelletier/go-toml/v2"

	"github.com/mmcdole/anidex/internal/domain"
)

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source used for AddedAt
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is the favorites list in front of a FavoritesStore.
// The list is loaded lazily and every mutation is written through.
type Service struct {
	store  domain.FavoritesStore
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	favs   []domain.Favorite // newest first
	loaded bool
}

// NewService creates a new favorites service
func NewService(store domain.FavoritesStore, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ensureLoaded must be called with mu held for writing
func (s *Service) ensureLoaded() error {
	if s.loaded {
		return nil
	}
	favs, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("load favorites: %w", err)
	}
	s.favs = favs
	s.loaded = true
	s.logger.Debug("favorites loaded", "count", len(favs))
	return nil
}

// commit persists next and makes it current. On failure the list is unchanged.
func (s *Service) commit(next []domain.Favorite) error {
	if err := s.store.Save(next); err != nil {
		return fmt.Errorf("save favorites: %w", err)
	}
	s.favs = next
	return nil
}

func (s *Service) index(id int) int {
	return slices.IndexFunc(s.favs, func(f domain.Favorite) bool { return f.ID == id })
}

// Add stores a snapshot of a. Adding an existing favorite is a no-op and
// keeps the original AddedAt.
func (s *Service) Add(a domain.Anime) (domain.Favorite, error) {
	if a.ID <= 0 {
		return domain.Favorite{}, domain.ErrInvalidParams
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return domain.Favorite{}, err
	}
	return s.add(a)
}

func (s *Service) add(a domain.Anime) (domain.Favorite, error) {
	if i := s.index(a.ID); i >= 0 {
		return s.favs[i], nil
	}

	fav := domain.NewFavorite(a, s.now())
	next := make([]domain.Favorite, 0, len(s.favs)+1)
	next = append(next, fav)
	next = append(next, s.favs...)
	if err := s.commit(next); err != nil {
		return domain.Favorite{}, err
	}
	s.logger.Info("favorite added", "id", fav.ID, "title", fav.Title)
	return fav, nil
}

// Remove deletes id. It reports whether id was a favorite.
func (s *Service) Remove(id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return false, err
	}
	return s.remove(id)
}

func (s *Service) remove(id int) (bool, error) {
	i := s.index(id)
	if i < 0 {
		return false, nil
	}
	next := slices.Delete(slices.Clone(s.favs), i, i+1)
	if err := s.commit(next); err != nil {
		return false, err
	}
	s.logger.Info("favorite removed", "id", id)
	return true, nil
}

// Toggle adds a if it is not a favorite and removes it otherwise.
// It returns the new state.
func (s *Service) Toggle(a domain.Anime) (bool, error) {
	if a.ID <= 0 {
		return false, domain.ErrInvalidParams
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return false, err
	}
	if s.index(a.ID) >= 0 {
		_, err := s.remove(a.ID)
		return err != nil, err
	}
	if _, err := s.add(a); err != nil {
		return false, err
	}
	return true, nil
}

// IsFavorite reports whether id is in the list
func (s *Service) IsFavorite(id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return false, err
	}
	return s.index(id) >= 0, nil
}

// List returns a copy of the favorites, newest first
func (s *Service) List() ([]domain.Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	return slices.Clone(s.favs), nil
}

// Clear removes every favorite
func (s *Service) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.commit([]domain.Favorite{}); err != nil {
		return err
	}
	s.loaded = true
	s.logger.Info("favorites cleared")
	return nil
}

// Search ranks favorites whose title fuzzy-matches query, best match first.
// An empty query returns the whole list.
func (s *Service) Search(query string) ([]domain.Favorite, error) {
	favs, err := s.List()
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return favs, nil
	}

	titles := make([]string, len(favs))
	for i, f := range favs {
		titles[i] = f.Title
	}

	matches := fuzzy.RankFindFold(query, titles)
	sort.Stable(matches)

	results := make([]domain.Favorite, 0, len(matches))
	for _, m := range matches {
		results = append(results, favs[m.OriginalIndex])
	}
	return results, nil
}

// exportFile is the TOML document written by Export
type exportFile struct {
	ExportedAt time.Time         `toml:"exported_at"`
	Favorites  []domain.Favorite `toml:"favorites"`
}

// Export writes the favorites to w as TOML
func (s *Service) Export(w io.Writer) error {
	favs, err := s.List()
	if err != nil {
		return err
	}
	enc := toml.NewEncoder(w)
	if err := enc.Encode(exportFile{ExportedAt: s.now().UTC(), Favorites: favs}); err != nil {
		return fmt.Errorf("encode favorites: %w", err)
	}
	return nil
}

// Import merges favorites exported by Export. Entries already present are
// kept as they are. It returns the number of favorites added.
func (s *Service) Import(r io.Reader) (int, error) {
	var doc exportFile
	if err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return 0, fmt.Errorf("decode favorites: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return 0, err
	}

	next := slices.Clone(s.favs)
	added := 0
	for _, f := range doc.Favorites {
		if f.ID <= 0 || slices.ContainsFunc(next, func(e domain.Favorite) bool { return e.ID == f.ID }) {
			continue
		}
		if f.AddedAt.IsZero() {
			f.AddedAt = s.now()
		}
		next = append(next, f)
		added++
	}
	if added == 0 {
		return 0, nil
	}

	sort.SliceStable(next, func(i, j int) bool { return next[i].AddedAt.After(next[j].AddedAt) })
	if err := s.commit(next); err != nil {
		return 0, err
	}
	s.logger.Info("favorites imported", "added", added)
	return added, nil
}
