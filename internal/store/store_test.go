package store

import (
	"testing"
	"time"

	"github.com/mmcdole/anidex/internal/domain"
)

func sampleFavorites() []domain.Favorite {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []domain.Favorite{
		{ID: 5114, Title: "Fullmetal Alchemist: Brotherhood", Score: 9.1, Type: "TV", AddedAt: base},
		{ID: 1, Title: "Cowboy Bebop", Episodes: 26, Genres: []domain.Genre{{ID: 1, Name: "Action"}}, AddedAt: base.Add(time.Hour)},
		{ID: 20, Title: "Naruto", AddedAt: base.Add(-time.Hour)},
	}
}

func checkOrder(t *testing.T, got []domain.Favorite, want ...int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("favs[%d].ID = %d, want %d", i, got[i].ID, id)
		}
	}
}

func testBackend(t *testing.T, open func() domain.FavoritesStore) {
	t.Helper()

	s := open()
	favs, err := s.Load()
	if err != nil {
		t.Fatalf("Load empty: %v", err)
	}
	if len(favs) != 0 {
		t.Fatalf("empty store returned %d favorites", len(favs))
	}

	if err := s.Save(sampleFavorites()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	favs, err = s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	checkOrder(t, favs, 1, 5114, 20)
	if favs[0].Genres[0].Name != "Action" || favs[0].Episodes != 26 {
		t.Errorf("fields not round-tripped: %+v", favs[0])
	}

	// Save replaces, it does not merge
	if err := s.Save(sampleFavorites()[:1]); err != nil {
		t.Fatalf("Save subset: %v", err)
	}
	favs, _ = s.Load()
	checkOrder(t, favs, 5114)
}

func TestBoltStoreMemoryOnly(t *testing.T) {
	testBackend(t, func() domain.FavoritesStore {
		s, err := NewBoltStore("")
		if err != nil {
			t.Fatalf("NewBoltStore: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestBoltStorePersistent(t *testing.T) {
	dir := t.TempDir()
	testBackend(t, func() domain.FavoritesStore {
		s, err := NewBoltStore(dir)
		if err != nil {
			t.Fatalf("NewBoltStore: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestBoltStoreReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := NewBoltStore(dir)
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	if err := s.Save(sampleFavorites()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = NewBoltStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	favs, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	checkOrder(t, favs, 1, 5114, 20)
	if !favs[1].AddedAt.Equal(sampleFavorites()[0].AddedAt) {
		t.Errorf("AddedAt = %v, want %v", favs[1].AddedAt, sampleFavorites()[0].AddedAt)
	}
}

func TestSQLiteStoreMemory(t *testing.T) {
	testBackend(t, func() domain.FavoritesStore {
		s, err := NewSQLiteStore(":memory:")
		if err != nil {
			t.Fatalf("NewSQLiteStore: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSQLiteStoreReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(BackendSQLite, dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Save(sampleFavorites()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s.Close()

	s, err = Open(BackendSQLite, dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	favs, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	checkOrder(t, favs, 1, 5114, 20)
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("redis", ""); err == nil {
		t.Fatal("Open(redis) succeeded, want error")
	}
}
