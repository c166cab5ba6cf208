// Package store persists the favorites list.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mmcdole/anidex/internal/domain"
)

// Backends selectable in config
const (
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
)

var bucketFavorites = []byte("favorites")

// Open returns the favorites store for backend, rooted in dir.
// An empty dir keeps everything in memory.
func Open(backend, dir string) (domain.FavoritesStore, error) {
	switch backend {
	case "", BackendBolt:
		return NewBoltStore(dir)
	case BackendSQLite:
		if dir == "" {
			return NewSQLiteStore(":memory:")
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		return NewSQLiteStore(filepath.Join(dir, "favorites.sqlite"))
	default:
		return nil, fmt.Errorf("unknown favorites backend %q", backend)
	}
}

// BoltStore implements domain.FavoritesStore using BoltDB.
// One key per favorite, JSON encoded.
type BoltStore struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory copy of the bucket, filled on first Load
	cache  map[int][]byte
	loaded bool
}

// NewBoltStore opens dir/anidex.db. An empty dir selects memory-only mode.
func NewBoltStore(dir string) (*BoltStore, error) {
	if dir == "" {
		// Memory-only mode (no persistence)
		return &BoltStore{cache: make(map[int][]byte), loaded: true}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "anidex.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketFavorites)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, cache: make(map[int][]byte)}, nil
}

func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Load returns every stored favorite, newest first
func (s *BoltStore) Load() ([]domain.Favorite, error) {
	if err := s.fill(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	favs := make([]domain.Favorite, 0, len(s.cache))
	for id, data := range s.cache {
		var f domain.Favorite
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("favorite %d: %w", id, err)
		}
		favs = append(favs, f)
	}
	sortNewestFirst(favs)
	return favs, nil
}

// Save replaces the stored favorites with favs
func (s *BoltStore) Save(favs []domain.Favorite) error {
	next := make(map[int][]byte, len(favs))
	for _, f := range favs {
		data, err := json.Marshal(f)
		if err != nil {
			return err
		}
		next[f.ID] = data
	}

	if s.db != nil {
		err := s.db.Update(func(tx *bolt.Tx) error {
			if err := tx.DeleteBucket(bucketFavorites); err != nil && err != bolt.ErrBucketNotFound {
				return err
			}
			b, err := tx.CreateBucket(bucketFavorites)
			if err != nil {
				return err
			}
			for id, data := range next {
				if err := b.Put(boltKey(id), data); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to save favorites: %w", err)
		}
	}

	s.mu.Lock()
	s.cache = next
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// fill reads the bucket into memory once
func (s *BoltStore) fill() error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded || s.db == nil {
		return nil
	}

	cache := make(map[int][]byte)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFavorites)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			id, err := strconv.Atoi(string(k))
			if err != nil {
				return nil // not ours
			}
			data := make([]byte, len(v))
			copy(data, v)
			cache[id] = data
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("failed to read favorites: %w", err)
	}

	s.mu.Lock()
	if !s.loaded {
		s.cache = cache
		s.loaded = true
	}
	s.mu.Unlock()
	return nil
}

// boltKey zero-pads ids so keys sort numerically
func boltKey(id int) []byte {
	return []byte(fmt.Sprintf("%010d", id))
}

func sortNewestFirst(favs []domain.Favorite) {
	sort.SliceStable(favs, func(i, j int) bool {
		if favs[i].AddedAt.Equal(favs[j].AddedAt) {
			return favs[i].ID < favs[j].ID
		}
		return favs[i].AddedAt.After(favs[j].AddedAt)
	})
}

var _ domain.FavoritesStore = (*BoltStore)(nil)
