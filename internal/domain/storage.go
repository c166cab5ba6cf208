package domain

// FavoritesStore persists the favorites list.
// Implementations: store.BoltStore (bbolt) and store.SQLiteStore (sqlite).
type FavoritesStore interface {
	// Load returns all persisted favorites (empty, not an error, when none exist)
	Load() ([]Favorite, error)

	// Save replaces the persisted favorites with favs
	Save(favs []Favorite) error

	// Close releases the underlying storage
	Close() error
}
