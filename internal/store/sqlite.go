package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mmcdole/anidex/internal/domain"
)

// SQLiteStore implements domain.FavoritesStore on SQLite.
// Safe for concurrent use via internal mutex.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens the database at dbPath, creating the schema.
// ":memory:" gives a private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS favorites (
		mal_id INTEGER PRIMARY KEY,
		data TEXT NOT NULL,
		added_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_favorites_added ON favorites(added_at DESC);
	`)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns every stored favorite, newest first
func (s *SQLiteStore) Load() ([]domain.Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT mal_id, data FROM favorites ORDER BY added_at DESC, mal_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}
	defer rows.Close()

	favs := []domain.Favorite{}
	for rows.Next() {
		var id int
		var data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		var f domain.Favorite
		if err := json.Unmarshal([]byte(data), &f); err != nil {
			return nil, fmt.Errorf("favorite %d: %w", id, err)
		}
		favs = append(favs, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// added_at text ordering is not reliable across time zones
	sortNewestFirst(favs)
	return favs, nil
}

// Save replaces the stored favorites with favs in one transaction
func (s *SQLiteStore) Save(favs []domain.Favorite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM favorites`); err != nil {
		return fmt.Errorf("clear favorites: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO favorites (mal_id, data, added_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range favs {
		data, err := json.Marshal(f)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(f.ID, string(data), f.AddedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("insert favorite %d: %w", f.ID, err)
		}
	}

	return tx.Commit()
}

var _ domain.FavoritesStore = (*SQLiteStore)(nil)
