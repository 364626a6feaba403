package identity

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hkacimi/studymate/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS identity (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`

// Keys mirror the browser front-end's local storage entries so a stored
// identity survives restarts the same way.
const (
	keyUserID   = "userId"
	keyProvider = "userProvider"
)

// SQLiteStore persists the identity in a local database file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load() (models.Identity, bool, error) {
	rows, err := s.db.Query(
		"SELECT key, value FROM identity WHERE key IN (?, ?)",
		keyUserID, keyProvider)
	if err != nil {
		return models.Identity{}, false, err
	}
	defer rows.Close()

	var id models.Identity
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return models.Identity{}, false, err
		}
		switch key {
		case keyUserID:
			id.UserID = value
		case keyProvider:
			id.Provider = value
		}
	}
	if err := rows.Err(); err != nil {
		return models.Identity{}, false, err
	}

	// Both entries must be present for the identity to count.
	if id.UserID == "" || id.Provider == "" {
		return models.Identity{}, false, nil
	}
	return id, true, nil
}

func (s *SQLiteStore) Save(id models.Identity) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const upsert = `
        INSERT INTO identity (key, value) VALUES (?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value`

	if _, err := tx.Exec(upsert, keyUserID, id.UserID); err != nil {
		return err
	}
	if _, err := tx.Exec(upsert, keyProvider, id.Provider); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStore) Clear() error {
	_, err := s.db.Exec("DELETE FROM identity")
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
