// To handle all database interactions. This is our data access layer,
// keeping SQL queries separate from the processing logic.

package store

import (
	"database/sql"
	"errors"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

// Store provides all functions to interact with the history database.
type Store struct {
	db *sql.DB
}

// New creates a new Store instance.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ping checks that the database is reachable.
func (s *Store) Ping() error {
	return s.db.Ping()
}
