// Package store provides the data access layer for the ingestion engine.
//
// A single embedded sqlite database backs the dedup index, the analysis
// cache, the metrics recorder, and the run log. All access happens through
// single statements or short transactions; no lock is ever held across a
// network call.
package store

import "database/sql"

// Store wraps the engine database.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}
