// Package postgres holds the shared database plumbing for the store
// services: connection setup and translation of Postgres constraint
// violations into taxonomy faults.
package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"librarium/internal/fault"
)

// Open connects to the database and verifies the connection.
func Open(url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// MapError translates constraint violations into faults so handlers answer
// with the right status; everything else is wrapped with the message.
func MapError(err error, message string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return fault.Conflict("%s: already exists", message)
		case "23503": // foreign_key_violation
			return fault.Conflict("%s: referenced by existing records", message)
		case "23514": // check_violation
			return fault.Validation("%s: %s", message, pqErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", message, err)
}
