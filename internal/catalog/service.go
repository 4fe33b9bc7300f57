// internal/catalog/service.go
package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the catalog service.
type Service interface {
	AddBook(ctx context.Context, req NewBook) (*Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)
	ListBooks(ctx context.Context) ([]*Book, error)
	UpdateBook(ctx context.Context, id uuid.UUID, upd BookUpdate) (*Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error

	// HoldCopy consumes one available copy. It is an atomic
	// check-and-decrement: with one copy left, only one of two concurrent
	// holds succeeds.
	HoldCopy(ctx context.Context, id uuid.UUID) error

	// ReleaseCopy puts one copy back after a completed return.
	ReleaseCopy(ctx context.Context, id uuid.UUID) error
}
