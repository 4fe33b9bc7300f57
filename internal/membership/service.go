// internal/membership/service.go
package membership

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the membership service.
type Service interface {
	RegisterReader(ctx context.Context, req Registration) (*Reader, error)
	Authenticate(ctx context.Context, email, password string) (*Reader, error)
	GetReader(ctx context.Context, id uuid.UUID) (*Reader, error)
	ListReaders(ctx context.Context) ([]*Reader, error)
	UpdateReader(ctx context.Context, id uuid.UUID, upd ReaderUpdate) (*Reader, error)
	DeleteReader(ctx context.Context, id uuid.UUID) error

	Notify(ctx context.Context, readerID uuid.UUID, message, severity string) (*Notification, error)
	ListNotifications(ctx context.Context, readerID uuid.UUID) ([]*Notification, error)
}
