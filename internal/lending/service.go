// internal/lending/service.go
package lending

import (
	"context"

	"github.com/google/uuid"

	"librarium/internal/catalog"
	"librarium/internal/membership"
)

// Service defines the interface for the lending service.
type Service interface {
	CreateLoan(ctx context.Context, req NewLoan) (*Loan, error)
	GetLoan(ctx context.Context, id uuid.UUID) (*Loan, error)
	ListLoans(ctx context.Context) ([]*Loan, error)
	Authorize(ctx context.Context, id uuid.UUID) (*Loan, error)
	Reject(ctx context.Context, id uuid.UUID) (*Loan, error)
	Edit(ctx context.Context, id uuid.UUID, loanDate, dueDate Date) (*Loan, error)
	DeleteLoan(ctx context.Context, id uuid.UUID) error

	ProcessReturn(ctx context.Context, loanID uuid.UUID, returnDate Date, note string) (*Return, error)
	ListReturns(ctx context.Context) ([]*Return, error)
	DeleteReturn(ctx context.Context, id uuid.UUID) error
}

// Catalog is the slice of the book catalog the lifecycle needs. HoldCopy is
// the atomic availability check-and-decrement; it fails with an availability
// fault when no copy is left.
type Catalog interface {
	GetBook(ctx context.Context, id uuid.UUID) (*catalog.Book, error)
	HoldCopy(ctx context.Context, id uuid.UUID) error
	ReleaseCopy(ctx context.Context, id uuid.UUID) error
}

// Membership is the slice of the reader directory the lifecycle needs.
// Notify is best-effort on the lending side: delivery failures are logged
// and discarded.
type Membership interface {
	GetReader(ctx context.Context, id uuid.UUID) (*membership.Reader, error)
	Notify(ctx context.Context, readerID uuid.UUID, message, severity string) error
}
