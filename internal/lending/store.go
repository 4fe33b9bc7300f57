// internal/lending/store.go
package lending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"librarium/internal/fault"
	"librarium/internal/postgres"
)

// Store persists loans and returns.
type Store interface {
	InsertLoan(ctx context.Context, loan *Loan) error
	GetLoan(ctx context.Context, id uuid.UUID) (*Loan, error)
	ListLoans(ctx context.Context) ([]*Loan, error)
	UpdateLoanStatus(ctx context.Context, id uuid.UUID, status Status) error
	UpdateLoanDates(ctx context.Context, id uuid.UUID, loanDate, dueDate Date) error
	DeleteLoan(ctx context.Context, id uuid.UUID) error

	// HasOutstanding reports whether the reader holds a loan in Pending or
	// Authorized state.
	HasOutstanding(ctx context.Context, readerID uuid.UUID) (bool, error)

	InsertReturn(ctx context.Context, ret *Return) error
	ListReturns(ctx context.Context) ([]*Return, error)
	DeleteReturn(ctx context.Context, id uuid.UUID) error
}

// postgresStore implements Store on the shared database.
type postgresStore struct {
	db     *sql.DB
	tracer trace.Tracer
}

// NewPostgresStore creates the Postgres-backed loan store.
func NewPostgresStore(db *sql.DB) Store {
	return &postgresStore{
		db:     db,
		tracer: otel.Tracer("librarium/lending/store"),
	}
}

const loanColumns = `id, reader_id, book_id, loan_date, due_date, status, created_at, updated_at`

func scanLoan(row interface{ Scan(...any) error }) (*Loan, error) {
	loan := &Loan{}
	err := row.Scan(
		&loan.ID,
		&loan.ReaderID,
		&loan.BookID,
		&loan.LoanDate,
		&loan.DueDate,
		&loan.Status,
		&loan.CreatedAt,
		&loan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return loan, nil
}

func (s *postgresStore) InsertLoan(ctx context.Context, loan *Loan) error {
	ctx, span := s.tracer.Start(ctx, "lending.store.InsertLoan")
	defer span.End()
	span.SetAttributes(attribute.String("loan.id", loan.ID.String()))

	query := `
		INSERT INTO loans (id, reader_id, book_id, loan_date, due_date, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		loan.ID, loan.ReaderID, loan.BookID, loan.LoanDate, loan.DueDate, loan.Status).
		Scan(&loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		return postgres.MapError(err, "failed to insert loan")
	}
	return nil
}

func (s *postgresStore) GetLoan(ctx context.Context, id uuid.UUID) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "lending.store.GetLoan")
	defer span.End()

	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	loan, err := scanLoan(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fault.NotFound("loan %s not found", id)
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

func (s *postgresStore) ListLoans(ctx context.Context) ([]*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "lending.store.ListLoans")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `SELECT `+loanColumns+` FROM loans ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var loans []*Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

func (s *postgresStore) UpdateLoanStatus(ctx context.Context, id uuid.UUID, status Status) error {
	ctx, span := s.tracer.Start(ctx, "lending.store.UpdateLoanStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("loan.id", id.String()),
		attribute.String("loan.status", string(status)),
	)

	res, err := s.db.ExecContext(ctx,
		`UPDATE loans SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return postgres.MapError(err, "failed to update loan status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.NotFound("loan %s not found", id)
	}
	return nil
}

func (s *postgresStore) UpdateLoanDates(ctx context.Context, id uuid.UUID, loanDate, dueDate Date) error {
	ctx, span := s.tracer.Start(ctx, "lending.store.UpdateLoanDates")
	defer span.End()
	span.SetAttributes(attribute.String("loan.id", id.String()))

	res, err := s.db.ExecContext(ctx,
		`UPDATE loans SET loan_date = $1, due_date = $2, updated_at = NOW() WHERE id = $3`,
		loanDate, dueDate, id)
	if err != nil {
		return postgres.MapError(err, "failed to update loan dates")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.NotFound("loan %s not found", id)
	}
	return nil
}

func (s *postgresStore) DeleteLoan(ctx context.Context, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "lending.store.DeleteLoan")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `DELETE FROM loans WHERE id = $1`, id)
	if err != nil {
		return postgres.MapError(err, "failed to delete loan")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.NotFound("loan %s not found", id)
	}
	return nil
}

func (s *postgresStore) HasOutstanding(ctx context.Context, readerID uuid.UUID) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "lending.store.HasOutstanding")
	defer span.End()

	query := `
		SELECT EXISTS (
			SELECT 1 FROM loans
			WHERE reader_id = $1 AND status IN ($2, $3)
		)
	`
	var outstanding bool
	err := s.db.QueryRowContext(ctx, query, readerID, StatusPending, StatusAuthorized).Scan(&outstanding)
	if err != nil {
		return false, fmt.Errorf("failed to check outstanding loans: %w", err)
	}
	return outstanding, nil
}

func (s *postgresStore) InsertReturn(ctx context.Context, ret *Return) error {
	ctx, span := s.tracer.Start(ctx, "lending.store.InsertReturn")
	defer span.End()
	span.SetAttributes(attribute.String("return.loan_id", ret.LoanID.String()))

	query := `
		INSERT INTO returns (id, loan_id, return_date, days_late, amount, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := s.db.QueryRowContext(ctx, query,
		ret.ID, ret.LoanID, ret.ReturnDate, ret.DaysLate, ret.Amount, ret.Note).
		Scan(&ret.CreatedAt)
	if err != nil {
		return postgres.MapError(err, "failed to insert return")
	}
	return nil
}

func (s *postgresStore) ListReturns(ctx context.Context) ([]*Return, error) {
	ctx, span := s.tracer.Start(ctx, "lending.store.ListReturns")
	defer span.End()

	query := `
		SELECT id, loan_id, return_date, days_late, amount, note, created_at
		FROM returns
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list returns: %w", err)
	}
	defer rows.Close()

	var returns []*Return
	for rows.Next() {
		ret := &Return{}
		err := rows.Scan(&ret.ID, &ret.LoanID, &ret.ReturnDate, &ret.DaysLate, &ret.Amount, &ret.Note, &ret.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan return: %w", err)
		}
		returns = append(returns, ret)
	}
	return returns, rows.Err()
}

func (s *postgresStore) DeleteReturn(ctx context.Context, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "lending.store.DeleteReturn")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `DELETE FROM returns WHERE id = $1`, id)
	if err != nil {
		return postgres.MapError(err, "failed to delete return")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.NotFound("return %s not found", id)
	}
	return nil
}
