// internal/catalog/implementation.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"librarium/internal/fault"
	"librarium/internal/postgres"
)

// service implements the Service interface on top of Postgres.
type service struct {
	db     *sql.DB
	log    *zap.Logger
	tracer trace.Tracer
}

// NewService creates a new catalog service instance.
func NewService(db *sql.DB, log *zap.Logger) Service {
	return &service{
		db:     db,
		log:    log,
		tracer: otel.Tracer("librarium/catalog"),
	}
}

const bookColumns = `id, title, author, publisher, year, genre, isbn, available, created_at, updated_at`

func scanBook(row interface{ Scan(...any) error }) (*Book, error) {
	book := &Book{}
	err := row.Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.Publisher,
		&book.Year,
		&book.Genre,
		&book.ISBN,
		&book.Available,
		&book.CreatedAt,
		&book.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return book, nil
}

// AddBook catalogues a new title.
func (s *service) AddBook(ctx context.Context, req NewBook) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.AddBook")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	span.SetAttributes(attribute.String("book.id", id.String()))

	query := `
		INSERT INTO books (id, title, author, publisher, year, genre, isbn, available)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + bookColumns
	book, err := scanBook(s.db.QueryRowContext(ctx, query,
		id, req.Title, req.Author, req.Publisher, req.Year, req.Genre, req.ISBN, req.Available))
	if err != nil {
		return nil, postgres.MapError(err, "failed to insert book")
	}

	s.log.Info("book catalogued", zap.String("book_id", id.String()), zap.String("title", req.Title))
	return book, nil
}

// GetBook retrieves a book by its ID.
func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.GetBook")
	defer span.End()

	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1`
	book, err := scanBook(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fault.NotFound("book %s not found", id)
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return book, nil
}

// ListBooks returns the whole catalog.
func (s *service) ListBooks(ctx context.Context) ([]*Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.ListBooks")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY title, author`)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// UpdateBook merges a validated update into the stored book.
func (s *service) UpdateBook(ctx context.Context, id uuid.UUID, upd BookUpdate) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.UpdateBook")
	defer span.End()
	span.SetAttributes(attribute.String("book.id", id.String()))

	if err := upd.Validate(); err != nil {
		return nil, err
	}

	book, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	upd.Apply(book)

	query := `
		UPDATE books
		SET title = $1, author = $2, publisher = $3, year = $4, genre = $5, isbn = $6,
			available = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING ` + bookColumns
	book, err = scanBook(s.db.QueryRowContext(ctx, query,
		book.Title, book.Author, book.Publisher, book.Year, book.Genre, book.ISBN, book.Available, id))
	if err != nil {
		return nil, postgres.MapError(err, "failed to update book")
	}
	return book, nil
}

// DeleteBook removes a book. The database rejects the delete while loans
// still reference the book.
func (s *service) DeleteBook(ctx context.Context, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "catalog.DeleteBook")
	defer span.End()
	span.SetAttributes(attribute.String("book.id", id.String()))

	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return postgres.MapError(err, "failed to delete book")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.NotFound("book %s not found", id)
	}
	return nil
}

// HoldCopy decrements the available-copy count only when a copy is left.
func (s *service) HoldCopy(ctx context.Context, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "catalog.HoldCopy")
	defer span.End()
	span.SetAttributes(attribute.String("book.id", id.String()))

	query := `
		UPDATE books
		SET available = available - 1, updated_at = NOW()
		WHERE id = $1 AND available > 0
		RETURNING available`
	var remaining int
	err := s.db.QueryRowContext(ctx, query, id).Scan(&remaining)
	if err == nil {
		s.log.Info("copy held", zap.String("book_id", id.String()), zap.Int("remaining", remaining))
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to hold copy: %w", err)
	}

	// No row matched: either the book is unknown or no copy is left.
	book, getErr := s.GetBook(ctx, id)
	if getErr != nil {
		return getErr
	}
	return fault.Availability("book %q has no available copies", book.Title)
}

// ReleaseCopy adds one copy back to the available count.
func (s *service) ReleaseCopy(ctx context.Context, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "catalog.ReleaseCopy")
	defer span.End()
	span.SetAttributes(attribute.String("book.id", id.String()))

	res, err := s.db.ExecContext(ctx,
		`UPDATE books SET available = available + 1, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to release copy: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.NotFound("book %s not found", id)
	}
	return nil
}

