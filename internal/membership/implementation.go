// internal/membership/implementation.go
package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"librarium/internal/fault"
	"librarium/internal/postgres"
)

// service implements the Service interface.
type service struct {
	db          *sql.DB
	log         *zap.Logger
	tracer      trace.Tracer
	rateLimiter *rate.Limiter
}

// NewService creates a new membership service instance.
func NewService(db *sql.DB, log *zap.Logger) Service {
	return &service{
		db:          db,
		log:         log,
		tracer:      otel.Tracer("librarium/membership"),
		rateLimiter: rate.NewLimiter(rate.Every(time.Second), 20), // credential operations only
	}
}

// RegisterReader creates a new reader with a hashed credential.
func (s *service) RegisterReader(ctx context.Context, req Registration) (*Reader, error) {
	ctx, span := s.tracer.Start(ctx, "membership.RegisterReader")
	defer span.End()

	if !s.rateLimiter.Allow() {
		return nil, fault.Availability("too many credential operations, retry later")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	passwordHash, salt, err := hashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	reader := &Reader{
		ID:    uuid.New(),
		Name:  req.Name,
		Email: NormalizeEmail(req.Email),
		Role:  req.Role,
	}
	span.SetAttributes(attribute.String("reader.id", reader.ID.String()))

	if err := s.insertReader(ctx, reader, passwordHash, salt); err != nil {
		return nil, err
	}

	s.log.Info("reader registered",
		zap.String("reader_id", reader.ID.String()),
		zap.String("role", reader.Role))
	return s.GetReader(ctx, reader.ID)
}

func (s *service) insertReader(ctx context.Context, reader *Reader, passwordHash, salt string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	readerQuery := `
		INSERT INTO readers (id, name, email, role)
		VALUES ($1, $2, $3, $4)
	`
	if _, err = tx.ExecContext(ctx, readerQuery, reader.ID, reader.Name, reader.Email, reader.Role); err != nil {
		return postgres.MapError(err, "failed to insert reader")
	}

	credQuery := `
		INSERT INTO credentials (reader_id, password_hash, salt)
		VALUES ($1, $2, $3)
	`
	if _, err = tx.ExecContext(ctx, credQuery, reader.ID, passwordHash, salt); err != nil {
		return postgres.MapError(err, "failed to insert credential")
	}

	return tx.Commit()
}

// Authenticate verifies a reader's credentials and returns the reader if successful.
func (s *service) Authenticate(ctx context.Context, email, password string) (*Reader, error) {
	ctx, span := s.tracer.Start(ctx, "membership.Authenticate")
	defer span.End()

	if !s.rateLimiter.Allow() {
		return nil, fault.Availability("too many credential operations, retry later")
	}

	reader, err := s.getReaderByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, fault.Validation("invalid credentials")
	}

	credential, err := s.getCredential(ctx, reader.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}

	ok, err := verifyPassword(password, credential.Salt, credential.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return nil, fault.Validation("invalid credentials")
	}

	return reader, nil
}

const readerColumns = `id, name, email, role, created_at, updated_at`

func scanReader(row interface{ Scan(...any) error }) (*Reader, error) {
	reader := &Reader{}
	err := row.Scan(
		&reader.ID,
		&reader.Name,
		&reader.Email,
		&reader.Role,
		&reader.CreatedAt,
		&reader.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return reader, nil
}

func (s *service) getReaderByEmail(ctx context.Context, email string) (*Reader, error) {
	query := `SELECT ` + readerColumns + ` FROM readers WHERE email = $1`
	return scanReader(s.db.QueryRowContext(ctx, query, email))
}

func (s *service) getCredential(ctx context.Context, readerID uuid.UUID) (*Credential, error) {
	query := `SELECT reader_id, password_hash, salt FROM credentials WHERE reader_id = $1`
	credential := &Credential{}
	err := s.db.QueryRowContext(ctx, query, readerID).Scan(
		&credential.ReaderID,
		&credential.PasswordHash,
		&credential.Salt,
	)
	if err != nil {
		return nil, err
	}
	return credential, nil
}

// GetReader retrieves a reader by ID.
func (s *service) GetReader(ctx context.Context, id uuid.UUID) (*Reader, error) {
	ctx, span := s.tracer.Start(ctx, "membership.GetReader")
	defer span.End()

	query := `SELECT ` + readerColumns + ` FROM readers WHERE id = $1`
	reader, err := scanReader(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fault.NotFound("reader %s not found", id)
		}
		return nil, fmt.Errorf("failed to get reader: %w", err)
	}
	return reader, nil
}

// ListReaders returns the whole directory.
func (s *service) ListReaders(ctx context.Context) ([]*Reader, error) {
	ctx, span := s.tracer.Start(ctx, "membership.ListReaders")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `SELECT `+readerColumns+` FROM readers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list readers: %w", err)
	}
	defer rows.Close()

	var readers []*Reader
	for rows.Next() {
		reader, err := scanReader(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reader: %w", err)
		}
		readers = append(readers, reader)
	}
	return readers, rows.Err()
}

// UpdateReader merges a validated update; a supplied password re-hashes the
// stored credential.
func (s *service) UpdateReader(ctx context.Context, id uuid.UUID, upd ReaderUpdate) (*Reader, error) {
	ctx, span := s.tracer.Start(ctx, "membership.UpdateReader")
	defer span.End()
	span.SetAttributes(attribute.String("reader.id", id.String()))

	if err := upd.Validate(); err != nil {
		return nil, err
	}

	reader, err := s.GetReader(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		reader.Name = *upd.Name
	}
	if upd.Email != nil {
		reader.Email = NormalizeEmail(*upd.Email)
	}
	if upd.Role != nil {
		reader.Role = *upd.Role
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := `
		UPDATE readers
		SET name = $1, email = $2, role = $3, updated_at = NOW()
		WHERE id = $4
	`
	if _, err = tx.ExecContext(ctx, query, reader.Name, reader.Email, reader.Role, id); err != nil {
		return nil, postgres.MapError(err, "failed to update reader")
	}

	if upd.Password != nil {
		passwordHash, salt, err := hashPassword(*upd.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		credQuery := `
			UPDATE credentials
			SET password_hash = $1, salt = $2
			WHERE reader_id = $3
		`
		if _, err = tx.ExecContext(ctx, credQuery, passwordHash, salt, id); err != nil {
			return nil, postgres.MapError(err, "failed to update credential")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetReader(ctx, id)
}

// DeleteReader removes a reader; the database rejects the delete while loans
// still reference the reader.
func (s *service) DeleteReader(ctx context.Context, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "membership.DeleteReader")
	defer span.End()
	span.SetAttributes(attribute.String("reader.id", id.String()))

	res, err := s.db.ExecContext(ctx, `DELETE FROM readers WHERE id = $1`, id)
	if err != nil {
		return postgres.MapError(err, "failed to delete reader")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.NotFound("reader %s not found", id)
	}
	return nil
}

// Notify stores a message for a reader.
func (s *service) Notify(ctx context.Context, readerID uuid.UUID, message, severity string) (*Notification, error) {
	ctx, span := s.tracer.Start(ctx, "membership.Notify")
	defer span.End()
	span.SetAttributes(attribute.String("reader.id", readerID.String()))

	if message == "" {
		return nil, fault.Validation("notification message is required")
	}
	if severity == "" {
		severity = "info"
	}

	notification := &Notification{
		ID:       uuid.New(),
		ReaderID: readerID,
		Message:  message,
		Severity: severity,
	}

	query := `
		INSERT INTO notifications (id, reader_id, message, severity)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := s.db.QueryRowContext(ctx, query,
		notification.ID, readerID, message, severity).Scan(&notification.CreatedAt)
	if err != nil {
		return nil, postgres.MapError(err, "failed to store notification")
	}
	return notification, nil
}

// ListNotifications returns a reader's stored messages, newest first.
func (s *service) ListNotifications(ctx context.Context, readerID uuid.UUID) ([]*Notification, error) {
	ctx, span := s.tracer.Start(ctx, "membership.ListNotifications")
	defer span.End()

	query := `
		SELECT id, reader_id, message, severity, created_at
		FROM notifications
		WHERE reader_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, readerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		n := &Notification{}
		if err := rows.Scan(&n.ID, &n.ReaderID, &n.Message, &n.Severity, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}
