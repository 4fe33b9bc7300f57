// internal/lending/implementation.go
package lending

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"librarium/internal/fees"
)

// service implements the Service interface. Lifecycle operations fail fast:
// a step that fails partway leaves the effects of the completed sub-steps in
// place, except for the copy hold taken during authorization, which is
// released again when the status write fails.
type service struct {
	store      Store
	catalog    Catalog
	membership Membership
	log        *zap.Logger

	// dispatch runs best-effort side work after a mutation commits.
	dispatch func(func())
}

// NewService creates a new lending service instance.
func NewService(store Store, catalog Catalog, membership Membership, log *zap.Logger) Service {
	return &service{
		store:      store,
		catalog:    catalog,
		membership: membership,
		log:        log,
		dispatch:   func(task func()) { go task() },
	}
}

// notify delivers a message to a reader off the mutation path. Failures are
// logged and discarded.
func (s *service) notify(readerID uuid.UUID, message, severity string) {
	s.dispatch(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.membership.Notify(ctx, readerID, message, severity); err != nil {
			s.log.Warn("notification delivery failed",
				zap.String("reader_id", readerID.String()),
				zap.Error(err))
		}
	})
}

// CreateLoan validates the request and creates the loan in its initial
// state. An administrator-created loan starts Authorized and consumes a copy
// immediately; the initial-state shortcut never bypasses availability.
func (s *service) CreateLoan(ctx context.Context, req NewLoan) (*Loan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	reader, err := s.membership.GetReader(ctx, req.ReaderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reader: %w", err)
	}

	book, err := s.catalog.GetBook(ctx, req.BookID)
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	if book.Available <= 0 {
		return nil, faultNoCopies(book.Title)
	}

	outstanding, err := s.store.HasOutstanding(ctx, req.ReaderID)
	if err != nil {
		return nil, fmt.Errorf("failed to check outstanding loans: %w", err)
	}
	if outstanding {
		return nil, faultOutstanding(reader.Name)
	}

	loan := &Loan{
		ID:       uuid.New(),
		ReaderID: req.ReaderID,
		BookID:   req.BookID,
		LoanDate: req.LoanDate,
		DueDate:  req.DueDate,
		Status:   req.Status,
	}

	if req.Status == StatusAuthorized {
		if err := s.catalog.HoldCopy(ctx, req.BookID); err != nil {
			return nil, fmt.Errorf("failed to hold copy: %w", err)
		}
	}

	if err := s.store.InsertLoan(ctx, loan); err != nil {
		if req.Status == StatusAuthorized {
			s.releaseHeldCopy(ctx, req.BookID)
		}
		return nil, err
	}

	s.log.Info("loan created",
		zap.String("loan_id", loan.ID.String()),
		zap.String("reader_id", loan.ReaderID.String()),
		zap.String("status", string(loan.Status)))
	s.notify(reader.ID,
		fmt.Sprintf("Nuevo préstamo %s: %s", strings.ToLower(string(loan.Status)), book.Title),
		"info")
	return loan, nil
}

// releaseHeldCopy compensates a hold whose loan write failed.
func (s *service) releaseHeldCopy(ctx context.Context, bookID uuid.UUID) {
	s.log.Warn("compensating failed loan write, releasing held copy",
		zap.String("book_id", bookID.String()))
	if err := s.catalog.ReleaseCopy(ctx, bookID); err != nil {
		s.log.Error("failed to release held copy", zap.Error(err))
	}
}

func (s *service) GetLoan(ctx context.Context, id uuid.UUID) (*Loan, error) {
	return s.store.GetLoan(ctx, id)
}

func (s *service) ListLoans(ctx context.Context) ([]*Loan, error) {
	return s.store.ListLoans(ctx)
}

// Authorize moves a pending loan to Authorized, consuming one copy.
// Availability is re-checked here: the hold is a conditional decrement in
// the catalog, so two authorizations cannot share the last copy.
func (s *service) Authorize(ctx context.Context, id uuid.UUID) (*Loan, error) {
	loan, err := s.store.GetLoan(ctx, id)
	if err != nil {
		return nil, err
	}
	if loan.Status != StatusPending {
		return nil, faultNotPending("authorized", loan.Status)
	}

	book, err := s.catalog.GetBook(ctx, loan.BookID)
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}

	if err := s.catalog.HoldCopy(ctx, loan.BookID); err != nil {
		return nil, err
	}

	if err := s.store.UpdateLoanStatus(ctx, id, StatusAuthorized); err != nil {
		s.releaseHeldCopy(ctx, loan.BookID)
		return nil, err
	}
	loan.Status = StatusAuthorized

	s.log.Info("loan authorized", zap.String("loan_id", id.String()))
	s.notify(loan.ReaderID, fmt.Sprintf("Préstamo autorizado: %s", book.Title), "info")
	return loan, nil
}

// Reject moves a pending loan to Rejected. The book was never reserved, so
// availability is untouched.
func (s *service) Reject(ctx context.Context, id uuid.UUID) (*Loan, error) {
	loan, err := s.store.GetLoan(ctx, id)
	if err != nil {
		return nil, err
	}
	if loan.Status != StatusPending {
		return nil, faultNotPending("rejected", loan.Status)
	}

	book, err := s.catalog.GetBook(ctx, loan.BookID)
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}

	if err := s.store.UpdateLoanStatus(ctx, id, StatusRejected); err != nil {
		return nil, err
	}
	loan.Status = StatusRejected

	s.log.Info("loan rejected", zap.String("loan_id", id.String()))
	s.notify(loan.ReaderID, fmt.Sprintf("Préstamo rechazado: %s", book.Title), "error")
	return loan, nil
}

// Edit updates the dates of a non-terminal loan. No state transition, no
// availability change.
func (s *service) Edit(ctx context.Context, id uuid.UUID, loanDate, dueDate Date) (*Loan, error) {
	if loanDate.IsZero() || dueDate.IsZero() {
		return nil, faultDatesRequired()
	}
	if loanDate.After(dueDate.Time) {
		return nil, faultDateOrder(loanDate, dueDate)
	}

	loan, err := s.store.GetLoan(ctx, id)
	if err != nil {
		return nil, err
	}
	if loan.Status.Terminal() {
		return nil, faultTerminalEdit(loan.Status)
	}

	if err := s.store.UpdateLoanDates(ctx, id, loanDate, dueDate); err != nil {
		return nil, err
	}
	loan.LoanDate = loanDate
	loan.DueDate = dueDate
	return loan, nil
}

// DeleteLoan removes the loan record unconditionally. Availability changes
// made while the loan was active are not reversed.
func (s *service) DeleteLoan(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteLoan(ctx, id); err != nil {
		return err
	}
	s.log.Info("loan deleted", zap.String("loan_id", id.String()))
	return nil
}

// ProcessReturn closes an authorized loan: it records the return with the
// computed lateness and fee, marks the loan Returned, puts the copy back,
// and notifies the reader. The notification is best-effort; the three data
// effects fail fast with no compensation.
func (s *service) ProcessReturn(ctx context.Context, loanID uuid.UUID, returnDate Date, note string) (*Return, error) {
	loan, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != StatusAuthorized {
		return nil, faultNotAuthorized(loan.Status)
	}

	book, err := s.catalog.GetBook(ctx, loan.BookID)
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}

	if returnDate.IsZero() {
		returnDate = Today()
	}

	daysLate := fees.DaysLate(loan.DueDate.Time, returnDate.Time)
	amount := fees.Fee(daysLate)
	if note == "" {
		note = defaultNote(daysLate, amount)
	}

	ret := &Return{
		ID:         uuid.New(),
		LoanID:     loan.ID,
		ReturnDate: returnDate,
		DaysLate:   daysLate,
		Amount:     amount,
		Note:       note,
	}

	if err := s.store.InsertReturn(ctx, ret); err != nil {
		return nil, err
	}
	if err := s.store.UpdateLoanStatus(ctx, loanID, StatusReturned); err != nil {
		return nil, fmt.Errorf("return recorded but loan not closed: %w", err)
	}
	if err := s.catalog.ReleaseCopy(ctx, loan.BookID); err != nil {
		return nil, fmt.Errorf("return recorded but copy not released: %w", err)
	}

	s.log.Info("return processed",
		zap.String("loan_id", loanID.String()),
		zap.Int("days_late", daysLate),
		zap.String("amount", amount.StringFixed(2)))
	s.notify(loan.ReaderID, fmt.Sprintf("Devolución registrada: %s", book.Title), "success")
	return ret, nil
}

func (s *service) ListReturns(ctx context.Context) ([]*Return, error) {
	return s.store.ListReturns(ctx)
}

func (s *service) DeleteReturn(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteReturn(ctx, id)
}
