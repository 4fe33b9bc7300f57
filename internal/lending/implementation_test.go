package lending

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"librarium/internal/catalog"
	"librarium/internal/fault"
	"librarium/internal/membership"
)

// fakeStore is an in-memory Store with error injection.
type fakeStore struct {
	loans   map[uuid.UUID]*Loan
	returns map[uuid.UUID]*Return

	insertLoanErr   error
	updateStatusErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{loans: map[uuid.UUID]*Loan{}, returns: map[uuid.UUID]*Return{}}
}

func (f *fakeStore) InsertLoan(_ context.Context, loan *Loan) error {
	if f.insertLoanErr != nil {
		return f.insertLoanErr
	}
	copied := *loan
	f.loans[loan.ID] = &copied
	return nil
}

func (f *fakeStore) GetLoan(_ context.Context, id uuid.UUID) (*Loan, error) {
	loan, ok := f.loans[id]
	if !ok {
		return nil, fault.NotFound("loan %s not found", id)
	}
	copied := *loan
	return &copied, nil
}

func (f *fakeStore) ListLoans(context.Context) ([]*Loan, error) {
	var loans []*Loan
	for _, l := range f.loans {
		loans = append(loans, l)
	}
	return loans, nil
}

func (f *fakeStore) UpdateLoanStatus(_ context.Context, id uuid.UUID, status Status) error {
	if f.updateStatusErr != nil {
		return f.updateStatusErr
	}
	loan, ok := f.loans[id]
	if !ok {
		return fault.NotFound("loan %s not found", id)
	}
	loan.Status = status
	return nil
}

func (f *fakeStore) UpdateLoanDates(_ context.Context, id uuid.UUID, loanDate, dueDate Date) error {
	loan, ok := f.loans[id]
	if !ok {
		return fault.NotFound("loan %s not found", id)
	}
	loan.LoanDate = loanDate
	loan.DueDate = dueDate
	return nil
}

func (f *fakeStore) DeleteLoan(_ context.Context, id uuid.UUID) error {
	if _, ok := f.loans[id]; !ok {
		return fault.NotFound("loan %s not found", id)
	}
	delete(f.loans, id)
	return nil
}

func (f *fakeStore) HasOutstanding(_ context.Context, readerID uuid.UUID) (bool, error) {
	for _, l := range f.loans {
		if l.ReaderID == readerID && (l.Status == StatusPending || l.Status == StatusAuthorized) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) InsertReturn(_ context.Context, ret *Return) error {
	copied := *ret
	f.returns[ret.ID] = &copied
	return nil
}

func (f *fakeStore) ListReturns(context.Context) ([]*Return, error) {
	var returns []*Return
	for _, r := range f.returns {
		returns = append(returns, r)
	}
	return returns, nil
}

func (f *fakeStore) DeleteReturn(_ context.Context, id uuid.UUID) error {
	if _, ok := f.returns[id]; !ok {
		return fault.NotFound("return %s not found", id)
	}
	delete(f.returns, id)
	return nil
}

// fakeCatalog applies the same conditional-decrement rule as the real store.
type fakeCatalog struct {
	books map[uuid.UUID]*catalog.Book
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{books: map[uuid.UUID]*catalog.Book{}}
}

func (f *fakeCatalog) addBook(title string, available int) *catalog.Book {
	book := &catalog.Book{ID: uuid.New(), Title: title, Author: "Anon", Available: available}
	f.books[book.ID] = book
	return book
}

func (f *fakeCatalog) GetBook(_ context.Context, id uuid.UUID) (*catalog.Book, error) {
	book, ok := f.books[id]
	if !ok {
		return nil, fault.NotFound("book %s not found", id)
	}
	copied := *book
	return &copied, nil
}

func (f *fakeCatalog) HoldCopy(_ context.Context, id uuid.UUID) error {
	book, ok := f.books[id]
	if !ok {
		return fault.NotFound("book %s not found", id)
	}
	if book.Available <= 0 {
		return fault.Availability("book %q has no available copies", book.Title)
	}
	book.Available--
	return nil
}

func (f *fakeCatalog) ReleaseCopy(_ context.Context, id uuid.UUID) error {
	book, ok := f.books[id]
	if !ok {
		return fault.NotFound("book %s not found", id)
	}
	book.Available++
	return nil
}

type sentNotification struct {
	readerID uuid.UUID
	message  string
	severity string
}

type fakeMembership struct {
	mu            sync.Mutex
	readers       map[uuid.UUID]*membership.Reader
	notifications []sentNotification
	notifyErr     error
}

func newFakeMembership() *fakeMembership {
	return &fakeMembership{readers: map[uuid.UUID]*membership.Reader{}}
}

func (f *fakeMembership) addReader(name string) *membership.Reader {
	reader := &membership.Reader{ID: uuid.New(), Name: name, Email: name + "@example.com", Role: membership.RoleReader}
	f.readers[reader.ID] = reader
	return reader
}

func (f *fakeMembership) GetReader(_ context.Context, id uuid.UUID) (*membership.Reader, error) {
	reader, ok := f.readers[id]
	if !ok {
		return nil, fault.NotFound("reader %s not found", id)
	}
	return reader, nil
}

func (f *fakeMembership) Notify(_ context.Context, readerID uuid.UUID, message, severity string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notifyErr != nil {
		return f.notifyErr
	}
	f.notifications = append(f.notifications, sentNotification{readerID, message, severity})
	return nil
}

func (f *fakeMembership) sent() []sentNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentNotification(nil), f.notifications...)
}

type fixture struct {
	svc        Service
	store      *fakeStore
	catalog    *fakeCatalog
	membership *fakeMembership
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newFakeStore()
	cat := newFakeCatalog()
	mem := newFakeMembership()
	svc := NewService(store, cat, mem, zap.NewNop())
	// Deliver notifications synchronously so assertions are deterministic.
	svc.(*service).dispatch = func(task func()) { task() }
	return &fixture{svc: svc, store: store, catalog: cat, membership: mem}
}

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func (fx *fixture) newLoanRequest(t *testing.T, status Status) (NewLoan, *membership.Reader, *catalog.Book) {
	t.Helper()
	reader := fx.membership.addReader("ana")
	book := fx.catalog.addBook("Rayuela", 2)
	return NewLoan{
		ReaderID: reader.ID,
		BookID:   book.ID,
		LoanDate: mustDate(t, "2024-01-01"),
		DueDate:  mustDate(t, "2024-01-15"),
		Status:   status,
	}, reader, book
}

func TestCreateLoanValidation(t *testing.T) {
	fx := newFixture(t)
	valid, _, _ := fx.newLoanRequest(t, StatusPending)

	testCases := []struct {
		name   string
		mutate func(*NewLoan)
	}{
		{"missing reader", func(n *NewLoan) { n.ReaderID = uuid.Nil }},
		{"missing book", func(n *NewLoan) { n.BookID = uuid.Nil }},
		{"missing loan date", func(n *NewLoan) { n.LoanDate = Date{} }},
		{"missing due date", func(n *NewLoan) { n.DueDate = Date{} }},
		{"loan date after due date", func(n *NewLoan) {
			n.LoanDate = mustDate(t, "2024-02-01")
		}},
		{"terminal initial status", func(n *NewLoan) { n.Status = StatusReturned }},
		{"unknown status", func(n *NewLoan) { n.Status = "Aprobado" }},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			_, err := fx.svc.CreateLoan(context.Background(), req)
			assert.True(t, fault.IsKind(err, fault.KindValidation), "got %v", err)
		})
	}
	assert.Empty(t, fx.store.loans)
}

func TestCreateLoanUnavailableBook(t *testing.T) {
	fx := newFixture(t)
	req, _, book := fx.newLoanRequest(t, StatusPending)
	fx.catalog.books[book.ID].Available = 0

	_, err := fx.svc.CreateLoan(context.Background(), req)
	assert.True(t, fault.IsKind(err, fault.KindAvailability), "got %v", err)
}

func TestCreateLoanOneOutstandingPerReader(t *testing.T) {
	fx := newFixture(t)
	req, reader, _ := fx.newLoanRequest(t, StatusPending)

	_, err := fx.svc.CreateLoan(context.Background(), req)
	require.NoError(t, err)

	// A second loan for the same reader conflicts, even for another book.
	other := fx.catalog.addBook("Ficciones", 1)
	second := req
	second.BookID = other.ID
	_, err = fx.svc.CreateLoan(context.Background(), second)
	assert.True(t, fault.IsKind(err, fault.KindConflict), "got %v", err)

	// Another reader can still borrow.
	second.ReaderID = fx.membership.addReader("luis").ID
	_, err = fx.svc.CreateLoan(context.Background(), second)
	assert.NoError(t, err)
	_ = reader
}

func TestCreateLoanPendingDoesNotConsumeCopy(t *testing.T) {
	fx := newFixture(t)
	req, _, book := fx.newLoanRequest(t, StatusPending)

	loan, err := fx.svc.CreateLoan(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, loan.Status)
	assert.Equal(t, 2, fx.catalog.books[book.ID].Available)
}

func TestCreateLoanAuthorizedConsumesCopy(t *testing.T) {
	fx := newFixture(t)
	req, reader, book := fx.newLoanRequest(t, StatusAuthorized)

	loan, err := fx.svc.CreateLoan(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StatusAuthorized, loan.Status)
	assert.Equal(t, 1, fx.catalog.books[book.ID].Available)

	sent := fx.membership.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, reader.ID, sent[0].readerID)
	assert.Contains(t, sent[0].message, "Rayuela")
}

func TestCreateLoanInsertFailureReleasesHold(t *testing.T) {
	fx := newFixture(t)
	req, _, book := fx.newLoanRequest(t, StatusAuthorized)
	fx.store.insertLoanErr = fmt.Errorf("connection reset")

	_, err := fx.svc.CreateLoan(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, 2, fx.catalog.books[book.ID].Available)
}

func authorizedLoan(t *testing.T, fx *fixture) (*Loan, *membership.Reader, *catalog.Book) {
	t.Helper()
	req, reader, book := fx.newLoanRequest(t, StatusPending)
	loan, err := fx.svc.CreateLoan(context.Background(), req)
	require.NoError(t, err)
	loan, err = fx.svc.Authorize(context.Background(), loan.ID)
	require.NoError(t, err)
	return loan, reader, book
}

func TestAuthorize(t *testing.T) {
	fx := newFixture(t)
	loan, reader, book := authorizedLoan(t, fx)

	assert.Equal(t, StatusAuthorized, loan.Status)
	assert.Equal(t, StatusAuthorized, fx.store.loans[loan.ID].Status)
	assert.Equal(t, 1, fx.catalog.books[book.ID].Available)

	sent := fx.membership.sent()
	require.Len(t, sent, 2) // creation + authorization
	assert.Equal(t, reader.ID, sent[1].readerID)
	assert.Equal(t, "Préstamo autorizado: Rayuela", sent[1].message)
}

func TestAuthorizeNonPending(t *testing.T) {
	fx := newFixture(t)
	loan, _, book := authorizedLoan(t, fx)

	_, err := fx.svc.Authorize(context.Background(), loan.ID)
	assert.True(t, fault.IsKind(err, fault.KindState), "got %v", err)
	assert.Equal(t, 1, fx.catalog.books[book.ID].Available, "no extra copy consumed")
}

func TestAuthorizeRechecksAvailability(t *testing.T) {
	fx := newFixture(t)
	req, _, book := fx.newLoanRequest(t, StatusPending)
	loan, err := fx.svc.CreateLoan(context.Background(), req)
	require.NoError(t, err)

	// Copies ran out between creation and authorization.
	fx.catalog.books[book.ID].Available = 0
	_, err = fx.svc.Authorize(context.Background(), loan.ID)
	assert.True(t, fault.IsKind(err, fault.KindAvailability), "got %v", err)
	assert.Equal(t, StatusPending, fx.store.loans[loan.ID].Status)
	assert.Equal(t, 0, fx.catalog.books[book.ID].Available, "count never goes negative")
}

func TestAuthorizeStatusWriteFailureReleasesHold(t *testing.T) {
	fx := newFixture(t)
	req, _, book := fx.newLoanRequest(t, StatusPending)
	loan, err := fx.svc.CreateLoan(context.Background(), req)
	require.NoError(t, err)

	fx.store.updateStatusErr = fmt.Errorf("connection reset")
	_, err = fx.svc.Authorize(context.Background(), loan.ID)
	require.Error(t, err)
	assert.Equal(t, 2, fx.catalog.books[book.ID].Available)
	assert.Equal(t, StatusPending, fx.store.loans[loan.ID].Status)
}

func TestReject(t *testing.T) {
	fx := newFixture(t)
	req, _, book := fx.newLoanRequest(t, StatusPending)
	loan, err := fx.svc.CreateLoan(context.Background(), req)
	require.NoError(t, err)

	rejected, err := fx.svc.Reject(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Equal(t, 2, fx.catalog.books[book.ID].Available, "availability unchanged")
}

func TestRejectAuthorizedFails(t *testing.T) {
	fx := newFixture(t)
	loan, _, _ := authorizedLoan(t, fx)

	_, err := fx.svc.Reject(context.Background(), loan.ID)
	assert.True(t, fault.IsKind(err, fault.KindState), "got %v", err)
}

func TestEdit(t *testing.T) {
	fx := newFixture(t)
	req, _, _ := fx.newLoanRequest(t, StatusPending)
	loan, err := fx.svc.CreateLoan(context.Background(), req)
	require.NoError(t, err)

	edited, err := fx.svc.Edit(context.Background(), loan.ID,
		mustDate(t, "2024-01-02"), mustDate(t, "2024-01-20"))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", edited.LoanDate.String())
	assert.Equal(t, "2024-01-20", edited.DueDate.String())
	assert.Equal(t, StatusPending, edited.Status, "no state transition")

	_, err = fx.svc.Edit(context.Background(), loan.ID,
		mustDate(t, "2024-02-01"), mustDate(t, "2024-01-20"))
	assert.True(t, fault.IsKind(err, fault.KindValidation), "got %v", err)
}

func TestEditTerminalLoan(t *testing.T) {
	fx := newFixture(t)
	req, _, _ := fx.newLoanRequest(t, StatusPending)
	loan, err := fx.svc.CreateLoan(context.Background(), req)
	require.NoError(t, err)
	_, err = fx.svc.Reject(context.Background(), loan.ID)
	require.NoError(t, err)

	_, err = fx.svc.Edit(context.Background(), loan.ID,
		mustDate(t, "2024-01-02"), mustDate(t, "2024-01-20"))
	assert.True(t, fault.IsKind(err, fault.KindState), "got %v", err)
}

func TestDeleteLoanDoesNotRestoreAvailability(t *testing.T) {
	fx := newFixture(t)
	loan, _, book := authorizedLoan(t, fx)

	require.NoError(t, fx.svc.DeleteLoan(context.Background(), loan.ID))
	_, err := fx.svc.GetLoan(context.Background(), loan.ID)
	assert.True(t, fault.IsKind(err, fault.KindRequest))
	// Deleting an authorized loan silently keeps the consumed copy.
	assert.Equal(t, 1, fx.catalog.books[book.ID].Available)
}

func TestProcessReturnOnTime(t *testing.T) {
	fx := newFixture(t)
	loan, reader, book := authorizedLoan(t, fx)

	ret, err := fx.svc.ProcessReturn(context.Background(), loan.ID, mustDate(t, "2024-01-15"), "")
	require.NoError(t, err)

	assert.Equal(t, 0, ret.DaysLate)
	assert.True(t, ret.Amount.IsZero())
	assert.Equal(t, "Devolución a tiempo", ret.Note)
	assert.Equal(t, StatusReturned, fx.store.loans[loan.ID].Status)
	assert.Equal(t, 2, fx.catalog.books[book.ID].Available)
	require.Len(t, fx.store.returns, 1)

	sent := fx.membership.sent()
	require.NotEmpty(t, sent)
	last := sent[len(sent)-1]
	assert.Equal(t, reader.ID, last.readerID)
	assert.Contains(t, last.message, book.Title)
}

func TestProcessReturnLate(t *testing.T) {
	fx := newFixture(t)
	loan, _, _ := authorizedLoan(t, fx)

	ret, err := fx.svc.ProcessReturn(context.Background(), loan.ID, mustDate(t, "2024-01-20"), "")
	require.NoError(t, err)

	assert.Equal(t, 5, ret.DaysLate)
	assert.Equal(t, "20.00", ret.Amount.StringFixed(2))
	assert.Equal(t, "Devolución con 5 día(s) de retraso. Adeudo: $20.00", ret.Note)
}

func TestProcessReturnKeepsExplicitNote(t *testing.T) {
	fx := newFixture(t)
	loan, _, _ := authorizedLoan(t, fx)

	ret, err := fx.svc.ProcessReturn(context.Background(), loan.ID, mustDate(t, "2024-01-20"), "cubierta dañada")
	require.NoError(t, err)
	assert.Equal(t, "cubierta dañada", ret.Note)
}

func TestProcessReturnNonAuthorized(t *testing.T) {
	fx := newFixture(t)
	req, _, _ := fx.newLoanRequest(t, StatusPending)
	loan, err := fx.svc.CreateLoan(context.Background(), req)
	require.NoError(t, err)

	_, err = fx.svc.ProcessReturn(context.Background(), loan.ID, mustDate(t, "2024-01-20"), "")
	assert.True(t, fault.IsKind(err, fault.KindState), "got %v", err)
	assert.Empty(t, fx.store.returns)
}

func TestProcessReturnTwiceFails(t *testing.T) {
	fx := newFixture(t)
	loan, _, book := authorizedLoan(t, fx)

	_, err := fx.svc.ProcessReturn(context.Background(), loan.ID, mustDate(t, "2024-01-15"), "")
	require.NoError(t, err)

	_, err = fx.svc.ProcessReturn(context.Background(), loan.ID, mustDate(t, "2024-01-16"), "")
	assert.True(t, fault.IsKind(err, fault.KindState), "got %v", err)
	assert.Len(t, fx.store.returns, 1, "exactly one return per loan")
	assert.Equal(t, 2, fx.catalog.books[book.ID].Available, "copy released exactly once")
}

func TestNotificationFailureDoesNotBlock(t *testing.T) {
	fx := newFixture(t)
	fx.membership.notifyErr = fmt.Errorf("smtp down")
	loan, _, _ := authorizedLoan(t, fx)

	ret, err := fx.svc.ProcessReturn(context.Background(), loan.ID, mustDate(t, "2024-01-15"), "")
	require.NoError(t, err)
	require.NotNil(t, ret)
	assert.Equal(t, StatusReturned, fx.store.loans[loan.ID].Status)
}

func TestLendBorrowReturnScenario(t *testing.T) {
	fx := newFixture(t)
	reader := fx.membership.addReader("ana")
	book := fx.catalog.addBook("El Aleph", 1)
	ctx := context.Background()

	loan, err := fx.svc.CreateLoan(ctx, NewLoan{
		ReaderID: reader.ID,
		BookID:   book.ID,
		LoanDate: mustDate(t, "2024-01-01"),
		DueDate:  mustDate(t, "2024-01-15"),
		Status:   StatusPending,
	})
	require.NoError(t, err)

	_, err = fx.svc.Authorize(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fx.catalog.books[book.ID].Available)

	// The same reader cannot take a second loan while this one is open.
	_, err = fx.svc.CreateLoan(ctx, NewLoan{
		ReaderID: reader.ID,
		BookID:   fx.catalog.addBook("Otro", 1).ID,
		LoanDate: mustDate(t, "2024-01-02"),
		DueDate:  mustDate(t, "2024-01-16"),
		Status:   StatusPending,
	})
	assert.True(t, fault.IsKind(err, fault.KindConflict), "got %v", err)

	ret, err := fx.svc.ProcessReturn(ctx, loan.ID, mustDate(t, "2024-01-20"), "")
	require.NoError(t, err)
	assert.Equal(t, 5, ret.DaysLate)
	assert.Equal(t, "20.00", ret.Amount.StringFixed(2))
	assert.Equal(t, 1, fx.catalog.books[book.ID].Available)
	assert.Equal(t, StatusReturned, fx.store.loans[loan.ID].Status)
}
