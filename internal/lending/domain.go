// internal/lending/domain.go
package lending

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"librarium/internal/fault"
)

// Status is the lifecycle state of a loan.
//
//	Pending --authorize--> Authorized --return--> Returned
//	Pending --reject-----> Rejected
type Status string

const (
	StatusPending    Status = "Pending"
	StatusAuthorized Status = "Authorized"
	StatusRejected   Status = "Rejected"
	StatusReturned   Status = "Returned"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusReturned
}

const dateLayout = "2006-01-02"

// Date is a calendar date, serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fault.Validation("invalid date %q, expected YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

// Today is the current calendar date in UTC.
func Today() Date {
	y, m, d := time.Now().UTC().Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fault.Validation("invalid date %s, expected a YYYY-MM-DD string", s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	return d.Time, nil
}

func (d *Date) Scan(src any) error {
	t, ok := src.(time.Time)
	if !ok {
		return fmt.Errorf("cannot scan %T into Date", src)
	}
	d.Time = t.UTC()
	return nil
}

// Loan reserves one copy of a book for a reader across a date range. It
// references reader and book by identity only.
type Loan struct {
	ID        uuid.UUID `json:"id"`
	ReaderID  uuid.UUID `json:"reader_id"`
	BookID    uuid.UUID `json:"book_id"`
	LoanDate  Date      `json:"loan_date"`
	DueDate   Date      `json:"due_date"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Return closes a loan, capturing lateness and the fee owed. Exactly one is
// created per loan, and only from the Authorized state.
type Return struct {
	ID         uuid.UUID       `json:"id"`
	LoanID     uuid.UUID       `json:"loan_id"`
	ReturnDate Date            `json:"return_date"`
	DaysLate   int             `json:"days_late"`
	Amount     decimal.Decimal `json:"amount"`
	Note       string          `json:"note"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewLoan carries the fields accepted when creating a loan. Status selects
// the initial state: Pending for self-service, Authorized for
// administrator-initiated loans.
type NewLoan struct {
	ReaderID uuid.UUID `json:"reader_id"`
	BookID   uuid.UUID `json:"book_id"`
	LoanDate Date      `json:"loan_date"`
	DueDate  Date      `json:"due_date"`
	Status   Status    `json:"status"`
}

func (n NewLoan) Validate() error {
	if n.ReaderID == uuid.Nil {
		return fault.Validation("reader id is required")
	}
	if n.BookID == uuid.Nil {
		return fault.Validation("book id is required")
	}
	if n.LoanDate.IsZero() {
		return fault.Validation("loan date is required")
	}
	if n.DueDate.IsZero() {
		return fault.Validation("due date is required")
	}
	if n.LoanDate.After(n.DueDate.Time) {
		return fault.Validation("loan date %s is after due date %s", n.LoanDate, n.DueDate)
	}
	if n.Status != StatusPending && n.Status != StatusAuthorized {
		return fault.Validation("initial status must be %q or %q", StatusPending, StatusAuthorized)
	}
	return nil
}
