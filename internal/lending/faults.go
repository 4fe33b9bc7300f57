// internal/lending/faults.go
package lending

import (
	"fmt"

	"github.com/shopspring/decimal"

	"librarium/internal/fault"
)

func faultNoCopies(title string) error {
	return fault.Availability("book %q has no available copies", title)
}

func faultOutstanding(readerName string) error {
	return fault.Conflict("reader %q already has an outstanding loan", readerName)
}

func faultNotPending(action string, current Status) error {
	return fault.State("only pending loans can be %s, loan is %s", action, current)
}

func faultNotAuthorized(current Status) error {
	return fault.State("only authorized loans can be returned, loan is %s", current)
}

func faultTerminalEdit(current Status) error {
	return fault.State("cannot edit a %s loan", current)
}

func faultDatesRequired() error {
	return fault.Validation("loan date and due date are required")
}

func faultDateOrder(loanDate, dueDate Date) error {
	return fault.Validation("loan date %s is after due date %s", loanDate, dueDate)
}

// defaultNote is the note stored on a return when the operator supplies
// none. The wording matches the historical records this system replaces.
func defaultNote(daysLate int, amount decimal.Decimal) string {
	if daysLate <= 0 {
		return "Devolución a tiempo"
	}
	return fmt.Sprintf("Devolución con %d día(s) de retraso. Adeudo: $%s", daysLate, amount.StringFixed(2))
}
