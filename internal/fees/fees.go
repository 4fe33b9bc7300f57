// Package fees computes overdue days and the resulting monetary penalty for
// a returned loan. Both functions are pure.
package fees

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// DailyRate is the penalty per started day of delay, in currency units.
	DailyRate = decimal.NewFromInt(5)

	// VoluntaryReturnDiscount is applied to every penalty because the reader
	// brought the book back on their own.
	VoluntaryReturnDiscount = decimal.NewFromFloat(0.20)
)

// DaysLate returns how many penalty days have accrued by asOf for a loan due
// at due. Partial days round up, so one second past the due date already
// counts as a full day.
func DaysLate(due, asOf time.Time) int {
	if !asOf.After(due) {
		return 0
	}
	return int(math.Ceil(asOf.Sub(due).Hours() / 24))
}

// Fee returns the amount owed for the given day count, rounded half-up to
// two decimal places.
func Fee(daysLate int) decimal.Decimal {
	if daysLate <= 0 {
		return decimal.Zero
	}
	amount := decimal.NewFromInt(int64(daysLate)).Mul(DailyRate)
	amount = amount.Mul(decimal.NewFromInt(1).Sub(VoluntaryReturnDiscount))
	return amount.Round(2)
}
