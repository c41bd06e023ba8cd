// Package fee is the late-fee policy: a pure function of due date and return (or current) time.
package fee

import (
	"time"

	"github.com/Zhima-Mochi/library-circulation/internal/domain/library"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/money"
)

type Status string

const (
	StatusPending       Status = "PENDING"
	StatusInvalidPatron Status = "Invalid patron ID"
	StatusBookNotFound  Status = "Book not found"
	StatusNoRecord      Status = "No corresponding borrow record found"
	StatusOnTime        Status = "On time"
	StatusOverdue       Status = "Overdue"
)

// Result is derived on every request and never stored.
type Result struct {
	Amount      money.Amount `json:"fee_amount"`
	DaysOverdue int          `json:"days_overdue"`
	Status      Status       `json:"status"`
}

// Absent is the zero-fee result for a lookup that could not reach a borrow record.
func Absent(status Status) Result {
	return Result{Status: status}
}

// Policy prices overdue days in two tiers and caps the total per book.
// Location is the calendar overdue days are counted in; nil means time.Local.
type Policy struct {
	DailyRate         money.Amount
	TieredDays        int
	ExtendedDailyRate money.Amount
	Cap               money.Amount
	Location          *time.Location
}

// DefaultPolicy charges 0.50/day for the first 7 overdue days, 1.00/day after, capped at 15.00.
func DefaultPolicy() Policy {
	return Policy{
		DailyRate:         money.Cents(50),
		TieredDays:        7,
		ExtendedDailyRate: money.Cents(100),
		Cap:               money.Cents(1500),
		Location:          time.Local,
	}
}

// In returns a copy of the policy counting days in loc.
func (p Policy) In(loc *time.Location) Policy {
	p.Location = loc
	return p
}

// MaxFee is the most a single book can cost.
func (p Policy) MaxFee() money.Amount { return p.Cap }

// Compute prices the whole calendar days between due and at.
func (p Policy) Compute(due, at time.Time) Result {
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	days := DaysOverdue(due, at, loc)
	if days == 0 {
		return Result{Status: StatusOnTime}
	}
	return Result{
		Amount:      p.Price(days),
		DaysOverdue: days,
		Status:      StatusOverdue,
	}
}

// ForRecord prices a record using its return date, or now while it is still open.
func (p Policy) ForRecord(r *library.BorrowRecord, now time.Time) Result {
	at := now
	if r.ReturnDate != nil {
		at = *r.ReturnDate
	}
	return p.Compute(r.DueDate, at)
}

// Price is the fee for a number of overdue days.
func (p Policy) Price(days int) money.Amount {
	if days <= 0 {
		return 0
	}
	base := min(days, p.TieredDays)
	extended := max(0, days-p.TieredDays)
	total := money.Amount(base)*p.DailyRate + money.Amount(extended)*p.ExtendedDailyRate
	if p.Cap > 0 && total > p.Cap {
		return p.Cap
	}
	return total
}

// DaysOverdue counts calendar days from due to at as seen in loc, never negative.
// Time of day and the instants' own zones are ignored.
func DaysOverdue(due, at time.Time, loc *time.Location) int {
	dy, dm, dd := due.In(loc).Date()
	ay, am, ad := at.In(loc).Date()
	dueDay := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	atDay := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	days := int(atDay.Sub(dueDay).Hours() / 24)
	return max(0, days)
}
