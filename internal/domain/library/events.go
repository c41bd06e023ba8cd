package library

import (
	"time"

	"github.com/Zhima-Mochi/library-circulation/internal/domain/money"
)

// BookBorrowedEvent is emitted after a borrow commits.
type BookBorrowedEvent struct {
	RecordID   int64
	PatronID   string
	BookID     int64
	DueDate    time.Time
	OccurredAt time.Time
}

func (BookBorrowedEvent) EventName() string { return "library.book_borrowed" }

func NewBookBorrowedEvent(r *BorrowRecord) BookBorrowedEvent {
	return BookBorrowedEvent{
		RecordID:   r.ID,
		PatronID:   r.PatronID,
		BookID:     r.BookID,
		DueDate:    r.DueDate,
		OccurredAt: time.Now().UTC(),
	}
}

// BookReturnedEvent is emitted after a return commits and carries the fee assessed on it.
type BookReturnedEvent struct {
	RecordID    int64
	PatronID    string
	BookID      int64
	DaysOverdue int
	Fee         money.Amount
	OccurredAt  time.Time
}

func (BookReturnedEvent) EventName() string { return "library.book_returned" }

func NewBookReturnedEvent(r *BorrowRecord, daysOverdue int, fee money.Amount) BookReturnedEvent {
	return BookReturnedEvent{
		RecordID:    r.ID,
		PatronID:    r.PatronID,
		BookID:      r.BookID,
		DaysOverdue: daysOverdue,
		Fee:         fee,
		OccurredAt:  time.Now().UTC(),
	}
}

// LateFeePaidEvent is emitted when the gateway approves a late-fee charge.
type LateFeePaidEvent struct {
	PatronID      string
	BookID        int64
	TransactionID string
	Amount        money.Amount
	OccurredAt    time.Time
}

func (LateFeePaidEvent) EventName() string { return "library.late_fee_paid" }

func NewLateFeePaidEvent(patronID string, bookID int64, transactionID string, amount money.Amount) LateFeePaidEvent {
	return LateFeePaidEvent{
		PatronID:      patronID,
		BookID:        bookID,
		TransactionID: transactionID,
		Amount:        amount,
		OccurredAt:    time.Now().UTC(),
	}
}

// LateFeeRefundedEvent is emitted when the gateway approves a refund.
type LateFeeRefundedEvent struct {
	TransactionID string
	Amount        money.Amount
	OccurredAt    time.Time
}

func (LateFeeRefundedEvent) EventName() string { return "library.late_fee_refunded" }

func NewLateFeeRefundedEvent(transactionID string, amount money.Amount) LateFeeRefundedEvent {
	return LateFeeRefundedEvent{
		TransactionID: transactionID,
		Amount:        amount,
		OccurredAt:    time.Now().UTC(),
	}
}
