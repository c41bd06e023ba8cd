package library

import (
	"errors"
	"sort"
	"time"
)

// DefaultLoanPeriod is the time between borrowing and the due date.
const DefaultLoanPeriod = 14 * 24 * time.Hour

var (
	ErrRecordNotFound = errors.New("library: borrow record not found")
	ErrRecordClosed   = errors.New("library: borrow record already returned")
)

type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// BorrowRecord is one loan of one book to one patron. ReturnDate is nil while the loan is open
// and is set exactly once.
type BorrowRecord struct {
	ID         int64      `json:"id"`
	PatronID   string     `json:"patron_id"`
	BookID     int64      `json:"book_id"`
	BorrowDate time.Time  `json:"borrow_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
}

// NewBorrowRecord opens a loan at borrowedAt, due loanPeriod later.
func NewBorrowRecord(patronID string, bookID int64, borrowedAt time.Time, loanPeriod time.Duration) *BorrowRecord {
	if loanPeriod <= 0 {
		loanPeriod = DefaultLoanPeriod
	}
	return &BorrowRecord{
		PatronID:   patronID,
		BookID:     bookID,
		BorrowDate: borrowedAt,
		DueDate:    borrowedAt.Add(loanPeriod),
	}
}

func (r *BorrowRecord) IsOpen() bool { return r.ReturnDate == nil }

func (r *BorrowRecord) State() State { return r.state().State() }

// Close sets the return date. Closed records cannot be closed again.
func (r *BorrowRecord) Close(at time.Time) error {
	_, err := r.state().OnReturned(r, at)
	return err
}

func (r *BorrowRecord) state() RecordState {
	if r.IsOpen() {
		return openState{}
	}
	return closedState{}
}

func (r *BorrowRecord) Clone() *BorrowRecord {
	if r == nil {
		return nil
	}
	clone := *r
	if r.ReturnDate != nil {
		returned := *r.ReturnDate
		clone.ReturnDate = &returned
	}
	return &clone
}

// OpenLoan is a currently borrowed book as listed for a patron.
type OpenLoan struct {
	RecordID   int64     `json:"record_id"`
	BookID     int64     `json:"book_id"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	BorrowDate time.Time `json:"borrow_date"`
	DueDate    time.Time `json:"due_date"`
}

// HistoryEntry is one past or present loan in a patron's borrowing history.
type HistoryEntry struct {
	RecordID   int64      `json:"record_id"`
	BookID     int64      `json:"book_id"`
	Title      string     `json:"title"`
	Author     string     `json:"author"`
	BorrowDate time.Time  `json:"borrow_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
}

// SortHistory orders entries newest borrow first; equal borrow dates fall back to the later record.
func SortHistory(entries []HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].BorrowDate.Equal(entries[j].BorrowDate) {
			return entries[i].BorrowDate.After(entries[j].BorrowDate)
		}
		return entries[i].RecordID > entries[j].RecordID
	})
}

// SortBooks orders books by id, or by title with id breaking ties.
func SortBooks(books []Book, order BookOrder) {
	sort.SliceStable(books, func(i, j int) bool {
		if order == OrderByTitle && books[i].Title != books[j].Title {
			return books[i].Title < books[j].Title
		}
		return books[i].ID < books[j].ID
	})
}
