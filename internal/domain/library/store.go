package library

import (
	"context"
	"time"
)

type BookOrder string

const (
	OrderByID    BookOrder = "id"
	OrderByTitle BookOrder = "title"
)

type SearchField string

const (
	SearchTitle  SearchField = "title"
	SearchAuthor SearchField = "author"
	SearchISBN   SearchField = "isbn"
)

// Store is the Record Store: books and borrow records. Each call is atomic on its own;
// Atomically groups several calls into one unit that commits or rolls back as a whole.
type Store interface {
	GetBook(ctx context.Context, id int64) (*Book, error)
	GetBookByISBN(ctx context.Context, isbn string) (*Book, error)
	ListBooks(ctx context.Context, order BookOrder) ([]Book, error)
	// SearchBooks matches title/author case-insensitively by substring and isbn exactly,
	// ordered by title.
	SearchBooks(ctx context.Context, field SearchField, term string) ([]Book, error)
	// InsertBook assigns b.ID. ErrDuplicateISBN when the isbn is taken.
	InsertBook(ctx context.Context, b *Book) error
	// AdjustAvailability fails with ErrAvailabilityRange instead of leaving [0, total].
	AdjustAvailability(ctx context.Context, bookID int64, delta int) error

	// InsertRecord assigns r.ID; ids grow with insertion order.
	InsertRecord(ctx context.Context, r *BorrowRecord) error
	// CloseOpenRecord sets the return date on the most recently inserted open record for the pair.
	CloseOpenRecord(ctx context.Context, patronID string, bookID int64, at time.Time) (*BorrowRecord, error)
	// LatestRecord returns the record with the highest id for the pair, open or closed.
	LatestRecord(ctx context.Context, patronID string, bookID int64) (*BorrowRecord, error)
	OpenLoans(ctx context.Context, patronID string) ([]OpenLoan, error)
	CountOpenRecords(ctx context.Context, patronID string) (int, error)
	// History lists every record of the patron, newest borrow first.
	History(ctx context.Context, patronID string) ([]HistoryEntry, error)

	Atomically(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
