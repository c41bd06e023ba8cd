package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Zhima-Mochi/library-circulation/internal/domain/library"
)

// Store is an in-process Record Store. Writes outside Atomically are serialized with
// transactions, so a rollback never discards a concurrent caller's write.
type Store struct {
	view
}

type core struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *dataset
}

type dataset struct {
	books        map[int64]*library.Book
	isbn         map[string]int64
	records      []*library.BorrowRecord
	nextBookID   int64
	nextRecordID int64
}

// view is the Store seen either from outside (inTx false) or from inside an Atomically callback.
type view struct {
	c    *core
	inTx bool
}

var _ library.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{view{c: &core{data: newDataset()}}}
}

func newDataset() *dataset {
	return &dataset{
		books: make(map[int64]*library.Book),
		isbn:  make(map[string]int64),
	}
}

func (d *dataset) clone() *dataset {
	out := &dataset{
		books:        make(map[int64]*library.Book, len(d.books)),
		isbn:         make(map[string]int64, len(d.isbn)),
		records:      make([]*library.BorrowRecord, 0, len(d.records)),
		nextBookID:   d.nextBookID,
		nextRecordID: d.nextRecordID,
	}
	for id, b := range d.books {
		out.books[id] = b.Clone()
	}
	for k, v := range d.isbn {
		out.isbn[k] = v
	}
	for _, r := range d.records {
		out.records = append(out.records, r.Clone())
	}
	return out
}

// writer serializes a top-level write with running transactions.
func (v *view) writer() func() {
	if v.inTx {
		return func() {}
	}
	v.c.txMu.Lock()
	return v.c.txMu.Unlock
}

func (v *view) Atomically(ctx context.Context, fn func(ctx context.Context, tx library.Store) error) error {
	if v.inTx {
		return fn(ctx, v)
	}
	v.c.txMu.Lock()
	defer v.c.txMu.Unlock()

	v.c.mu.RLock()
	snapshot := v.c.data.clone()
	v.c.mu.RUnlock()

	if err := fn(ctx, &view{c: v.c, inTx: true}); err != nil {
		v.c.mu.Lock()
		v.c.data = snapshot
		v.c.mu.Unlock()
		return err
	}
	return nil
}

func (v *view) GetBook(ctx context.Context, id int64) (*library.Book, error) {
	_ = ctx
	v.c.mu.RLock()
	defer v.c.mu.RUnlock()

	b, ok := v.c.data.books[id]
	if !ok {
		return nil, library.ErrBookNotFound
	}
	return b.Clone(), nil
}

func (v *view) GetBookByISBN(ctx context.Context, isbn string) (*library.Book, error) {
	_ = ctx
	v.c.mu.RLock()
	defer v.c.mu.RUnlock()

	id, ok := v.c.data.isbn[isbn]
	if !ok {
		return nil, library.ErrBookNotFound
	}
	return v.c.data.books[id].Clone(), nil
}

func (v *view) ListBooks(ctx context.Context, order library.BookOrder) ([]library.Book, error) {
	_ = ctx
	v.c.mu.RLock()
	out := make([]library.Book, 0, len(v.c.data.books))
	for _, b := range v.c.data.books {
		out = append(out, *b.Clone())
	}
	v.c.mu.RUnlock()

	library.SortBooks(out, order)
	return out, nil
}

func (v *view) SearchBooks(ctx context.Context, field library.SearchField, term string) ([]library.Book, error) {
	_ = ctx
	match := matcher(field, term)
	if match == nil {
		return []library.Book{}, nil
	}

	v.c.mu.RLock()
	out := make([]library.Book, 0)
	for _, b := range v.c.data.books {
		if match(b) {
			out = append(out, *b.Clone())
		}
	}
	v.c.mu.RUnlock()

	library.SortBooks(out, library.OrderByTitle)
	return out, nil
}

func matcher(field library.SearchField, term string) func(*library.Book) bool {
	needle := strings.ToLower(term)
	switch field {
	case library.SearchTitle:
		return func(b *library.Book) bool { return strings.Contains(strings.ToLower(b.Title), needle) }
	case library.SearchAuthor:
		return func(b *library.Book) bool { return strings.Contains(strings.ToLower(b.Author), needle) }
	case library.SearchISBN:
		return func(b *library.Book) bool { return b.ISBN == term }
	default:
		return nil
	}
}

func (v *view) InsertBook(ctx context.Context, b *library.Book) error {
	_ = ctx
	if b == nil {
		return fmt.Errorf("memory store: book is required")
	}
	defer v.writer()()

	v.c.mu.Lock()
	defer v.c.mu.Unlock()

	if _, taken := v.c.data.isbn[b.ISBN]; taken {
		return library.ErrDuplicateISBN
	}
	v.c.data.nextBookID++
	b.ID = v.c.data.nextBookID
	v.c.data.books[b.ID] = b.Clone()
	v.c.data.isbn[b.ISBN] = b.ID
	return nil
}

func (v *view) AdjustAvailability(ctx context.Context, bookID int64, delta int) error {
	_ = ctx
	defer v.writer()()

	v.c.mu.Lock()
	defer v.c.mu.Unlock()

	b, ok := v.c.data.books[bookID]
	if !ok {
		return library.ErrBookNotFound
	}
	return b.Adjust(delta)
}

func (v *view) InsertRecord(ctx context.Context, r *library.BorrowRecord) error {
	_ = ctx
	if r == nil {
		return fmt.Errorf("memory store: record is required")
	}
	defer v.writer()()

	v.c.mu.Lock()
	defer v.c.mu.Unlock()

	if _, ok := v.c.data.books[r.BookID]; !ok {
		return library.ErrBookNotFound
	}
	v.c.data.nextRecordID++
	r.ID = v.c.data.nextRecordID
	v.c.data.records = append(v.c.data.records, r.Clone())
	return nil
}

func (v *view) CloseOpenRecord(ctx context.Context, patronID string, bookID int64, at time.Time) (*library.BorrowRecord, error) {
	_ = ctx
	defer v.writer()()

	v.c.mu.Lock()
	defer v.c.mu.Unlock()

	records := v.c.data.records
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		if r.PatronID != patronID || r.BookID != bookID || !r.IsOpen() {
			continue
		}
		if err := r.Close(at); err != nil {
			return nil, err
		}
		return r.Clone(), nil
	}
	return nil, library.ErrRecordNotFound
}

func (v *view) LatestRecord(ctx context.Context, patronID string, bookID int64) (*library.BorrowRecord, error) {
	_ = ctx
	v.c.mu.RLock()
	defer v.c.mu.RUnlock()

	records := v.c.data.records
	for i := len(records) - 1; i >= 0; i-- {
		if r := records[i]; r.PatronID == patronID && r.BookID == bookID {
			return r.Clone(), nil
		}
	}
	return nil, library.ErrRecordNotFound
}

func (v *view) OpenLoans(ctx context.Context, patronID string) ([]library.OpenLoan, error) {
	_ = ctx
	v.c.mu.RLock()
	defer v.c.mu.RUnlock()

	out := make([]library.OpenLoan, 0)
	for _, r := range v.c.data.records {
		if r.PatronID != patronID || !r.IsOpen() {
			continue
		}
		loan := library.OpenLoan{
			RecordID:   r.ID,
			BookID:     r.BookID,
			BorrowDate: r.BorrowDate,
			DueDate:    r.DueDate,
		}
		if b, ok := v.c.data.books[r.BookID]; ok {
			loan.Title, loan.Author = b.Title, b.Author
		}
		out = append(out, loan)
	}
	return out, nil
}

func (v *view) CountOpenRecords(ctx context.Context, patronID string) (int, error) {
	_ = ctx
	v.c.mu.RLock()
	defer v.c.mu.RUnlock()

	n := 0
	for _, r := range v.c.data.records {
		if r.PatronID == patronID && r.IsOpen() {
			n++
		}
	}
	return n, nil
}

func (v *view) History(ctx context.Context, patronID string) ([]library.HistoryEntry, error) {
	_ = ctx
	v.c.mu.RLock()
	out := make([]library.HistoryEntry, 0)
	for _, r := range v.c.data.records {
		if r.PatronID != patronID {
			continue
		}
		entry := library.HistoryEntry{
			RecordID:   r.ID,
			BookID:     r.BookID,
			BorrowDate: r.BorrowDate,
			DueDate:    r.DueDate,
			ReturnDate: r.Clone().ReturnDate,
		}
		if b, ok := v.c.data.books[r.BookID]; ok {
			entry.Title, entry.Author = b.Title, b.Author
		}
		out = append(out, entry)
	}
	v.c.mu.RUnlock()

	library.SortHistory(out)
	return out, nil
}
