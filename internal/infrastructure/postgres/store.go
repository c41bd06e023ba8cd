// Package postgres keeps the Record Store in PostgreSQL. SQL is built with goqu and runs
// through either a pgxpool or a sqlx/lib/pq adapter.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/Zhima-Mochi/library-circulation/internal/domain/library"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

var (
	ErrQueryingFailed = errors.New("postgres: query failed")
	ErrScanningFailed = errors.New("postgres: scanning row failed")
)

// Store is a library.Store over PostgreSQL. Inside Atomically every call runs on one tx.
type Store struct {
	db DBAdapter
	q  Querier
	tx TxAdapter
}

var _ library.Store = (*Store)(nil)

func NewStore(db DBAdapter) *Store {
	return &Store{db: db, q: db}
}

// Migrate creates the tables and indexes when missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.tx != nil {
		return nil
	}
	return s.db.Close()
}

// Atomically runs fn in a database transaction, rolling back when fn fails.
func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context, tx library.Store) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	if err := fn(ctx, &Store{db: s.db, q: tx, tx: tx}); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			return errors.Join(err, fmt.Errorf("postgres: rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// sqlState extracts the SQLSTATE from either driver's error type.
func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBook(row scanner) (library.Book, error) {
	var b library.Book
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.TotalCopies, &b.AvailableCopies)
	if err != nil {
		return library.Book{}, errors.Join(ErrScanningFailed, err)
	}
	return b, nil
}

func scanRecord(row scanner) (*library.BorrowRecord, error) {
	var (
		r        library.BorrowRecord
		returned *time.Time
	)
	if err := row.Scan(&r.ID, &r.PatronID, &r.BookID, &r.BorrowDate, &r.DueDate, &returned); err != nil {
		return nil, errors.Join(ErrScanningFailed, err)
	}
	r.BorrowDate, r.DueDate = r.BorrowDate.UTC(), r.DueDate.UTC()
	if returned != nil {
		at := returned.UTC()
		r.ReturnDate = &at
	}
	return &r, nil
}

func scanHistory(row scanner) (library.HistoryEntry, error) {
	var (
		h        library.HistoryEntry
		returned *time.Time
	)
	if err := row.Scan(&h.RecordID, &h.BookID, &h.Title, &h.Author, &h.BorrowDate, &h.DueDate, &returned); err != nil {
		return library.HistoryEntry{}, errors.Join(ErrScanningFailed, err)
	}
	h.BorrowDate, h.DueDate = h.BorrowDate.UTC(), h.DueDate.UTC()
	if returned != nil {
		at := returned.UTC()
		h.ReturnDate = &at
	}
	return h, nil
}

// queryAll runs query and feeds every row to each.
func (s *Store) queryAll(ctx context.Context, query string, args []any, each func(row scanner) error) error {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return errors.Join(ErrQueryingFailed, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := each(rows); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Join(ErrQueryingFailed, err)
	}
	return nil
}

func (s *Store) books(ctx context.Context, query string, args []any) ([]library.Book, error) {
	out := make([]library.Book, 0)
	err := s.queryAll(ctx, query, args, func(row scanner) error {
		b, err := scanBook(row)
		if err != nil {
			return err
		}
		out = append(out, b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) oneBook(ctx context.Context, query string, args []any) (*library.Book, error) {
	books, err := s.books(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, library.ErrBookNotFound
	}
	return &books[0], nil
}

func (s *Store) GetBook(ctx context.Context, id int64) (*library.Book, error) {
	query, args, err := selectBook(id)
	if err != nil {
		return nil, err
	}
	return s.oneBook(ctx, query, args)
}

func (s *Store) GetBookByISBN(ctx context.Context, isbn string) (*library.Book, error) {
	query, args, err := searchBooks(library.SearchISBN, isbn)
	if err != nil {
		return nil, err
	}
	return s.oneBook(ctx, query, args)
}

func (s *Store) ListBooks(ctx context.Context, order library.BookOrder) ([]library.Book, error) {
	query, args, err := selectBooks(order)
	if err != nil {
		return nil, err
	}
	return s.books(ctx, query, args)
}

func (s *Store) SearchBooks(ctx context.Context, field library.SearchField, term string) ([]library.Book, error) {
	query, args, err := searchBooks(field, term)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return []library.Book{}, nil
	}
	return s.books(ctx, query, args)
}

// insertReturningID runs an INSERT ... RETURNING id.
func (s *Store) insertReturningID(ctx context.Context, query string, args []any) (int64, error) {
	var id int64
	found := false
	err := s.queryAll(ctx, query, args, func(row scanner) error {
		found = true
		if err := row.Scan(&id); err != nil {
			return errors.Join(ErrScanningFailed, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, errors.Join(ErrQueryingFailed, errors.New("insert returned no id"))
	}
	return id, nil
}

func (s *Store) InsertBook(ctx context.Context, b *library.Book) error {
	if b == nil {
		return errors.New("postgres: book is required")
	}
	query, args, err := insertBook(b)
	if err != nil {
		return err
	}
	id, err := s.insertReturningID(ctx, query, args)
	if sqlState(err) == codeUniqueViolation {
		return library.ErrDuplicateISBN
	}
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}

func (s *Store) AdjustAvailability(ctx context.Context, bookID int64, delta int) error {
	query, args, err := adjustAvailability(bookID, delta)
	if err != nil {
		return err
	}
	res, err := s.q.Exec(ctx, query, args...)
	if err != nil {
		return errors.Join(ErrQueryingFailed, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Join(ErrQueryingFailed, err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.GetBook(ctx, bookID); err != nil {
		return err
	}
	return library.ErrAvailabilityRange
}

func (s *Store) InsertRecord(ctx context.Context, r *library.BorrowRecord) error {
	if r == nil {
		return errors.New("postgres: record is required")
	}
	query, args, err := insertRecord(r)
	if err != nil {
		return err
	}
	id, err := s.insertReturningID(ctx, query, args)
	if sqlState(err) == codeForeignKeyViolation {
		return library.ErrBookNotFound
	}
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

func (s *Store) oneRecord(ctx context.Context, query string, args []any) (*library.BorrowRecord, error) {
	var out *library.BorrowRecord
	err := s.queryAll(ctx, query, args, func(row scanner) error {
		r, err := scanRecord(row)
		out = r
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, library.ErrRecordNotFound
	}
	return out, nil
}

func (s *Store) CloseOpenRecord(ctx context.Context, patronID string, bookID int64, at time.Time) (*library.BorrowRecord, error) {
	query, args, err := closeOpenRecord(patronID, bookID, at)
	if err != nil {
		return nil, err
	}
	return s.oneRecord(ctx, query, args)
}

func (s *Store) LatestRecord(ctx context.Context, patronID string, bookID int64) (*library.BorrowRecord, error) {
	query, args, err := latestRecord(patronID, bookID)
	if err != nil {
		return nil, err
	}
	return s.oneRecord(ctx, query, args)
}

func (s *Store) OpenLoans(ctx context.Context, patronID string) ([]library.OpenLoan, error) {
	query, args, err := patronLoans(patronID, true)
	if err != nil {
		return nil, err
	}
	out := make([]library.OpenLoan, 0)
	err = s.queryAll(ctx, query, args, func(row scanner) error {
		h, err := scanHistory(row)
		if err != nil {
			return err
		}
		out = append(out, library.OpenLoan{
			RecordID:   h.RecordID,
			BookID:     h.BookID,
			Title:      h.Title,
			Author:     h.Author,
			BorrowDate: h.BorrowDate,
			DueDate:    h.DueDate,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CountOpenRecords inside Atomically also holds the patron's lock until the transaction ends.
func (s *Store) CountOpenRecords(ctx context.Context, patronID string) (int, error) {
	if s.tx != nil {
		lock, lockArgs, err := lockPatron(patronID)
		if err != nil {
			return 0, err
		}
		if _, err := s.q.Exec(ctx, lock, lockArgs...); err != nil {
			return 0, fmt.Errorf("postgres: lock patron: %w", err)
		}
	}
	query, args, err := countOpenRecords(patronID)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.queryAll(ctx, query, args, func(row scanner) error {
		if err := row.Scan(&n); err != nil {
			return errors.Join(ErrScanningFailed, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) History(ctx context.Context, patronID string) ([]library.HistoryEntry, error) {
	query, args, err := patronLoans(patronID, false)
	if err != nil {
		return nil, err
	}
	out := make([]library.HistoryEntry, 0)
	err = s.queryAll(ctx, query, args, func(row scanner) error {
		h, err := scanHistory(row)
		if err != nil {
			return err
		}
		out = append(out, h)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
