// Package bolt keeps the Record Store in a single embedded BoltDB file.
//
// Books and records live in their own buckets keyed by big-endian ids, so a cursor walks
// them in insertion order. A secondary bucket maps isbn to book id.
package bolt

import (
	"context"
	"encoding/binary"
	"strings"
	"time"

	bolt "github.com/boltdb/bolt"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/Zhima-Mochi/library-circulation/internal/domain/library"
)

var (
	bucketBooks   = []byte("books")
	bucketISBN    = []byte("books_by_isbn")
	bucketRecords = []byte("borrow_records")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store is a library.Store over BoltDB. Inside Atomically every call shares one write tx.
type Store struct {
	db *bolt.DB
	tx *bolt.Tx
}

var _ library.Store = (*Store)(nil)

// Open opens (or creates) the database at path and ensures the buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "bolt: open %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketBooks, bucketISBN, bucketRecords} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return errors.Wrapf(err, "bolt: create bucket %s", name)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	if s.tx != nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) view(fn func(tx *bolt.Tx) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(tx *bolt.Tx) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	return s.db.Update(fn)
}

// Atomically runs fn inside one bolt write transaction; any error rolls every write back.
func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context, tx library.Store) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(ctx, &Store{db: s.db, tx: tx})
	})
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func getBook(tx *bolt.Tx, id int64) (*library.Book, error) {
	v := tx.Bucket(bucketBooks).Get(itob(id))
	if v == nil {
		return nil, library.ErrBookNotFound
	}
	var b library.Book
	if err := json.Unmarshal(v, &b); err != nil {
		return nil, errors.Wrapf(err, "bolt: decode book %d", id)
	}
	return &b, nil
}

func putBook(tx *bolt.Tx, b *library.Book) error {
	data, err := json.Marshal(b)
	if err != nil {
		return errors.Wrapf(err, "bolt: encode book %d", b.ID)
	}
	return errors.Wrap(tx.Bucket(bucketBooks).Put(itob(b.ID), data), "bolt: put book")
}

func allBooks(tx *bolt.Tx) (map[int64]library.Book, error) {
	out := make(map[int64]library.Book)
	err := tx.Bucket(bucketBooks).ForEach(func(_, v []byte) error {
		var b library.Book
		if err := json.Unmarshal(v, &b); err != nil {
			return errors.Wrap(err, "bolt: decode book")
		}
		out[b.ID] = b
		return nil
	})
	return out, err
}

// eachRecord walks records newest first until fn returns stop or an error.
func eachRecord(tx *bolt.Tx, fn func(r *library.BorrowRecord) (stop bool, err error)) error {
	c := tx.Bucket(bucketRecords).Cursor()
	for k, v := c.Last(); k != nil; k, v = c.Prev() {
		var r library.BorrowRecord
		if err := json.Unmarshal(v, &r); err != nil {
			return errors.Wrapf(err, "bolt: decode record %x", k)
		}
		stop, err := fn(&r)
		if err != nil || stop {
			return err
		}
	}
	return nil
}

func putRecord(tx *bolt.Tx, r *library.BorrowRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return errors.Wrapf(err, "bolt: encode record %d", r.ID)
	}
	return errors.Wrap(tx.Bucket(bucketRecords).Put(itob(r.ID), data), "bolt: put record")
}

func (s *Store) GetBook(ctx context.Context, id int64) (*library.Book, error) {
	var out *library.Book
	err := s.view(func(tx *bolt.Tx) error {
		b, err := getBook(tx, id)
		out = b
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetBookByISBN(ctx context.Context, isbn string) (*library.Book, error) {
	var out *library.Book
	err := s.view(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketISBN).Get([]byte(isbn))
		if id == nil {
			return library.ErrBookNotFound
		}
		b, err := getBook(tx, int64(binary.BigEndian.Uint64(id)))
		out = b
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListBooks(ctx context.Context, order library.BookOrder) ([]library.Book, error) {
	out := make([]library.Book, 0)
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBooks).ForEach(func(_, v []byte) error {
			var b library.Book
			if err := json.Unmarshal(v, &b); err != nil {
				return errors.Wrap(err, "bolt: decode book")
			}
			out = append(out, b)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	library.SortBooks(out, order)
	return out, nil
}

func (s *Store) SearchBooks(ctx context.Context, field library.SearchField, term string) ([]library.Book, error) {
	out := make([]library.Book, 0)
	if field == library.SearchISBN {
		b, err := s.GetBookByISBN(ctx, term)
		if errors.Is(err, library.ErrBookNotFound) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		return append(out, *b), nil
	}
	if field != library.SearchTitle && field != library.SearchAuthor {
		return out, nil
	}

	books, err := s.ListBooks(ctx, library.OrderByTitle)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(term)
	for _, b := range books {
		hay := b.Title
		if field == library.SearchAuthor {
			hay = b.Author
		}
		if strings.Contains(strings.ToLower(hay), needle) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) InsertBook(ctx context.Context, b *library.Book) error {
	if b == nil {
		return errors.New("bolt: book is required")
	}
	return s.update(func(tx *bolt.Tx) error {
		isbn := tx.Bucket(bucketISBN)
		if isbn.Get([]byte(b.ISBN)) != nil {
			return library.ErrDuplicateISBN
		}
		seq, err := tx.Bucket(bucketBooks).NextSequence()
		if err != nil {
			return errors.Wrap(err, "bolt: next book id")
		}
		stored := *b
		stored.ID = int64(seq)
		if err := putBook(tx, &stored); err != nil {
			return err
		}
		if err := isbn.Put([]byte(b.ISBN), itob(stored.ID)); err != nil {
			return errors.Wrap(err, "bolt: index isbn")
		}
		b.ID = stored.ID
		return nil
	})
}

func (s *Store) AdjustAvailability(ctx context.Context, bookID int64, delta int) error {
	return s.update(func(tx *bolt.Tx) error {
		b, err := getBook(tx, bookID)
		if err != nil {
			return err
		}
		if err := b.Adjust(delta); err != nil {
			return err
		}
		return putBook(tx, b)
	})
}

func (s *Store) InsertRecord(ctx context.Context, r *library.BorrowRecord) error {
	if r == nil {
		return errors.New("bolt: record is required")
	}
	return s.update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketBooks).Get(itob(r.BookID)) == nil {
			return library.ErrBookNotFound
		}
		seq, err := tx.Bucket(bucketRecords).NextSequence()
		if err != nil {
			return errors.Wrap(err, "bolt: next record id")
		}
		stored := r.Clone()
		stored.ID = int64(seq)
		if err := putRecord(tx, stored); err != nil {
			return err
		}
		r.ID = stored.ID
		return nil
	})
}

func (s *Store) CloseOpenRecord(ctx context.Context, patronID string, bookID int64, at time.Time) (*library.BorrowRecord, error) {
	var closed *library.BorrowRecord
	err := s.update(func(tx *bolt.Tx) error {
		var target *library.BorrowRecord
		err := eachRecord(tx, func(r *library.BorrowRecord) (bool, error) {
			if r.PatronID == patronID && r.BookID == bookID && r.IsOpen() {
				target = r
				return true, nil
			}
			return false, nil
		})
		if err != nil {
			return err
		}
		if target == nil {
			return library.ErrRecordNotFound
		}
		if err := target.Close(at); err != nil {
			return err
		}
		closed = target
		return putRecord(tx, target)
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

func (s *Store) LatestRecord(ctx context.Context, patronID string, bookID int64) (*library.BorrowRecord, error) {
	var latest *library.BorrowRecord
	err := s.view(func(tx *bolt.Tx) error {
		return eachRecord(tx, func(r *library.BorrowRecord) (bool, error) {
			if r.PatronID == patronID && r.BookID == bookID {
				latest = r
				return true, nil
			}
			return false, nil
		})
	})
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, library.ErrRecordNotFound
	}
	return latest, nil
}

// patronRecords returns the patron's records oldest first along with the catalog.
func patronRecords(tx *bolt.Tx, patronID string) ([]*library.BorrowRecord, map[int64]library.Book, error) {
	var records []*library.BorrowRecord
	err := eachRecord(tx, func(r *library.BorrowRecord) (bool, error) {
		if r.PatronID == patronID {
			records = append(records, r)
		}
		return false, nil
	})
	if err != nil {
		return nil, nil, err
	}
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	books, err := allBooks(tx)
	if err != nil {
		return nil, nil, err
	}
	return records, books, nil
}

func (s *Store) OpenLoans(ctx context.Context, patronID string) ([]library.OpenLoan, error) {
	out := make([]library.OpenLoan, 0)
	err := s.view(func(tx *bolt.Tx) error {
		records, books, err := patronRecords(tx, patronID)
		if err != nil {
			return err
		}
		for _, r := range records {
			if !r.IsOpen() {
				continue
			}
			b := books[r.BookID]
			out = append(out, library.OpenLoan{
				RecordID:   r.ID,
				BookID:     r.BookID,
				Title:      b.Title,
				Author:     b.Author,
				BorrowDate: r.BorrowDate,
				DueDate:    r.DueDate,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CountOpenRecords(ctx context.Context, patronID string) (int, error) {
	n := 0
	err := s.view(func(tx *bolt.Tx) error {
		return eachRecord(tx, func(r *library.BorrowRecord) (bool, error) {
			if r.PatronID == patronID && r.IsOpen() {
				n++
			}
			return false, nil
		})
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) History(ctx context.Context, patronID string) ([]library.HistoryEntry, error) {
	out := make([]library.HistoryEntry, 0)
	err := s.view(func(tx *bolt.Tx) error {
		records, books, err := patronRecords(tx, patronID)
		if err != nil {
			return err
		}
		for _, r := range records {
			b := books[r.BookID]
			out = append(out, library.HistoryEntry{
				RecordID:   r.ID,
				BookID:     r.BookID,
				Title:      b.Title,
				Author:     b.Author,
				BorrowDate: r.BorrowDate,
				DueDate:    r.DueDate,
				ReturnDate: r.ReturnDate,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	library.SortHistory(out)
	return out, nil
}

