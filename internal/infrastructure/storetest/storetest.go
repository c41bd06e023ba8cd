// Package storetest holds the behaviour every library.Store implementation must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/library-circulation/internal/domain/fee"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/library"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/money"
)

// Opener returns an empty store; cleanup is the opener's business.
type Opener func(t *testing.T) library.Store

var borrowedAt = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

// Run executes the shared store contract against stores produced by open.
func Run(t *testing.T, open Opener) {
	t.Run("InsertBook_assigns_ids_and_rejects_duplicate_isbn", func(t *testing.T) { insertBook(t, open(t)) })
	t.Run("GetBook_missing", func(t *testing.T) { getMissing(t, open(t)) })
	t.Run("ListBooks_order", func(t *testing.T) { listBooks(t, open(t)) })
	t.Run("SearchBooks", func(t *testing.T) { searchBooks(t, open(t)) })
	t.Run("AdjustAvailability_bounds", func(t *testing.T) { adjustAvailability(t, open(t)) })
	t.Run("Record_lifecycle", func(t *testing.T) { recordLifecycle(t, open(t)) })
	t.Run("Fee_independent_of_stored_zone", func(t *testing.T) { feeAcrossZones(t, open(t)) })
	t.Run("Patron_views", func(t *testing.T) { patronViews(t, open(t)) })
	t.Run("Atomically_commits", func(t *testing.T) { atomicallyCommits(t, open(t)) })
	t.Run("Atomically_rolls_back", func(t *testing.T) { atomicallyRollsBack(t, open(t)) })
}

// MustBook inserts a book with the given copies or fails the test.
func MustBook(t *testing.T, s library.Store, title, author, isbn string, copies int) *library.Book {
	t.Helper()
	b, err := library.NewBook(title, author, isbn, copies)
	require.NoError(t, err)
	require.NoError(t, s.InsertBook(context.Background(), b))
	return b
}

func insertBook(t *testing.T, s library.Store) {
	ctx := context.Background()

	first := MustBook(t, s, "The Great Gatsby", "F. Scott Fitzgerald", "9780743273565", 3)
	second := MustBook(t, s, "1984", "George Orwell", "9780451524935", 1)
	assert.Positive(t, first.ID)
	assert.Greater(t, second.ID, first.ID)

	dup, err := library.NewBook("Another", "Someone", "9780743273565", 1)
	require.NoError(t, err)
	err = s.InsertBook(ctx, dup)
	assert.ErrorIs(t, err, library.ErrDuplicateISBN)

	got, err := s.GetBookByISBN(ctx, "9780451524935")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, "1984", got.Title)
	assert.Equal(t, 1, got.TotalCopies)
	assert.Equal(t, 1, got.AvailableCopies)
}

func getMissing(t *testing.T, s library.Store) {
	ctx := context.Background()

	_, err := s.GetBook(ctx, 4242)
	assert.ErrorIs(t, err, library.ErrBookNotFound)

	_, err = s.GetBookByISBN(ctx, "0000000000000")
	assert.ErrorIs(t, err, library.ErrBookNotFound)
}

func listBooks(t *testing.T, s library.Store) {
	ctx := context.Background()
	MustBook(t, s, "To Kill a Mockingbird", "Harper Lee", "9780061120084", 2)
	MustBook(t, s, "1984", "George Orwell", "9780451524935", 1)
	MustBook(t, s, "The Great Gatsby", "F. Scott Fitzgerald", "9780743273565", 3)

	byID, err := s.ListBooks(ctx, library.OrderByID)
	require.NoError(t, err)
	assert.Equal(t, []string{"To Kill a Mockingbird", "1984", "The Great Gatsby"}, titles(byID))

	byTitle, err := s.ListBooks(ctx, library.OrderByTitle)
	require.NoError(t, err)
	assert.Equal(t, []string{"1984", "The Great Gatsby", "To Kill a Mockingbird"}, titles(byTitle))
}

func searchBooks(t *testing.T, s library.Store) {
	ctx := context.Background()
	MustBook(t, s, "The Great Gatsby", "F. Scott Fitzgerald", "9780743273565", 3)
	MustBook(t, s, "1984", "George Orwell", "9780451524935", 1)
	MustBook(t, s, "Animal Farm", "George Orwell", "9780451526342", 1)

	found, err := s.SearchBooks(ctx, library.SearchTitle, "gAtSbY")
	require.NoError(t, err)
	assert.Equal(t, []string{"The Great Gatsby"}, titles(found))

	found, err = s.SearchBooks(ctx, library.SearchAuthor, "orwell")
	require.NoError(t, err)
	assert.Equal(t, []string{"1984", "Animal Farm"}, titles(found))

	found, err = s.SearchBooks(ctx, library.SearchISBN, "9780451524935")
	require.NoError(t, err)
	assert.Equal(t, []string{"1984"}, titles(found))

	found, err = s.SearchBooks(ctx, library.SearchISBN, "978045152493")
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = s.SearchBooks(ctx, library.SearchField("publisher"), "Penguin")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func adjustAvailability(t *testing.T, s library.Store) {
	ctx := context.Background()
	b := MustBook(t, s, "1984", "George Orwell", "9780451524935", 2)

	require.NoError(t, s.AdjustAvailability(ctx, b.ID, -1))
	require.NoError(t, s.AdjustAvailability(ctx, b.ID, -1))
	assert.ErrorIs(t, s.AdjustAvailability(ctx, b.ID, -1), library.ErrAvailabilityRange)

	require.NoError(t, s.AdjustAvailability(ctx, b.ID, 2))
	assert.ErrorIs(t, s.AdjustAvailability(ctx, b.ID, 1), library.ErrAvailabilityRange)

	got, err := s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableCopies)

	assert.ErrorIs(t, s.AdjustAvailability(ctx, b.ID+100, 1), library.ErrBookNotFound)
}

func recordLifecycle(t *testing.T, s library.Store) {
	ctx := context.Background()
	b := MustBook(t, s, "1984", "George Orwell", "9780451524935", 2)

	_, err := s.LatestRecord(ctx, "123456", b.ID)
	assert.ErrorIs(t, err, library.ErrRecordNotFound)

	first := library.NewBorrowRecord("123456", b.ID, borrowedAt, library.DefaultLoanPeriod)
	require.NoError(t, s.InsertRecord(ctx, first))
	second := library.NewBorrowRecord("123456", b.ID, borrowedAt.Add(time.Hour), library.DefaultLoanPeriod)
	require.NoError(t, s.InsertRecord(ctx, second))
	assert.Greater(t, second.ID, first.ID)

	n, err := s.CountOpenRecords(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	returnedAt := borrowedAt.Add(48 * time.Hour)
	closed, err := s.CloseOpenRecord(ctx, "123456", b.ID, returnedAt)
	require.NoError(t, err)
	assert.Equal(t, second.ID, closed.ID)
	require.NotNil(t, closed.ReturnDate)
	assert.WithinDuration(t, returnedAt, *closed.ReturnDate, time.Microsecond)

	latest, err := s.LatestRecord(ctx, "123456", b.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.False(t, latest.IsOpen())
	assert.WithinDuration(t, second.DueDate, latest.DueDate, time.Microsecond)

	_, err = s.CloseOpenRecord(ctx, "123456", b.ID, returnedAt)
	require.NoError(t, err)
	_, err = s.CloseOpenRecord(ctx, "123456", b.ID, returnedAt)
	assert.ErrorIs(t, err, library.ErrRecordNotFound)

	n, err = s.CountOpenRecords(ctx, "123456")
	require.NoError(t, err)
	assert.Zero(t, n)
}

// feeAcrossZones stores a loan stamped by a clock west of UTC; the fee read back must match
// the fee of the in-memory record whatever zone the store hands times back in.
func feeAcrossZones(t *testing.T, s library.Store) {
	ctx := context.Background()
	newYork := time.FixedZone("EST", -5*60*60)
	policy := fee.DefaultPolicy().In(newYork)
	b := MustBook(t, s, "1984", "George Orwell", "9780451524935", 1)

	borrowed := time.Date(2026, 1, 1, 20, 0, 0, 0, newYork)
	record := library.NewBorrowRecord("123456", b.ID, borrowed, library.DefaultLoanPeriod)
	require.NoError(t, s.InsertRecord(ctx, record))
	returned := time.Date(2026, 1, 16, 10, 0, 0, 0, newYork)
	require.NoError(t, record.Close(returned))
	_, err := s.CloseOpenRecord(ctx, "123456", b.ID, returned)
	require.NoError(t, err)

	stored, err := s.LatestRecord(ctx, "123456", b.ID)
	require.NoError(t, err)

	expected := fee.Result{Amount: money.Cents(50), DaysOverdue: 1, Status: fee.StatusOverdue}
	assert.Equal(t, expected, policy.ForRecord(record, returned))
	assert.Equal(t, expected, policy.ForRecord(stored, returned))
	assert.Equal(t, expected, policy.ForRecord(&library.BorrowRecord{
		DueDate:    stored.DueDate.UTC(),
		ReturnDate: stored.ReturnDate,
	}, returned))
}

func patronViews(t *testing.T, s library.Store) {
	ctx := context.Background()
	gatsby := MustBook(t, s, "The Great Gatsby", "F. Scott Fitzgerald", "9780743273565", 3)
	orwell := MustBook(t, s, "1984", "George Orwell", "9780451524935", 1)

	require.NoError(t, s.InsertRecord(ctx, library.NewBorrowRecord("123456", gatsby.ID, borrowedAt, library.DefaultLoanPeriod)))
	require.NoError(t, s.InsertRecord(ctx, library.NewBorrowRecord("123456", orwell.ID, borrowedAt.Add(24*time.Hour), library.DefaultLoanPeriod)))
	require.NoError(t, s.InsertRecord(ctx, library.NewBorrowRecord("654321", orwell.ID, borrowedAt, library.DefaultLoanPeriod)))
	_, err := s.CloseOpenRecord(ctx, "123456", gatsby.ID, borrowedAt.Add(72*time.Hour))
	require.NoError(t, err)

	loans, err := s.OpenLoans(ctx, "123456")
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, orwell.ID, loans[0].BookID)
	assert.Equal(t, "1984", loans[0].Title)
	assert.Equal(t, "George Orwell", loans[0].Author)

	history, err := s.History(ctx, "123456")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "1984", history[0].Title)
	assert.Nil(t, history[0].ReturnDate)
	assert.Equal(t, "The Great Gatsby", history[1].Title)
	require.NotNil(t, history[1].ReturnDate)

	empty, err := s.History(ctx, "999999")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func atomicallyCommits(t *testing.T, s library.Store) {
	ctx := context.Background()
	b := MustBook(t, s, "1984", "George Orwell", "9780451524935", 1)

	err := s.Atomically(ctx, func(ctx context.Context, tx library.Store) error {
		if err := tx.InsertRecord(ctx, library.NewBorrowRecord("123456", b.ID, borrowedAt, library.DefaultLoanPeriod)); err != nil {
			return err
		}
		return tx.AdjustAvailability(ctx, b.ID, -1)
	})
	require.NoError(t, err)

	got, err := s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Zero(t, got.AvailableCopies)

	n, err := s.CountOpenRecords(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func atomicallyRollsBack(t *testing.T, s library.Store) {
	ctx := context.Background()
	b := MustBook(t, s, "1984", "George Orwell", "9780451524935", 1)
	require.NoError(t, s.AdjustAvailability(ctx, b.ID, -1))

	err := s.Atomically(ctx, func(ctx context.Context, tx library.Store) error {
		if err := tx.InsertRecord(ctx, library.NewBorrowRecord("123456", b.ID, borrowedAt, library.DefaultLoanPeriod)); err != nil {
			return err
		}
		return tx.AdjustAvailability(ctx, b.ID, -1)
	})
	assert.ErrorIs(t, err, library.ErrAvailabilityRange)

	n, err := s.CountOpenRecords(ctx, "123456")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.LatestRecord(ctx, "123456", b.ID)
	assert.ErrorIs(t, err, library.ErrRecordNotFound)

	sentinel := errors.New("abort")
	err = s.Atomically(ctx, func(ctx context.Context, tx library.Store) error {
		if err := tx.AdjustAvailability(ctx, b.ID, 1); err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	got, err := s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Zero(t, got.AvailableCopies)
}

func titles(books []library.Book) []string {
	out := make([]string, 0, len(books))
	for _, b := range books {
		out = append(out, b.Title)
	}
	return out
}
