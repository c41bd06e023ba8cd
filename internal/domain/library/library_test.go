package library_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/library-circulation/internal/domain/library"
)

func Test_ValidPatronID(t *testing.T) {
	testCases := []struct {
		id    string
		valid bool
	}{
		{"123456", true},
		{"000000", true},
		{"", false},
		{"12345", false},
		{"1234567", false},
		{"12a456", false},
		{"-12345", false},
		{"１２３４５６", false},
	}
	for _, tt := range testCases {
		assert.Equal(t, tt.valid, library.ValidPatronID(tt.id), tt.id)
	}
}

func Test_NewBook_Validation(t *testing.T) {
	testCases := []struct {
		name   string
		title  string
		author string
		isbn   string
		copies int
		err    error
	}{
		{"missing title", "  ", "Author", "1234567890123", 1, library.ErrTitleRequired},
		{"long title", strings.Repeat("t", 201), "Author", "1234567890123", 1, library.ErrTitleTooLong},
		{"missing author", "Title", "", "1234567890123", 1, library.ErrAuthorRequired},
		{"long author", "Title", strings.Repeat("a", 101), "1234567890123", 1, library.ErrAuthorTooLong},
		{"short isbn", "Title", "Author", "123", 1, library.ErrISBNLength},
		{"long isbn", "Title", "Author", "12345678901234", 1, library.ErrISBNLength},
		{"zero copies", "Title", "Author", "1234567890123", 0, library.ErrInvalidCopies},
		{"negative copies", "Title", "Author", "1234567890123", -1, library.ErrInvalidCopies},
	}
	for _, tt := range testCases {
		_, err := library.NewBook(tt.title, tt.author, tt.isbn, tt.copies)
		assert.ErrorIs(t, err, tt.err, tt.name)
	}
}

func Test_NewBook_TrimsAndMakesEveryCopyAvailable(t *testing.T) {
	book, err := library.NewBook("  Dune ", " Frank Herbert ", "9780441013593", 3)

	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, "Frank Herbert", book.Author)
	assert.Equal(t, 3, book.AvailableCopies)
	assert.Equal(t, 3, book.TotalCopies)
}

func Test_NewBook_AcceptsBoundaryLengths(t *testing.T) {
	_, err := library.NewBook(strings.Repeat("t", 200), strings.Repeat("a", 100), "1234567890123", 1)

	assert.NoError(t, err)
}

func Test_Book_AdjustStaysWithinRange(t *testing.T) {
	book := &library.Book{TotalCopies: 2, AvailableCopies: 1}

	require.NoError(t, book.Adjust(-1))
	assert.ErrorIs(t, book.Adjust(-1), library.ErrAvailabilityRange)
	require.NoError(t, book.Adjust(2))
	assert.ErrorIs(t, book.Adjust(1), library.ErrAvailabilityRange)
	assert.Equal(t, 2, book.AvailableCopies)
}

func Test_BorrowRecord_Lifecycle(t *testing.T) {
	borrowedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	record := library.NewBorrowRecord("123456", 7, borrowedAt, library.DefaultLoanPeriod)

	assert.Equal(t, borrowedAt.AddDate(0, 0, 14), record.DueDate)
	assert.True(t, record.IsOpen())
	assert.Equal(t, library.StateOpen, record.State())

	returnedAt := borrowedAt.Add(48 * time.Hour)
	require.NoError(t, record.Close(returnedAt))
	assert.Equal(t, library.StateClosed, record.State())
	assert.Equal(t, returnedAt, *record.ReturnDate)

	assert.ErrorIs(t, record.Close(returnedAt.Add(time.Hour)), library.ErrRecordClosed)
	assert.Equal(t, returnedAt, *record.ReturnDate)
}

func Test_BorrowRecord_CloneDetachesReturnDate(t *testing.T) {
	record := library.NewBorrowRecord("123456", 1, time.Unix(0, 0).UTC(), 0)
	require.NoError(t, record.Close(time.Unix(100, 0).UTC()))

	clone := record.Clone()
	*clone.ReturnDate = time.Unix(200, 0).UTC()

	assert.Equal(t, time.Unix(100, 0).UTC(), *record.ReturnDate)
	assert.Equal(t, library.DefaultLoanPeriod, record.DueDate.Sub(record.BorrowDate))
}

func Test_SortBooks(t *testing.T) {
	books := []library.Book{
		{ID: 3, Title: "Brave New World"},
		{ID: 1, Title: "Nineteen Eighty-Four"},
		{ID: 2, Title: "Brave New World"},
	}

	library.SortBooks(books, library.OrderByTitle)
	assert.Equal(t, []int64{2, 3, 1}, []int64{books[0].ID, books[1].ID, books[2].ID})

	library.SortBooks(books, library.OrderByID)
	assert.Equal(t, []int64{1, 2, 3}, []int64{books[0].ID, books[1].ID, books[2].ID})
}
