package catalog_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/library-circulation/internal/application/catalog"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/library"
	"github.com/Zhima-Mochi/library-circulation/internal/infrastructure/memory"
)

type failingStore struct {
	library.Store
	err error
}

func (s failingStore) SearchBooks(context.Context, library.SearchField, string) ([]library.Book, error) {
	return nil, s.err
}

func (s failingStore) GetBookByISBN(context.Context, string) (*library.Book, error) {
	return nil, s.err
}

func (s failingStore) ListBooks(context.Context, library.BookOrder) ([]library.Book, error) {
	return nil, s.err
}

func Test_AddBook_Success(t *testing.T) {
	// setup
	store := memory.NewStore()
	svc := catalog.NewService(store, nil)

	// act
	out := svc.AddBook(context.Background(), "  The Hobbit  ", " J.R.R. Tolkien ", "9780547928227", 4)

	// assert
	assert.True(t, out.OK)
	assert.Equal(t, `Book "The Hobbit" has been successfully added to the catalog.`, out.Message)

	book, err := store.GetBook(context.Background(), out.BookID)
	require.NoError(t, err)
	assert.Equal(t, "The Hobbit", book.Title)
	assert.Equal(t, "J.R.R. Tolkien", book.Author)
	assert.Equal(t, 4, book.TotalCopies)
	assert.Equal(t, 4, book.AvailableCopies)
}

func Test_AddBook_Validation(t *testing.T) {
	testCases := []struct {
		name    string
		title   string
		author  string
		isbn    string
		copies  int
		message string
	}{
		{"blank title", "   ", "Author", "9780547928227", 1, catalog.MsgTitleRequired},
		{"long title", strings.Repeat("t", 201), "Author", "9780547928227", 1, catalog.MsgTitleTooLong},
		{"blank author", "Title", "", "9780547928227", 1, catalog.MsgAuthorRequired},
		{"long author", "Title", strings.Repeat("a", 101), "9780547928227", 1, catalog.MsgAuthorTooLong},
		{"short isbn", "Title", "Author", "978054792822", 1, catalog.MsgISBNLength},
		{"long isbn", "Title", "Author", "97805479282270", 1, catalog.MsgISBNLength},
		{"zero copies", "Title", "Author", "9780547928227", 0, catalog.MsgInvalidCopies},
		{"negative copies", "Title", "Author", "9780547928227", -2, catalog.MsgInvalidCopies},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			svc := catalog.NewService(memory.NewStore(), nil)

			out := svc.AddBook(context.Background(), tt.title, tt.author, tt.isbn, tt.copies)

			assert.False(t, out.OK)
			assert.True(t, out.Invalid)
			assert.Equal(t, tt.message, out.Message)
		})
	}
}

func Test_AddBook_BoundaryLengthsAccepted(t *testing.T) {
	svc := catalog.NewService(memory.NewStore(), nil)

	out := svc.AddBook(context.Background(), strings.Repeat("t", 200), strings.Repeat("a", 100), "9780547928227", 1)

	assert.True(t, out.OK)
}

func Test_AddBook_DuplicateISBN(t *testing.T) {
	svc := catalog.NewService(memory.NewStore(), nil)
	ctx := context.Background()
	require.True(t, svc.AddBook(ctx, "1984", "George Orwell", "9780451524935", 1).OK)

	out := svc.AddBook(ctx, "Nineteen Eighty-Four", "Orwell", "9780451524935", 2)

	assert.False(t, out.OK)
	assert.False(t, out.Invalid)
	assert.Equal(t, catalog.MsgDuplicateISBN, out.Message)
}

func Test_AddBook_StoreFault(t *testing.T) {
	svc := catalog.NewService(failingStore{Store: memory.NewStore(), err: errors.New("io")}, nil)

	out := svc.AddBook(context.Background(), "1984", "George Orwell", "9780451524935", 1)

	assert.False(t, out.OK)
	assert.Equal(t, catalog.MsgAddFailed, out.Message)
}

func Test_Search(t *testing.T) {
	// setup
	store := memory.NewStore()
	svc := catalog.NewService(store, nil)
	ctx := context.Background()
	n, err := svc.SeedSampleCatalog(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	// act + assert
	assert.Len(t, svc.Search(ctx, "gatsby", "title"), 1)
	assert.Len(t, svc.Search(ctx, "LEE", "author"), 1)
	assert.Len(t, svc.Search(ctx, "9780451524935", "isbn"), 1)
	assert.Empty(t, svc.Search(ctx, "97804515", "isbn"))
	assert.Empty(t, svc.Search(ctx, "1984", "Title (partial match)"))

	all := svc.Search(ctx, "", "title")
	require.Len(t, all, 3)
	assert.Equal(t, "1984", all[0].Title)
	assert.Equal(t, "To Kill a Mockingbird", all[2].Title)
}

func Test_Search_StoreFaultIsEmpty(t *testing.T) {
	svc := catalog.NewService(failingStore{Store: memory.NewStore(), err: errors.New("io")}, nil)

	got := svc.Search(context.Background(), "x", "title")

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func Test_ListBooks(t *testing.T) {
	store := memory.NewStore()
	svc := catalog.NewService(store, nil)
	ctx := context.Background()
	_, err := svc.SeedSampleCatalog(ctx)
	require.NoError(t, err)

	books, err := svc.ListBooks(ctx)

	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, "The Great Gatsby", books[0].Title)
	assert.Equal(t, "1984", books[2].Title)

	_, err = catalog.NewService(failingStore{Store: store, err: errors.New("io")}, nil).ListBooks(ctx)
	assert.Error(t, err)
}

func Test_SeedSampleCatalog_OnlyWhenEmpty(t *testing.T) {
	store := memory.NewStore()
	svc := catalog.NewService(store, nil)
	ctx := context.Background()
	require.True(t, svc.AddBook(ctx, "The Hobbit", "J.R.R. Tolkien", "9780547928227", 1).OK)

	n, err := svc.SeedSampleCatalog(ctx)

	require.NoError(t, err)
	assert.Zero(t, n)
	books, err := svc.ListBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 1)
}
