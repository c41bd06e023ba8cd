package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/library-circulation/internal/domain/library"
)

func Test_SelectBooks_Order(t *testing.T) {
	byID, _, err := selectBooks(library.OrderByID)
	require.NoError(t, err)
	byTitle, _, err := selectBooks(library.OrderByTitle)
	require.NoError(t, err)

	assert.Contains(t, byID, `FROM "books"`)
	assert.Contains(t, byID, `ORDER BY "id" ASC`)
	assert.Contains(t, byTitle, `ORDER BY "title" ASC, "id" ASC`)
}

func Test_SearchBooks_EscapesLikePatterns(t *testing.T) {
	// act
	query, args, err := searchBooks(library.SearchTitle, `100%_off\`)

	// assert
	require.NoError(t, err)
	assert.Contains(t, query, `"title" ILIKE $1`)
	assert.Equal(t, []any{`%100\%\_off\\%`}, args)
}

func Test_SearchBooks_ISBNIsExact(t *testing.T) {
	query, args, err := searchBooks(library.SearchISBN, "9780451524935")

	require.NoError(t, err)
	assert.Contains(t, query, `"isbn" = $1`)
	assert.Equal(t, []any{"9780451524935"}, args)
}

func Test_SearchBooks_UnknownFieldBuildsNothing(t *testing.T) {
	query, args, err := searchBooks(library.SearchField("publisher"), "x")

	require.NoError(t, err)
	assert.Empty(t, query)
	assert.Nil(t, args)
}

func Test_InsertBook_ReturnsID(t *testing.T) {
	// setup
	b, err := library.NewBook("1984", "George Orwell", "9780451524935", 2)
	require.NoError(t, err)

	// act
	query, args, err := insertBook(b)

	// assert
	require.NoError(t, err)
	assert.Contains(t, query, `INSERT INTO "books"`)
	assert.Contains(t, query, `RETURNING "id"`)
	assert.ElementsMatch(t, []any{"1984", "George Orwell", "9780451524935", int64(2), int64(2)}, args)
}

func Test_AdjustAvailability_GuardsRange(t *testing.T) {
	query, _, err := adjustAvailability(7, -1)

	require.NoError(t, err)
	assert.Contains(t, query, `UPDATE "books"`)
	assert.Contains(t, query, `BETWEEN 0 AND "total_copies"`)
}

func Test_LockPatron_UsesTransactionAdvisoryLock(t *testing.T) {
	// act
	query, args, err := lockPatron("123456")

	// assert
	require.NoError(t, err)
	assert.Contains(t, query, `pg_advisory_xact_lock(hashtext($1))`)
	assert.Equal(t, []any{"123456"}, args)
}

func Test_CloseOpenRecord_LocksNewestOpenRecord(t *testing.T) {
	// act
	query, args, err := closeOpenRecord("123456", 3, time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC))

	// assert
	require.NoError(t, err)
	assert.Contains(t, query, `UPDATE "borrow_records"`)
	assert.Contains(t, query, `"return_date" IS NULL`)
	assert.Contains(t, query, `ORDER BY "id" DESC`)
	assert.Contains(t, query, `FOR UPDATE`)
	assert.Contains(t, query, `RETURNING "id", "patron_id", "book_id", "borrow_date", "due_date", "return_date"`)
	assert.Contains(t, args, "123456")
}

func Test_PatronLoans_JoinsBooks(t *testing.T) {
	open, _, err := patronLoans("123456", true)
	require.NoError(t, err)
	all, _, err := patronLoans("123456", false)
	require.NoError(t, err)

	assert.Contains(t, open, `INNER JOIN "books" AS "b"`)
	assert.Contains(t, open, `"r"."return_date" IS NULL`)
	assert.NotContains(t, all, `IS NULL`)
	assert.Contains(t, all, `ORDER BY "r"."borrow_date" DESC, "r"."id" DESC`)
}
