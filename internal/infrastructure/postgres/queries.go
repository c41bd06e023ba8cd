package postgres

import (
	"errors"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/Zhima-Mochi/library-circulation/internal/domain/library"
)

const (
	dialectPostgres = "postgres"

	tableBooks   = "books"
	tableRecords = "borrow_records"

	colID              = "id"
	colTitle           = "title"
	colAuthor          = "author"
	colISBN            = "isbn"
	colTotalCopies     = "total_copies"
	colAvailableCopies = "available_copies"
	colPatronID        = "patron_id"
	colBookID          = "book_id"
	colBorrowDate      = "borrow_date"
	colDueDate         = "due_date"
	colReturnDate      = "return_date"
)

var ErrBuildingQueryFailed = errors.New("postgres: building query failed")

var builder = goqu.Dialect(dialectPostgres)

var bookCols = []any{colID, colTitle, colAuthor, colISBN, colTotalCopies, colAvailableCopies}

var recordCols = []any{colID, colPatronID, colBookID, colBorrowDate, colDueDate, colReturnDate}

// loanCols is the books/borrow_records join projection shared by OpenLoans and History.
var loanCols = []any{
	goqu.T("r").Col(colID), goqu.T("r").Col(colBookID), goqu.T("b").Col(colTitle), goqu.T("b").Col(colAuthor),
	goqu.T("r").Col(colBorrowDate), goqu.T("r").Col(colDueDate), goqu.T("r").Col(colReturnDate),
}

type statement interface {
	ToSQL() (string, []any, error)
}

func toSQL(s statement) (string, []any, error) {
	query, args, err := s.ToSQL()
	if err != nil {
		return "", nil, errors.Join(ErrBuildingQueryFailed, err)
	}
	return query, args, nil
}

func selectBook(id int64) (string, []any, error) {
	return toSQL(builder.From(tableBooks).Prepared(true).Select(bookCols...).Where(goqu.C(colID).Eq(id)))
}

func selectBooks(order library.BookOrder) (string, []any, error) {
	ds := builder.From(tableBooks).Prepared(true).Select(bookCols...)
	if order == library.OrderByTitle {
		ds = ds.Order(goqu.C(colTitle).Asc(), goqu.C(colID).Asc())
	} else {
		ds = ds.Order(goqu.C(colID).Asc())
	}
	return toSQL(ds)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func searchBooks(field library.SearchField, term string) (string, []any, error) {
	var where exp.Expression
	switch field {
	case library.SearchTitle:
		where = goqu.C(colTitle).ILike("%" + likeEscaper.Replace(term) + "%")
	case library.SearchAuthor:
		where = goqu.C(colAuthor).ILike("%" + likeEscaper.Replace(term) + "%")
	case library.SearchISBN:
		where = goqu.C(colISBN).Eq(term)
	default:
		return "", nil, nil
	}
	return toSQL(builder.From(tableBooks).Prepared(true).
		Select(bookCols...).
		Where(where).
		Order(goqu.C(colTitle).Asc(), goqu.C(colID).Asc()))
}

func insertBook(b *library.Book) (string, []any, error) {
	return toSQL(builder.Insert(tableBooks).Prepared(true).
		Rows(goqu.Record{
			colTitle:           b.Title,
			colAuthor:          b.Author,
			colISBN:            b.ISBN,
			colTotalCopies:     b.TotalCopies,
			colAvailableCopies: b.AvailableCopies,
		}).
		Returning(colID))
}

// adjustAvailability only matches when the result stays within [0, total_copies].
func adjustAvailability(bookID int64, delta int) (string, []any, error) {
	next := goqu.L("? + ?", goqu.C(colAvailableCopies), delta)
	return toSQL(builder.Update(tableBooks).Prepared(true).
		Set(goqu.Record{colAvailableCopies: next}).
		Where(
			goqu.C(colID).Eq(bookID),
			goqu.L("? + ? BETWEEN 0 AND ?", goqu.C(colAvailableCopies), delta, goqu.C(colTotalCopies)),
		))
}

func insertRecord(r *library.BorrowRecord) (string, []any, error) {
	return toSQL(builder.Insert(tableRecords).Prepared(true).
		Rows(goqu.Record{
			colPatronID:   r.PatronID,
			colBookID:     r.BookID,
			colBorrowDate: r.BorrowDate.UTC(),
			colDueDate:    r.DueDate.UTC(),
		}).
		Returning(colID))
}

func pairFilter(patronID string, bookID int64) exp.Expression {
	return goqu.And(goqu.C(colPatronID).Eq(patronID), goqu.C(colBookID).Eq(bookID))
}

// closeOpenRecord stamps the newest open record of the pair, locking it first.
func closeOpenRecord(patronID string, bookID int64, at time.Time) (string, []any, error) {
	newest := builder.From(tableRecords).
		Select(colID).
		Where(pairFilter(patronID, bookID), goqu.C(colReturnDate).IsNull()).
		Order(goqu.C(colID).Desc()).
		Limit(1).
		ForUpdate(exp.Wait)

	return toSQL(builder.Update(tableRecords).Prepared(true).
		Set(goqu.Record{colReturnDate: at.UTC()}).
		Where(goqu.C(colID).In(newest)).
		Returning(recordCols...))
}

func latestRecord(patronID string, bookID int64) (string, []any, error) {
	return toSQL(builder.From(tableRecords).Prepared(true).
		Select(recordCols...).
		Where(pairFilter(patronID, bookID)).
		Order(goqu.C(colID).Desc()).
		Limit(1))
}

// lockPatron serializes transactions touching one patron's loans until commit.
func lockPatron(patronID string) (string, []any, error) {
	return toSQL(builder.Select(goqu.Func("pg_advisory_xact_lock", goqu.Func("hashtext", patronID))).Prepared(true))
}

func countOpenRecords(patronID string) (string, []any, error) {
	return toSQL(builder.From(tableRecords).Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.C(colPatronID).Eq(patronID), goqu.C(colReturnDate).IsNull()))
}

func patronLoans(patronID string, openOnly bool) (string, []any, error) {
	ds := builder.From(goqu.T(tableRecords).As("r")).Prepared(true).
		Join(goqu.T(tableBooks).As("b"), goqu.On(goqu.T("b").Col(colID).Eq(goqu.T("r").Col(colBookID)))).
		Select(loanCols...)
	if openOnly {
		return toSQL(ds.
			Where(goqu.T("r").Col(colPatronID).Eq(patronID), goqu.T("r").Col(colReturnDate).IsNull()).
			Order(goqu.T("r").Col(colID).Asc()))
	}
	return toSQL(ds.
		Where(goqu.T("r").Col(colPatronID).Eq(patronID)).
		Order(goqu.T("r").Col(colBorrowDate).Desc(), goqu.T("r").Col(colID).Desc()))
}

// schema is applied by Migrate; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id               BIGSERIAL PRIMARY KEY,
		title            TEXT    NOT NULL,
		author           TEXT    NOT NULL,
		isbn             TEXT    NOT NULL UNIQUE,
		total_copies     INTEGER NOT NULL CHECK (total_copies > 0),
		available_copies INTEGER NOT NULL CHECK (available_copies BETWEEN 0 AND total_copies)
	)`,
	`CREATE TABLE IF NOT EXISTS borrow_records (
		id          BIGSERIAL   PRIMARY KEY,
		patron_id   TEXT        NOT NULL,
		book_id     BIGINT      NOT NULL REFERENCES books (id),
		borrow_date TIMESTAMPTZ NOT NULL,
		due_date    TIMESTAMPTZ NOT NULL,
		return_date TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS borrow_records_open_idx
		ON borrow_records (patron_id, book_id) WHERE return_date IS NULL`,
}
