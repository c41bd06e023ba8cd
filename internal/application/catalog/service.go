// Package catalog adds, lists and searches books.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Zhima-Mochi/library-circulation/internal/application"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/library"
	"github.com/Zhima-Mochi/library-circulation/internal/observability"
)

const (
	catalogService = "catalog-service"

	useCaseAddBook = "catalog.add_book"
	useCaseList    = "catalog.list"
	useCaseSearch  = "catalog.search"
	useCaseSeed    = "catalog.seed"
)

const (
	MsgTitleRequired  = "Title is required."
	MsgTitleTooLong   = "Title must be less than 200 characters."
	MsgAuthorRequired = "Author is required."
	MsgAuthorTooLong  = "Author must be less than 100 characters."
	MsgISBNLength     = "ISBN must be exactly 13 digits."
	MsgInvalidCopies  = "Total copies must be a positive integer."
	MsgDuplicateISBN  = "A book with this ISBN already exists."
	MsgAddFailed      = "Database error occurred while adding the book."
	MsgAdded          = "Book \"%s\" has been successfully added to the catalog."
)

var validationMessages = map[error]string{
	library.ErrTitleRequired:  MsgTitleRequired,
	library.ErrTitleTooLong:   MsgTitleTooLong,
	library.ErrAuthorRequired: MsgAuthorRequired,
	library.ErrAuthorTooLong:  MsgAuthorTooLong,
	library.ErrISBNLength:     MsgISBNLength,
	library.ErrInvalidCopies:  MsgInvalidCopies,
}

// Outcome reports an AddBook attempt. BookID is set on success.
type Outcome struct {
	OK      bool   `json:"success"`
	Message string `json:"message"`
	BookID  int64  `json:"book_id,omitempty"`

	// Invalid distinguishes rejected input from a duplicate or a store fault.
	Invalid bool `json:"-"`
}

type Service struct {
	store library.Store
	inst  application.Instruments
}

func NewService(store library.Store, tel observability.Observability) *Service {
	return &Service{
		store: store,
		inst:  application.NewInstruments(tel, catalogService),
	}
}

// AddBook validates the input and inserts the book with every copy available.
func (s *Service) AddBook(ctx context.Context, title, author, isbn string, totalCopies int) Outcome {
	ctx, run := s.inst.Begin(ctx, useCaseAddBook, "AddBook",
		attribute.String("library.isbn", isbn),
		attribute.Int("library.total_copies", totalCopies),
	)
	defer run.End(s.inst)

	book, err := library.NewBook(title, author, isbn, totalCopies)
	if err != nil {
		run.Reject("INVALID_INPUT")
		return Outcome{Message: validationMessages[err], Invalid: true}
	}

	_, err = s.store.GetBookByISBN(ctx, isbn)
	switch {
	case err == nil:
		run.Reject("DUPLICATE_ISBN")
		return Outcome{Message: MsgDuplicateISBN}
	case !errors.Is(err, library.ErrBookNotFound):
		run.Fail("ISBN_LOOKUP_FAILED", err)
		return Outcome{Message: MsgAddFailed}
	}

	if err := s.store.InsertBook(ctx, book); err != nil {
		if errors.Is(err, library.ErrDuplicateISBN) {
			run.Reject("DUPLICATE_ISBN")
			return Outcome{Message: MsgDuplicateISBN}
		}
		run.Fail("INSERT_FAILED", err)
		return Outcome{Message: MsgAddFailed}
	}

	run.Annotate(observability.F("book_id", book.ID))
	return Outcome{OK: true, Message: fmt.Sprintf(MsgAdded, book.Title), BookID: book.ID}
}

// ListBooks returns the catalog in id order.
func (s *Service) ListBooks(ctx context.Context) (_ []library.Book, err error) {
	ctx, run := s.inst.Begin(ctx, useCaseList, "ListBooks")
	defer run.End(s.inst)

	books, err := s.store.ListBooks(ctx, library.OrderByID)
	if err != nil {
		run.Fail("LIST_FAILED", err)
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	run.Annotate(observability.F("books", len(books)))
	return books, nil
}

// Search matches title or author by case-insensitive substring and isbn exactly. Unknown
// kinds and store faults both yield an empty list.
func (s *Service) Search(ctx context.Context, term, kind string) []library.Book {
	ctx, run := s.inst.Begin(ctx, useCaseSearch, "Search",
		attribute.String("catalog.search_type", kind),
	)
	defer run.End(s.inst)

	field := library.SearchField(strings.ToLower(strings.TrimSpace(kind)))
	switch field {
	case library.SearchTitle, library.SearchAuthor, library.SearchISBN:
	default:
		run.Reject("UNKNOWN_SEARCH_TYPE")
		return []library.Book{}
	}

	books, err := s.store.SearchBooks(ctx, field, strings.TrimSpace(term))
	if err != nil {
		run.Fail("SEARCH_FAILED", err)
		return []library.Book{}
	}
	run.Annotate(observability.F("matches", len(books)))
	return books
}
