package library

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleLength  = 200
	MaxAuthorLength = 100
	ISBNLength      = 13
)

var (
	ErrBookNotFound      = errors.New("library: book not found")
	ErrDuplicateISBN     = errors.New("library: isbn already in catalog")
	ErrAvailabilityRange = errors.New("library: available copies out of range")

	ErrTitleRequired  = errors.New("library: title is required")
	ErrTitleTooLong   = errors.New("library: title too long")
	ErrAuthorRequired = errors.New("library: author is required")
	ErrAuthorTooLong  = errors.New("library: author too long")
	ErrISBNLength     = errors.New("library: isbn must be 13 characters")
	ErrInvalidCopies  = errors.New("library: total copies must be positive")
)

// Book is a catalog entry. AvailableCopies stays within [0, TotalCopies].
type Book struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
}

// NewBook validates catalog input and returns a book with every copy available.
// Title and author are trimmed before length checks.
func NewBook(title, author, isbn string, totalCopies int) (*Book, error) {
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)

	switch {
	case title == "":
		return nil, ErrTitleRequired
	case utf8.RuneCountInString(title) > MaxTitleLength:
		return nil, ErrTitleTooLong
	case author == "":
		return nil, ErrAuthorRequired
	case utf8.RuneCountInString(author) > MaxAuthorLength:
		return nil, ErrAuthorTooLong
	case utf8.RuneCountInString(isbn) != ISBNLength:
		return nil, ErrISBNLength
	case totalCopies <= 0:
		return nil, ErrInvalidCopies
	}

	return &Book{
		Title:           title,
		Author:          author,
		ISBN:            isbn,
		TotalCopies:     totalCopies,
		AvailableCopies: totalCopies,
	}, nil
}

// Available reports whether at least one copy can be lent.
func (b *Book) Available() bool { return b.AvailableCopies > 0 }

// Adjust applies delta to AvailableCopies, refusing to leave the [0, TotalCopies] range.
func (b *Book) Adjust(delta int) error {
	next := b.AvailableCopies + delta
	if next < 0 || next > b.TotalCopies {
		return ErrAvailabilityRange
	}
	b.AvailableCopies = next
	return nil
}

func (b *Book) Clone() *Book {
	if b == nil {
		return nil
	}
	clone := *b
	return &clone
}
