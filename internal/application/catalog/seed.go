package catalog

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/library-circulation/internal/domain/library"
	"github.com/Zhima-Mochi/library-circulation/internal/observability"
)

type sampleBook struct {
	title, author, isbn string
	copies              int
}

var sampleCatalog = []sampleBook{
	{"The Great Gatsby", "F. Scott Fitzgerald", "9780743273565", 3},
	{"To Kill a Mockingbird", "Harper Lee", "9780061120084", 2},
	{"1984", "George Orwell", "9780451524935", 1},
}

// SeedSampleCatalog fills an empty catalog with a few well-known titles and reports how many
// it inserted. A non-empty catalog is left alone.
func (s *Service) SeedSampleCatalog(ctx context.Context) (_ int, err error) {
	ctx, run := s.inst.Begin(ctx, useCaseSeed, "SeedSampleCatalog")
	defer run.End(s.inst)

	existing, err := s.store.ListBooks(ctx, library.OrderByID)
	if err != nil {
		run.Fail("LIST_FAILED", err)
		return 0, fmt.Errorf("catalog: seed: %w", err)
	}
	if len(existing) > 0 {
		run.Reject("CATALOG_NOT_EMPTY")
		return 0, nil
	}

	inserted := 0
	for _, sample := range sampleCatalog {
		book, err := library.NewBook(sample.title, sample.author, sample.isbn, sample.copies)
		if err != nil {
			run.Fail("SAMPLE_INVALID", err)
			return inserted, fmt.Errorf("catalog: seed %q: %w", sample.title, err)
		}
		if err := s.store.InsertBook(ctx, book); err != nil {
			run.Fail("INSERT_FAILED", err)
			return inserted, fmt.Errorf("catalog: seed %q: %w", sample.title, err)
		}
		inserted++
	}
	run.Annotate(observability.F("inserted", inserted))
	return inserted, nil
}
