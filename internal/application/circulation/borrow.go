package circulation

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Zhima-Mochi/library-circulation/internal/domain/library"
	"github.com/Zhima-Mochi/library-circulation/internal/observability"
)

var (
	errLimitReached = errors.New("circulation: borrow limit reached")
	errOpenCount    = errors.New("circulation: open loan count failed")
)

// BorrowBook lends one copy of bookID to patronID. The limit check, the record insert and the
// availability decrement run in one atomic unit.
func (s *Service) BorrowBook(ctx context.Context, patronID string, bookID int64) (out Outcome) {
	ctx, run := s.inst.Begin(ctx, useCaseBorrow, "BorrowBook",
		attribute.String("library.patron_id", patronID),
		attribute.Int64("library.book_id", bookID),
	)
	defer func() {
		run.Span().SetAttributes(attribute.String("circulation.reason", string(out.Reason)))
		run.End(s.inst)
	}()

	if !library.ValidPatronID(patronID) {
		run.Reject("INVALID_PATRON")
		return refused(ReasonInvalidPatron, MsgInvalidPatron)
	}

	book, err := s.store.GetBook(ctx, bookID)
	switch {
	case errors.Is(err, library.ErrBookNotFound):
		run.Reject("BOOK_NOT_FOUND")
		return refused(ReasonBookNotFound, MsgBorrowBookMissing)
	case err != nil:
		run.Fail("BOOK_LOOKUP_FAILED", err)
		return refused(ReasonStoreError, MsgBookLookupFailed)
	}
	if !book.Available() {
		run.Reject("UNAVAILABLE")
		return refused(ReasonUnavailable, MsgUnavailable)
	}

	record := library.NewBorrowRecord(patronID, bookID, s.now(), s.loanPeriod)
	open := 0
	failure := MsgRecordInsertFailed
	err = s.store.Atomically(ctx, func(ctx context.Context, tx library.Store) error {
		var err error
		if open, err = tx.CountOpenRecords(ctx, patronID); err != nil {
			return errors.Join(errOpenCount, err)
		}
		if open > s.borrowLimit {
			return errLimitReached
		}
		if err := tx.InsertRecord(ctx, record); err != nil {
			return err
		}
		failure = MsgBorrowAdjustFailed
		return tx.AdjustAvailability(ctx, bookID, -1)
	})
	run.Annotate(observability.F("open_loans", open))
	switch {
	case errors.Is(err, errLimitReached):
		run.Reject("LIMIT_REACHED")
		return refused(ReasonLimitReached, fmt.Sprintf(MsgLimitReached, s.borrowLimit))
	case errors.Is(err, errOpenCount):
		run.Fail("OPEN_COUNT_FAILED", err)
		return refused(ReasonStoreError, MsgLimitLookupFailed)
	case errors.Is(err, library.ErrAvailabilityRange):
		// another borrower took the last copy between the check and the commit
		run.Reject("UNAVAILABLE")
		return refused(ReasonUnavailable, MsgUnavailable)
	case err != nil:
		run.Fail("BORROW_COMMIT_FAILED", err)
		return refused(ReasonStoreError, failure)
	}

	run.Annotate(observability.F("record_id", record.ID))
	run.Span().AddEvent("library.book_borrowed",
		trace.WithAttributes(attribute.Int64("library.record_id", record.ID)),
	)
	s.inst.Publish(ctx, s.publisher, library.NewBookBorrowedEvent(record), run.Logger())

	return succeeded(fmt.Sprintf(MsgBorrowed, book.Title, record.DueDate.Format(dueDateLayout)))
}
