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

// ReturnBook closes the patron's most recent open loan of bookID and reports the late fee
// assessed on it. Once the loan is closed the return succeeds whatever the fee.
func (s *Service) ReturnBook(ctx context.Context, patronID string, bookID int64) (out Outcome) {
	ctx, run := s.inst.Begin(ctx, useCaseReturn, "ReturnBook",
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

	_, err := s.store.GetBook(ctx, bookID)
	switch {
	case errors.Is(err, library.ErrBookNotFound):
		run.Reject("BOOK_NOT_FOUND")
		return refused(ReasonBookNotFound, MsgReturnBookMissing)
	case err != nil:
		run.Fail("BOOK_LOOKUP_FAILED", err)
		return refused(ReasonStoreError, MsgBookLookupFailed)
	}

	returnedAt := s.now()
	var closed *library.BorrowRecord
	failure := MsgRecordUpdateFailed
	err = s.store.Atomically(ctx, func(ctx context.Context, tx library.Store) error {
		var err error
		if closed, err = tx.CloseOpenRecord(ctx, patronID, bookID, returnedAt); err != nil {
			return err
		}
		failure = MsgReturnAdjustFailed
		return tx.AdjustAvailability(ctx, bookID, 1)
	})
	switch {
	case errors.Is(err, library.ErrRecordNotFound):
		run.Reject("NOT_BORROWED")
		return refused(ReasonNotBorrowed, MsgNotBorrowed)
	case err != nil:
		run.Fail("RETURN_COMMIT_FAILED", err)
		return refused(ReasonStoreError, failure)
	}

	assessed := s.policy.ForRecord(closed, returnedAt)
	run.Annotate(
		observability.F("record_id", closed.ID),
		observability.F("days_overdue", assessed.DaysOverdue),
		observability.F("fee_cents", int64(assessed.Amount)),
	)
	run.Span().AddEvent("library.book_returned",
		trace.WithAttributes(
			attribute.Int64("library.record_id", closed.ID),
			attribute.Int("fee.days_overdue", assessed.DaysOverdue),
			attribute.Int64("fee.amount_cents", int64(assessed.Amount)),
		),
	)
	s.inst.Publish(ctx, s.publisher,
		library.NewBookReturnedEvent(closed, assessed.DaysOverdue, assessed.Amount), run.Logger())

	if assessed.Amount > 0 {
		return succeeded(fmt.Sprintf(MsgReturnedWithFee, assessed.Amount, assessed.DaysOverdue))
	}
	return succeeded(MsgReturnedWithoutFee)
}
