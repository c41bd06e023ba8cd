package circulation

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Zhima-Mochi/library-circulation/internal/domain/fee"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/library"
	"github.com/Zhima-Mochi/library-circulation/internal/observability"
)

// LateFee prices the latest loan (open or closed) of bookID by patronID. Store faults
// degrade to a PENDING result with no fee.
func (s *Service) LateFee(ctx context.Context, patronID string, bookID int64) (res fee.Result) {
	ctx, run := s.inst.Begin(ctx, useCaseLateFee, "LateFee",
		attribute.String("library.patron_id", patronID),
		attribute.Int64("library.book_id", bookID),
	)
	defer func() {
		run.Span().SetAttributes(
			attribute.String("fee.status", string(res.Status)),
			attribute.Int64("fee.amount_cents", int64(res.Amount)),
		)
		run.End(s.inst)
	}()

	if !library.ValidPatronID(patronID) {
		run.Reject("INVALID_PATRON")
		return fee.Absent(fee.StatusInvalidPatron)
	}

	_, err := s.store.GetBook(ctx, bookID)
	switch {
	case errors.Is(err, library.ErrBookNotFound):
		run.Reject("BOOK_NOT_FOUND")
		return fee.Absent(fee.StatusBookNotFound)
	case err != nil:
		run.Fail("BOOK_LOOKUP_FAILED", err)
		return fee.Absent(fee.StatusPending)
	}

	record, err := s.store.LatestRecord(ctx, patronID, bookID)
	switch {
	case errors.Is(err, library.ErrRecordNotFound):
		run.Reject("NO_RECORD")
		return fee.Absent(fee.StatusNoRecord)
	case err != nil:
		run.Fail("RECORD_LOOKUP_FAILED", err)
		return fee.Absent(fee.StatusPending)
	}

	res = s.policy.ForRecord(record, s.now())
	run.Annotate(
		observability.F("record_id", record.ID),
		observability.F("days_overdue", res.DaysOverdue),
	)
	return res
}
