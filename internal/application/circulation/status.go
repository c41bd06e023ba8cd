package circulation

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Zhima-Mochi/library-circulation/internal/domain/fee"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/library"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/money"
	"github.com/Zhima-Mochi/library-circulation/internal/observability"
)

const (
	ReportOK            = "success"
	ReportInvalidPatron = "Invalid patron ID"
	ReportUnavailable   = "Unable to load patron status."
)

// CurrentLoan is an open loan with the fee it has accrued so far.
type CurrentLoan struct {
	library.OpenLoan
	LateFee fee.Result `json:"late_fee"`
}

// StatusReport is the read-side projection of one patron's loans.
type StatusReport struct {
	Status                 string                 `json:"status"`
	PatronID               string                 `json:"patron_id,omitempty"`
	CurrentlyBorrowedCount int                    `json:"currently_borrowed_count"`
	CurrentlyBorrowed      []CurrentLoan          `json:"currently_borrowed_books"`
	TotalLateFees          money.Amount           `json:"total_late_fees"`
	History                []library.HistoryEntry `json:"borrowing_history"`
}

// PatronStatus lists current loans with accrued fees and the full borrowing history.
func (s *Service) PatronStatus(ctx context.Context, patronID string) (report StatusReport) {
	ctx, run := s.inst.Begin(ctx, useCasePatronStatus, "PatronStatus",
		attribute.String("library.patron_id", patronID),
	)
	defer run.End(s.inst)

	report = StatusReport{
		Status:            ReportInvalidPatron,
		CurrentlyBorrowed: []CurrentLoan{},
		History:           []library.HistoryEntry{},
	}
	if !library.ValidPatronID(patronID) {
		run.Reject("INVALID_PATRON")
		return report
	}
	report.PatronID = patronID

	loans, err := s.store.OpenLoans(ctx, patronID)
	if err != nil {
		run.Fail("OPEN_LOANS_FAILED", err)
		report.Status = ReportUnavailable
		return report
	}
	history, err := s.store.History(ctx, patronID)
	if err != nil {
		run.Fail("HISTORY_FAILED", err)
		report.Status = ReportUnavailable
		return report
	}

	now := s.now()
	for _, loan := range loans {
		accrued := s.policy.Compute(loan.DueDate, now)
		report.CurrentlyBorrowed = append(report.CurrentlyBorrowed, CurrentLoan{OpenLoan: loan, LateFee: accrued})
		report.TotalLateFees += accrued.Amount
	}
	report.CurrentlyBorrowedCount = len(loans)
	report.History = history
	report.Status = ReportOK

	run.Annotate(
		observability.F("open_loans", report.CurrentlyBorrowedCount),
		observability.F("total_late_fees_cents", int64(report.TotalLateFees)),
	)
	return report
}
