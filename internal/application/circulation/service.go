// Package circulation runs the borrow and return transitions and answers late-fee and patron
// status queries.
package circulation

import (
	"time"

	"github.com/Zhima-Mochi/library-circulation/internal/application"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/fee"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/library"
	domoutbox "github.com/Zhima-Mochi/library-circulation/internal/domain/outbox"
	"github.com/Zhima-Mochi/library-circulation/internal/observability"
)

const (
	circulationService = "circulation-service"

	useCaseBorrow       = "circulation.borrow"
	useCaseReturn       = "circulation.return"
	useCaseLateFee      = "circulation.late_fee"
	useCasePatronStatus = "circulation.patron_status"

	// DefaultBorrowLimit is compared with "greater than": a patron holding exactly this many
	// open loans may still borrow one more.
	DefaultBorrowLimit = 5
)

// Reason is a low-cardinality code for an Outcome, stable enough for metrics and HTTP mapping.
type Reason string

const (
	ReasonOK            Reason = "ok"
	ReasonInvalidPatron Reason = "invalid_patron"
	ReasonBookNotFound  Reason = "book_not_found"
	ReasonUnavailable   Reason = "unavailable"
	ReasonLimitReached  Reason = "limit_reached"
	ReasonNotBorrowed   Reason = "not_borrowed"
	ReasonStoreError    Reason = "store_error"
)

// Outcome is the patron-facing result of a transition. Faults never escape as errors.
type Outcome struct {
	OK      bool   `json:"success"`
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
}

func succeeded(msg string) Outcome { return Outcome{OK: true, Reason: ReasonOK, Message: msg} }

func refused(reason Reason, msg string) Outcome {
	return Outcome{Reason: reason, Message: msg}
}

const (
	MsgInvalidPatron      = "Invalid patron ID. Must be exactly 6 digits."
	MsgBorrowBookMissing  = "This book does not exist."
	MsgReturnBookMissing  = "Book not found."
	MsgUnavailable        = "This book is currently not available."
	MsgLimitReached       = "You have reached the maximum borrowing limit of %d books."
	MsgBookLookupFailed   = "Database error occurred while looking up the book."
	MsgLimitLookupFailed  = "Database error occurred while checking the borrowing limit."
	MsgRecordInsertFailed = "Database error occurred while creating borrow record."
	MsgBorrowAdjustFailed = "Database error occurred while updating book availability."
	MsgNotBorrowed        = "Book not borrowed by patron."
	MsgRecordUpdateFailed = "Unable to update record."
	MsgReturnAdjustFailed = "Unable to update book availability."
	MsgBorrowed           = "Successfully borrowed \"%s\". Due date: %s."
	MsgReturnedWithFee    = "Book returned successfully. Late fee: %s for %d day(s) overdue"
	MsgReturnedWithoutFee = "Book returned successfully. No late fee."
	dueDateLayout         = "2006-01-02"
)

type Option func(*Service)

// WithClock replaces time.Now; tests pin it.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithPolicy(p fee.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithBorrowLimit sets the open-loan count above which borrowing is refused.
func WithBorrowLimit(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.borrowLimit = n
		}
	}
}

func WithLoanPeriod(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.loanPeriod = d
		}
	}
}

// WithPublisher makes the service announce committed transitions.
func WithPublisher(p domoutbox.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// Service is the Borrow Lifecycle Controller. All state lives in the injected store.
type Service struct {
	store       library.Store
	publisher   domoutbox.Publisher
	policy      fee.Policy
	borrowLimit int
	loanPeriod  time.Duration
	now         func() time.Time

	inst application.Instruments
	log  observability.Logger
}

func NewService(store library.Store, tel observability.Observability, opts ...Option) *Service {
	inst := application.NewInstruments(tel, circulationService)
	s := &Service{
		store:       store,
		policy:      fee.DefaultPolicy(),
		borrowLimit: DefaultBorrowLimit,
		loanPeriod:  library.DefaultLoanPeriod,
		now:         time.Now,
		inst:        inst,
		log:         inst.Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy is the fee policy the service assesses with.
func (s *Service) Policy() fee.Policy { return s.policy }

func (s *Service) BorrowLimit() int { return s.borrowLimit }
