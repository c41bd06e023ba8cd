// Package payment charges and refunds late fees through an injected payment gateway.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Zhima-Mochi/library-circulation/internal/application"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/fee"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/library"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/money"
	domoutbox "github.com/Zhima-Mochi/library-circulation/internal/domain/outbox"
	dompay "github.com/Zhima-Mochi/library-circulation/internal/domain/payment"
	"github.com/Zhima-Mochi/library-circulation/internal/observability"
)

const (
	paymentService    = "payment-bridge"
	useCasePayLateFee = "payment.pay_late_fee"
	useCaseRefund     = "payment.refund_late_fee"

	gatewayPeer     = "payment_gateway"
	endpointPayment = "process_payment"
	endpointRefund  = "refund_payment"
)

const (
	MsgInvalidPatron      = "Invalid patron ID. Must be exactly 6 digits."
	MsgFeeUnavailable     = "Unable to calculate late fees."
	MsgNoFee              = "No late fees to pay for this book."
	MsgBookNotFound       = "Book not found."
	MsgPaymentDescription = "Late fees for '%s'"
	MsgPaymentError       = "Payment processing error: %s"
	MsgPaymentDeclined    = "Payment failed: %s"
	MsgPaymentApproved    = "Payment successful! %s"
	MsgInvalidTransaction = "Invalid transaction ID."
	MsgRefundNotPositive  = "Refund amount must be greater than 0."
	MsgRefundTooLarge     = "Refund amount exceeds maximum late fee."
	MsgRefundError        = "Refund processing error: %s"
	MsgRefundDeclined     = "Refund failed: %s"
)

// FeeAssessor prices the late fee owed on a patron's latest loan of a book.
type FeeAssessor interface {
	LateFee(ctx context.Context, patronID string, bookID int64) fee.Result
}

// BookReader resolves the book named in a payment description.
type BookReader interface {
	GetBook(ctx context.Context, id int64) (*library.Book, error)
}

// Reason classifies an outcome for transports; it never reaches the response body.
type Reason string

const (
	ReasonOK           Reason = "ok"
	ReasonInvalid      Reason = "invalid"
	ReasonNoFee        Reason = "no_fee"
	ReasonBookNotFound Reason = "book_not_found"
	ReasonDeclined     Reason = "declined"
	ReasonFault        Reason = "fault"
)

// PaymentOutcome carries the gateway's transaction id only when the charge was approved.
type PaymentOutcome struct {
	OK            bool   `json:"success"`
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id,omitempty"`
	Reason        Reason `json:"-"`
}

type RefundOutcome struct {
	OK      bool   `json:"success"`
	Message string `json:"message"`
	Reason  Reason `json:"-"`
}

type Option func(*Bridge)

// WithMaxRefund overrides the refund ceiling, which defaults to the fee cap.
func WithMaxRefund(a money.Amount) Option {
	return func(b *Bridge) {
		if a > 0 {
			b.maxRefund = a
		}
	}
}

func WithPublisher(p domoutbox.Publisher) Option {
	return func(b *Bridge) { b.publisher = p }
}

// Bridge is the Payment Adapter Bridge. It never retries and keeps no record of payments.
type Bridge struct {
	books     BookReader
	fees      FeeAssessor
	gateway   dompay.Gateway
	publisher domoutbox.Publisher
	maxRefund money.Amount

	inst application.Instruments
}

func NewBridge(books BookReader, fees FeeAssessor, gateway dompay.Gateway, tel observability.Observability, opts ...Option) *Bridge {
	b := &Bridge{
		books:     books,
		fees:      fees,
		gateway:   gateway,
		maxRefund: fee.DefaultPolicy().MaxFee(),
		inst:      application.NewInstruments(tel, paymentService),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// PayLateFee recomputes the fee and charges it once. Gateway faults become a failed outcome.
func (b *Bridge) PayLateFee(ctx context.Context, patronID string, bookID int64) (out PaymentOutcome) {
	ctx, run := b.inst.Begin(ctx, useCasePayLateFee, "PayLateFee",
		attribute.String("library.patron_id", patronID),
		attribute.Int64("library.book_id", bookID),
	)
	defer run.End(b.inst)

	if !library.ValidPatronID(patronID) {
		run.Reject("INVALID_PATRON")
		return PaymentOutcome{Message: MsgInvalidPatron, Reason: ReasonInvalid}
	}

	owed := b.fees.LateFee(ctx, patronID, bookID)
	run.Annotate(
		observability.F("fee_status", string(owed.Status)),
		observability.F("fee_cents", int64(owed.Amount)),
	)
	if owed.Status == fee.StatusPending {
		run.Fail("FEE_UNAVAILABLE", errors.New("payment: late fee could not be assessed"))
		return PaymentOutcome{Message: MsgFeeUnavailable, Reason: ReasonFault}
	}
	if owed.Amount <= 0 {
		run.Reject("NO_FEE")
		return PaymentOutcome{Message: MsgNoFee, Reason: ReasonNoFee}
	}

	book, err := b.books.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, library.ErrBookNotFound) {
			run.Reject("BOOK_NOT_FOUND")
			return PaymentOutcome{Message: MsgBookNotFound, Reason: ReasonBookNotFound}
		}
		run.Fail("BOOK_LOOKUP_FAILED", err)
		return PaymentOutcome{Message: MsgBookNotFound, Reason: ReasonFault}
	}

	start := time.Now()
	charge, err := b.gateway.ProcessPayment(ctx, patronID, owed.Amount, fmt.Sprintf(MsgPaymentDescription, book.Title))
	if err != nil {
		b.inst.External(gatewayPeer, endpointPayment, application.OutcomeError, start)
		run.Fail("GATEWAY_FAULT", err)
		return PaymentOutcome{Message: fmt.Sprintf(MsgPaymentError, err.Error()), Reason: ReasonFault}
	}
	if !charge.Approved {
		b.inst.External(gatewayPeer, endpointPayment, application.OutcomeRejected, start)
		run.Reject("DECLINED")
		return PaymentOutcome{Message: fmt.Sprintf(MsgPaymentDeclined, charge.Message), Reason: ReasonDeclined}
	}
	b.inst.External(gatewayPeer, endpointPayment, application.OutcomeSuccess, start)

	run.Span().AddEvent("payment.approved",
		trace.WithAttributes(attribute.String("payment.transaction_id", charge.TransactionID)),
	)
	run.Annotate(observability.F("transaction_id", charge.TransactionID))
	b.inst.Publish(ctx, b.publisher,
		library.NewLateFeePaidEvent(patronID, bookID, charge.TransactionID, owed.Amount), run.Logger())

	return PaymentOutcome{
		OK:            true,
		Message:       fmt.Sprintf(MsgPaymentApproved, charge.Message),
		TransactionID: charge.TransactionID,
		Reason:        ReasonOK,
	}
}

// RefundLateFee validates the request locally and asks the gateway once.
func (b *Bridge) RefundLateFee(ctx context.Context, transactionID string, amount money.Amount) (out RefundOutcome) {
	ctx, run := b.inst.Begin(ctx, useCaseRefund, "RefundLateFee",
		attribute.String("payment.transaction_id", transactionID),
		attribute.Int64("payment.amount_cents", int64(amount)),
	)
	defer run.End(b.inst)

	switch {
	case !dompay.ValidTransactionID(transactionID):
		run.Reject("INVALID_TRANSACTION")
		return RefundOutcome{Message: MsgInvalidTransaction, Reason: ReasonInvalid}
	case amount <= 0:
		run.Reject("AMOUNT_NOT_POSITIVE")
		return RefundOutcome{Message: MsgRefundNotPositive, Reason: ReasonInvalid}
	case amount > b.maxRefund:
		run.Reject("AMOUNT_ABOVE_CAP")
		return RefundOutcome{Message: MsgRefundTooLarge, Reason: ReasonInvalid}
	}

	start := time.Now()
	refund, err := b.gateway.RefundPayment(ctx, transactionID, amount)
	if err != nil {
		b.inst.External(gatewayPeer, endpointRefund, application.OutcomeError, start)
		run.Fail("GATEWAY_FAULT", err)
		return RefundOutcome{Message: fmt.Sprintf(MsgRefundError, err.Error()), Reason: ReasonFault}
	}
	if !refund.Approved {
		b.inst.External(gatewayPeer, endpointRefund, application.OutcomeRejected, start)
		run.Reject("DECLINED")
		return RefundOutcome{Message: fmt.Sprintf(MsgRefundDeclined, refund.Message), Reason: ReasonDeclined}
	}
	b.inst.External(gatewayPeer, endpointRefund, application.OutcomeSuccess, start)

	b.inst.Publish(ctx, b.publisher, library.NewLateFeeRefundedEvent(transactionID, amount), run.Logger())
	return RefundOutcome{OK: true, Message: refund.Message, Reason: ReasonOK}
}
