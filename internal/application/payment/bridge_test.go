package payment_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Zhima-Mochi/library-circulation/internal/application/payment"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/fee"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/library"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/money"
	domoutbox "github.com/Zhima-Mochi/library-circulation/internal/domain/outbox"
	dompay "github.com/Zhima-Mochi/library-circulation/internal/domain/payment"
	"github.com/Zhima-Mochi/library-circulation/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/library-circulation/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/library-circulation/internal/infrastructure/storetest"
	"github.com/Zhima-Mochi/library-circulation/internal/mocks"
)

const patron = "123456"

type feeFunc func(ctx context.Context, patronID string, bookID int64) fee.Result

func (f feeFunc) LateFee(ctx context.Context, patronID string, bookID int64) fee.Result {
	return f(ctx, patronID, bookID)
}

func owes(amount int64, days int) feeFunc {
	return func(context.Context, string, int64) fee.Result {
		return fee.Result{Amount: money.Cents(amount), DaysOverdue: days, Status: fee.StatusOverdue}
	}
}

func fixedFee(res fee.Result) feeFunc {
	return func(context.Context, string, int64) fee.Result { return res }
}

type recordingPublisher struct{ events []domoutbox.Event }

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.events = append(p.events, e)
	return nil
}

func newBooks(t *testing.T) (*memory.Store, *library.Book) {
	t.Helper()
	store := memory.NewStore()
	return store, storetest.MustBook(t, store, "1984", "George Orwell", "9780451524935", 1)
}

func Test_PayLateFee_Approved(t *testing.T) {
	// setup
	books, book := newBooks(t)
	gateway := mocks.NewPaymentGateway(t)
	gateway.On("ProcessPayment", mock.Anything, patron, money.Cents(650), "Late fees for '1984'").
		Return(dompay.Charge{Approved: true, TransactionID: "txn_abc123", Message: "Payment of $6.50 processed"}, nil).
		Once()
	pub := &recordingPublisher{}
	bridge := payment.NewBridge(books, owes(650, 10), gateway, nil, payment.WithPublisher(pub))

	// act
	out := bridge.PayLateFee(context.Background(), patron, book.ID)

	// assert
	assert.True(t, out.OK)
	assert.Equal(t, payment.ReasonOK, out.Reason)
	assert.Equal(t, "Payment successful! Payment of $6.50 processed", out.Message)
	assert.Equal(t, "txn_abc123", out.TransactionID)

	require.Len(t, pub.events, 1)
	paid, ok := pub.events[0].(library.LateFeePaidEvent)
	require.True(t, ok)
	assert.Equal(t, money.Cents(650), paid.Amount)
	assert.Equal(t, "txn_abc123", paid.TransactionID)
}

func Test_PayLateFee_NeverCallsGateway(t *testing.T) {
	testCases := []struct {
		name    string
		patron  string
		fees    payment.FeeAssessor
		bookID  int64
		message string
	}{
		{"malformed patron", "12345", owes(650, 10), 1, payment.MsgInvalidPatron},
		{"alphabetic patron", "abcdef", owes(650, 10), 1, payment.MsgInvalidPatron},
		{"fee pending", patron, fixedFee(fee.Absent(fee.StatusPending)), 1, payment.MsgFeeUnavailable},
		{"on time", patron, fixedFee(fee.Result{Status: fee.StatusOnTime}), 1, payment.MsgNoFee},
		{"no record", patron, fixedFee(fee.Absent(fee.StatusNoRecord)), 1, payment.MsgNoFee},
		{"book missing", patron, owes(350, 7), 99, payment.MsgBookNotFound},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			// setup
			books, _ := newBooks(t)
			gateway := mocks.NewPaymentGateway(t)
			bridge := payment.NewBridge(books, tt.fees, gateway, nil)

			// act
			out := bridge.PayLateFee(context.Background(), tt.patron, tt.bookID)

			// assert
			assert.False(t, out.OK)
			assert.Equal(t, tt.message, out.Message)
			assert.Empty(t, out.TransactionID)
			gateway.AssertNotCalled(t, "ProcessPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func Test_PayLateFee_Declined(t *testing.T) {
	books, book := newBooks(t)
	gateway := mocks.NewPaymentGateway(t)
	gateway.On("ProcessPayment", mock.Anything, patron, money.Cents(350), mock.Anything).
		Return(dompay.Charge{Message: "Insufficient funds"}, nil).Once()
	bridge := payment.NewBridge(books, owes(350, 7), gateway, nil)

	out := bridge.PayLateFee(context.Background(), patron, book.ID)

	assert.False(t, out.OK)
	assert.Equal(t, payment.ReasonDeclined, out.Reason)
	assert.Equal(t, "Payment failed: Insufficient funds", out.Message)
	assert.Empty(t, out.TransactionID)
}

func Test_PayLateFee_GatewayFaultIsContained(t *testing.T) {
	books, book := newBooks(t)
	gateway := mocks.NewPaymentGateway(t)
	gateway.On("ProcessPayment", mock.Anything, patron, money.Cents(1500), mock.Anything).
		Return(dompay.Charge{}, errors.New("connection refused")).Once()
	bridge := payment.NewBridge(books, owes(1500, 30), gateway, nil)

	var out payment.PaymentOutcome
	assert.NotPanics(t, func() { out = bridge.PayLateFee(context.Background(), patron, book.ID) })

	assert.False(t, out.OK)
	assert.Equal(t, payment.ReasonFault, out.Reason)
	assert.Equal(t, "Payment processing error: connection refused", out.Message)
}

func Test_RefundLateFee_RejectsBeforeGateway(t *testing.T) {
	testCases := []struct {
		name    string
		txn     string
		amount  money.Amount
		message string
	}{
		{"empty id", "", money.Cents(500), payment.MsgInvalidTransaction},
		{"wrong prefix", "tx_123", money.Cents(500), payment.MsgInvalidTransaction},
		{"prefix only", "txn_", money.Cents(500), payment.MsgInvalidTransaction},
		{"zero", "txn_123", money.Cents(0), payment.MsgRefundNotPositive},
		{"negative", "txn_123", money.Cents(-100), payment.MsgRefundNotPositive},
		{"above cap", "txn_123", money.Cents(1501), payment.MsgRefundTooLarge},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			gateway := mocks.NewPaymentGateway(t)
			bridge := payment.NewBridge(nil, nil, gateway, nil)

			out := bridge.RefundLateFee(context.Background(), tt.txn, tt.amount)

			assert.False(t, out.OK)
			assert.Equal(t, tt.message, out.Message)
			gateway.AssertNotCalled(t, "RefundPayment", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func Test_RefundLateFee_GatewayResults(t *testing.T) {
	testCases := []struct {
		name    string
		refund  dompay.Refund
		err     error
		ok      bool
		message string
	}{
		{"approved", dompay.Refund{Approved: true, Message: "Refund of $15.00 processed"}, nil, true, "Refund of $15.00 processed"},
		{"declined", dompay.Refund{Message: "Transaction not found"}, nil, false, "Refund failed: Transaction not found"},
		{"fault", dompay.Refund{}, errors.New("timeout"), false, "Refund processing error: timeout"},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			// setup
			gateway := mocks.NewPaymentGateway(t)
			gateway.On("RefundPayment", mock.Anything, "txn_123", money.Cents(1500)).Return(tt.refund, tt.err).Once()
			pub := &recordingPublisher{}
			bridge := payment.NewBridge(nil, nil, gateway, nil, payment.WithPublisher(pub))

			// act
			out := bridge.RefundLateFee(context.Background(), "txn_123", money.Cents(1500))

			// assert
			assert.Equal(t, tt.ok, out.OK)
			assert.Equal(t, tt.message, out.Message)
			if tt.ok {
				require.Len(t, pub.events, 1)
				assert.IsType(t, library.LateFeeRefundedEvent{}, pub.events[0])
			} else {
				assert.Empty(t, pub.events)
			}
		})
	}
}

func Test_RefundLateFee_CustomCeiling(t *testing.T) {
	gateway := mocks.NewPaymentGateway(t)
	bridge := payment.NewBridge(nil, nil, gateway, nil, payment.WithMaxRefund(money.Cents(1000)))

	out := bridge.RefundLateFee(context.Background(), "txn_123", money.Cents(1001))

	assert.Equal(t, payment.MsgRefundTooLarge, out.Message)
}

func Test_Bridge_RecordsGatewayCalls(t *testing.T) {
	// setup
	reg := prometheus.NewRegistry()
	tel := infraobs.Setup(zap.NewNop(), reg, "", "test")
	books, book := newBooks(t)
	gateway := mocks.NewPaymentGateway(t)
	gateway.On("ProcessPayment", mock.Anything, patron, mock.Anything, mock.Anything).
		Return(dompay.Charge{Approved: true, TransactionID: "txn_1", Message: "ok"}, nil).Once()
	gateway.On("RefundPayment", mock.Anything, "txn_1", mock.Anything).
		Return(dompay.Refund{}, errors.New("timeout")).Once()
	bridge := payment.NewBridge(books, owes(50, 1), gateway, tel)

	// act
	require.True(t, bridge.PayLateFee(context.Background(), patron, book.ID).OK)
	require.False(t, bridge.RefundLateFee(context.Background(), "txn_1", money.Cents(50)).OK)

	// assert
	expected := `
# HELP external_requests_total Calls made to external collaborators.
# TYPE external_requests_total counter
external_requests_total{endpoint="process_payment",outcome="success",peer="payment_gateway"} 1
external_requests_total{endpoint="refund_payment",outcome="error",peer="payment_gateway"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "external_requests_total"))
}
