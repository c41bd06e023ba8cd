package ledger_test

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Zhima-Mochi/library-circulation/internal/application/ledger"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/library"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/money"
	infraobs "github.com/Zhima-Mochi/library-circulation/internal/infrastructure/observability"
)

type otherEvent struct{}

func (otherEvent) EventName() string { return "library.book_borrowed" }

func Test_EntryFromEvent(t *testing.T) {
	returned := library.BookReturnedEvent{PatronID: "123456", BookID: 3, DaysOverdue: 10, Fee: money.Cents(650)}
	paid := library.NewLateFeePaidEvent("123456", 3, "txn_1", money.Cents(650))
	refunded := library.NewLateFeeRefundedEvent("txn_1", money.Cents(200))

	entry, ok := ledger.EntryFromEvent(returned)
	require.True(t, ok)
	assert.Equal(t, ledger.Entry{Kind: ledger.KindAssessed, Amount: money.Cents(650), PatronID: "123456", BookID: 3}, entry)

	entry, ok = ledger.EntryFromEvent(paid)
	require.True(t, ok)
	assert.Equal(t, ledger.KindPaid, entry.Kind)
	assert.Equal(t, "txn_1", entry.TransactionID)

	entry, ok = ledger.EntryFromEvent(refunded)
	require.True(t, ok)
	assert.Equal(t, ledger.KindRefunded, entry.Kind)
	assert.Equal(t, money.Cents(200), entry.Amount)

	_, ok = ledger.EntryFromEvent(otherEvent{})
	assert.False(t, ok)
}

func Test_Ledger_RecordAccumulates(t *testing.T) {
	// setup
	reg := prometheus.NewRegistry()
	l := ledger.New(infraobs.Setup(zap.NewNop(), reg, "", "test"))
	ctx := context.Background()

	// act
	require.NoError(t, l.Record(ctx, ledger.Entry{Kind: ledger.KindAssessed, Amount: money.Cents(650)}))
	require.NoError(t, l.Record(ctx, ledger.Entry{Kind: ledger.KindAssessed, Amount: money.Cents(0)}))
	require.NoError(t, l.Record(ctx, ledger.Entry{Kind: ledger.KindPaid, Amount: money.Cents(650)}))
	require.NoError(t, l.Record(ctx, ledger.Entry{Kind: ledger.KindRefunded, Amount: money.Cents(150)}))
	err := l.Record(ctx, ledger.Entry{Kind: ledger.KindPaid, Amount: money.Cents(-1)})

	// assert
	assert.ErrorIs(t, err, ledger.ErrNegativeAmount)
	assert.Equal(t, map[ledger.Kind]money.Amount{
		ledger.KindAssessed: money.Cents(650),
		ledger.KindPaid:     money.Cents(650),
		ledger.KindRefunded: money.Cents(150),
	}, l.Totals())

	expected := `
# HELP ledger_amount_cents_total Late-fee money observed by the ledger, in cents.
# TYPE ledger_amount_cents_total counter
ledger_amount_cents_total{kind="assessed"} 650
ledger_amount_cents_total{kind="paid"} 650
ledger_amount_cents_total{kind="refunded"} 150
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "ledger_amount_cents_total"))
}

func Test_Events(t *testing.T) {
	assert.ElementsMatch(t, []string{
		"library.book_returned",
		"library.late_fee_paid",
		"library.late_fee_refunded",
	}, ledger.Events())
}
