package gateway

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/library-circulation/internal/domain/money"
	dompay "github.com/Zhima-Mochi/library-circulation/internal/domain/payment"
)

func Test_Simulated_ChargeAndRefund(t *testing.T) {
	// setup
	ctx := context.Background()
	g := NewSimulated(nil)

	// act
	charge, err := g.ProcessPayment(ctx, "123456", money.Cents(650), "Late fees for '1984'")
	require.NoError(t, err)
	partial, err := g.RefundPayment(ctx, charge.TransactionID, money.Cents(400))
	require.NoError(t, err)
	tooMuch, err := g.RefundPayment(ctx, charge.TransactionID, money.Cents(300))
	require.NoError(t, err)

	// assert
	assert.True(t, charge.Approved)
	assert.True(t, strings.HasPrefix(charge.TransactionID, dompay.TransactionPrefix))
	assert.True(t, dompay.ValidTransactionID(charge.TransactionID))
	assert.Equal(t, "Payment of $6.50 processed", charge.Message)
	assert.True(t, partial.Approved)
	assert.False(t, tooMuch.Approved)
}

func Test_Simulated_DeclinesAtZeroRate(t *testing.T) {
	g := NewSimulated(nil, WithSuccessRate(-3), WithSeed(1))

	charge, err := g.ProcessPayment(context.Background(), "123456", money.Cents(100), "x")

	require.NoError(t, err)
	assert.False(t, charge.Approved)
	assert.Empty(t, charge.TransactionID)
	assert.Zero(t, g.SuccessRate())
}

func Test_Simulated_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	g := NewSimulated(nil)

	_, err := g.ProcessPayment(ctx, "", money.Cents(100), "x")
	assert.ErrorIs(t, err, ErrPatronRequired)

	_, err = g.ProcessPayment(ctx, "123456", money.Cents(0), "x")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = g.RefundPayment(ctx, "abc", money.Cents(100))
	assert.ErrorIs(t, err, ErrInvalidTransaction)

	refund, err := g.RefundPayment(ctx, "txn_unknown", money.Cents(100))
	require.NoError(t, err)
	assert.False(t, refund.Approved)
}

func Test_Simulated_HonoursContext(t *testing.T) {
	// setup
	g := NewSimulated(nil, WithLatency(time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// act
	_, err := g.ProcessPayment(ctx, "123456", money.Cents(100), "x")

	// assert
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
