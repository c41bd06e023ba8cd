package fee_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/library-circulation/internal/domain/fee"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/library"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/money"
)

func Test_Price_MatchesTieredFormula(t *testing.T) {
	policy := fee.DefaultPolicy()

	for d := -3; d <= 40; d++ {
		var expected money.Amount
		switch {
		case d <= 0:
			expected = 0
		case d <= 7:
			expected = money.Amount(50 * d)
		default:
			expected = min(money.Cents(1500), money.Amount(350+100*(d-7)))
		}
		assert.Equal(t, expected, policy.Price(d), "days=%d", d)
	}
}

func Test_Price_Boundaries(t *testing.T) {
	policy := fee.DefaultPolicy()

	testCases := []struct {
		days     int
		expected money.Amount
	}{
		{1, 50},
		{7, 350},
		{8, 450},
		{10, 650},
		{22, 1450},
		{23, 1500},
		{24, 1500},
		{365, 1500},
	}
	for _, tt := range testCases {
		assert.Equal(t, tt.expected, policy.Price(tt.days), "days=%d", tt.days)
	}
}

func Test_Price_IsMonotoneAndCapped(t *testing.T) {
	policy := fee.DefaultPolicy()

	prev := policy.Price(0)
	for d := 1; d <= 100; d++ {
		cur := policy.Price(d)
		assert.GreaterOrEqual(t, cur, prev, "days=%d", d)
		assert.LessOrEqual(t, cur, policy.MaxFee(), "days=%d", d)
		if d >= 24 {
			assert.Equal(t, money.Cents(1500), cur, "days=%d", d)
		}
		prev = cur
	}
}

func Test_Compute_OnTime(t *testing.T) {
	due := time.Date(2026, 5, 14, 9, 0, 0, 0, time.UTC)

	testCases := []time.Time{
		due.AddDate(0, 0, -3),
		due,
		due.Add(14 * time.Hour), // later the same calendar day
	}
	for _, at := range testCases {
		result := fee.DefaultPolicy().In(time.UTC).Compute(due, at)
		assert.Equal(t, fee.Result{Status: fee.StatusOnTime}, result, at.String())
	}
}

func Test_Compute_CountsCalendarDaysNotElapsedHours(t *testing.T) {
	due := time.Date(2026, 5, 14, 23, 0, 0, 0, time.UTC)
	at := time.Date(2026, 5, 15, 1, 0, 0, 0, time.UTC)

	result := fee.DefaultPolicy().In(time.UTC).Compute(due, at)

	assert.Equal(t, 1, result.DaysOverdue)
	assert.Equal(t, money.Cents(50), result.Amount)
	assert.Equal(t, fee.StatusOverdue, result.Status)
}

func Test_Compute_TenDaysOverdue(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	due := now.AddDate(0, 0, -10)

	result := fee.DefaultPolicy().Compute(due, now)

	assert.Equal(t, fee.Result{Amount: money.Cents(650), DaysOverdue: 10, Status: fee.StatusOverdue}, result)
}

func Test_ForRecord_UsesReturnDateWhenClosed(t *testing.T) {
	borrowed := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	record := library.NewBorrowRecord("123456", 1, borrowed, library.DefaultLoanPeriod)
	policy := fee.DefaultPolicy()
	later := record.DueDate.AddDate(0, 0, 30)

	open := policy.ForRecord(record, record.DueDate.AddDate(0, 0, 3))
	assert.Equal(t, 3, open.DaysOverdue)

	require.NoError(t, record.Close(record.DueDate.AddDate(0, 0, 8)))
	closed := policy.ForRecord(record, later)
	assert.Equal(t, 8, closed.DaysOverdue)
	assert.Equal(t, money.Cents(450), closed.Amount)
}

func Test_Absent_ForcesZeroFee(t *testing.T) {
	for _, status := range []fee.Status{fee.StatusInvalidPatron, fee.StatusBookNotFound, fee.StatusNoRecord} {
		result := fee.Absent(status)
		assert.Equal(t, money.Amount(0), result.Amount)
		assert.Equal(t, 0, result.DaysOverdue)
		assert.Equal(t, status, result.Status)
	}
}

func Test_DaysOverdue_CountsInGivenLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	due := time.Date(2026, 6, 1, 20, 0, 0, 0, tokyo)
	// 2026-06-01 23:30 UTC is already 2026-06-02 in Tokyo.
	at := time.Date(2026, 6, 1, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, 1, fee.DaysOverdue(due, at, tokyo))
	assert.Equal(t, 1, fee.DaysOverdue(due.UTC(), at, tokyo))
	assert.Equal(t, 0, fee.DaysOverdue(due, at, time.UTC))
}

func Test_Compute_IgnoresZoneOfStoredInstants(t *testing.T) {
	// setup
	newYork := time.FixedZone("EST", -5*60*60)
	policy := fee.DefaultPolicy().In(newYork)
	due := time.Date(2026, 1, 15, 20, 0, 0, 0, newYork)
	returned := time.Date(2026, 1, 16, 10, 0, 0, 0, newYork)

	// act
	local := policy.Compute(due, returned)
	normalized := policy.Compute(due.UTC(), returned.UTC())

	// assert
	assert.Equal(t, fee.Result{Amount: money.Cents(50), DaysOverdue: 1, Status: fee.StatusOverdue}, local)
	assert.Equal(t, local, normalized)
}

func Test_Policy_NilLocationIsLocal(t *testing.T) {
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := due.AddDate(0, 0, 2)

	assert.Equal(t, fee.DefaultPolicy().Compute(due, at), fee.Policy{
		DailyRate:         money.Cents(50),
		TieredDays:        7,
		ExtendedDailyRate: money.Cents(100),
		Cap:               money.Cents(1500),
	}.Compute(due, at))
	assert.Equal(t, time.Local, fee.DefaultPolicy().Location)
}
