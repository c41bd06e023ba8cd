package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/library-circulation/internal/domain/library"
	"github.com/Zhima-Mochi/library-circulation/internal/infrastructure/storetest"
)

func Test_Store_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) library.Store { return NewStore() })
}

func Test_Store_ReturnsClones(t *testing.T) {
	// setup
	ctx := context.Background()
	s := NewStore()
	b := storetest.MustBook(t, s, "1984", "George Orwell", "9780451524935", 2)

	// act
	got, err := s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	got.AvailableCopies = 0
	b.Title = "changed"

	// assert
	again, err := s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, again.AvailableCopies)
	assert.Equal(t, "1984", again.Title)
}

func Test_Store_ConcurrentBorrowsNeverOversell(t *testing.T) {
	// setup
	ctx := context.Background()
	s := NewStore()
	b := storetest.MustBook(t, s, "1984", "George Orwell", "9780451524935", 3)

	// act
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Atomically(ctx, func(ctx context.Context, tx library.Store) error {
				r := library.NewBorrowRecord("123456", b.ID, borrowedAtForTest, library.DefaultLoanPeriod)
				if err := tx.InsertRecord(ctx, r); err != nil {
					return err
				}
				return tx.AdjustAvailability(ctx, b.ID, -1)
			})
		}()
	}
	wg.Wait()

	// assert
	got, err := s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Zero(t, got.AvailableCopies)

	n, err := s.CountOpenRecords(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

var borrowedAtForTest = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
