package quota_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"ewintr.nl/shortscout/quota"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetReserve(t *testing.T) {
	ctx := context.Background()
	b := quota.NewBudget(500, quota.CostTable{quota.OpTrendingPage: 100})

	for i := 1; i <= 5; i++ {
		granted, err := b.Reserve(ctx, 100)
		require.NoError(t, err)
		assert.True(t, granted, "reservation %d", i)
	}
	granted, err := b.Reserve(ctx, 100)
	require.NoError(t, err)
	assert.False(t, granted)

	consumed, err := b.Consumed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(500), consumed)

	remaining, err := b.Remaining(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)
}

func TestBudgetReservePartialFit(t *testing.T) {
	ctx := context.Background()
	b := quota.NewBudget(150, nil)

	granted, err := b.Reserve(ctx, 100)
	require.NoError(t, err)
	assert.True(t, granted)

	granted, err = b.Reserve(ctx, 100)
	require.NoError(t, err)
	assert.False(t, granted)

	granted, err = b.Reserve(ctx, 50)
	require.NoError(t, err)
	assert.True(t, granted)

	_, err = b.Reserve(ctx, -1)
	assert.Error(t, err)
}

func TestBudgetReserveOp(t *testing.T) {
	ctx := context.Background()
	b := quota.NewBudget(10, quota.CostTable{
		quota.OpTrendingPage:  3,
		quota.OpVideoMetadata: 1,
	})

	granted, cost, err := b.ReserveOp(ctx, quota.OpTrendingPage)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Equal(t, int64(3), cost)

	_, _, err = b.ReserveOp(ctx, quota.Operation("search.list"))
	assert.ErrorIs(t, err, quota.ErrUnknownOperation)

	remaining, err := b.Remaining(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), remaining)
}

func TestBudgetConcurrentReserve(t *testing.T) {
	ctx := context.Background()
	b := quota.NewBudget(1000, nil)

	var granted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				ok, err := b.Reserve(ctx, 3)
				if err == nil && ok {
					granted.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(333), granted.Load())
	consumed, err := b.Consumed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(999), consumed)
}

func TestBudgetDailyPeriod(t *testing.T) {
	ctx := context.Background()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 6, 30, 0, 0, time.UTC) // 23:30 on the 9th in LA
	b := quota.NewBudget(100, nil,
		quota.WithPeriod(quota.DailyPeriod(loc)),
		quota.WithClock(func() time.Time { return now }),
	)

	granted, err := b.Reserve(ctx, 100)
	require.NoError(t, err)
	assert.True(t, granted)
	granted, err = b.Reserve(ctx, 1)
	require.NoError(t, err)
	assert.False(t, granted)

	now = now.Add(time.Hour)
	granted, err = b.Reserve(ctx, 1)
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestBudgetAcquire(t *testing.T) {
	ctx := context.Background()
	b := quota.NewBudget(100, nil)

	release, err := b.Acquire(ctx)
	require.NoError(t, err)

	_, err = b.Acquire(ctx)
	assert.ErrorIs(t, err, quota.ErrBudgetHeld)

	release()
	release, err = b.Acquire(ctx)
	require.NoError(t, err)
	release()
}
