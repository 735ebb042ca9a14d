package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type Operation string

const (
	OpTrendingPage  Operation = "trending.page"
	OpVideoMetadata Operation = "videos.metadata"
)

// CostTable maps an operation to the number of provider quota units one
// call of it consumes.
type CostTable map[Operation]int64

var (
	ErrUnknownOperation = errors.New("no cost configured for operation")
	ErrBudgetHeld       = errors.New("budget is held by another run")
)

type Ledger interface {
	Reserve(ctx context.Context, period string, cost, limit int64) (bool, error)
	Consumed(ctx context.Context, period string) (int64, error)
}

type Locker interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

// Period names the accounting window a point in time falls in. Reservations
// in different periods never share a counter.
type Period func(time.Time) string

func DailyPeriod(loc *time.Location) Period {
	return func(t time.Time) string {
		return t.In(loc).Format("2006-01-02")
	}
}

func FixedPeriod(key string) Period {
	return func(time.Time) string {
		return key
	}
}

type Budget struct {
	daily  int64
	costs  CostTable
	ledger Ledger
	lock   Locker
	period Period
	now    func() time.Time
}

type Option func(*Budget)

func WithLedger(l Ledger) Option { return func(b *Budget) { b.ledger = l } }

func WithLocker(l Locker) Option { return func(b *Budget) { b.lock = l } }

func WithPeriod(p Period) Option { return func(b *Budget) { b.period = p } }

func WithClock(now func() time.Time) Option { return func(b *Budget) { b.now = now } }

func NewBudget(daily int64, costs CostTable, opts ...Option) *Budget {
	b := &Budget{
		daily:  daily,
		costs:  costs,
		ledger: NewMemoryLedger(),
		lock:   &LocalLock{},
		period: FixedPeriod("run"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Budget) Daily() int64 {
	return b.daily
}

// Reserve grants cost units if they still fit in the budget for the current
// period. A denial is reported as false, not as an error.
func (b *Budget) Reserve(ctx context.Context, cost int64) (bool, error) {
	if cost < 0 {
		return false, fmt.Errorf("negative cost %d", cost)
	}
	return b.ledger.Reserve(ctx, b.period(b.now()), cost, b.daily)
}

func (b *Budget) Cost(op Operation) (int64, error) {
	cost, ok := b.costs[op]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}
	return cost, nil
}

func (b *Budget) ReserveOp(ctx context.Context, op Operation) (bool, int64, error) {
	cost, err := b.Cost(op)
	if err != nil {
		return false, 0, err
	}
	granted, err := b.Reserve(ctx, cost)
	if err != nil {
		return false, 0, err
	}
	return granted, cost, nil
}

func (b *Budget) Consumed(ctx context.Context) (int64, error) {
	return b.ledger.Consumed(ctx, b.period(b.now()))
}

func (b *Budget) Remaining(ctx context.Context) (int64, error) {
	consumed, err := b.Consumed(ctx)
	if err != nil {
		return 0, err
	}
	if consumed >= b.daily {
		return 0, nil
	}
	return b.daily - consumed, nil
}

// Acquire takes the run lease on the budget. Only one discovery run may
// hold it at a time.
func (b *Budget) Acquire(ctx context.Context) (func(), error) {
	release, ok, err := b.lock.TryLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not acquire budget lease: %w", err)
	}
	if !ok {
		return nil, ErrBudgetHeld
	}
	return release, nil
}

type MemoryLedger struct {
	mu       sync.Mutex
	consumed map[string]int64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{consumed: map[string]int64{}}
}

func (m *MemoryLedger) Reserve(_ context.Context, period string, cost, limit int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.consumed[period]+cost > limit {
		return false, nil
	}
	m.consumed[period] += cost
	return true, nil
}

func (m *MemoryLedger) Consumed(_ context.Context, period string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.consumed[period], nil
}

type LocalLock struct {
	mu sync.Mutex
}

func (l *LocalLock) TryLock(_ context.Context) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return l.mu.Unlock, true, nil
}
