package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"finledger/internal/core"
)

// RetryPolicy bounds how often an atomic unit is re-run after a
// core.ErrConcurrency failure. Delays grow exponentially from BaseDelay up to
// MaxDelay with full jitter.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy allows five attempts with delays between 10ms and
// 500ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  5,
		BaseDelay: 10 * time.Millisecond,
		MaxDelay:  500 * time.Millisecond,
	}
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.BaseDelay << attempt
	if d <= 0 || d > p.MaxDelay {
		d = p.MaxDelay
	}
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(d) + 1))
}

func (p RetryPolicy) do(ctx context.Context, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil || !errors.Is(err, core.ErrConcurrency) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		delay := p.backoff(attempt)
		slog.DebugContext(ctx, "Retrying atomic unit after contention", "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
}

// Option configures the optional collaborators of a service.
type Option func(*base)

// WithCache memoizes summary reads and drops them on every committed write.
func WithCache(c ResultCache) Option {
	return func(b *base) { b.cache = c }
}

// WithPublisher announces committed writes. Publishing is best effort.
func WithPublisher(p Publisher) Option {
	return func(b *base) { b.publisher = p }
}

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(b *base) { b.retry = p }
}

type base struct {
	store     Store
	cache     ResultCache
	publisher Publisher
	retry     RetryPolicy
}

func newBase(store Store, opts []Option) base {
	b := base{store: store, retry: DefaultRetryPolicy()}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// atomic runs fn as one atomic unit, retrying on contention.
func (b *base) atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return b.retry.do(ctx, func() error {
		return b.store.InTx(ctx, fn)
	})
}

// committed runs the after-commit side effects of a ledger write. Failures
// are logged and never reach the caller, whose write already succeeded.
func (b *base) committed(ctx context.Context, ev core.LedgerEvent) {
	if b.cache != nil {
		b.cache.Invalidate(ctx, ev.OwnerID)
	}
	if b.publisher == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if err := b.publisher.PublishLedgerEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", ev.Kind,
			"owner_id", ev.OwnerID,
			"transaction_id", ev.TransactionID,
			"error", err)
	}
}

// cached serves key from c when present and otherwise stores the result of
// load under the generation observed before loading.
func cached[T any](ctx context.Context, c ResultCache, ownerID int64, key string, load func() (T, error)) (T, error) {
	if c == nil {
		return load()
	}
	var v T
	gen, ok := c.Get(ctx, ownerID, key, &v)
	if ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(ctx, ownerID, gen, key, v)
	return v, nil
}

// post is the single write path into the ledger: it checks account
// ownership and category existence, stores t and applies its balance legs.
// It must run inside an atomic unit.
func post(ctx context.Context, tx Tx, t core.Transaction) (core.Transaction, []int64, error) {
	legs, err := t.Legs()
	if err != nil {
		return core.Transaction{}, nil, err
	}
	ids := core.AccountIDs(legs)
	locked, err := tx.LockAccounts(ctx, t.OwnerID, ids...)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Transaction{}, nil, fmt.Errorf("%w (%v)", core.ErrUnknownAccount, err)
		}
		return core.Transaction{}, nil, err
	}
	if err := requireCategory(ctx, tx, t); err != nil {
		return core.Transaction{}, nil, err
	}

	saved, err := tx.InsertTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, nil, err
	}
	if err := applyLegs(ctx, tx, locked, legs); err != nil {
		return core.Transaction{}, nil, err
	}
	return saved, ids, nil
}

// requireCategory enforces that expenses are filed under a category from the
// owner's registry. Income and transfers use fixed or free-form categories.
func requireCategory(ctx context.Context, tx Tx, t core.Transaction) error {
	if t.Type != core.TxExpense {
		return nil
	}
	ok, err := tx.CategoryExists(ctx, t.OwnerID, t.Category)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q", core.ErrUnknownCategory, t.Category)
	}
	return nil
}

// applyLegs moves the balances of the locked accounts by the net of legs.
// A move that would overflow a balance fails before anything is written.
func applyLegs(ctx context.Context, tx Tx, locked map[int64]core.Account, legs ...[]core.Leg) error {
	net := core.NetLegs(legs...)
	for _, l := range net {
		if _, err := locked[l.AccountID].CurrentBalance.CheckedAdd(l.Delta); err != nil {
			return fmt.Errorf("account %d: %w", l.AccountID, err)
		}
	}
	for _, l := range net {
		if _, err := tx.ApplyDelta(ctx, l.AccountID, l.Delta); err != nil {
			return err
		}
	}
	return nil
}
