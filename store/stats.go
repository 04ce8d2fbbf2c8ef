package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// CountAccountsWithBalance returns the exact number of accounts holding a nonzero mirrored native balance. This is
// the holders statistic: accounts that merely appeared in transactions but hold nothing are excluded.
func (s *Store) CountAccountsWithBalance(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM accounts WHERE balance > 0`)
	return count, errors.Wrap(err, "could not count funded accounts")
}

// CountTransactionsSince returns the number of transactions whose block timestamp falls in the trailing window.
func (s *Store) CountTransactionsSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM transactions WHERE timestamp >= $1`, since)
	return count, errors.Wrap(err, "could not count recent transactions")
}

// TPS computes transactions per second over the trailing window, as exact decimal arithmetic. The window is clamped
// to a minimum of 60 seconds.
func (s *Store) TPS(ctx context.Context, window time.Duration) (decimal.Decimal, error) {
	if window < time.Minute {
		window = time.Minute
	}
	count, err := s.CountTransactionsSince(ctx, time.Now().UTC().Add(-window))
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(count).Div(decimal.NewFromInt(int64(window / time.Second))), nil
}
