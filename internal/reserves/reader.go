// Package reserves reads vault balances for monitored pools, derives
// price and liquidity figures, and records snapshots when the market
// has actually moved.
package reserves

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"raydium-pool-watch/internal/observability"
	"raydium-pool-watch/internal/solana"
)

// ErrVaultUnavailable indicates a vault could not be read as a token
// account after the retry budget was exhausted.
var ErrVaultUnavailable = errors.New("vault unavailable")

// RetryPolicy bounds the retry loop around freshly created vaults that
// the node does not yet serve as token accounts.
type RetryPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultRetryPolicy matches the node warm-up window for new vaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:   2 * time.Second,
		MaxDelay:    32 * time.Second,
		MaxAttempts: 5,
	}
}

// Reader reads vault balances with retry.
type Reader struct {
	rpc    solana.RPCClient
	policy RetryPolicy
	logger *zap.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewReader creates a vault balance reader.
func NewReader(rpc solana.RPCClient, policy RetryPolicy, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		rpc:    rpc,
		policy: policy,
		logger: logger.Named("reserves"),
		sleep:  sleepCtx,
	}
}

// Balance returns a vault's balance in UI units. A vault the node does
// not yet recognize as a token account is retried with exponential
// backoff; a permanent failure or an exhausted budget returns
// ErrVaultUnavailable.
func (r *Reader) Balance(ctx context.Context, vault string) (decimal.Decimal, error) {
	delay := r.policy.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		amount, err := r.rpc.GetTokenAccountBalance(ctx, vault)
		if err == nil {
			bal, perr := decimal.NewFromString(amount.Amount)
			if perr != nil {
				return decimal.Zero, fmt.Errorf("parse balance %q: %w", amount.Amount, perr)
			}
			return bal.Shift(int32(-amount.Decimals)), nil
		}

		if !isNotYetTokenAccount(err) {
			return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrVaultUnavailable, vault, err)
		}

		lastErr = err
		observability.RecordVaultRetry()
		r.logger.Debug("vault not yet a token account, retrying",
			zap.String("vault", vault),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay))

		if attempt == r.policy.MaxAttempts {
			break
		}
		if err := r.sleep(ctx, delay); err != nil {
			return decimal.Zero, err
		}
		delay *= 2
		if delay > r.policy.MaxDelay {
			delay = r.policy.MaxDelay
		}
	}

	return decimal.Zero, fmt.Errorf("%w: %s after %d attempts: %v",
		ErrVaultUnavailable, vault, r.policy.MaxAttempts, lastErr)
}

// isNotYetTokenAccount classifies the transient window right after
// pool creation, before the vault account is readable as a token
// account. Everything else is permanent.
func isNotYetTokenAccount(err error) bool {
	var rpcErr *solana.RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	msg := strings.ToLower(rpcErr.Message)
	return strings.Contains(msg, "not a token account") ||
		strings.Contains(msg, "could not find account")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
