// Package token resolves SPL token identity: decimals from the mint
// account and a display symbol from a known-mints table.
package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"raydium-pool-watch/internal/domain"
	"raydium-pool-watch/internal/solana"
)

// ErrInvalidMint indicates the mint address is not a valid public key.
var ErrInvalidMint = errors.New("invalid mint address")

// ErrMintUnavailable indicates the mint could not be read after the
// retry budget was exhausted.
var ErrMintUnavailable = errors.New("mint unavailable")

// RetryPolicy bounds the retry loop around transient node responses.
type RetryPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultRetryPolicy matches the node warm-up window for fresh accounts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:   2 * time.Second,
		MaxDelay:    32 * time.Second,
		MaxAttempts: 5,
	}
}

// Resolver resolves token info with a small in-memory cache. Safe for
// concurrent use; resolutions for different pools run in parallel.
type Resolver struct {
	rpc    solana.RPCClient
	policy RetryPolicy
	logger *zap.Logger
	sleep  func(context.Context, time.Duration) error

	mu    sync.Mutex
	cache map[string]domain.TokenInfo
}

// NewResolver creates a resolver backed by the given RPC client.
func NewResolver(rpc solana.RPCClient, policy RetryPolicy, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		rpc:    rpc,
		policy: policy,
		logger: logger.Named("token"),
		cache:  make(map[string]domain.TokenInfo),
		sleep:  sleepCtx,
	}
}

// Resolve returns token info for the mint, consulting the node for
// decimals. Transient not-yet-visible responses are retried with
// exponential backoff up to the policy's attempt budget.
func (r *Resolver) Resolve(ctx context.Context, mint string) (domain.TokenInfo, error) {
	r.mu.Lock()
	cached, ok := r.cache[mint]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	if err := ValidateMint(mint); err != nil {
		return domain.TokenInfo{}, err
	}
	if !IsOnCurve(mint) {
		r.logger.Debug("mint is off curve", zap.String("mint", mint))
	}

	delay := r.policy.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		supply, err := r.rpc.GetTokenSupply(ctx, mint)
		if err == nil {
			info := domain.TokenInfo{
				Mint:     mint,
				Symbol:   symbolFor(mint),
				Decimals: supply.Decimals,
			}
			r.mu.Lock()
			r.cache[mint] = info
			r.mu.Unlock()
			return info, nil
		}

		if !isTransient(err) {
			return domain.TokenInfo{}, fmt.Errorf("get token supply %s: %w", mint, err)
		}

		lastErr = err
		r.logger.Debug("mint not yet visible, retrying",
			zap.String("mint", mint),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay))

		if attempt == r.policy.MaxAttempts {
			break
		}
		if err := r.sleep(ctx, delay); err != nil {
			return domain.TokenInfo{}, err
		}
		delay *= 2
		if delay > r.policy.MaxDelay {
			delay = r.policy.MaxDelay
		}
	}

	return domain.TokenInfo{}, fmt.Errorf("%w: %s after %d attempts: %v",
		ErrMintUnavailable, mint, r.policy.MaxAttempts, lastErr)
}

// ValidateMint checks that the address decodes to 32 bytes of base58.
func ValidateMint(mint string) error {
	raw, err := base58.Decode(mint)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidMint, mint, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("%w: %s: %d bytes", ErrInvalidMint, mint, len(raw))
	}
	return nil
}

// IsOnCurve reports whether the address is a valid ed25519 point.
// Keypair-backed accounts are on curve; program derived addresses are
// off curve, which for a mint usually means a token-2022 style program
// owns it.
func IsOnCurve(address string) bool {
	raw, err := base58.Decode(address)
	if err != nil || len(raw) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}

// symbolFor maps a mint to a display symbol.
func symbolFor(mint string) string {
	if sym, ok := KnownSymbol(mint); ok {
		return sym
	}
	return placeholderSymbol(mint)
}

// isTransient reports whether the node response means the account has
// not propagated yet rather than being permanently absent or invalid.
func isTransient(err error) bool {
	var rpcErr *solana.RPCError
	if errors.As(err, &rpcErr) {
		msg := strings.ToLower(rpcErr.Message)
		return strings.Contains(msg, "could not find account") ||
			strings.Contains(msg, "not a token account") ||
			strings.Contains(msg, "invalid param")
	}
	// Transport failures are retried upstream by the RPC client; a
	// surviving one here means retries ran out, treat as transient.
	return true
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
