package reserves

import (
	"context"
	"errors"
	"testing"
	"time"

	"raydium-pool-watch/internal/solana"
)

// scriptedRPC returns canned balances per call.
type scriptedRPC struct {
	calls     int
	responses []balanceResponse
	accounts  map[string]*solana.AccountInfo
}

type balanceResponse struct {
	amount *solana.TokenAmount
	err    error
}

func (f *scriptedRPC) GetTokenAccountBalance(ctx context.Context, pubkey string) (*solana.TokenAmount, error) {
	if f.calls >= len(f.responses) {
		return nil, errors.New("unexpected call")
	}
	r := f.responses[f.calls]
	f.calls++
	return r.amount, r.err
}

func (f *scriptedRPC) GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error) {
	if info, ok := f.accounts[pubkey]; ok {
		return info, nil
	}
	return nil, nil
}

func (f *scriptedRPC) GetTokenSupply(ctx context.Context, mint string) (*solana.TokenAmount, error) {
	return &solana.TokenAmount{Amount: "0", Decimals: 9}, nil
}

func (f *scriptedRPC) GetSlot(ctx context.Context) (int64, error) {
	return 0, nil
}

func newTestReader(rpc solana.RPCClient) *Reader {
	r := NewReader(rpc, RetryPolicy{
		BaseDelay:   time.Millisecond,
		MaxDelay:    4 * time.Millisecond,
		MaxAttempts: 5,
	}, nil)
	r.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return r
}

func TestReader_BalanceInUIUnits(t *testing.T) {
	rpc := &scriptedRPC{responses: []balanceResponse{
		{amount: &solana.TokenAmount{Amount: "1234567891", Decimals: 6}},
	}}
	r := newTestReader(rpc)

	bal, err := r.Balance(context.Background(), "vault1")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if got := bal.String(); got != "1234.567891" {
		t.Errorf("expected 1234.567891, got %s", got)
	}
}

func TestReader_RetriesWarmupThenSucceeds(t *testing.T) {
	warmup := &solana.RPCError{Code: -32602, Message: "Invalid param: could not find account"}
	rpc := &scriptedRPC{responses: []balanceResponse{
		{err: warmup},
		{err: warmup},
		{amount: &solana.TokenAmount{Amount: "5000000000", Decimals: 9}},
	}}
	r := newTestReader(rpc)

	bal, err := r.Balance(context.Background(), "vault1")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if rpc.calls != 3 {
		t.Errorf("expected 3 calls, got %d", rpc.calls)
	}
	if got := bal.String(); got != "5" {
		t.Errorf("expected 5, got %s", got)
	}
}

func TestReader_ExhaustsRetryBudget(t *testing.T) {
	warmup := &solana.RPCError{Code: -32602, Message: "not a Token account"}
	responses := make([]balanceResponse, 5)
	for i := range responses {
		responses[i] = balanceResponse{err: warmup}
	}
	rpc := &scriptedRPC{responses: responses}
	r := newTestReader(rpc)

	_, err := r.Balance(context.Background(), "vault1")
	if !errors.Is(err, ErrVaultUnavailable) {
		t.Fatalf("expected ErrVaultUnavailable, got %v", err)
	}
	if rpc.calls != 5 {
		t.Errorf("expected 5 calls, got %d", rpc.calls)
	}
}

func TestReader_PermanentErrorNotRetried(t *testing.T) {
	rpc := &scriptedRPC{responses: []balanceResponse{
		{err: &solana.RPCError{Code: -32600, Message: "Invalid Request"}},
	}}
	r := newTestReader(rpc)

	_, err := r.Balance(context.Background(), "vault1")
	if !errors.Is(err, ErrVaultUnavailable) {
		t.Fatalf("expected ErrVaultUnavailable, got %v", err)
	}
	if rpc.calls != 1 {
		t.Errorf("expected 1 call, got %d", rpc.calls)
	}
}
