package solana

import "context"

// RPCClient defines the Solana RPC HTTP interface the watcher needs.
type RPCClient interface {
	// GetAccountInfo retrieves an account's current state, or nil if the
	// account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetTokenAccountBalance retrieves the balance of an SPL token account.
	GetTokenAccountBalance(ctx context.Context, pubkey string) (*TokenAmount, error)

	// GetTokenSupply retrieves the total supply of an SPL token mint.
	GetTokenSupply(ctx context.Context, mint string) (*TokenAmount, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context) (int64, error)
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64
	Owner      string
	Data       []byte // raw account data
	Executable bool
	RentEpoch  uint64
}

// TokenAmount is an SPL token balance or supply reading.
type TokenAmount struct {
	Amount   string // raw integer amount as a decimal string
	Decimals int
	UIAmount float64
}
