// Package domain holds the shared model types persisted and exchanged
// between the watcher's components.
package domain

// TokenInfo represents a resolved SPL token.
type TokenInfo struct {
	Mint     string // token mint address
	Symbol   string // resolved symbol, or a mint-derived placeholder
	Decimals int    // on-chain decimals
}
