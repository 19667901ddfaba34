package token

// Well-known mainnet mints. Symbols for anything else are derived from
// the mint address until a metadata source is consulted.
var knownMints = map[string]string{
	"So11111111111111111111111111111111111111112":  "WSOL",
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": "USDC",
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": "USDT",
	"mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So":  "mSOL",
	"7dHbWXmci3dT8UFYWYZweBLXgycu7Y3iL6trKn1Y7ARj": "stSOL",
	"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263": "BONK",
	"4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R": "RAY",
	"JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN":  "JUP",
}

// KnownSymbol returns the symbol for a well-known mint.
func KnownSymbol(mint string) (string, bool) {
	sym, ok := knownMints[mint]
	return sym, ok
}

// placeholderSymbol derives a short display symbol from a mint address.
func placeholderSymbol(mint string) string {
	if len(mint) <= 6 {
		return mint
	}
	return mint[:6]
}
