// Package raydium decodes Raydium AMM liquidity-state accounts.
package raydium

import "encoding/binary"

// Raydium AMM v4 program address on mainnet.
const AMMV4Program = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"

// Pool status codes reported by the AMM program. Other values exist on
// chain but only these two drive the lifecycle.
const (
	StatusInitialized uint64 = 1 // pool created, not yet open for trading
	StatusOpen        uint64 = 6 // pool open for trading
)

// LayoutVersion identifies a known liquidity-state layout.
type LayoutVersion int

const (
	// LayoutV4 is the full 752-byte AMM v4 liquidity state.
	LayoutV4 LayoutVersion = iota
	// LayoutMinimal is the reduced 416-byte state used by older pools:
	// the v4 u64 run followed directly by the five pool addresses.
	LayoutMinimal
)

// String returns the layout name.
func (v LayoutVersion) String() string {
	switch v {
	case LayoutV4:
		return "v4"
	case LayoutMinimal:
		return "minimal"
	default:
		return "unknown"
	}
}

// Layout holds the byte offsets of the fields the watcher reads. One
// canonical layout per program version, selected strictly by account size.
type Layout struct {
	Version LayoutVersion
	Size    int

	// Offsets into the little-endian u64 run.
	Status              int
	BaseDecimal         int
	QuoteDecimal        int
	TradeFeeNumerator   int
	TradeFeeDenominator int
	SwapFeeNumerator    int
	SwapFeeDenominator  int
	PoolOpenTime        int

	// Offsets of the u128 cumulative swap counters. Negative when the
	// layout does not carry them.
	SwapBaseIn   int
	SwapQuoteOut int

	// Offsets into the 32-byte address run.
	BaseVault  int
	QuoteVault int
	BaseMint   int
	QuoteMint  int
	LPMint     int
}

// V4Size is the exact dataSize of a v4 liquidity-state account, used as
// the server-side subscription filter.
const V4Size = 752

// MinimalSize is the exact dataSize of the reduced legacy layout.
const MinimalSize = 416

var layoutV4 = Layout{
	Version:             LayoutV4,
	Size:                V4Size,
	Status:              0,
	BaseDecimal:         32,
	QuoteDecimal:        40,
	TradeFeeNumerator:   144,
	TradeFeeDenominator: 152,
	SwapFeeNumerator:    176,
	SwapFeeDenominator:  184,
	PoolOpenTime:        224,
	SwapBaseIn:          256,
	SwapQuoteOut:        272,
	BaseVault:           336,
	QuoteVault:          368,
	BaseMint:            400,
	QuoteMint:           432,
	LPMint:              464,
}

var layoutMinimal = Layout{
	Version:             LayoutMinimal,
	Size:                MinimalSize,
	Status:              0,
	BaseDecimal:         32,
	QuoteDecimal:        40,
	TradeFeeNumerator:   144,
	TradeFeeDenominator: 152,
	SwapFeeNumerator:    176,
	SwapFeeDenominator:  184,
	PoolOpenTime:        224,
	SwapBaseIn:          -1,
	SwapQuoteOut:        -1,
	BaseVault:           256,
	QuoteVault:          288,
	BaseMint:            320,
	QuoteMint:           352,
	LPMint:              384,
}

// LayoutForSize returns the layout whose account size matches exactly.
func LayoutForSize(size int) (*Layout, bool) {
	switch size {
	case V4Size:
		return &layoutV4, true
	case MinimalSize:
		return &layoutMinimal, true
	default:
		return nil, false
	}
}

// PrimaryLayout returns the layout the live subscriptions filter on.
func PrimaryLayout() *Layout {
	return &layoutV4
}

// StatusPattern returns the 8-byte little-endian encoding of a status
// value, as expected by a memcmp filter at the Status offset.
func StatusPattern(status uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, status)
	return b
}
