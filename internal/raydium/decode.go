package raydium

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
)

// Decode errors. ErrIncomplete is an expected condition: the account
// exists but the program has not finished writing it yet. ErrInvalid
// means the buffer has a known size but its contents are not a pool.
var (
	ErrIncomplete = errors.New("pool account not fully initialized")
	ErrInvalid    = errors.New("invalid pool account data")
)

// Address is a 32-byte Solana account address.
type Address [32]byte

// IsZero reports whether the address is all zero bytes.
func (a Address) IsZero() bool {
	return a == Address{}
}

// String renders the address in base58, the chain's native encoding.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// AddressFromBase58 parses a base58-encoded address.
func AddressFromBase58(s string) (Address, error) {
	var a Address
	raw, err := base58.Decode(s)
	if err != nil {
		return a, fmt.Errorf("decode address %q: %w", s, err)
	}
	if len(raw) != 32 {
		return a, fmt.Errorf("address %q: expected 32 bytes, got %d", s, len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

// U128 is an unsigned 128-bit little-endian integer, kept as two words.
type U128 struct {
	Lo uint64
	Hi uint64
}

var two64 = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 64), 0)

// Decimal returns the counter as an arbitrary-precision decimal.
func (u U128) Decimal() decimal.Decimal {
	hi := decimal.NewFromBigInt(new(big.Int).SetUint64(u.Hi), 0)
	lo := decimal.NewFromBigInt(new(big.Int).SetUint64(u.Lo), 0)
	return hi.Mul(two64).Add(lo)
}

// PoolState is the decoded snapshot of one AMM liquidity account.
type PoolState struct {
	Layout LayoutVersion

	Status       uint64
	PoolOpenTime uint64 // unix seconds; 0 means never set (legacy pool)

	BaseDecimals  uint8
	QuoteDecimals uint8

	TradeFeeNumerator   uint64
	TradeFeeDenominator uint64
	SwapFeeNumerator    uint64
	SwapFeeDenominator  uint64

	// Cumulative swap volume counters, v4 layout only.
	SwapBaseIn   U128
	SwapQuoteOut U128

	BaseVault  Address
	QuoteVault Address
	BaseMint   Address
	QuoteMint  Address
	LPMint     Address
}

// Decode parses a raw account buffer into a PoolState. The layout is
// selected by exact buffer size; fields from different layouts are never
// mixed. Returns ErrIncomplete for buffers shorter than the smallest
// known layout and ErrInvalid for unknown sizes or zeroed address fields.
func Decode(buf []byte) (*PoolState, error) {
	if len(buf) < MinimalSize {
		return nil, fmt.Errorf("%w: %d of %d bytes", ErrIncomplete, len(buf), MinimalSize)
	}

	layout, ok := LayoutForSize(len(buf))
	if !ok {
		return nil, fmt.Errorf("%w: no layout for %d-byte account", ErrInvalid, len(buf))
	}

	s := &PoolState{
		Layout:              layout.Version,
		Status:              u64(buf, layout.Status),
		PoolOpenTime:        u64(buf, layout.PoolOpenTime),
		BaseDecimals:        uint8(u64(buf, layout.BaseDecimal)),
		QuoteDecimals:       uint8(u64(buf, layout.QuoteDecimal)),
		TradeFeeNumerator:   u64(buf, layout.TradeFeeNumerator),
		TradeFeeDenominator: u64(buf, layout.TradeFeeDenominator),
		SwapFeeNumerator:    u64(buf, layout.SwapFeeNumerator),
		SwapFeeDenominator:  u64(buf, layout.SwapFeeDenominator),
		BaseVault:           addr(buf, layout.BaseVault),
		QuoteVault:          addr(buf, layout.QuoteVault),
		BaseMint:            addr(buf, layout.BaseMint),
		QuoteMint:           addr(buf, layout.QuoteMint),
		LPMint:              addr(buf, layout.LPMint),
	}

	if layout.SwapBaseIn >= 0 {
		s.SwapBaseIn = u128(buf, layout.SwapBaseIn)
		s.SwapQuoteOut = u128(buf, layout.SwapQuoteOut)
	}

	// An account with any of its pool addresses still zeroed is not a
	// decodable pool, regardless of size.
	if s.BaseMint.IsZero() || s.QuoteMint.IsZero() || s.BaseVault.IsZero() || s.QuoteVault.IsZero() {
		return nil, fmt.Errorf("%w: zeroed address fields", ErrInvalid)
	}

	return s, nil
}

// IsLegacy reports whether the pool predates open-time tracking.
// Legacy pools are excluded from every lifecycle transition.
func (s *PoolState) IsLegacy() bool {
	return s.PoolOpenTime == 0
}

func u64(buf []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(buf[off : off+8])
}

func u128(buf []byte, off int) U128 {
	return U128{
		Lo: binary.LittleEndian.Uint64(buf[off : off+8]),
		Hi: binary.LittleEndian.Uint64(buf[off+8 : off+16]),
	}
}

func addr(buf []byte, off int) Address {
	var a Address
	copy(a[:], buf[off:off+32])
	return a
}
