// Package amm implements the constant-product quote math used to judge
// whether a freshly opened pool is tradable at an acceptable cost.
package amm

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Quote errors. These are invariant violations on the caller's side and
// are returned typed, never coerced into sentinel numbers.
var (
	// ErrIlliquidPool is returned when a reserve is zero or negative.
	ErrIlliquidPool = errors.New("illiquid pool: non-positive reserve")

	// ErrZeroFeeDenominator is returned for a fee rational with a zero
	// denominator.
	ErrZeroFeeDenominator = errors.New("fee denominator is zero")

	// ErrNonPositiveAmount is returned for a zero or negative input amount.
	ErrNonPositiveAmount = errors.New("input amount must be positive")
)

var hundred = decimal.NewFromInt(100)

// Quote is the simulated outcome of one swap against current reserves.
type Quote struct {
	// AmountOut is the output-token amount received.
	AmountOut decimal.Decimal
	// PriceImpactPercent is the percentage deviation between the
	// pre-trade spot price and the realized average execution price.
	PriceImpactPercent decimal.Decimal
	// FeePaid is the input-token amount retained by the pool as fee.
	FeePaid decimal.Decimal
}

// Swap quotes a single constant-product swap of amountIn against
// (reserveIn, reserveOut) with the pool's fee rational applied to the
// input side.
func Swap(reserveIn, reserveOut, amountIn decimal.Decimal, feeNumerator, feeDenominator uint64) (*Quote, error) {
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, fmt.Errorf("%w: in=%s out=%s", ErrIlliquidPool, reserveIn, reserveOut)
	}
	if amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrNonPositiveAmount, amountIn)
	}
	if feeDenominator == 0 {
		return nil, ErrZeroFeeDenominator
	}
	if feeNumerator >= feeDenominator {
		return nil, fmt.Errorf("fee %d/%d is not below 1", feeNumerator, feeDenominator)
	}

	fee := decimal.New(int64(feeNumerator), 0).Div(decimal.New(int64(feeDenominator), 0))
	feePaid := amountIn.Mul(fee)
	amountInAfterFee := amountIn.Sub(feePaid)

	denominator := reserveIn.Add(amountInAfterFee)
	if denominator.Sign() <= 0 {
		// Unreachable with positive inputs, kept as an explicit guard so
		// a bug never turns into Inf/NaN downstream.
		return nil, ErrIlliquidPool
	}
	amountOut := reserveOut.Mul(amountInAfterFee).Div(denominator)

	// Impact is measured against the realized average execution price
	// (amountOut/amountIn), not the post-trade spot price.
	spot := reserveOut.Div(reserveIn)
	exec := amountOut.Div(amountIn)
	impact := spot.Sub(exec).Div(spot).Mul(hundred)

	return &Quote{
		AmountOut:          amountOut,
		PriceImpactPercent: impact,
		FeePaid:            feePaid,
	}, nil
}

// RoundTrip is the simulated outcome of a buy immediately followed by a
// sell of the full proceeds, with no other activity in between.
type RoundTrip struct {
	Buy  *Quote
	Sell *Quote
	// NetResult is sell proceeds minus the original input. Negative with
	// any nonzero fee: the loss is the cost of the round trip.
	NetResult decimal.Decimal
}

// SimulateRoundTrip buys amountIn of base with quote, then sells the
// bought base back, composing two independent Swap calls with the
// post-buy reserves feeding the second leg.
func SimulateRoundTrip(reserveBase, reserveQuote, amountIn decimal.Decimal, feeNumerator, feeDenominator uint64) (*RoundTrip, error) {
	buy, err := Swap(reserveQuote, reserveBase, amountIn, feeNumerator, feeDenominator)
	if err != nil {
		return nil, fmt.Errorf("buy leg: %w", err)
	}

	// The full input, fee included, stays in the pool.
	postQuote := reserveQuote.Add(amountIn)
	postBase := reserveBase.Sub(buy.AmountOut)

	sell, err := Swap(postBase, postQuote, buy.AmountOut, feeNumerator, feeDenominator)
	if err != nil {
		return nil, fmt.Errorf("sell leg: %w", err)
	}

	return &RoundTrip{
		Buy:       buy,
		Sell:      sell,
		NetResult: sell.AmountOut.Sub(amountIn),
	}, nil
}

// SpotPrice returns reserveOut/reserveIn, the instantaneous price of the
// input token denominated in the output token.
func SpotPrice(reserveIn, reserveOut decimal.Decimal) (decimal.Decimal, error) {
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: in=%s out=%s", ErrIlliquidPool, reserveIn, reserveOut)
	}
	return reserveOut.Div(reserveIn), nil
}
