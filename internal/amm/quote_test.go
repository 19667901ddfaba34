package amm

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestSwap_BasicQuote(t *testing.T) {
	// 1000 in / 2000 out, no fee: out = 2000*10/(1000+10) = 19.8019..
	q, err := Swap(dec("1000"), dec("2000"), dec("10"), 0, 10000)
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}

	want := dec("2000").Mul(dec("10")).Div(dec("1010"))
	if !q.AmountOut.Equal(want) {
		t.Errorf("AmountOut = %s, want %s", q.AmountOut, want)
	}
	if q.FeePaid.Sign() != 0 {
		t.Errorf("FeePaid = %s, want 0", q.FeePaid)
	}
	if q.PriceImpactPercent.Sign() <= 0 {
		t.Errorf("PriceImpactPercent = %s, want > 0", q.PriceImpactPercent)
	}
}

func TestSwap_FeeReducesOutput(t *testing.T) {
	noFee, err := Swap(dec("1000"), dec("2000"), dec("10"), 0, 10000)
	if err != nil {
		t.Fatalf("Swap no fee: %v", err)
	}
	withFee, err := Swap(dec("1000"), dec("2000"), dec("10"), 25, 10000)
	if err != nil {
		t.Fatalf("Swap with fee: %v", err)
	}

	if !withFee.AmountOut.LessThan(noFee.AmountOut) {
		t.Errorf("fee did not reduce output: %s >= %s", withFee.AmountOut, noFee.AmountOut)
	}
	wantFee := dec("10").Mul(dec("25")).Div(dec("10000"))
	if !withFee.FeePaid.Equal(wantFee) {
		t.Errorf("FeePaid = %s, want %s", withFee.FeePaid, wantFee)
	}
}

func TestSwap_PriceImpactVsExecutionPrice(t *testing.T) {
	reserveIn, reserveOut, amountIn := dec("5000"), dec("5000"), dec("500")
	q, err := Swap(reserveIn, reserveOut, amountIn, 0, 1)
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}

	spot := reserveOut.Div(reserveIn)
	exec := q.AmountOut.Div(amountIn)
	want := spot.Sub(exec).Div(spot).Mul(decimal.NewFromInt(100))
	if !q.PriceImpactPercent.Equal(want) {
		t.Errorf("PriceImpactPercent = %s, want %s", q.PriceImpactPercent, want)
	}

	// 500 into a 5000/5000 pool moves the realized price by ~9.09%.
	if q.PriceImpactPercent.LessThan(dec("9")) || q.PriceImpactPercent.GreaterThan(dec("10")) {
		t.Errorf("PriceImpactPercent = %s, want ~9.09", q.PriceImpactPercent)
	}
}

func TestSwap_ConstantProductInvariant(t *testing.T) {
	// Fees only ever add value to the pool: k after >= k before.
	rng := rand.New(rand.NewSource(42))
	tolerance := dec("0.0000001")

	for i := 0; i < 200; i++ {
		reserveIn := decimal.NewFromInt(rng.Int63n(1_000_000_000) + 1)
		reserveOut := decimal.NewFromInt(rng.Int63n(1_000_000_000) + 1)
		amountIn := decimal.NewFromInt(rng.Int63n(10_000_000) + 1)

		q, err := Swap(reserveIn, reserveOut, amountIn, 25, 10000)
		if err != nil {
			t.Fatalf("Swap(%s,%s,%s): %v", reserveIn, reserveOut, amountIn, err)
		}

		kBefore := reserveIn.Mul(reserveOut)
		kAfter := reserveIn.Add(amountIn).Mul(reserveOut.Sub(q.AmountOut))

		// Relative tolerance absorbs division rounding.
		if kAfter.LessThan(kBefore.Mul(decimal.NewFromInt(1).Sub(tolerance))) {
			t.Fatalf("invariant violated: k %s -> %s (in=%s out=%s amount=%s)",
				kBefore, kAfter, reserveIn, reserveOut, amountIn)
		}
	}
}

func TestSimulateRoundTrip_AlwaysLosesWithFees(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		reserveBase := decimal.NewFromInt(rng.Int63n(1_000_000_000) + 1000)
		reserveQuote := decimal.NewFromInt(rng.Int63n(1_000_000_000) + 1000)
		amountIn := decimal.NewFromInt(rng.Int63n(1_000_000) + 1)

		rt, err := SimulateRoundTrip(reserveBase, reserveQuote, amountIn, 25, 10000)
		if err != nil {
			t.Fatalf("SimulateRoundTrip: %v", err)
		}
		if rt.NetResult.Sign() > 0 {
			t.Fatalf("round trip profited %s with fees (base=%s quote=%s in=%s)",
				rt.NetResult, reserveBase, reserveQuote, amountIn)
		}
	}
}

func TestSimulateRoundTrip_LossIsNotCorrected(t *testing.T) {
	rt, err := SimulateRoundTrip(dec("1000000"), dec("1000000"), dec("1000"), 25, 10000)
	if err != nil {
		t.Fatalf("SimulateRoundTrip: %v", err)
	}
	// Two fee legs plus slippage: strictly negative.
	if rt.NetResult.Sign() >= 0 {
		t.Errorf("NetResult = %s, want < 0", rt.NetResult)
	}
	if !rt.Sell.AmountOut.Equal(rt.NetResult.Add(dec("1000"))) {
		t.Errorf("NetResult inconsistent with sell proceeds")
	}
}

func TestSwap_TypedErrors(t *testing.T) {
	cases := []struct {
		name                  string
		reserveIn, reserveOut string
		amountIn              string
		feeNum, feeDen        uint64
		want                  error
	}{
		{"zero reserve in", "0", "100", "1", 0, 1, ErrIlliquidPool},
		{"zero reserve out", "100", "0", "1", 0, 1, ErrIlliquidPool},
		{"zero amount", "100", "100", "0", 0, 1, ErrNonPositiveAmount},
		{"negative amount", "100", "100", "-5", 0, 1, ErrNonPositiveAmount},
		{"zero fee denominator", "100", "100", "1", 1, 0, ErrZeroFeeDenominator},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Swap(dec(tc.reserveIn), dec(tc.reserveOut), dec(tc.amountIn), tc.feeNum, tc.feeDen)
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}

	if _, err := Swap(dec("100"), dec("100"), dec("1"), 3, 2); err == nil {
		t.Error("fee >= 1 should be rejected")
	}
}

func TestSpotPrice(t *testing.T) {
	p, err := SpotPrice(dec("200"), dec("100"))
	if err != nil {
		t.Fatalf("SpotPrice: %v", err)
	}
	if !p.Equal(dec("0.5")) {
		t.Errorf("SpotPrice = %s, want 0.5", p)
	}

	if _, err := SpotPrice(dec("0"), dec("100")); !errors.Is(err, ErrIlliquidPool) {
		t.Errorf("zero reserve: err = %v, want ErrIlliquidPool", err)
	}
}
