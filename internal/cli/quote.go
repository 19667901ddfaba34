package cli

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"raydium-pool-watch/internal/amm"
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Simulate a swap against given reserves",
	RunE:  runQuote,
}

func init() {
	quoteCmd.Flags().String("base-reserve", "", "base token reserve (UI units)")
	quoteCmd.Flags().String("quote-reserve", "", "quote token reserve (UI units)")
	quoteCmd.Flags().String("amount-in", "", "quote amount to spend")
	quoteCmd.Flags().Uint64("fee-num", 25, "swap fee numerator")
	quoteCmd.Flags().Uint64("fee-den", 10000, "swap fee denominator")
	quoteCmd.Flags().Bool("round-trip", false, "also simulate selling the proceeds back")
}

type quoteOutput struct {
	AmountOut          string `json:"amount_out"`
	PriceImpactPercent string `json:"price_impact_percent"`
	FeePaid            string `json:"fee_paid"`
	RoundTripNet       string `json:"round_trip_net,omitempty"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
	base, err := decimalFlag(cmd, "base-reserve")
	if err != nil {
		return err
	}
	quote, err := decimalFlag(cmd, "quote-reserve")
	if err != nil {
		return err
	}
	amountIn, err := decimalFlag(cmd, "amount-in")
	if err != nil {
		return err
	}
	feeNum, _ := cmd.Flags().GetUint64("fee-num")
	feeDen, _ := cmd.Flags().GetUint64("fee-den")
	roundTrip, _ := cmd.Flags().GetBool("round-trip")

	// Buying base with quote: the input side is the quote reserve.
	q, err := amm.Swap(quote, base, amountIn, feeNum, feeDen)
	if err != nil {
		return err
	}

	out := quoteOutput{
		AmountOut:          q.AmountOut.String(),
		PriceImpactPercent: q.PriceImpactPercent.StringFixed(4),
		FeePaid:            q.FeePaid.String(),
	}
	if roundTrip {
		rt, err := amm.SimulateRoundTrip(base, quote, amountIn, feeNum, feeDen)
		if err != nil {
			return err
		}
		out.RoundTripNet = rt.NetResult.String()
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func decimalFlag(cmd *cobra.Command, name string) (decimal.Decimal, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("--%s is required", name)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}
