package cli

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"raydium-pool-watch/internal/raydium"
	"raydium-pool-watch/internal/solana"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [base64-account-data]",
	Short: "Decode a liquidity-state account image",
	Long: `Decode a raw account image into its pool state. The image comes
from the argument, --file, or is fetched live with --pool.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().String("file", "", "file holding the base64 account data")
	decodeCmd.Flags().String("pool", "", "pool address to fetch via RPC")
	decodeCmd.Flags().String("rpc", "https://api.mainnet-beta.solana.com", "Solana JSON-RPC endpoint")
}

// decodedPool is the printable form of a pool state.
type decodedPool struct {
	Layout        string `json:"layout"`
	Status        uint64 `json:"status"`
	PoolOpenTime  uint64 `json:"pool_open_time"`
	BaseDecimals  uint8  `json:"base_decimals"`
	QuoteDecimals uint8  `json:"quote_decimals"`
	SwapFee       string `json:"swap_fee"`
	BaseMint      string `json:"base_mint"`
	QuoteMint     string `json:"quote_mint"`
	LPMint        string `json:"lp_mint,omitempty"`
	BaseVault     string `json:"base_vault"`
	QuoteVault    string `json:"quote_vault"`
	SwapBaseIn    string `json:"swap_base_in,omitempty"`
	SwapQuoteOut  string `json:"swap_quote_out,omitempty"`
}

func runDecode(cmd *cobra.Command, args []string) error {
	raw, err := accountImage(cmd, args)
	if err != nil {
		return err
	}

	st, err := raydium.Decode(raw)
	if err != nil {
		return fmt.Errorf("decode account: %w", err)
	}

	out := decodedPool{
		Layout:        st.Layout.String(),
		Status:        st.Status,
		PoolOpenTime:  st.PoolOpenTime,
		BaseDecimals:  st.BaseDecimals,
		QuoteDecimals: st.QuoteDecimals,
		SwapFee:       fmt.Sprintf("%d/%d", st.SwapFeeNumerator, st.SwapFeeDenominator),
		BaseMint:      st.BaseMint.String(),
		QuoteMint:     st.QuoteMint.String(),
		BaseVault:     st.BaseVault.String(),
		QuoteVault:    st.QuoteVault.String(),
	}
	if !st.LPMint.IsZero() {
		out.LPMint = st.LPMint.String()
	}
	if st.Layout == raydium.LayoutV4 {
		out.SwapBaseIn = st.SwapBaseIn.Decimal().String()
		out.SwapQuoteOut = st.SwapQuoteOut.Decimal().String()
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func accountImage(cmd *cobra.Command, args []string) ([]byte, error) {
	pool, _ := cmd.Flags().GetString("pool")
	file, _ := cmd.Flags().GetString("file")

	var encoded string
	switch {
	case pool != "":
		rpcURL, _ := cmd.Flags().GetString("rpc")
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		info, err := solana.NewHTTPClient(rpcURL).GetAccountInfo(ctx, pool)
		if err != nil {
			return nil, fmt.Errorf("fetch account: %w", err)
		}
		if info == nil {
			return nil, fmt.Errorf("account %s not found", pool)
		}
		return info.Data, nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		encoded = string(data)
	case len(args) == 1:
		encoded = args[0]
	default:
		return nil, fmt.Errorf("provide base64 data, --file, or --pool")
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return raw, nil
}
