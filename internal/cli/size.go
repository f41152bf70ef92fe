package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vegas-max/Titan2.0/internal/app"
)

var (
	sizeChainID  uint64
	sizeToken    string
	sizeLender   string
	sizeAmount   string
	sizeDecimals uint8
)

var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Size a flash loan against live pool liquidity",
	RunE: func(cmd *cobra.Command, args []string) error {
		if sizeToken == "" {
			return fmt.Errorf("--token is required")
		}
		if sizeAmount == "" {
			return fmt.Errorf("--amount is required")
		}

		opts := app.SizeOptions{
			ChainID:      sizeChainID,
			TokenAddress: sizeToken,
			Lender:       sizeLender,
			Amount:       sizeAmount,
			Decimals:     sizeDecimals,
		}

		return getApp().Size(cmd.Context(), opts)
	},
}

func init() {
	sizeCmd.Flags().Uint64Var(&sizeChainID, "chain", 1, "Chain id to read liquidity from")
	sizeCmd.Flags().StringVar(&sizeToken, "token", "", "ERC20 token address")
	sizeCmd.Flags().StringVar(&sizeLender, "lender", "", "Lending pool address (defaults to the configured vault)")
	sizeCmd.Flags().StringVar(&sizeAmount, "amount", "", "Requested loan in base units")
	sizeCmd.Flags().Uint8Var(&sizeDecimals, "decimals", 18, "Token decimals")
}
