package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vegas-max/Titan2.0/internal/app"
)

var (
	showLimit  int
	showScanID int64
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent scans or the routes of one scan",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:  showLimit,
			ScanID: showScanID,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of scans to display")
	showCmd.Flags().Int64Var(&showScanID, "scan", 0, "Show scored routes for one scan id")
}
