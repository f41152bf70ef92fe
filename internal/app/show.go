package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/vegas-max/Titan2.0/internal/storage"
)

// Show prints recent scans, or the scored routes of one scan when a scan id
// is given.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show scans")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.ScanID > 0 {
		return showRoutes(ctx, store, opts.ScanID)
	}
	return showScans(ctx, store, opts.Limit)
}

func showScans(ctx context.Context, store *storage.Store, limit int) error {
	scans, err := store.ListRecentScans(ctx, limit)
	if err != nil {
		return err
	}
	if len(scans) == 0 {
		fmt.Fprintln(os.Stdout, "no scans found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTime (UTC)\tRoutes\tQualifying\tMean TAR")
	for _, scan := range scans {
		fmt.Fprintf(writer, "%d\t%s\t%d\t%d\t%s\n",
			scan.ID,
			scan.ScannedAt.UTC().Format(time.RFC3339),
			scan.TotalRoutes,
			scan.Qualifying,
			scan.MeanTarScore.StringFixed(2),
		)
	}
	return writer.Flush()
}

func showRoutes(ctx context.Context, store *storage.Store, scanID int64) error {
	routes, err := store.ListRoutesForScan(ctx, scanID)
	if err != nil {
		return err
	}
	if len(routes) == 0 {
		fmt.Fprintf(os.Stdout, "no routes recorded for scan %d\n", scanID)
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Token\tRoute\tBridge\tTAR\tModel\tFlanker\tSpread%\tGas$")
	for _, route := range routes {
		fmt.Fprintf(writer, "%s\t%d->%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			route.NativeToken,
			route.ChainOrigin,
			route.ChainDest,
			route.BridgeProtocol,
			route.TarScore.StringFixed(2),
			route.TarModelScore.StringFixed(2),
			route.FlankerScore.StringFixed(2),
			route.SpreadPct.StringFixed(2),
			route.GasCostUSD.StringFixed(2),
		)
	}
	return writer.Flush()
}
