package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Scan runs the pipeline once and prints the ranked routes.
func (a *App) Scan(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	svc, err := a.newService(nil, store)
	if err != nil {
		return err
	}

	result, err := svc.Scan(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "scanned %d routes, %d qualifying, mean TAR %.2f\n\n",
		result.TotalScanned, result.Qualifying, result.MeanTarScore)

	if len(result.Top) == 0 {
		fmt.Fprintln(os.Stdout, "no routes cleared the threshold")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "#\tToken\tRoute\tBridge\tTAR\tModel\tFlanker\tSpread%\tGas$")
	for i, route := range result.Top {
		fmt.Fprintf(writer, "%d\t%s\t%d->%d\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n",
			i+1,
			route.Record.NativeToken,
			route.Record.ChainOrigin,
			route.Record.ChainDest,
			route.Record.BridgeProtocol,
			route.TarScore,
			route.TarModel,
			route.FlankerModel,
			route.Quote.SpreadPercentage,
			route.Quote.GasCostUSD,
		)
	}
	return writer.Flush()
}
