package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/vegas-max/Titan2.0/internal/storage"
)

const defaultExportPoints = 500

// Export renders scan history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	if opts.MaxPoints <= 0 {
		opts.MaxPoints = defaultExportPoints
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	scans, err := store.ListScansBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(scans) == 0 {
		a.Logger.Info().Msg("no scans found for export window")
		return nil
	}

	downsampled := downsampleScans(scans, opts.MaxPoints)
	a.Logger.Info().Int("total", len(scans)).Int("exported", len(downsampled)).Msg("exporting scans")

	if opts.CSVPath != "" {
		if err := writeScansCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeScansPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleScans(scans []storage.ScanSummary, max int) []storage.ScanSummary {
	if max <= 0 || len(scans) <= max {
		return scans
	}

	result := make([]storage.ScanSummary, 0, max)
	step := float64(len(scans)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(scans) {
			idx = len(scans) - 1
		}
		result = append(result, scans[idx])
	}
	return result
}

func writeScansCSV(path string, scans []storage.ScanSummary) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"scanned_at", "total_routes", "qualifying", "mean_tar_score"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, scan := range scans {
		record := []string{
			scan.ScannedAt.Format(time.RFC3339),
			strconv.Itoa(scan.TotalRoutes),
			strconv.Itoa(scan.Qualifying),
			scan.MeanTarScore.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeScansPNG(path string, scans []storage.ScanSummary) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(scans))
	meanTar := make([]float64, len(scans))
	qualifying := make([]float64, len(scans))

	for i, scan := range scans {
		x[i] = scan.ScannedAt
		meanTar[i] = scan.MeanTarScore.InexactFloat64()
		qualifying[i] = float64(scan.Qualifying)
	}

	scoreFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Mean TAR score",
			ValueFormatter: scoreFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Qualifying routes",
			ValueFormatter: scoreFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Mean TAR",
				XValues: x,
				YValues: meanTar,
			},
			chart.TimeSeries{
				Name:    "Qualifying",
				XValues: x,
				YValues: qualifying,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
