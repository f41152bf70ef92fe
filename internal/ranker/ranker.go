// Package ranker joins scored routes and produces the ranked opportunity set.
package ranker

import (
	"math"
	"sort"

	"github.com/vegas-max/Titan2.0/internal/matrix"
	"github.com/vegas-max/Titan2.0/internal/quote"
)

// Default ranking parameters. Business-tuned values with no documented
// derivation; override via Options.
const (
	DefaultMinTarScore = 85.0
	DefaultTopN        = 10
)

// ScoredRoute is one route with its quote and all three scores attached.
// TarScore is the authoritative ranking key.
type ScoredRoute struct {
	Record       matrix.RouteRecord
	Quote        quote.Snapshot
	TarScore     float64
	TarModel     float64
	FlankerModel float64
}

// Options tune the filtering and truncation behaviour.
type Options struct {
	MinTarScore float64
	TopN        int
}

// Result carries the ranked routes plus summary statistics over the full
// filtered set (before truncation).
type Result struct {
	Top          []ScoredRoute
	TotalScanned int
	Qualifying   int
	MeanTarScore float64
}

// Rank filters routes by TAR threshold, sorts descending with NaN ordered
// strictly last, and truncates to the configured top N. A NaN tar score never
// passes the threshold filter, so NaN-bearing routes are excluded from ranking
// entirely.
func Rank(routes []ScoredRoute, opts Options) Result {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}

	qualifying := make([]ScoredRoute, 0, len(routes))
	var sum float64
	for _, route := range routes {
		if route.TarScore >= opts.MinTarScore {
			qualifying = append(qualifying, route)
			sum += route.TarScore
		}
	}

	sort.SliceStable(qualifying, func(i, j int) bool {
		return tarLess(qualifying[j].TarScore, qualifying[i].TarScore)
	})

	mean := 0.0
	if len(qualifying) > 0 {
		mean = sum / float64(len(qualifying))
	}

	top := qualifying
	if len(top) > opts.TopN {
		top = top[:opts.TopN]
	}

	return Result{
		Top:          top,
		TotalScanned: len(routes),
		Qualifying:   len(qualifying),
		MeanTarScore: mean,
	}
}

// tarLess is a total order over float64 that places NaN below every real
// number, so a NaN score can never sort first in the descending output.
func tarLess(a, b float64) bool {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return false
	case aNaN:
		return true
	case bNaN:
		return false
	default:
		return a < b
	}
}
