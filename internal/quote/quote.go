package quote

import (
	"context"

	"github.com/vegas-max/Titan2.0/internal/matrix"
)

// Snapshot holds the market estimate for one route at evaluation time.
type Snapshot struct {
	SpreadPercentage   float64
	SlippageEstimate   float64
	GasCostUSD         float64
	AvailableLiquidity float64
}

// Provider maps a route record to a quote snapshot. Implementations may be
// pure (synthetic) or I/O-bound (a real bridge API); consumers must treat
// every call as fallible.
type Provider interface {
	Quote(ctx context.Context, record matrix.RouteRecord) (Snapshot, error)
}
