package scoring

import (
	"github.com/vegas-max/Titan2.0/internal/matrix"
	"github.com/vegas-max/Titan2.0/internal/quote"
)

// Predictor scores a route via an auxiliary predictive model. Both bundled
// implementations are heuristic linear blends; a real inference backend can
// replace either without touching the ranking pipeline.
type Predictor interface {
	Predict(record matrix.RouteRecord, snap quote.Snapshot) float64
}

type features struct {
	liquidityScore  float64
	spreadScore     float64
	bridgeScore     float64
	tokenScore      float64
	slippagePenalty float64
	gasEfficiency   float64
}

func extractFeatures(record matrix.RouteRecord, snap quote.Snapshot) features {
	spreadScore := snap.SpreadPercentage * 20.0
	if spreadScore > 100.0 {
		spreadScore = 100.0
	}

	gasCost := snap.GasCostUSD
	if gasCost > 20.0 {
		gasCost = 20.0
	}

	return features{
		liquidityScore:  record.LiquidityScore,
		spreadScore:     spreadScore,
		bridgeScore:     bridgeFeatureScore(record.BridgeProtocol),
		tokenScore:      tokenFeatureScore(record.NativeToken),
		slippagePenalty: snap.SlippageEstimate * 50.0,
		gasEfficiency:   (20.0 - gasCost) / 20.0 * 100.0,
	}
}

func bridgeFeatureScore(bridge string) float64 {
	switch bridge {
	case "STARGATE", "ACROSS", "CCIP":
		return 90.0
	case "HOP", "SYNAPSE", "LIFI", "SOCKET":
		return 75.0
	case "LAYERZERO", "CELER":
		return 65.0
	default:
		return 50.0
	}
}

func tokenFeatureScore(token string) float64 {
	switch token {
	case "USDC", "USDT", "DAI":
		return 95.0
	case "ETH", "WETH", "WBTC":
		return 90.0
	case "MATIC", "AVAX", "BNB", "OP", "ARB":
		return 80.0
	case "LINK", "UNI", "AAVE":
		return 75.0
	default:
		return 60.0
	}
}

func clampScore(score float64) float64 {
	if score > 100.0 {
		return 100.0
	}
	if score < 0.0 {
		return 0.0
	}
	return score
}

// TarModel is the primary predictive scorer, weighted towards liquidity and
// spread potential.
type TarModel struct{}

// Predict returns the blended prediction, clamped to [0, 100].
func (TarModel) Predict(record matrix.RouteRecord, snap quote.Snapshot) float64 {
	f := extractFeatures(record, snap)
	prediction := f.liquidityScore*0.3 +
		f.spreadScore*0.3 +
		f.bridgeScore*0.2 +
		f.tokenScore*0.2
	return clampScore(prediction)
}

// FlankerModel is the secondary predictive scorer, weighted towards bridge
// reliability and execution cost.
type FlankerModel struct{}

// Predict returns the blended prediction, clamped to [0, 100].
func (FlankerModel) Predict(record matrix.RouteRecord, snap quote.Snapshot) float64 {
	f := extractFeatures(record, snap)
	prediction := f.bridgeScore*0.4 +
		f.liquidityScore*0.3 +
		(100.0-f.slippagePenalty)*0.2 +
		f.gasEfficiency*0.1
	return clampScore(prediction)
}

var (
	_ Predictor = TarModel{}
	_ Predictor = FlankerModel{}
)
