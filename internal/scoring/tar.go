// Package scoring implements the TAR (Token/Arbitrage/Risk) composite score
// and the two predictive scorers that accompany it. All scorers are pure
// functions of (record, quote) and stay within [0, 100] for finite inputs.
package scoring

import (
	"github.com/vegas-max/Titan2.0/internal/matrix"
	"github.com/vegas-max/Titan2.0/internal/quote"
)

// Token tier membership. Business-tuned constants carried over as-is.
var (
	Tier1Tokens = map[string]struct{}{
		"USDC": {}, "USDT": {}, "DAI": {}, "ETH": {}, "WETH": {}, "WBTC": {},
	}
	Tier2Tokens = map[string]struct{}{
		"MATIC": {}, "AVAX": {}, "BNB": {}, "OP": {}, "ARB": {}, "LINK": {},
	}
)

// Bridge tier membership.
var (
	Tier1Bridges = map[string]struct{}{
		"STARGATE": {}, "ACROSS": {}, "CCIP": {}, "LIFI": {},
	}
	Tier2Bridges = map[string]struct{}{
		"HOP": {}, "SYNAPSE": {}, "SOCKET": {}, "LAYERZERO": {},
	}
)

// TarScore computes the deterministic TAR score for a route:
// token quality (0-35) + arbitrage efficiency (0-35) + risk (0-30),
// capped at 100.
func TarScore(record matrix.RouteRecord, snap quote.Snapshot) float64 {
	score := tokenQuality(record.NativeToken, record.LiquidityScore)
	score += arbitrageEfficiency(record.FeeTier, snap.SpreadPercentage)
	score += riskAssessment(record.BridgeProtocol, snap.SlippageEstimate)

	if score > 100.0 {
		return 100.0
	}
	return score
}

func tokenQuality(token string, liquidityScore float64) float64 {
	var score float64
	if _, ok := Tier1Tokens[token]; ok {
		score += 20.0
	} else if _, ok := Tier2Tokens[token]; ok {
		score += 12.0
	} else {
		score += 5.0
	}

	// Liquidity contribution, 0-15 points.
	score += (liquidityScore / 100.0) * 15.0

	return score
}

func arbitrageEfficiency(feeTier, spread float64) float64 {
	var score float64

	// Lower fees are better, 0-15 points.
	if feeTier < 0.15 {
		score += 15.0
	} else if feeTier < 0.30 {
		score += 10.0
	} else if feeTier < 0.50 {
		score += 5.0
	}

	// Wider spread is better, 0-20 points.
	if spread > 2.0 {
		score += 20.0
	} else if spread > 1.0 {
		score += 15.0
	} else if spread > 0.5 {
		score += 10.0
	} else if spread > 0.2 {
		score += 5.0
	}

	return score
}

func riskAssessment(bridge string, slippage float64) float64 {
	var score float64

	// Bridge reliability, 0-15 points.
	if _, ok := Tier1Bridges[bridge]; ok {
		score += 15.0
	} else if _, ok := Tier2Bridges[bridge]; ok {
		score += 10.0
	} else {
		score += 5.0
	}

	// Slippage penalty, 0-15 points.
	if slippage < 0.5 {
		score += 15.0
	} else if slippage < 1.0 {
		score += 10.0
	} else if slippage < 2.0 {
		score += 5.0
	}

	return score
}
