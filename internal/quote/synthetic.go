package quote

import (
	"context"

	"github.com/vegas-max/Titan2.0/internal/matrix"
)

// liquidityUSDScale converts a 0-100 liquidity score into an available
// liquidity figure in USD.
const liquidityUSDScale = 10_000.0

var stableTokens = map[string]struct{}{
	"USDC": {}, "USDT": {}, "DAI": {},
}

var majorTokens = map[string]struct{}{
	"ETH": {}, "WETH": {}, "WBTC": {},
}

var premiumBridges = map[string]struct{}{
	"STARGATE": {}, "ACROSS": {}, "CCIP": {},
}

var standardBridges = map[string]struct{}{
	"HOP": {}, "SYNAPSE": {}, "LIFI": {},
}

// gasCostUSD is the estimated per-transaction gas cost by destination chain.
var gasCostUSD = map[uint64]float64{
	1:     15.0, // ethereum
	137:   0.5,  // polygon
	42161: 0.8,  // arbitrum
	10:    1.0,  // optimism
	8453:  0.5,  // base
	56:    0.3,  // bsc
	43114: 2.0,  // avalanche
}

const defaultGasCostUSD = 5.0

// Synthetic derives quotes directly from the route record. It is a pure
// function of its input and never fails; it stands in for the real bridge
// quote APIs behind the same Provider contract.
type Synthetic struct{}

// NewSynthetic constructs the synthetic provider.
func NewSynthetic() *Synthetic {
	return &Synthetic{}
}

// Quote computes the simulated snapshot for a record.
func (s *Synthetic) Quote(_ context.Context, record matrix.RouteRecord) (Snapshot, error) {
	baseSpread := (record.LiquidityScore/100.0)*2.0 - record.FeeTier

	spread := baseSpread * tokenVolatility(record.NativeToken) * bridgeEfficiency(record.BridgeProtocol)
	if spread < 0 {
		spread = 0
	}

	// Slippage is inversely proportional to liquidity.
	slippage := (100.0 - record.LiquidityScore) / 100.0 * 2.0

	return Snapshot{
		SpreadPercentage:   spread,
		SlippageEstimate:   slippage,
		GasCostUSD:         GasCost(record.ChainDest),
		AvailableLiquidity: record.LiquidityScore * liquidityUSDScale,
	}, nil
}

func tokenVolatility(token string) float64 {
	if _, ok := stableTokens[token]; ok {
		return 1.0
	}
	if _, ok := majorTokens[token]; ok {
		return 1.1
	}
	return 1.3
}

func bridgeEfficiency(bridge string) float64 {
	if _, ok := premiumBridges[bridge]; ok {
		return 1.15
	}
	if _, ok := standardBridges[bridge]; ok {
		return 1.0
	}
	return 0.9
}

// GasCost returns the estimated gas cost in USD for a destination chain,
// defaulting for chains outside the table.
func GasCost(chainID uint64) float64 {
	if cost, ok := gasCostUSD[chainID]; ok {
		return cost
	}
	return defaultGasCostUSD
}

var _ Provider = (*Synthetic)(nil)
