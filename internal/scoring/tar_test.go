package scoring

import (
	"math"
	"testing"

	"github.com/vegas-max/Titan2.0/internal/matrix"
	"github.com/vegas-max/Titan2.0/internal/quote"
)

func referenceRoute() (matrix.RouteRecord, quote.Snapshot) {
	record := matrix.RouteRecord{
		ChainOrigin:    1,
		ChainDest:      137,
		NativeToken:    "USDC",
		DexOrigin:      "UNISWAP_V3",
		DexDest:        "QUICKSWAP",
		BridgeProtocol: "STARGATE",
		LiquidityScore: 95.0,
		FeeTier:        0.1,
	}
	snap := quote.Snapshot{
		SpreadPercentage:   1.5,
		SlippageEstimate:   0.3,
		GasCostUSD:         5.0,
		AvailableLiquidity: 1_000_000.0,
	}
	return record, snap
}

func TestTarScoreReferenceValue(t *testing.T) {
	record, snap := referenceRoute()
	score := TarScore(record, snap)

	// token 20 + 14.25, arb 15 + 15, risk 15 + 15
	if math.Abs(score-94.25) > 1e-9 {
		t.Fatalf("reference route score: want 94.25, got %f", score)
	}
}

func TestTarScoreStrictBoundaries(t *testing.T) {
	record, snap := referenceRoute()

	// fee_tier exactly at 0.15 falls into the next band (strict <).
	record.FeeTier = 0.15
	if got := TarScore(record, snap); math.Abs(got-(94.25-5.0)) > 1e-9 {
		t.Fatalf("fee_tier=0.15 must score the 10-point band: got %f", got)
	}

	// spread exactly 2.0 stays in the 15-point band (strict >).
	record.FeeTier = 0.1
	snap.SpreadPercentage = 2.0
	if got := TarScore(record, snap); math.Abs(got-94.25) > 1e-9 {
		t.Fatalf("spread=2.0 must not reach the 20-point band: got %f", got)
	}

	// slippage exactly 0.5 drops to the 10-point band (strict <).
	snap.SpreadPercentage = 1.5
	snap.SlippageEstimate = 0.5
	if got := TarScore(record, snap); math.Abs(got-(94.25-5.0)) > 1e-9 {
		t.Fatalf("slippage=0.5 must score the 10-point band: got %f", got)
	}
}

func TestTarScoreTierFallbacks(t *testing.T) {
	record, snap := referenceRoute()

	record.NativeToken = "ARB"
	tier2 := TarScore(record, snap)
	record.NativeToken = "PEPE"
	other := TarScore(record, snap)
	if math.Abs(tier2-other-7.0) > 1e-9 {
		t.Fatalf("tier-2 vs other token delta must be 7 points, got %f vs %f", tier2, other)
	}

	record.BridgeProtocol = "LAYERZERO"
	tier2Bridge := TarScore(record, snap)
	record.BridgeProtocol = "WORMHOLE"
	otherBridge := TarScore(record, snap)
	if math.Abs(tier2Bridge-otherBridge-5.0) > 1e-9 {
		t.Fatalf("tier-2 vs other bridge delta must be 5 points, got %f vs %f", tier2Bridge, otherBridge)
	}
}

func TestScoresBoundedOverInputGrid(t *testing.T) {
	tokens := []string{"USDC", "ARB", "PEPE"}
	bridges := []string{"STARGATE", "SOCKET", "WORMHOLE"}
	liqs := []float64{0, 37.5, 100, 250}
	fees := []float64{0, 0.15, 0.3, 0.5, 3}
	spreads := []float64{0, 0.21, 0.5, 1.01, 2.5, 40}
	slips := []float64{0, 0.49, 1, 2, 9}
	gases := []float64{0, 5, 20, 80}

	for _, token := range tokens {
		for _, bridge := range bridges {
			for _, liq := range liqs {
				for _, fee := range fees {
					for _, spread := range spreads {
						for _, slip := range slips {
							for _, gas := range gases {
								record := matrix.RouteRecord{NativeToken: token, BridgeProtocol: bridge, LiquidityScore: liq, FeeTier: fee}
								snap := quote.Snapshot{SpreadPercentage: spread, SlippageEstimate: slip, GasCostUSD: gas}
								for name, score := range map[string]float64{
									"tar":     TarScore(record, snap),
									"tar_ml":  TarModel{}.Predict(record, snap),
									"flanker": FlankerModel{}.Predict(record, snap),
								} {
									if math.IsNaN(score) || score < 0 || score > 100 {
										t.Fatalf("%s score out of bounds for %+v %+v: %f", name, record, snap, score)
									}
								}
							}
						}
					}
				}
			}
		}
	}
}

func TestScoringIdempotent(t *testing.T) {
	record, snap := referenceRoute()
	for i := 0; i < 3; i++ {
		if TarScore(record, snap) != TarScore(record, snap) {
			t.Fatal("TarScore must be deterministic")
		}
		if (TarModel{}).Predict(record, snap) != (TarModel{}).Predict(record, snap) {
			t.Fatal("TarModel must be deterministic")
		}
		if (FlankerModel{}).Predict(record, snap) != (FlankerModel{}).Predict(record, snap) {
			t.Fatal("FlankerModel must be deterministic")
		}
	}
}
