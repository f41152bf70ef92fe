package quote

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vegas-max/Titan2.0/internal/matrix"
)

func usdcRoute() matrix.RouteRecord {
	return matrix.RouteRecord{
		ChainOrigin:    1,
		ChainDest:      137,
		NativeToken:    "USDC",
		DexOrigin:      "UNISWAP_V3",
		DexDest:        "QUICKSWAP",
		BridgeProtocol: "STARGATE",
		LiquidityScore: 95.0,
		FeeTier:        0.3,
	}
}

func TestSyntheticQuoteStableTokenPremiumBridge(t *testing.T) {
	snap, err := NewSynthetic().Quote(context.Background(), usdcRoute())
	if err != nil {
		t.Fatalf("synthetic provider must not fail: %v", err)
	}

	// (95/100*2 - 0.3) * 1.0 * 1.15
	want := 1.6 * 1.15
	if math.Abs(snap.SpreadPercentage-want) > 1e-9 {
		t.Fatalf("spread: want %f, got %f", want, snap.SpreadPercentage)
	}
	if math.Abs(snap.SlippageEstimate-0.1) > 1e-9 {
		t.Fatalf("slippage: want 0.1, got %f", snap.SlippageEstimate)
	}
	if snap.GasCostUSD != 0.5 {
		t.Fatalf("polygon gas cost: want 0.5, got %f", snap.GasCostUSD)
	}
	if snap.AvailableLiquidity != 950_000.0 {
		t.Fatalf("liquidity: want 950000, got %f", snap.AvailableLiquidity)
	}
}

func TestSyntheticQuoteSpreadClampedAtZero(t *testing.T) {
	record := usdcRoute()
	record.LiquidityScore = 10.0
	record.FeeTier = 1.0 // base spread 10/100*2 - 1.0 = -0.8

	snap, err := NewSynthetic().Quote(context.Background(), record)
	if err != nil {
		t.Fatalf("synthetic provider must not fail: %v", err)
	}
	if snap.SpreadPercentage != 0 {
		t.Fatalf("negative base spread must clamp to 0, got %f", snap.SpreadPercentage)
	}
}

func TestSyntheticQuoteUnknownChainGasDefault(t *testing.T) {
	record := usdcRoute()
	record.ChainDest = 999999

	snap, _ := NewSynthetic().Quote(context.Background(), record)
	if snap.GasCostUSD != 5.0 {
		t.Fatalf("unlisted chain gas cost must default to 5.0, got %f", snap.GasCostUSD)
	}
}

func TestSyntheticQuoteDeterministic(t *testing.T) {
	provider := NewSynthetic()
	first, _ := provider.Quote(context.Background(), usdcRoute())
	second, _ := provider.Quote(context.Background(), usdcRoute())
	if first != second {
		t.Fatalf("identical records must yield identical snapshots: %+v vs %+v", first, second)
	}
}

func TestTokenAndBridgeFactors(t *testing.T) {
	cases := []struct {
		record matrix.RouteRecord
		factor float64
	}{
		{matrix.RouteRecord{NativeToken: "WETH", BridgeProtocol: "HOP", LiquidityScore: 50}, 1.1 * 1.0},
		{matrix.RouteRecord{NativeToken: "SHIB", BridgeProtocol: "WORMHOLE", LiquidityScore: 50}, 1.3 * 0.9},
	}
	for _, tc := range cases {
		snap, _ := NewSynthetic().Quote(context.Background(), tc.record)
		want := 1.0 * tc.factor // base spread 50/100*2 - 0
		if math.Abs(snap.SpreadPercentage-want) > 1e-9 {
			t.Fatalf("token %s bridge %s: want %f, got %f", tc.record.NativeToken, tc.record.BridgeProtocol, want, snap.SpreadPercentage)
		}
	}
}

func TestLiFiQuoteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"estimate": map[string]any{
				"fromAmountUSD": "10000",
				"toAmountUSD":   "10120",
				"toAmount":      "10120",
				"toAmountMin":   "10070",
				"gasCosts":      []map[string]string{{"amountUSD": "1.2"}},
			},
		})
	}))
	defer srv.Close()

	client := NewLiFi(LiFiOptions{BaseURL: srv.URL, NotionalUSD: 10000, Timeout: time.Second}, zerolog.Nop())
	snap, err := client.Quote(context.Background(), usdcRoute())
	if err != nil {
		t.Fatalf("quote should succeed: %v", err)
	}
	if math.Abs(snap.SpreadPercentage-1.2) > 1e-9 {
		t.Fatalf("spread: want 1.2, got %f", snap.SpreadPercentage)
	}
	if snap.GasCostUSD != 1.2 {
		t.Fatalf("gas: want 1.2, got %f", snap.GasCostUSD)
	}
}

func TestLiFiQuoteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "rate limited"})
	}))
	defer srv.Close()

	client := NewLiFi(LiFiOptions{BaseURL: srv.URL, NotionalUSD: 10000, Timeout: time.Second}, zerolog.Nop())
	if _, err := client.Quote(context.Background(), usdcRoute()); err == nil {
		t.Fatal("HTTP 429 must surface as an error")
	}
}
