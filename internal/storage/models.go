package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScanSummary represents one persisted pipeline run.
type ScanSummary struct {
	ID           int64
	ScannedAt    time.Time
	TotalRoutes  int
	Qualifying   int
	MeanTarScore decimal.Decimal
	CreatedAt    time.Time
}

// RouteScore is one scored route belonging to a scan.
type RouteScore struct {
	ID             int64
	ScanID         int64
	ChainOrigin    uint64
	ChainDest      uint64
	NativeToken    string
	DexOrigin      string
	DexDest        string
	BridgeProtocol string
	LiquidityScore decimal.Decimal
	FeeTier        decimal.Decimal
	SpreadPct      decimal.Decimal
	SlippagePct    decimal.Decimal
	GasCostUSD     decimal.Decimal
	TarScore       decimal.Decimal
	TarModelScore  decimal.Decimal
	FlankerScore   decimal.Decimal
	CreatedAt      time.Time
}

// SizingRecord audits one loan-sizing decision. Amounts are decimal strings
// of raw base units.
type SizingRecord struct {
	ID        int64
	ChainID   uint64
	Token     string
	Lender    string
	Decimals  uint8
	Requested string
	Cap       *string
	Floor     string
	Final     string
	Outcome   string
	PaperMode bool
	CreatedAt time.Time
}
