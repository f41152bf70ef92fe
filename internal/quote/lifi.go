package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vegas-max/Titan2.0/internal/matrix"
)

const lifiQuotePath = "/v1/quote"

// LiFiOptions parameterise the LiFi quote client.
type LiFiOptions struct {
	BaseURL     string
	APIKey      string
	NotionalUSD float64
	Timeout     time.Duration
	UserAgent   string
	RatePerSec  float64
}

// LiFi fetches real bridge quotes from the LiFi aggregator and maps them onto
// the same Snapshot contract the synthetic provider serves.
type LiFi struct {
	opts    LiFiOptions
	logger  zerolog.Logger
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

// NewLiFi constructs a LiFi quote client.
func NewLiFi(opts LiFiOptions, logger zerolog.Logger) *LiFi {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://li.quest"
	}

	perSec := opts.RatePerSec
	if perSec <= 0 {
		perSec = 2
	}

	return &LiFi{
		opts:    opts,
		logger:  logger.With().Str("component", "lifi_quotes").Logger(),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(perSec), 1),
		baseURL: baseURL,
	}
}

type lifiQuoteResponse struct {
	Estimate struct {
		FromAmountUSD string `json:"fromAmountUSD"`
		ToAmountUSD   string `json:"toAmountUSD"`
		ToAmount      string `json:"toAmount"`
		ToAmountMin   string `json:"toAmountMin"`
		GasCosts      []struct {
			AmountUSD string `json:"amountUSD"`
		} `json:"gasCosts"`
	} `json:"estimate"`
	Message string `json:"message"`
}

// Quote requests a bridge quote for the route and derives the snapshot from
// the aggregator's estimate. The call is rate limited and time bounded.
func (l *LiFi) Quote(ctx context.Context, record matrix.RouteRecord) (Snapshot, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return Snapshot{}, err
	}

	params := url.Values{}
	params.Set("fromChain", strconv.FormatUint(record.ChainOrigin, 10))
	params.Set("toChain", strconv.FormatUint(record.ChainDest, 10))
	params.Set("fromToken", record.NativeToken)
	params.Set("toToken", record.NativeToken)
	params.Set("fromAmount", strconv.FormatFloat(l.opts.NotionalUSD, 'f', 0, 64))

	endpoint := l.baseURL + lifiQuotePath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Snapshot{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(l.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	if l.opts.APIKey != "" {
		req.Header.Set("x-lifi-api-key", l.opts.APIKey)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return Snapshot{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Snapshot{}, err
	}

	var quoteRes lifiQuoteResponse
	if err := json.Unmarshal(payload, &quoteRes); err != nil {
		return Snapshot{}, fmt.Errorf("decode lifi quote: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if quoteRes.Message != "" {
			return Snapshot{}, fmt.Errorf("lifi api error (%d): %s", resp.StatusCode, quoteRes.Message)
		}
		return Snapshot{}, fmt.Errorf("lifi api error (%d)", resp.StatusCode)
	}

	return l.snapshotFromEstimate(record, quoteRes)
}

func (l *LiFi) snapshotFromEstimate(record matrix.RouteRecord, res lifiQuoteResponse) (Snapshot, error) {
	fromUSD, err := strconv.ParseFloat(res.Estimate.FromAmountUSD, 64)
	if err != nil || fromUSD <= 0 {
		return Snapshot{}, errors.New("lifi quote missing fromAmountUSD")
	}
	toUSD, err := strconv.ParseFloat(res.Estimate.ToAmountUSD, 64)
	if err != nil {
		return Snapshot{}, errors.New("lifi quote missing toAmountUSD")
	}

	spread := (toUSD - fromUSD) / fromUSD * 100.0
	if spread < 0 {
		spread = 0
	}

	slippage := 0.0
	toAmount, errAmount := strconv.ParseFloat(res.Estimate.ToAmount, 64)
	toMin, errMin := strconv.ParseFloat(res.Estimate.ToAmountMin, 64)
	if errAmount == nil && errMin == nil && toAmount > 0 {
		slippage = (toAmount - toMin) / toAmount * 100.0
	}

	gas := 0.0
	for _, cost := range res.Estimate.GasCosts {
		if usd, err := strconv.ParseFloat(cost.AmountUSD, 64); err == nil {
			gas += usd
		}
	}
	if gas == 0 {
		gas = GasCost(record.ChainDest)
	}

	return Snapshot{
		SpreadPercentage:   spread,
		SlippageEstimate:   slippage,
		GasCostUSD:         gas,
		AvailableLiquidity: record.LiquidityScore * liquidityUSDScale,
	}, nil
}

var _ Provider = (*LiFi)(nil)
