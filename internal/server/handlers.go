package server

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/vegas-max/Titan2.0/internal/config"
	"github.com/vegas-max/Titan2.0/internal/ethrpc"
	"github.com/vegas-max/Titan2.0/internal/sizer"
	"github.com/vegas-max/Titan2.0/internal/storage"
	"github.com/vegas-max/Titan2.0/internal/version"
)

// sizerCache hands out one LoanSizer per chain, all seeded with the same
// configured guardrails.
type sizerCache struct {
	mu     sync.Mutex
	sizers map[uint64]*sizer.LoanSizer

	guardrails config.GuardrailsConfig
	reader     ethrpc.TVLReader
	logger     zerolog.Logger
}

func newSizerCache(guardrails config.GuardrailsConfig, reader ethrpc.TVLReader, logger zerolog.Logger) *sizerCache {
	return &sizerCache{
		sizers:     make(map[uint64]*sizer.LoanSizer),
		guardrails: guardrails,
		reader:     reader,
		logger:     logger,
	}
}

func (c *sizerCache) forChain(chainID uint64) *sizer.LoanSizer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sizers[chainID]; ok {
		return s
	}

	s := sizer.New(chainID, c.reader, c.logger)
	g := s.Guardrails()
	if c.guardrails.MinLoanUSD > 0 {
		g.SetMinLoanUSD(c.guardrails.MinLoanUSD)
	}
	if c.guardrails.MaxTVLShare > 0 {
		if err := g.SetMaxTVLShare(c.guardrails.MaxTVLShare); err != nil {
			c.logger.Warn().Err(err).Msg("invalid configured max_tvl_share, keeping default")
		}
	}
	if c.guardrails.SlippageTolerance > 0 {
		if err := g.SetSlippageTolerance(c.guardrails.SlippageTolerance); err != nil {
			c.logger.Warn().Err(err).Msg("invalid configured slippage_tolerance, keeping default")
		}
	}

	c.sizers[chainID] = s
	return s
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: version.Version})
}

type tvlResponse struct {
	Success bool   `json:"success"`
	ChainID uint64 `json:"chain_id"`
	Token   string `json:"token_address"`
	Lender  string `json:"lender_address"`
	TVL     string `json:"tvl"`
}

// handleTVL serves GET /api/tvl?chain_id=&token_address=&lender_address=.
// The lender defaults to the configured vault when omitted.
func (s *Server) handleTVL(w http.ResponseWriter, r *http.Request) {
	chainID, err := strconv.ParseUint(r.URL.Query().Get("chain_id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "chain_id must be a positive integer")
		return
	}
	if !s.registry.Supported(chainID) {
		s.writeError(w, http.StatusBadRequest, "unsupported chain_id")
		return
	}

	tokenHex := r.URL.Query().Get("token_address")
	if !common.IsHexAddress(tokenHex) {
		s.writeError(w, http.StatusBadRequest, "token_address must be a hex address")
		return
	}

	lenderHex := r.URL.Query().Get("lender_address")
	if lenderHex == "" {
		lenderHex = s.lender
	}
	if !common.IsHexAddress(lenderHex) {
		s.writeError(w, http.StatusBadRequest, "lender_address must be a hex address")
		return
	}

	tvl, err := s.tvl.ReadTVL(r.Context(), chainID, common.HexToAddress(tokenHex), common.HexToAddress(lenderHex))
	if err != nil {
		s.logger.Error().Err(err).Uint64("chain_id", chainID).Str("token", tokenHex).Msg("tvl read failed")
		s.writeError(w, http.StatusInternalServerError, "tvl read failed")
		return
	}

	s.writeJSON(w, http.StatusOK, tvlResponse{
		Success: true,
		ChainID: chainID,
		Token:   common.HexToAddress(tokenHex).Hex(),
		Lender:  common.HexToAddress(lenderHex).Hex(),
		TVL:     tvl.String(),
	})
}

type optimizeLoanRequest struct {
	ChainID       uint64 `json:"chain_id"`
	TokenAddress  string `json:"token_address"`
	LenderAddress string `json:"lender_address,omitempty"`
	TargetAmount  string `json:"target_amount"`
	Decimals      uint8  `json:"decimals"`
}

type optimizeLoanResponse struct {
	Success   bool    `json:"success"`
	Requested string  `json:"requested"`
	Cap       *string `json:"cap,omitempty"`
	Floor     string  `json:"floor"`
	Final     string  `json:"final"`
	Outcome   string  `json:"outcome"`
	PaperMode bool    `json:"paper_mode"`
}

// handleOptimizeLoan serves POST /api/optimize_loan. Guardrail outcomes such
// as rejection below the floor are business results, not HTTP errors.
func (s *Server) handleOptimizeLoan(w http.ResponseWriter, r *http.Request) {
	var req optimizeLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !s.registry.Supported(req.ChainID) {
		s.writeError(w, http.StatusBadRequest, "unsupported chain_id")
		return
	}
	if !common.IsHexAddress(req.TokenAddress) {
		s.writeError(w, http.StatusBadRequest, "token_address must be a hex address")
		return
	}
	lenderHex := req.LenderAddress
	if lenderHex == "" {
		lenderHex = s.lender
	}
	if !common.IsHexAddress(lenderHex) {
		s.writeError(w, http.StatusBadRequest, "lender_address must be a hex address")
		return
	}
	requested, ok := new(big.Int).SetString(req.TargetAmount, 10)
	if !ok || requested.Sign() <= 0 {
		s.writeError(w, http.StatusBadRequest, "target_amount must be a positive integer string")
		return
	}

	token := common.HexToAddress(req.TokenAddress)
	lender := common.HexToAddress(lenderHex)

	decision := s.sizers.forChain(req.ChainID).OptimizeLoanSize(r.Context(), token, lender, requested, req.Decimals)

	s.auditSizing(r, req, token, lender, decision)

	resp := optimizeLoanResponse{
		Success:   true,
		Requested: decision.Requested.String(),
		Floor:     decision.Floor.String(),
		Final:     decision.Final.String(),
		Outcome:   string(decision.Outcome),
		PaperMode: decision.PaperMode,
	}
	if decision.Cap != nil {
		capStr := decision.Cap.String()
		resp.Cap = &capStr
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) auditSizing(r *http.Request, req optimizeLoanRequest, token, lender common.Address, decision sizer.Decision) {
	if s.sizingStore == nil {
		return
	}

	record := storage.SizingRecord{
		ChainID:   req.ChainID,
		Token:     token.Hex(),
		Lender:    lender.Hex(),
		Decimals:  req.Decimals,
		Requested: decision.Requested.String(),
		Floor:     decision.Floor.String(),
		Final:     decision.Final.String(),
		Outcome:   string(decision.Outcome),
		PaperMode: decision.PaperMode,
		CreatedAt: time.Now().UTC(),
	}
	if decision.Cap != nil {
		capStr := decision.Cap.String()
		record.Cap = &capStr
	}

	if _, err := s.sizingStore.InsertSizingDecision(r.Context(), record); err != nil {
		s.logger.Error().Err(err).Uint64("chain_id", req.ChainID).Msg("failed to audit sizing decision")
	}
}

type routeEntry struct {
	ChainOrigin    uint64  `json:"chain_origin"`
	ChainDest      uint64  `json:"chain_dest"`
	NativeToken    string  `json:"native_token"`
	DexOrigin      string  `json:"dex_origin"`
	DexDest        string  `json:"dex_dest"`
	BridgeProtocol string  `json:"bridge_protocol"`
	SpreadPct      float64 `json:"spread_pct"`
	SlippagePct    float64 `json:"slippage_pct"`
	GasCostUSD     float64 `json:"gas_cost_usd"`
	TarScore       float64 `json:"tar_score"`
	TarModelScore  float64 `json:"tar_model_score"`
	FlankerScore   float64 `json:"flanker_score"`
}

type routesResponse struct {
	Success      bool         `json:"success"`
	ScannedAt    *time.Time   `json:"scanned_at,omitempty"`
	TotalScanned int          `json:"total_scanned"`
	Qualifying   int          `json:"qualifying"`
	MeanTarScore float64      `json:"mean_tar_score"`
	Routes       []routeEntry `json:"routes"`
}

// handleRoutes serves GET /api/routes from the latest in-memory scan.
func (s *Server) handleRoutes(w http.ResponseWriter, _ *http.Request) {
	resp := routesResponse{Success: true, Routes: []routeEntry{}}

	if s.scanner != nil {
		if result, at, ok := s.scanner.Latest(); ok {
			resp.ScannedAt = &at
			resp.TotalScanned = result.TotalScanned
			resp.Qualifying = result.Qualifying
			resp.MeanTarScore = result.MeanTarScore
			for _, route := range result.Top {
				resp.Routes = append(resp.Routes, routeEntry{
					ChainOrigin:    route.Record.ChainOrigin,
					ChainDest:      route.Record.ChainDest,
					NativeToken:    route.Record.NativeToken,
					DexOrigin:      route.Record.DexOrigin,
					DexDest:        route.Record.DexDest,
					BridgeProtocol: route.Record.BridgeProtocol,
					SpreadPct:      route.Quote.SpreadPercentage,
					SlippagePct:    route.Quote.SlippageEstimate,
					GasCostUSD:     route.Quote.GasCostUSD,
					TarScore:       route.TarScore,
					TarModelScore:  route.TarModel,
					FlankerScore:   route.FlankerModel,
				})
			}
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Success: false, Error: message})
}
