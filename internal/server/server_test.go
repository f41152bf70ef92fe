package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegas-max/Titan2.0/internal/chains"
	"github.com/vegas-max/Titan2.0/internal/config"
	"github.com/vegas-max/Titan2.0/internal/quote"
	"github.com/vegas-max/Titan2.0/internal/service"
	"github.com/vegas-max/Titan2.0/internal/storage"
)

const usdcAddress = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"

type stubTVL struct {
	balance *big.Int
	err     error
}

func (s *stubTVL) ReadTVL(_ context.Context, _ uint64, _, _ common.Address) (*big.Int, error) {
	if s.err != nil {
		return nil, s.err
	}
	return new(big.Int).Set(s.balance), nil
}

type stubSizingStore struct {
	records []storage.SizingRecord
}

func (s *stubSizingStore) InsertSizingDecision(_ context.Context, record storage.SizingRecord) (storage.SizingRecord, error) {
	record.ID = int64(len(s.records) + 1)
	s.records = append(s.records, record)
	return record, nil
}

func testServerConfig() *config.Config {
	return &config.Config{
		Guardrails: config.GuardrailsConfig{
			MinLoanUSD:        10000,
			MaxTVLShare:       0.20,
			SlippageTolerance: 0.995,
		},
		Server: config.ServerConfig{
			Port:           3000,
			RequestTimeout: time.Second,
			DefaultLender:  chains.BalancerV3Vault,
		},
	}
}

func newTestServer(t *testing.T, tvl *stubTVL, scanner *service.Service, audit storage.SizingStore) *Server {
	t.Helper()
	registry := chains.NewRegistry([]chains.Endpoint{
		{ChainID: 1, Name: "ethereum", RPCURL: "http://localhost:8545"},
		{ChainID: 42161, Name: "arbitrum", RPCURL: "http://localhost:8546"},
	})
	return New(Options{
		Config:      testServerConfig(),
		Registry:    registry,
		TVL:         tvl,
		Scanner:     scanner,
		SizingStore: audit,
		Logger:      zerolog.Nop(),
	})
}

func doRequest(t *testing.T, srv *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubTVL{balance: big.NewInt(0)}, nil, nil)
	rec := doRequest(t, srv, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestTVLSuccess(t *testing.T) {
	srv := newTestServer(t, &stubTVL{balance: big.NewInt(123456789)}, nil, nil)
	rec := doRequest(t, srv, http.MethodGet, "/api/tvl?chain_id=1&token_address="+usdcAddress, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp tvlResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "123456789", resp.TVL)
	assert.Equal(t, chains.BalancerV3Vault, resp.Lender)
}

func TestTVLValidation(t *testing.T) {
	srv := newTestServer(t, &stubTVL{balance: big.NewInt(1)}, nil, nil)

	cases := []struct {
		name   string
		target string
	}{
		{"missing chain id", "/api/tvl?token_address=" + usdcAddress},
		{"unsupported chain", "/api/tvl?chain_id=999999&token_address=" + usdcAddress},
		{"bad token address", "/api/tvl?chain_id=1&token_address=not-an-address"},
		{"bad lender address", "/api/tvl?chain_id=1&token_address=" + usdcAddress + "&lender_address=zzz"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodGet, tc.target, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestTVLReadFailure(t *testing.T) {
	srv := newTestServer(t, &stubTVL{err: errors.New("rpc down")}, nil, nil)
	rec := doRequest(t, srv, http.MethodGet, "/api/tvl?chain_id=1&token_address="+usdcAddress, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestOptimizeLoanAccepted(t *testing.T) {
	audit := &stubSizingStore{}
	srv := newTestServer(t, &stubTVL{balance: big.NewInt(1_000_000)}, nil, audit)

	rec := doRequest(t, srv, http.MethodPost, "/api/optimize_loan", optimizeLoanRequest{
		ChainID:      1,
		TokenAddress: usdcAddress,
		TargetAmount: "600",
		Decimals:     0,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp optimizeLoanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp.Outcome)
	assert.Equal(t, "600", resp.Final)
	assert.False(t, resp.PaperMode)
	require.NotNil(t, resp.Cap)
	assert.Equal(t, "200000", *resp.Cap)

	require.Len(t, audit.records, 1)
	assert.Equal(t, "accepted", audit.records[0].Outcome)
	assert.Equal(t, uint64(1), audit.records[0].ChainID)
}

func TestOptimizeLoanRejectedBelowFloor(t *testing.T) {
	srv := newTestServer(t, &stubTVL{balance: big.NewInt(1_000_000)}, nil, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/optimize_loan", optimizeLoanRequest{
		ChainID:      1,
		TokenAddress: usdcAddress,
		TargetAmount: "499",
		Decimals:     0,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp optimizeLoanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rejected_below_floor", resp.Outcome)
	assert.Equal(t, "0", resp.Final)
}

func TestOptimizeLoanValidation(t *testing.T) {
	srv := newTestServer(t, &stubTVL{balance: big.NewInt(1)}, nil, nil)

	cases := []struct {
		name string
		req  optimizeLoanRequest
	}{
		{"unsupported chain", optimizeLoanRequest{ChainID: 5, TokenAddress: usdcAddress, TargetAmount: "1000"}},
		{"bad token", optimizeLoanRequest{ChainID: 1, TokenAddress: "nope", TargetAmount: "1000"}},
		{"bad amount", optimizeLoanRequest{ChainID: 1, TokenAddress: usdcAddress, TargetAmount: "12.5"}},
		{"negative amount", optimizeLoanRequest{ChainID: 1, TokenAddress: usdcAddress, TargetAmount: "-5"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/optimize_loan", tc.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRoutesEmptyBeforeFirstScan(t *testing.T) {
	srv := newTestServer(t, &stubTVL{balance: big.NewInt(1)}, nil, nil)
	rec := doRequest(t, srv, http.MethodGet, "/api/routes", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp routesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Routes)
	assert.Nil(t, resp.ScannedAt)
}

func TestRoutesAfterScan(t *testing.T) {
	matrixPath := filepath.Join(t.TempDir(), "matrix.md")
	content := "## Data Entries\nchain_origin,chain_dest,native_token,dex_origin,dex_dest,bridge_protocol,liquidity_score,fee_tier\n1,42161,USDC,UNISWAP,CAMELOT,STARGATE,95.0,0.05\n"
	require.NoError(t, os.WriteFile(matrixPath, []byte(content), 0o600))

	cfg := &config.Config{
		Matrix:  config.MatrixConfig{Path: matrixPath},
		Scoring: config.ScoringConfig{MinTarScore: 85.0, TopN: 10},
	}
	scanner := service.New(cfg, nil, quote.NewSynthetic(), nil, nil, zerolog.Nop())
	_, err := scanner.Scan(context.Background(), time.Now().UTC())
	require.NoError(t, err)

	srv := newTestServer(t, &stubTVL{balance: big.NewInt(1)}, scanner, nil)
	rec := doRequest(t, srv, http.MethodGet, "/api/routes", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp routesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Routes, 1)
	assert.Equal(t, "USDC", resp.Routes[0].NativeToken)
	assert.Equal(t, uint64(42161), resp.Routes[0].ChainDest)
	assert.NotNil(t, resp.ScannedAt)
	assert.GreaterOrEqual(t, resp.Routes[0].TarScore, 85.0)
}
