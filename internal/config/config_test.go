package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	if cfg.Scoring.MinTarScore != 85.0 {
		t.Fatalf("default min tar score: want 85.0, got %f", cfg.Scoring.MinTarScore)
	}
	if cfg.Scoring.TopN != 10 {
		t.Fatalf("default top_n: want 10, got %d", cfg.Scoring.TopN)
	}
	if cfg.Guardrails.MaxTVLShare != 0.20 {
		t.Fatalf("default max tvl share: want 0.20, got %f", cfg.Guardrails.MaxTVLShare)
	}
	if cfg.Quotes.Provider != "synthetic" {
		t.Fatalf("default quote provider: want synthetic, got %s", cfg.Quotes.Provider)
	}
	if len(cfg.Chains) != 5 {
		t.Fatalf("default chain set: want 5, got %d", len(cfg.Chains))
	}
	if !strings.HasPrefix(cfg.Server.DefaultLender, "0x") {
		t.Fatalf("default lender must be an address, got %s", cfg.Server.DefaultLender)
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
scoring:
  min_tar_score: 70.0
  top_n: 3
quotes:
  provider: lifi
chains:
  - chain_id: 137
    name: polygon
    rpc_url: http://localhost:8545
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load should succeed: %v", err)
	}
	if cfg.Scoring.MinTarScore != 70.0 || cfg.Scoring.TopN != 3 {
		t.Fatalf("file overrides not applied: %+v", cfg.Scoring)
	}
	if cfg.Quotes.Provider != "lifi" {
		t.Fatalf("provider override not applied: %s", cfg.Quotes.Provider)
	}
	eps := cfg.Endpoints()
	if len(eps) != 1 || eps[0].ChainID != 137 || eps[0].RPCURL != "http://localhost:8545" {
		t.Fatalf("endpoints wrong: %+v", eps)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"bad provider":     func(c *Config) { c.Quotes.Provider = "oracle" },
		"zero topn":        func(c *Config) { c.Scoring.TopN = 0 },
		"share too large":  func(c *Config) { c.Guardrails.MaxTVLShare = 1.5 },
		"share zero":       func(c *Config) { c.Guardrails.MaxTVLShare = 0 },
		"bad slippage":     func(c *Config) { c.Guardrails.SlippageTolerance = 0 },
		"bad port":         func(c *Config) { c.Server.Port = -1 },
		"empty matrix":     func(c *Config) { c.Matrix.Path = "" },
		"telegram no chat": func(c *Config) { c.Alerting.Telegram.Enabled = true; c.Alerting.Telegram.BotToken = "t" },
	}

	for name, mutate := range cases {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("defaults must validate: %v", err)
		}
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %q must fail validation", name)
		}
	}
}
