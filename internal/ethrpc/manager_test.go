package ethrpc

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/vegas-max/Titan2.0/internal/chains"
)

func testRegistry() *chains.Registry {
	return chains.NewRegistry([]chains.Endpoint{
		{ChainID: 1, Name: "ethereum", RPCURL: ""},
		{ChainID: 137, Name: "polygon", RPCURL: "http://127.0.0.1:18545"},
	})
}

func TestClientUnsupportedChain(t *testing.T) {
	m := NewManager(testRegistry(), zerolog.Nop())
	defer m.Close()

	_, err := m.Client(context.Background(), 999999)
	if err == nil {
		t.Fatal("expected error for unsupported chain")
	}
	if !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientMissingRPCURL(t *testing.T) {
	m := NewManager(testRegistry(), zerolog.Nop())
	defer m.Close()

	_, err := m.Client(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error for chain without rpc url")
	}
	if !strings.Contains(err.Error(), "no rpc url") {
		t.Fatalf("unexpected error: %v", err)
	}
}
