// Package ethrpc manages per-chain Ethereum RPC clients and the on-chain
// reads the sizing path depends on.
package ethrpc

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/vegas-max/Titan2.0/internal/chains"
)

// Manager caches one ethclient per chain. First use dials lazily; the mutex
// makes the check-then-insert race safe so concurrent callers never create
// duplicate live connections.
type Manager struct {
	registry *chains.Registry
	logger   zerolog.Logger

	mu      sync.Mutex
	clients map[uint64]*ethclient.Client
}

// NewManager constructs a client manager over the configured chain registry.
func NewManager(registry *chains.Registry, logger zerolog.Logger) *Manager {
	return &Manager{
		registry: registry,
		logger:   logger.With().Str("component", "rpc_manager").Logger(),
		clients:  make(map[uint64]*ethclient.Client),
	}
}

// Client returns the cached client for a chain, dialing on first use.
func (m *Manager) Client(ctx context.Context, chainID uint64) (*ethclient.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client, ok := m.clients[chainID]; ok {
		return client, nil
	}

	endpoint, ok := m.registry.Lookup(chainID)
	if !ok {
		return nil, fmt.Errorf("chain %d not supported", chainID)
	}
	if endpoint.RPCURL == "" {
		return nil, fmt.Errorf("no rpc url configured for chain %d (%s)", chainID, endpoint.Name)
	}

	client, err := ethclient.DialContext(ctx, endpoint.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s rpc: %w", endpoint.Name, err)
	}

	m.logger.Debug().Uint64("chain_id", chainID).Str("chain", endpoint.Name).Msg("rpc client connected")
	m.clients[chainID] = client
	return client, nil
}

// Close disconnects and forgets all cached clients.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, client := range m.clients {
		client.Close()
		delete(m.clients, id)
	}
}
