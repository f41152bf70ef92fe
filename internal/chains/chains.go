package chains

import "fmt"

// BalancerV3Vault is the default lending vault address, deterministic across
// all supported chains.
const BalancerV3Vault = "0xbA1333333333a1BA1108E8412f11850A5C319bA9"

// ID identifies an EVM chain.
type ID uint64

// Supported chain identifiers.
const (
	Ethereum  ID = 1
	Optimism  ID = 10
	BSC       ID = 56
	Polygon   ID = 137
	Base      ID = 8453
	Arbitrum  ID = 42161
	Avalanche ID = 43114
	Fantom    ID = 250
	Linea     ID = 59144
	Scroll    ID = 534352
	Mantle    ID = 5000
	ZkSync    ID = 324
	Celo      ID = 42220
	OpBNB     ID = 204
)

var names = map[ID]string{
	Ethereum:  "ethereum",
	Optimism:  "optimism",
	BSC:       "bsc",
	Polygon:   "polygon",
	Base:      "base",
	Arbitrum:  "arbitrum",
	Avalanche: "avalanche",
	Fantom:    "fantom",
	Linea:     "linea",
	Scroll:    "scroll",
	Mantle:    "mantle",
	ZkSync:    "zksync",
	Celo:      "celo",
	OpBNB:     "opbnb",
}

// Name returns the canonical lowercase chain name, or "chain-<id>" for
// identifiers outside the known set.
func (id ID) Name() string {
	if name, ok := names[id]; ok {
		return name
	}
	return fmt.Sprintf("chain-%d", uint64(id))
}

// Known reports whether the id belongs to the supported chain set.
func Known(id uint64) bool {
	_, ok := names[ID(id)]
	return ok
}

// All lists the supported chain identifiers.
func All() []ID {
	ids := make([]ID, 0, len(names))
	for id := range names {
		ids = append(ids, id)
	}
	return ids
}

// Endpoint describes RPC connectivity for one chain.
type Endpoint struct {
	ChainID uint64
	Name    string
	RPCURL  string
}

// Registry maps chain ids to configured RPC endpoints. It is built once at
// startup from configuration and read-only afterwards.
type Registry struct {
	endpoints map[uint64]Endpoint
}

// NewRegistry builds a registry from configured endpoints. Entries with an
// unknown chain id are still accepted; the id set in config is authoritative
// for what the process may talk to.
func NewRegistry(endpoints []Endpoint) *Registry {
	m := make(map[uint64]Endpoint, len(endpoints))
	for _, ep := range endpoints {
		if ep.Name == "" {
			ep.Name = ID(ep.ChainID).Name()
		}
		m[ep.ChainID] = ep
	}
	return &Registry{endpoints: m}
}

// Lookup returns the endpoint for a chain id.
func (r *Registry) Lookup(chainID uint64) (Endpoint, bool) {
	ep, ok := r.endpoints[chainID]
	return ep, ok
}

// Supported reports whether a chain id has a configured endpoint.
func (r *Registry) Supported(chainID uint64) bool {
	_, ok := r.endpoints[chainID]
	return ok
}
