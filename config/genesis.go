package config

import (
	"github.com/undchain/modulr/chain"
	"github.com/undchain/modulr/epoch"
)

// Bootstrap builds epoch 0's handler from a loaded GenesisConfig, per
// DESIGN.md's resolution of set_genesis_to_state: network_id comes from
// genesis.toml, and the pools registry/quorum/leader sequence start
// empty, populated by the first VALIDATOR_REQUEST/VALIDATOR_CONFIRMATION
// handshakes rather than by any genesis allocation (there is no token
// allocation in this protocol).
func (g *GenesisConfig) Bootstrap(nowMs int64) *epoch.Handler {
	params := epoch.Params{
		EpochTimeMs:           g.EpochTimeMs,
		LeadershipTimeframeMs: g.LeadershipTimeframeMs,
	}
	return epoch.New(g.EpochID, g.EpochHash, g.NetworkID, params, nowMs)
}

// InitChain opens the genesis epoch on bc, a no-op if the epoch already
// has a persisted tip (i.e. the node is restarting, not bootstrapping).
func (g *GenesisConfig) InitChain(bc *chain.Blockchain, h *epoch.Handler) error {
	return bc.Init(h.FullID())
}
