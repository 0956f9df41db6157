package chain

import (
	"fmt"
	"sync"
)

// PayoutHook is invoked after a block is durably committed. It models
// the hook point a token-economics issuance schedule would attach to,
// without implementing any issuance curve itself.
type PayoutHook func(block *Block)

// Blockchain tracks the canonical per-epoch sequence of finalized
// blocks on top of Store, enforcing the linkage invariant: block k's
// PrevHash must equal the hash of block k-1 within the same epoch.
type Blockchain struct {
	mu        sync.RWMutex
	store     *Store
	networkID string

	tip      *Block
	tipIndex int64

	onPayout PayoutHook
	quorumFn func() int
}

// NewBlockchain returns a Blockchain backed by store for the given
// network ID (used to recompute block hashes for linkage checks).
func NewBlockchain(store *Store, networkID string) *Blockchain {
	return &Blockchain{store: store, networkID: networkID, tipIndex: -1}
}

// SetPayoutHook registers the callback invoked after each AddBlock
// commit. Passing nil disables the hook.
func (bc *Blockchain) SetPayoutHook(hook PayoutHook) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.onPayout = hook
}

// SetQuorumSource registers the function AddBlock calls to learn the
// current quorum size before checking an AFP's majority. Passing nil
// disables the majority check (used by tests that exercise linkage in
// isolation); production wiring must always set this.
func (bc *Blockchain) SetQuorumSource(fn func() int) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.quorumFn = fn
}

// Init loads the persisted tip for epochFullID, if one exists.
func (bc *Blockchain) Init(epochFullID string) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	idx, err := bc.store.GetTip(epochFullID)
	if err != nil {
		return fmt.Errorf("chain: get tip: %w", err)
	}
	if idx < 0 {
		return nil // fresh epoch
	}
	block, err := bc.store.GetBlock(epochFullID, idx)
	if err != nil {
		return fmt.Errorf("chain: load tip block: %w", err)
	}
	bc.tip = block
	bc.tipIndex = idx
	return nil
}

// AddBlock validates index continuity and PrevHash linkage against the
// current tip, requires afp to carry the quorum's majority of
// signatures (when a quorum source is set), then commits block with its
// AFP and advances the tip. This is the BFT safety gate: no block
// becomes canonical without the majority signatures an AFP's
// HasMajority checks for.
func (bc *Blockchain) AddBlock(block *Block, afp *AFP) error {
	bc.mu.Lock()

	if bc.tip != nil {
		if block.Index != bc.tipIndex+1 {
			bc.mu.Unlock()
			return fmt.Errorf("chain: block index %d does not follow tip %d", block.Index, bc.tipIndex)
		}
		if block.PrevHash != bc.tip.Hash(bc.networkID) {
			bc.mu.Unlock()
			return fmt.Errorf("chain: prev_hash mismatch at index %d", block.Index)
		}
	}

	if bc.quorumFn != nil {
		quorumSize := bc.quorumFn()
		if afp == nil || !afp.HasMajority(quorumSize) {
			bc.mu.Unlock()
			return fmt.Errorf("chain: block at index %d lacks a quorum-majority AFP", block.Index)
		}
	}

	if err := bc.store.CommitBlock(block, afp); err != nil {
		bc.mu.Unlock()
		return fmt.Errorf("chain: commit block: %w", err)
	}
	bc.tip = block
	bc.tipIndex = block.Index
	hook := bc.onPayout
	bc.mu.Unlock()

	if hook != nil {
		hook(block)
	}
	return nil
}

// GetBlock returns the block at (epochFullID, index).
func (bc *Blockchain) GetBlock(epochFullID string, index int64) (*Block, error) {
	return bc.store.GetBlock(epochFullID, index)
}

// GetAFP returns the AFP that finalized (epochFullID, index).
func (bc *Blockchain) GetAFP(epochFullID string, index int64) (*AFP, error) {
	return bc.store.GetAFP(epochFullID, index)
}

// CommitAEFP persists the AEFP that closed epochID.
func (bc *Blockchain) CommitAEFP(epochID string, aefp *AEFP) error {
	return bc.store.CommitAEFP(epochID, aefp)
}

// Tip returns the current tip block, or nil for a fresh epoch.
func (bc *Blockchain) Tip() *Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.tip
}

// TipIndex returns the current tip's index, or -1 for a fresh epoch.
func (bc *Blockchain) TipIndex() int64 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.tipIndex
}
