// Package consensus plays both the leader and quorum-member roles of
// Modulr's co-chain BFT protocol: proposing blocks in leader-sequence
// order, voting on candidate blocks under a per-index equivocation
// latch, assembling aggregated finalization proofs, and rotating
// leaders/epochs when a leader's tenure times out.
package consensus

import (
	"errors"
	"fmt"

	"github.com/undchain/modulr/chain"
	"github.com/undchain/modulr/crypto"
	"github.com/undchain/modulr/epoch"
	"github.com/undchain/modulr/kvstore"
	"github.com/undchain/modulr/txpool"
)

// MaxBlockTxs bounds how many pooled transactions a single block may
// carry. It is a fixed constant; rules.toml's max_block_txs is not read.
const MaxBlockTxs = 500

// Engine is one node's consensus participation: it proposes blocks when
// it is the current epoch's leader, and votes on candidate blocks
// otherwise.
type Engine struct {
	epoch   *epoch.Handler
	bc      *chain.Blockchain
	pool    *txpool.Pool
	latches *kvstore.Table // FINALIZATION_VOTING_STATS namespace
	priv    crypto.PrivateKey
	pub     crypto.PublicKey

	sm *StateMachine
}

// New builds a consensus Engine for the local validator identified by
// priv, operating over epochHandler/blockchain/pool, with equivocation
// latches persisted in latches.
func New(epochHandler *epoch.Handler, bc *chain.Blockchain, pool *txpool.Pool, latches *kvstore.Table, priv crypto.PrivateKey) *Engine {
	return &Engine{
		epoch:   epochHandler,
		bc:      bc,
		pool:    pool,
		latches: latches,
		priv:    priv,
		pub:     priv.Public(),
		sm:      NewStateMachine(),
	}
}

// StateMachine exposes the engine's six-state machine.
func (e *Engine) StateMachine() *StateMachine { return e.sm }

// IsLeader reports whether the local validator is the epoch's current
// leader, per effective_leader: a position in LeadersSequence that only
// moves forward on an accepted ALRP, not on block index.
func (e *Engine) IsLeader() bool {
	return e.epoch.CurrentLeader() == e.pub.Hex()
}

// PubKeyHex returns the local validator's public key, hex-encoded —
// the identity it signs votes and blocks under.
func (e *Engine) PubKeyHex() string {
	return e.pub.Hex()
}

// QuorumMembers returns the current epoch's quorum membership list.
func (e *Engine) QuorumMembers() []string {
	return e.epoch.Snapshot().Quorum
}

// SignRotationVote produces this validator's vote that the current
// leader's tenure at skipIndex has timed out.
func (e *Engine) SignRotationVote(firstBlockHash string, skipIndex int64, skipHash string) RotationVote {
	return SignRotationVote(e.priv, firstBlockHash, skipIndex, skipHash)
}

// SignAEFPVote signs this validator's vote to close the current epoch.
func (e *Engine) SignAEFPVote(lastLeaderPosition int, lastIndex int64, lastHash, hashOfFirstBlockByLastLeader string) (voter, sig string) {
	return SignAEFPVote(e.priv, lastLeaderPosition, lastIndex, lastHash, hashOfFirstBlockByLastLeader)
}

// ProduceBlock builds, signs, and hands off the next block for this
// index if the local validator is its leader.
func (e *Engine) ProduceBlock(index int, nowMs int64) (*chain.Block, error) {
	view := e.epoch.Snapshot()
	if !e.IsLeader() {
		return nil, errors.New("consensus: not the leader for this index")
	}

	txs := e.pool.Drain(MaxBlockTxs)

	var prevHash string
	if tip := e.bc.Tip(); tip != nil {
		prevHash = tip.Hash(e.epoch.NetworkID)
	} else {
		prevHash = crypto.ZeroHash
	}

	block := chain.NewBlock(e.pub.Hex(), view.FullID, prevHash, int64(index), nowMs, txs)
	block.Sign(e.epoch.NetworkID, e.priv)
	return block, nil
}

// Vote validates a candidate block and, if valid, returns this
// validator's signature over (prev_block_hash, block_id, block_hash).
// It enforces the equivocation rule: signing two distinct blocks at the
// same (epoch_full_id, index) is rejected by a per-index latch
// persisted to the KV store BEFORE the signature is returned.
func (e *Engine) Vote(block *chain.Block, quorumMembers []string) (sig string, err error) {
	view := e.epoch.Snapshot()

	if err := e.ValidateBlock(block); err != nil {
		return "", err
	}

	blockHash := block.Hash(e.epoch.NetworkID)
	blockID := block.BlockID()

	latchKey := []byte(fmt.Sprintf("votelatch#%s#%d", view.FullID, block.Index))
	existing, err := e.latches.Get(latchKey)
	if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		return "", fmt.Errorf("consensus: read vote latch: %w", err)
	}
	if err == nil && string(existing) != blockHash {
		return "", fmt.Errorf("consensus: equivocation: already voted for a different block at index %d", block.Index)
	}
	if err := e.latches.Set(latchKey, []byte(blockHash)); err != nil {
		return "", fmt.Errorf("consensus: persist vote latch: %w", err)
	}

	return crypto.Sign(e.priv, voteBody(block.PrevHash, blockID, blockHash)), nil
}

// ValidateBlock checks everything a quorum member must confirm before
// voting for block: it was proposed by the expected leader, carries a
// valid leader signature, links to the running tip, its timestamp isn't
// behind the tip's, and every transaction it carries is validly signed
// with no duplicate nonce from the same creator within the block. This
// runs independent of voting/latch state, so it also serves a syncing
// peer accepting a block it didn't vote on live.
func (e *Engine) ValidateBlock(block *chain.Block) error {
	expectedLeader := e.epoch.CurrentLeader()
	if expectedLeader == "" || block.Creator != expectedLeader {
		return fmt.Errorf("consensus: block creator %s is not the expected leader", block.Creator)
	}
	pub, err := crypto.PubKeyFromHex(block.Creator)
	if err != nil {
		return fmt.Errorf("consensus: invalid creator pubkey: %w", err)
	}
	if err := block.VerifySignature(e.epoch.NetworkID, pub); err != nil {
		return fmt.Errorf("consensus: block signature invalid: %w", err)
	}

	if tip := e.bc.Tip(); tip != nil {
		if block.PrevHash != tip.Hash(e.epoch.NetworkID) {
			return fmt.Errorf("consensus: block prev_hash does not link to the current tip")
		}
		if block.TimeMs < tip.TimeMs {
			return fmt.Errorf("consensus: block time_ms %d is behind tip time_ms %d", block.TimeMs, tip.TimeMs)
		}
	}

	seenNonce := make(map[string]map[uint64]bool, len(block.Transactions))
	for _, tx := range block.Transactions {
		if err := tx.Verify(); err != nil {
			return fmt.Errorf("consensus: transaction %s failed verification: %w", tx.ID(), err)
		}
		// Only catches a duplicate nonce from the same creator within this
		// block; it is not a cross-block replay check, since no per-account
		// nonce ledger is tracked anywhere in this system.
		if seenNonce[tx.Creator][tx.Nonce] {
			return fmt.Errorf("consensus: duplicate nonce %d from creator %s within block", tx.Nonce, tx.Creator)
		}
		if seenNonce[tx.Creator] == nil {
			seenNonce[tx.Creator] = make(map[uint64]bool)
		}
		seenNonce[tx.Creator][tx.Nonce] = true
	}
	return nil
}

// voteBody is what a quorum member's block-finalization vote covers.
func voteBody(prevHash, blockID, blockHash string) []byte {
	return []byte(prevHash + blockID + blockHash)
}

// AssembleAFP gathers collected signatures into an AggregatedFinalizationProof.
func AssembleAFP(block *chain.Block, networkID string, sigs map[string]string) *chain.AFP {
	return &chain.AFP{
		PrevBlockHash: block.PrevHash,
		BlockID:       block.BlockID(),
		BlockHash:     block.Hash(networkID),
		Proofs:        sigs,
	}
}

// VerifyAFPSignature checks one quorum member's AFP signature against
// the fields it is supposed to cover.
func VerifyAFPSignature(pub crypto.PublicKey, afp *chain.AFP, sigHex string) error {
	return crypto.Verify(pub, voteBody(afp.PrevBlockHash, afp.BlockID, afp.BlockHash), sigHex)
}

// VerifyVote checks one quorum member's individual block-finalization
// vote signature before it is folded into an AFP.
func VerifyVote(pub crypto.PublicKey, prevHash, blockID, blockHash, sigHex string) error {
	return crypto.Verify(pub, voteBody(prevHash, blockID, blockHash), sigHex)
}
