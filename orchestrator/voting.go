package orchestrator

import (
	"fmt"
	"sync"

	"github.com/undchain/modulr/chain"
	"github.com/undchain/modulr/consensus"
	"github.com/undchain/modulr/network"
)

// voteTracker accumulates in-flight block votes, rotation votes, and
// AEFP votes until a quorum majority is reached, and caches the block
// object each active block vote refers to — a peer's vote can arrive
// before or after the local node has seen the block it votes for.
type voteTracker struct {
	mu sync.Mutex

	blocks    map[string]*chain.Block
	blockSigs map[string]map[string]string

	rotVotes map[string][]consensus.RotationVote

	aefpSigs map[string]map[string]string
}

func newVoteTracker() *voteTracker {
	return &voteTracker{
		blocks:    make(map[string]*chain.Block),
		blockSigs: make(map[string]map[string]string),
		rotVotes:  make(map[string][]consensus.RotationVote),
		aefpSigs:  make(map[string]map[string]string),
	}
}

func blockKey(epochFullID string, index int64) string {
	return fmt.Sprintf("%s#%d", epochFullID, index)
}

func (t *voteTracker) storeBlock(block *chain.Block) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.blocks[blockKey(block.EpochFullID, block.Index)] = block
}

func (t *voteTracker) getBlock(epochFullID string, index int64) *chain.Block {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.blocks[blockKey(epochFullID, index)]
}

func (t *voteTracker) addBlockVote(epochFullID string, index int64, voter, sig string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := blockKey(epochFullID, index)
	if t.blockSigs[key] == nil {
		t.blockSigs[key] = make(map[string]string)
	}
	t.blockSigs[key][voter] = sig
}

func (t *voteTracker) blockVotes(epochFullID string, index int64) map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := blockKey(epochFullID, index)
	out := make(map[string]string, len(t.blockSigs[key]))
	for voter, sig := range t.blockSigs[key] {
		out[voter] = sig
	}
	return out
}

func (t *voteTracker) clearBlock(epochFullID string, index int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := blockKey(epochFullID, index)
	delete(t.blocks, key)
	delete(t.blockSigs, key)
}

func rotationKey(epochFullID string, skipIndex int64) string {
	return fmt.Sprintf("%s#rot#%d", epochFullID, skipIndex)
}

// addRotationVote appends v and returns every rotation vote accumulated
// so far for (epochFullID, v.SkipIndex).
func (t *voteTracker) addRotationVote(epochFullID string, v consensus.RotationVote) []consensus.RotationVote {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := rotationKey(epochFullID, v.SkipIndex)
	t.rotVotes[key] = append(t.rotVotes[key], v)
	out := make([]consensus.RotationVote, len(t.rotVotes[key]))
	copy(out, t.rotVotes[key])
	return out
}

func (t *voteTracker) clearRotationVotes(epochFullID string, skipIndex int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rotVotes, rotationKey(epochFullID, skipIndex))
}

func aefpKey(epochFullID string, v network.AEFPVote) string {
	return fmt.Sprintf("%s#aefp#%d#%d#%s#%s", epochFullID, v.LastLeaderPosition, v.LastIndex, v.LastHash, v.HashOfFirstBlockByLastLeader)
}

// addAEFPVote records v and returns every signature accumulated so far
// for the same (lastLeaderPosition, lastIndex, lastHash, hashOfFirstBlockByLastLeader) tuple.
func (t *voteTracker) addAEFPVote(epochFullID string, v network.AEFPVote) map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := aefpKey(epochFullID, v)
	if t.aefpSigs[key] == nil {
		t.aefpSigs[key] = make(map[string]string)
	}
	t.aefpSigs[key][v.Voter] = v.Sig
	out := make(map[string]string, len(t.aefpSigs[key]))
	for voter, sig := range t.aefpSigs[key] {
		out[voter] = sig
	}
	return out
}

func (t *voteTracker) clearAEFPVotes(epochFullID string, v network.AEFPVote) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.aefpSigs, aefpKey(epochFullID, v))
}
