// Package epoch tracks the current epoch's pool registry, quorum,
// leader sequence, and network parameters, and derives each epoch's
// leader sequence deterministically from the previous epoch's hash.
package epoch

import (
	"fmt"
	"sort"
	"sync"

	"github.com/undchain/modulr/crypto"
)

// Params holds the per-epoch network parameters referenced by the
// leader-rotation timeout math.
type Params struct {
	EpochTimeMs          int64
	LeadershipTimeframeMs int64
}

// Handler is one epoch's full state: id, hash, pool registry, quorum,
// leader sequence, and timing. epoch_full_id = H(hash ‖ network_id) + "#" + id.
type Handler struct {
	mu sync.RWMutex

	ID               int64
	Hash             string
	NetworkID        string
	PoolsRegistry    map[string]struct{} // set<pubkey>
	Quorum           []string            // ordered[pubkey]
	LeadersSequence  []string            // ordered[pubkey]
	StartTimestampMs int64
	CurrentLeaderIdx int
	Params           Params
}

// New creates a fresh epoch handler with an empty registry/quorum/leader
// sequence, per the genesis open-question resolution: only bookkeeping
// fields are seeded, no token allocation.
func New(id int64, hash, networkID string, params Params, startTimestampMs int64) *Handler {
	return &Handler{
		ID:               id,
		Hash:             hash,
		NetworkID:        networkID,
		PoolsRegistry:    make(map[string]struct{}),
		StartTimestampMs: startTimestampMs,
		Params:           params,
	}
}

// FullID returns epoch_full_id = H(hash ‖ network_id) + "#" + id.
func (h *Handler) FullID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return fmt.Sprintf("%s#%d", crypto.HashConcatHex([]byte(h.Hash), []byte(h.NetworkID)), h.ID)
}

// View is an immutable snapshot handed to readers so they never hold a
// lock while inspecting epoch state, mirroring the teacher's
// Blockchain.Tip()/Height() copy-out pattern.
type View struct {
	ID               int64
	FullID           string
	Quorum           []string
	LeadersSequence  []string
	StartTimestampMs int64
	CurrentLeaderIdx int
	Params           Params
}

// Snapshot returns a point-in-time copy of the handler's state.
func (h *Handler) Snapshot() *View {
	h.mu.RLock()
	defer h.mu.RUnlock()
	quorum := append([]string(nil), h.Quorum...)
	leaders := append([]string(nil), h.LeadersSequence...)
	return &View{
		ID:               h.ID,
		FullID:           fmt.Sprintf("%s#%d", crypto.HashConcatHex([]byte(h.Hash), []byte(h.NetworkID)), h.ID),
		Quorum:           quorum,
		LeadersSequence:  leaders,
		StartTimestampMs: h.StartTimestampMs,
		CurrentLeaderIdx: h.CurrentLeaderIdx,
		Params:           h.Params,
	}
}

// RegisterPool adds pubkey to the pool registry. Idempotent.
func (h *Handler) RegisterPool(pubkey string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.PoolsRegistry[pubkey] = struct{}{}
}

// IsKnown reports whether pubkey is in the pools registry. No caller in
// this module consults it; vote handlers accept any key whose signature
// verifies.
func (h *Handler) IsKnown(pubkey string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.PoolsRegistry[pubkey]
	return ok
}

// SetQuorum installs the ordered quorum membership for this epoch.
func (h *Handler) SetQuorum(quorum []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Quorum = append([]string(nil), quorum...)
}

// SetLeadersSequence derives and installs the leader sequence from the
// sorted pool registry, keyed by (epoch hash, network id, epoch seed)
// per the leader-sequence open-question resolution.
func (h *Handler) SetLeadersSequence(epochSeed []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	pool := make([]string, 0, len(h.PoolsRegistry))
	for k := range h.PoolsRegistry {
		pool = append(pool, k)
	}
	sort.Strings(pool)

	seq, err := DeriveLeaderSequence(h.Hash, h.NetworkID, epochSeed, pool)
	if err != nil {
		return fmt.Errorf("epoch: derive leader sequence: %w", err)
	}
	h.LeadersSequence = seq
	h.CurrentLeaderIdx = 0
	return nil
}

// CurrentLeader returns the pubkey expected to lead right now, under
// CurrentLeaderIdx, or "" if the sequence is empty or exhausted.
// CurrentLeaderIdx advances only through AdvanceLeader (an accepted
// ALRP), independent of which block index is being produced next — a
// leader that gets skipped stays skipped even though block indices keep
// incrementing underneath it.
func (h *Handler) CurrentLeader() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.CurrentLeaderIdx < 0 || h.CurrentLeaderIdx >= len(h.LeadersSequence) {
		return ""
	}
	return h.LeadersSequence[h.CurrentLeaderIdx]
}

// IsFinalLeader reports whether CurrentLeaderIdx holds the last position
// in the leader sequence.
func (h *Handler) IsFinalLeader() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.LeadersSequence) > 0 && h.CurrentLeaderIdx == len(h.LeadersSequence)-1
}

// AdvanceLeader moves to the next leader index, e.g. after an ALRP
// authorizes skipping a silent leader.
func (h *Handler) AdvanceLeader() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.CurrentLeaderIdx++
}

// LeaderDeadlineMs returns the timestamp (ms) by which leader idx must
// have produced a block, per spec: leader k is authorized in
// [start + k*timeframe, start + (k+1)*timeframe).
func (h *Handler) LeaderDeadlineMs(idx int) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.StartTimestampMs + int64(idx+1)*h.Params.LeadershipTimeframeMs
}

// LeaderTimedOut reports whether, at nowMs, leader idx's tenure has
// expired. Returns a real bool always — never a sentinel, resolving the
// None-returning-comparison open question.
func (h *Handler) LeaderTimedOut(idx int, nowMs int64) bool {
	return nowMs >= h.LeaderDeadlineMs(idx)
}
