package sector

import (
	"fmt"
	"sort"
	"sync"

	"github.com/undchain/modulr/crypto"
)

// DefaultSizeLimit is the sector size ceiling used until a partner's run
// rules override it.
const DefaultSizeLimit = 4 * 1024 * 1024 * 1024 // 4 GB

// Manager maintains one sector's file map, its mutation log, and the
// last confirmed checkpoint. Per the concurrency model a sector has
// exactly one writer; Manager still serializes with a mutex so a
// misbehaving caller fails safely instead of corrupting the log.
type Manager struct {
	mu sync.Mutex

	SectorID  string
	Version   int
	SizeLimit int64

	files     map[string]string // file_id -> content_ref
	mutations []Mutation        // chronological, timestamp-ordered

	lastConfirmedRoot string
	lastConfirmedTime int64
}

// NewManager creates an empty sector at the given size limit (0 selects
// DefaultSizeLimit).
func NewManager(sectorID string, sizeLimit int64) *Manager {
	if sizeLimit <= 0 {
		sizeLimit = DefaultSizeLimit
	}
	return &Manager{
		SectorID:  sectorID,
		Version:   1,
		SizeLimit: sizeLimit,
		files:     make(map[string]string),
	}
}

// ApplyMutation validates and applies one mutation, then appends it to
// the log. Mutations must arrive in non-decreasing timestamp order
// within a sector; out-of-order application is rejected since
// get_state_at and commit_checkpoint both assume a monotone log.
func (m *Manager) ApplyMutation(mut Mutation) error {
	if mut.JobID == "" {
		return fmt.Errorf("sector: mutation missing job_id")
	}
	if len(mut.Affected) == 0 {
		return fmt.Errorf("sector: mutation %s affects no files", mut.JobID)
	}
	switch mut.Action {
	case ActionWrite, ActionUpdate, ActionDelete:
	default:
		return fmt.Errorf("sector: mutation %s has unknown action %q", mut.JobID, mut.Action)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if n := len(m.mutations); n > 0 && mut.Timestamp < m.mutations[n-1].Timestamp {
		return fmt.Errorf("sector: mutation %s timestamp %d precedes last applied mutation at %d",
			mut.JobID, mut.Timestamp, m.mutations[n-1].Timestamp)
	}

	applyToState(m.files, mut)
	m.mutations = append(m.mutations, mut)
	return nil
}

// applyToState mutates state in place per mut's action, shared by
// ApplyMutation (live state) and GetStateAt (replay into a fresh map).
func applyToState(state map[string]string, mut Mutation) {
	for _, fileID := range mut.Affected {
		switch mut.Action {
		case ActionWrite, ActionUpdate:
			state[fileID] = contentRef(mut.Timestamp, fileID)
		case ActionDelete:
			delete(state, fileID)
		}
	}
}

func contentRef(timestamp int64, fileID string) string {
	return fmt.Sprintf("data::%d::%s", timestamp, fileID)
}

// GetStateAt reconstructs the sector's file map as of timestamp by
// replaying the mutation log up to and including it. Cost is O(len(log));
// callers that query the same sector repeatedly should cache periodic
// snapshots themselves.
func (m *Manager) GetStateAt(timestamp int64) map[string]string {
	m.mu.Lock()
	mutations := append([]Mutation{}, m.mutations...)
	m.mu.Unlock()

	sort.SliceStable(mutations, func(i, j int) bool { return mutations[i].Timestamp < mutations[j].Timestamp })

	state := make(map[string]string)
	for _, mut := range mutations {
		if mut.Timestamp > timestamp {
			break
		}
		applyToState(state, mut)
	}
	return state
}

// CalculateMerkleRoot hashes state using the protocol's reference
// encoding: lexicographically sorted "file_id:content_ref" pairs
// concatenated without separators, hashed once. This exact encoding is
// the committed root; sector.MerkleTree (tree.go) provides inclusion
// proofs over the same leaves without changing what gets committed.
// A nil state hashes the sector's current live file map.
func (m *Manager) CalculateMerkleRoot(state map[string]string) string {
	if state == nil {
		m.mu.Lock()
		state = make(map[string]string, len(m.files))
		for k, v := range m.files {
			state[k] = v
		}
		m.mu.Unlock()
	}
	return calculateMerkleRoot(state)
}

func calculateMerkleRoot(state map[string]string) string {
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var flat []byte
	for _, k := range keys {
		flat = append(flat, []byte(k)...)
		flat = append(flat, ':')
		flat = append(flat, []byte(state[k])...)
	}
	return crypto.Hash(flat)
}

// CommitCheckpoint records (root, t) as the sector's last confirmed
// checkpoint and prunes mutations with timestamp <= t; everything after
// t is retained so future challenges can still be answered. The caller
// is responsible for having verified CalculateMerkleRoot(GetStateAt(t))
// == root before calling this.
func (m *Manager) CommitCheckpoint(root string, t int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastConfirmedRoot = root
	m.lastConfirmedTime = t

	kept := m.mutations[:0:0]
	for _, mut := range m.mutations {
		if mut.Timestamp > t {
			kept = append(kept, mut)
		}
	}
	m.mutations = kept
}

// LastConfirmed returns the sector's most recently committed checkpoint.
func (m *Manager) LastConfirmed() (root string, t int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastConfirmedRoot, m.lastConfirmedTime
}

// MutationCount reports the number of retained (unpruned) mutations.
func (m *Manager) MutationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.mutations)
}
