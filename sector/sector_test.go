package sector

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func seedJobs() []Mutation {
	return []Mutation{
		{JobID: "job-001", Timestamp: 1723451000, User: "0xBOB", Action: ActionWrite, Affected: []string{"bob_notes.txt"}},
		{JobID: "job-002", Timestamp: 1723451100, User: "0xSALLY", Action: ActionWrite, Affected: []string{"sally_resume.pdf"}},
		{JobID: "job-003", Timestamp: 1723451200, User: "0xBOB", Action: ActionUpdate, Affected: []string{"bob_notes.txt"}},
		{JobID: "job-004", Timestamp: 1723451300, User: "0xSALLY", Action: ActionDelete, Affected: []string{"sally_resume.pdf"}},
	}
}

func TestApplyMutationWriteUpdateDelete(t *testing.T) {
	m := NewManager("sector_001", 0)
	for _, mut := range seedJobs() {
		require.NoError(t, m.ApplyMutation(mut))
	}

	state := m.GetStateAt(1723451300)
	require.NotContains(t, state, "sally_resume.pdf")
	require.Contains(t, state, "bob_notes.txt")
	require.Equal(t, "data::1723451200::bob_notes.txt", state["bob_notes.txt"])
}

func TestApplyMutationRejectsOutOfOrderTimestamp(t *testing.T) {
	m := NewManager("sector_001", 0)
	require.NoError(t, m.ApplyMutation(seedJobs()[1]))
	err := m.ApplyMutation(seedJobs()[0])
	require.Error(t, err)
}

func TestGetStateAtReplaysUpToTimestamp(t *testing.T) {
	m := NewManager("sector_001", 0)
	for _, mut := range seedJobs() {
		require.NoError(t, m.ApplyMutation(mut))
	}

	// Before Sally's delete at 1723451300.
	snapshot := m.GetStateAt(1723451250)
	require.Contains(t, snapshot, "sally_resume.pdf")
	require.Contains(t, snapshot, "bob_notes.txt")
}

func TestCalculateMerkleRootIsDeterministic(t *testing.T) {
	m := NewManager("sector_001", 0)
	for _, mut := range seedJobs() {
		require.NoError(t, m.ApplyMutation(mut))
	}

	root1 := m.CalculateMerkleRoot(nil)
	root2 := m.CalculateMerkleRoot(nil)
	require.Equal(t, root1, root2)
	require.Len(t, root1, 64)
}

func TestCommitCheckpointPrunesOldMutationsButInvariantHolds(t *testing.T) {
	m := NewManager("sector_001", 0)
	for _, mut := range seedJobs() {
		require.NoError(t, m.ApplyMutation(mut))
	}

	checkpointT := int64(1723451200)
	state := m.GetStateAt(checkpointT)
	root := m.CalculateMerkleRoot(state)

	m.CommitCheckpoint(root, checkpointT)

	// The invariant: replaying up to t after the checkpoint still
	// reproduces the committed root, because mutations at or before t
	// were pruned but nothing after t was touched.
	replayed := m.GetStateAt(checkpointT)
	require.Equal(t, root, m.CalculateMerkleRoot(replayed))

	gotRoot, gotT := m.LastConfirmed()
	require.Equal(t, root, gotRoot)
	require.Equal(t, checkpointT, gotT)

	// job-004 (delete, timestamp 1723451300) is after the checkpoint and
	// must be retained.
	require.Equal(t, 1, m.MutationCount())
}

func TestMerkleTreeInclusionProofRoundTrip(t *testing.T) {
	m := NewManager("sector_001", 0)
	for _, mut := range seedJobs() {
		require.NoError(t, m.ApplyMutation(mut))
	}
	state := m.GetStateAt(1723451200)

	tree := BuildMerkleTree(state)
	proof, ok := tree.ProveInclusion("bob_notes.txt")
	require.True(t, ok)
	require.True(t, VerifyInclusion(tree.Root(), proof))

	_, ok = tree.ProveInclusion("nonexistent.txt")
	require.False(t, ok)
}

func TestMerkleTreeRejectsTamperedProof(t *testing.T) {
	m := NewManager("sector_001", 0)
	for _, mut := range seedJobs() {
		require.NoError(t, m.ApplyMutation(mut))
	}
	state := m.GetStateAt(1723451300)
	tree := BuildMerkleTree(state)

	proof, ok := tree.ProveInclusion("bob_notes.txt")
	require.True(t, ok)
	proof.LeafHash[0] ^= 0xFF
	require.False(t, VerifyInclusion(tree.Root(), proof))
}
