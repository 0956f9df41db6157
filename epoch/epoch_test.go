package epoch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFullIDFormat(t *testing.T) {
	h := New(3, "deadbeef", "modulr-testnet", Params{}, 1000)
	full := h.FullID()
	require.Contains(t, full, "#3")
}

func TestDeriveLeaderSequenceIsDeterministic(t *testing.T) {
	pool := []string{"v1", "v2", "v3", "v4"}
	seq1, err := DeriveLeaderSequence("hash1", "net1", []byte("seed"), pool)
	require.NoError(t, err)
	seq2, err := DeriveLeaderSequence("hash1", "net1", []byte("seed"), pool)
	require.NoError(t, err)
	require.Equal(t, seq1, seq2)
	require.ElementsMatch(t, pool, seq1)
}

func TestDeriveLeaderSequenceVariesWithSeed(t *testing.T) {
	pool := []string{"v1", "v2", "v3", "v4", "v5", "v6"}
	seqA, err := DeriveLeaderSequence("hash1", "net1", []byte("seed-a"), pool)
	require.NoError(t, err)
	seqB, err := DeriveLeaderSequence("hash1", "net1", []byte("seed-b"), pool)
	require.NoError(t, err)
	require.NotEqual(t, seqA, seqB)
}

func TestSetLeadersSequencePopulatesFromRegistry(t *testing.T) {
	h := New(1, "hash1", "net1", Params{LeadershipTimeframeMs: 2000}, 0)
	h.RegisterPool("v1")
	h.RegisterPool("v2")
	h.RegisterPool("v3")
	require.NoError(t, h.SetLeadersSequence([]byte("seed")))

	view := h.Snapshot()
	require.Len(t, view.LeadersSequence, 3)
	require.Equal(t, 0, view.CurrentLeaderIdx)
}

func TestLeaderTimedOut(t *testing.T) {
	h := New(1, "hash1", "net1", Params{LeadershipTimeframeMs: 2000}, 0)
	require.False(t, h.LeaderTimedOut(0, 1999))
	require.True(t, h.LeaderTimedOut(0, 2000))
}

func TestCurrentLeaderFollowsCurrentLeaderIdxNotBlockIndex(t *testing.T) {
	h := New(1, "hash1", "net1", Params{LeadershipTimeframeMs: 2000}, 0)
	h.RegisterPool("v1")
	h.RegisterPool("v2")
	h.RegisterPool("v3")
	require.NoError(t, h.SetLeadersSequence([]byte("seed")))

	seq := h.Snapshot().LeadersSequence
	require.Equal(t, seq[0], h.CurrentLeader())
	require.False(t, h.IsFinalLeader())

	h.AdvanceLeader()
	require.Equal(t, seq[1], h.CurrentLeader())

	h.AdvanceLeader()
	require.Equal(t, seq[2], h.CurrentLeader())
	require.True(t, h.IsFinalLeader())

	h.AdvanceLeader()
	require.Equal(t, "", h.CurrentLeader())
}

func TestIsKnown(t *testing.T) {
	h := New(1, "hash1", "net1", Params{}, 0)
	require.False(t, h.IsKnown("v1"))
	h.RegisterPool("v1")
	require.True(t, h.IsKnown("v1"))
}
