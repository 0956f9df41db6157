package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/undchain/modulr/chain"
	"github.com/undchain/modulr/crypto"
	"github.com/undchain/modulr/epoch"
	"github.com/undchain/modulr/kvstore"
	"github.com/undchain/modulr/txpool"
)

const testNetworkID = "modulr-testnet"

func setup(t *testing.T) (*Engine, crypto.PrivateKey, *epoch.Handler) {
	t.Helper()
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	h := epoch.New(1, "epochhash", testNetworkID, epoch.Params{LeadershipTimeframeMs: 2000}, 0)
	h.RegisterPool(pub.Hex())
	require.NoError(t, h.SetLeadersSequence([]byte("seed")))
	h.SetQuorum([]string{pub.Hex()})

	db := kvstore.NewMemDB()
	store := chain.NewStore(db)
	bc := chain.NewBlockchain(store, testNetworkID)
	require.NoError(t, bc.Init(h.FullID()))

	latches := kvstore.NewTable(db, kvstore.FinalizationVotingStats)
	pool := txpool.NewPool(nil)

	return New(h, bc, pool, latches, priv), priv, h
}

func TestStateMachineLegalTransitions(t *testing.T) {
	sm := NewStateMachine()
	require.Equal(t, Discovery, sm.Current())
	require.NoError(t, sm.Transition(Sync))
	require.NoError(t, sm.Transition(Active))
	require.Error(t, sm.Transition(Discovery)) // ACTIVE -> DISCOVERY is illegal
}

func TestStateMachineDiscoveryMayRedirect(t *testing.T) {
	sm := NewStateMachine()
	require.NoError(t, sm.Transition(Redirect))
	require.NoError(t, sm.Transition(Discovery))
}

func TestStateMachineErrorIsTerminal(t *testing.T) {
	sm := NewStateMachine()
	require.NoError(t, sm.Transition(Sync))
	require.NoError(t, sm.Transition(Active))
	require.NoError(t, sm.Transition(Errored))
	require.Error(t, sm.Transition(Discovery))
	require.Error(t, sm.Transition(Offline))
}

func TestIsLeaderAndProduceBlock(t *testing.T) {
	e, _, _ := setup(t)
	require.True(t, e.IsLeader())

	block, err := e.ProduceBlock(0, 1000)
	require.NoError(t, err)
	require.Equal(t, int64(0), block.Index)
}

func TestVoteRejectsEquivocation(t *testing.T) {
	e, priv, _ := setup(t)
	block, err := e.ProduceBlock(0, 1000)
	require.NoError(t, err)

	sig1, err := e.Vote(block, []string{priv.Public().Hex()})
	require.NoError(t, err)
	require.NotEmpty(t, sig1)

	other := chain.NewBlock(block.Creator, block.EpochFullID, block.PrevHash, block.Index, 2000, nil)
	other.Sign(testNetworkID, priv)
	_, err = e.Vote(other, []string{priv.Public().Hex()})
	require.Error(t, err)
}

func TestAssembleAFPRequiresMajority(t *testing.T) {
	e, priv, _ := setup(t)
	block, err := e.ProduceBlock(0, 1000)
	require.NoError(t, err)

	sig, err := e.Vote(block, nil)
	require.NoError(t, err)

	afp := AssembleAFP(block, testNetworkID, map[string]string{priv.Public().Hex(): sig})
	require.True(t, afp.HasMajority(1))
	require.NoError(t, VerifyAFPSignature(priv.Public(), afp, sig))
}

func TestAssembleALRPFiltersNonMatchingVotes(t *testing.T) {
	priv1, _, _ := crypto.GenerateKeyPair()
	priv2, _, _ := crypto.GenerateKeyPair()
	priv3, _, _ := crypto.GenerateKeyPair()

	v1 := SignRotationVote(priv1, "fb", 0, "sh")
	v2 := SignRotationVote(priv2, "fb", 0, "sh")
	v3 := SignRotationVote(priv3, "different", 0, "sh") // doesn't match

	// Quorum of 2: majority is 2, which the two matching votes meet.
	alrp := AssembleALRP([]RotationVote{v1, v2, v3}, 2)
	require.NotNil(t, alrp)
	require.Len(t, alrp.Proofs, 2)
}

func TestAssembleAEFPRequiresMajority(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	voter, sig := SignAEFPVote(priv, 2, 10, "lasthash", "firsthash")

	aefp := AssembleAEFP(2, 10, "lasthash", "firsthash", map[string]string{voter: sig}, 1)
	require.NotNil(t, aefp)
}
