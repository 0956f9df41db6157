package chain

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/undchain/modulr/crypto"
	"github.com/undchain/modulr/kvstore"
)

const testNetworkID = "modulr-testnet"

func signedTx(t *testing.T, priv crypto.PrivateKey, nonce uint64) *Transaction {
	t.Helper()
	tx, err := NewTransaction(TxReliabilitySignal, nonce, 0, map[string]string{"job_id": "j1"})
	require.NoError(t, err)
	tx.Sign(priv)
	return tx
}

func TestTransactionSignVerifyRoundTrip(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	tx := signedTx(t, priv, 1)
	require.NoError(t, tx.Verify())
	require.NotEmpty(t, tx.ID())
}

func TestTransactionVerifyRejectsTamperedPayload(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	tx := signedTx(t, priv, 1)
	tx.Payload = []byte(`{"job_id":"tampered"}`)
	require.Error(t, tx.Verify())
}

func TestMajorityThresholds(t *testing.T) {
	cases := []struct{ n, want int }{
		{1, 1}, {3, 3}, {4, 3}, {7, 5}, {10, 7}, {100, 67},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Majority(c.n), "n=%d", c.n)
	}
}

func TestAFPHasMajority(t *testing.T) {
	afp := &AFP{Proofs: map[string]string{"a": "sig1", "b": "sig2", "c": "sig3"}}
	require.True(t, afp.HasMajority(4))  // majority of 4 is 3
	require.False(t, afp.HasMajority(5)) // majority of 5 is 4
}

func TestBlockHashDeterministicAndOrderSensitive(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	tx1 := signedTx(t, priv, 1)
	tx2 := signedTx(t, priv, 2)

	b1 := NewBlock("leader-a", "epoch1", crypto.ZeroHash, 0, 1000, []*Transaction{tx1, tx2})
	b2 := NewBlock("leader-a", "epoch1", crypto.ZeroHash, 0, 1000, []*Transaction{tx2, tx1})

	require.Equal(t, b1.Hash(testNetworkID), b1.Hash(testNetworkID))
	require.NotEqual(t, b1.Hash(testNetworkID), b2.Hash(testNetworkID))
}

func TestBlockSignVerify(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	b := NewBlock(pub.Hex(), "epoch1", crypto.ZeroHash, 0, 1000, nil)
	b.Sign(testNetworkID, priv)
	require.NoError(t, b.VerifySignature(testNetworkID, pub))
}

func TestBlockchainEnforcesLinkage(t *testing.T) {
	db := kvstore.NewMemDB()
	store := NewStore(db)
	bc := NewBlockchain(store, testNetworkID)
	require.NoError(t, bc.Init("epoch1"))

	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	b0 := NewBlock(pub.Hex(), "epoch1", crypto.ZeroHash, 0, 1000, nil)
	b0.Sign(testNetworkID, priv)
	require.NoError(t, bc.AddBlock(b0, &AFP{BlockID: b0.BlockID()}))

	b1 := NewBlock(pub.Hex(), "epoch1", b0.Hash(testNetworkID), 1, 2000, nil)
	b1.Sign(testNetworkID, priv)
	require.NoError(t, bc.AddBlock(b1, &AFP{BlockID: b1.BlockID()}))

	require.Equal(t, int64(1), bc.TipIndex())

	// A block with the wrong prev_hash must be rejected.
	bBad := NewBlock(pub.Hex(), "epoch1", "wrong-hash", 2, 3000, nil)
	bBad.Sign(testNetworkID, priv)
	require.Error(t, bc.AddBlock(bBad, &AFP{}))
}

func TestAddBlockRejectsWithoutQuorumMajority(t *testing.T) {
	db := kvstore.NewMemDB()
	store := NewStore(db)
	bc := NewBlockchain(store, testNetworkID)
	require.NoError(t, bc.Init("epoch1"))
	bc.SetQuorumSource(func() int { return 4 }) // majority of 4 is 3

	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	b0 := NewBlock(pub.Hex(), "epoch1", crypto.ZeroHash, 0, 1000, nil)
	b0.Sign(testNetworkID, priv)

	err = bc.AddBlock(b0, &AFP{BlockID: b0.BlockID(), Proofs: map[string]string{"a": "s1", "b": "s2"}})
	require.Error(t, err)
	require.Equal(t, int64(-1), bc.TipIndex())

	err = bc.AddBlock(b0, nil)
	require.Error(t, err)
}

func TestAddBlockAcceptsWithQuorumMajority(t *testing.T) {
	db := kvstore.NewMemDB()
	store := NewStore(db)
	bc := NewBlockchain(store, testNetworkID)
	require.NoError(t, bc.Init("epoch1"))
	bc.SetQuorumSource(func() int { return 4 }) // majority of 4 is 3

	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	b0 := NewBlock(pub.Hex(), "epoch1", crypto.ZeroHash, 0, 1000, nil)
	b0.Sign(testNetworkID, priv)

	afp := &AFP{BlockID: b0.BlockID(), Proofs: map[string]string{"a": "s1", "b": "s2", "c": "s3"}}
	require.NoError(t, bc.AddBlock(b0, afp))
	require.Equal(t, int64(0), bc.TipIndex())
}

func TestPayoutHookFiresOnCommit(t *testing.T) {
	db := kvstore.NewMemDB()
	store := NewStore(db)
	bc := NewBlockchain(store, testNetworkID)
	require.NoError(t, bc.Init("epoch1"))

	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	var paidIndex int64 = -1
	bc.SetPayoutHook(func(b *Block) { paidIndex = b.Index })

	b0 := NewBlock(pub.Hex(), "epoch1", crypto.ZeroHash, 0, 1000, nil)
	b0.Sign(testNetworkID, priv)
	require.NoError(t, bc.AddBlock(b0, &AFP{BlockID: b0.BlockID()}))

	require.Equal(t, int64(0), paidIndex)
}

func TestStoreCommitBlockIsQueryable(t *testing.T) {
	db := kvstore.NewMemDB()
	store := NewStore(db)

	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	b := NewBlock(pub.Hex(), "epoch1", crypto.ZeroHash, 0, 1000, nil)
	b.Sign(testNetworkID, priv)
	afp := &AFP{BlockID: b.BlockID(), Proofs: map[string]string{pub.Hex(): "sig"}}

	require.NoError(t, store.CommitBlock(b, afp))

	got, err := store.GetBlock("epoch1", 0)
	require.NoError(t, err)
	require.Equal(t, b.Sig, got.Sig)

	gotAFP, err := store.GetAFP("epoch1", 0)
	require.NoError(t, err)
	require.Len(t, gotAFP.Proofs, 1)

	tip, err := store.GetTip("epoch1")
	require.NoError(t, err)
	require.EqualValues(t, 0, tip)
}
