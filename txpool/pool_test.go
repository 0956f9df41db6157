package txpool

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/undchain/modulr/chain"
	"github.com/undchain/modulr/crypto"
)

func mustTx(t *testing.T, priv crypto.PrivateKey, nonce, fee uint64) *chain.Transaction {
	t.Helper()
	tx, err := chain.NewTransaction(chain.TxReliabilitySignal, nonce, fee, map[string]string{"job_id": "j"})
	require.NoError(t, err)
	tx.Sign(priv)
	return tx
}

func TestAddAndGet(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	p := NewPool(nil)
	tx := mustTx(t, priv, 0, 5)
	require.NoError(t, p.Add(tx))

	got, ok := p.Get(tx.ID())
	require.True(t, ok)
	require.Equal(t, tx.Sig, got.Sig)
	require.Equal(t, 1, p.Size())
}

func TestAddRejectsDuplicate(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	p := NewPool(nil)
	tx := mustTx(t, priv, 0, 5)
	require.NoError(t, p.Add(tx))
	require.ErrorIs(t, p.Add(tx), ErrAlreadyPresent)
}

func TestAddEnforcesExpectedNonce(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	nextNonce := func(creator string) uint64 {
		if creator == pub.Hex() {
			return 3
		}
		return 0
	}
	p := NewPool(nextNonce)
	tx := mustTx(t, priv, 0, 5) // stale: pool expects nonce 3
	require.ErrorIs(t, p.Add(tx), ErrStaleNonce)
}

func TestDrainOrdersByFeeDescThenNonceAsc(t *testing.T) {
	privA, _, _ := crypto.GenerateKeyPair()
	privB, _, _ := crypto.GenerateKeyPair()

	p := NewPool(nil)
	txLowFee := mustTx(t, privA, 0, 1)
	txHighFee := mustTx(t, privB, 0, 9)
	txMidFee := mustTx(t, privA, 1, 5)

	require.NoError(t, p.Add(txLowFee))
	require.NoError(t, p.Add(txHighFee))
	require.NoError(t, p.Add(txMidFee))

	drained := p.Drain(10)
	require.Len(t, drained, 3)
	require.Equal(t, uint64(9), drained[0].Fee)
	require.Equal(t, uint64(5), drained[1].Fee)
	require.Equal(t, uint64(1), drained[2].Fee)
}

func TestDrainRespectsLimit(t *testing.T) {
	priv, _, _ := crypto.GenerateKeyPair()
	p := NewPool(nil)
	for i := uint64(0); i < 5; i++ {
		require.NoError(t, p.Add(mustTx(t, priv, i, i)))
	}
	require.Len(t, p.Drain(2), 2)
}

func TestRemoveDeletesByID(t *testing.T) {
	priv, _, _ := crypto.GenerateKeyPair()
	p := NewPool(nil)
	tx := mustTx(t, priv, 0, 5)
	require.NoError(t, p.Add(tx))

	p.Remove([]string{tx.ID()})
	require.Zero(t, p.Size())
	_, ok := p.Get(tx.ID())
	require.False(t, ok)
}

func TestEvictionSkipsLowestNonceGapForCreator(t *testing.T) {
	priv, _, _ := crypto.GenerateKeyPair()
	p := NewPool(nil)

	// Fill the pool entirely with one creator's sequential nonces so the
	// "lowest gap" rule is exercised: nonce 0 must never be evicted while
	// higher nonces from the same creator are still pooled, since losing
	// it would strand every nonce above it.
	for i := uint64(0); i < MaxSize; i++ {
		require.NoError(t, p.Add(mustTx(t, priv, i, 1)))
	}

	otherPriv, _, _ := crypto.GenerateKeyPair()
	overflow := mustTx(t, otherPriv, 0, 1)
	err := p.Add(overflow)

	// Nonce 0 is the first creator's only lowest-gap entry; nonces
	// 1..N-1 are not gaps since 0 < them, so eviction succeeds by
	// evicting the oldest non-gap entry, e.g. nonce 1.
	require.NoError(t, err)
	_, stillThere := p.Get(overflow.ID())
	require.True(t, stillThere)
}

func TestFeeAtMinimumIsAccepted(t *testing.T) {
	priv, _, _ := crypto.GenerateKeyPair()
	p := NewPool(nil)
	require.NoError(t, p.Add(mustTx(t, priv, 0, MinFee)))
}
