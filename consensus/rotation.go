package consensus

import (
	"fmt"

	"github.com/undchain/modulr/chain"
	"github.com/undchain/modulr/crypto"
)

// RotationVote is one quorum member's observation that a leader's
// tenure has timed out with no finalized block at the next index.
type RotationVote struct {
	Voter          string // pubkey hex
	FirstBlockHash string // first block hash of the current (departing) leader's tenure
	SkipIndex      int64
	SkipHash       string // last finalized hash under the departing leader, or epoch zero-hash
	Sig            string
}

// rotationBody is what a RotationVote's signature covers.
func rotationBody(firstBlockHash string, skipIndex int64, skipHash string) []byte {
	return []byte(fmt.Sprintf("%s:%d:%s", firstBlockHash, skipIndex, skipHash))
}

// SignRotationVote produces a rotation vote signed by priv.
func SignRotationVote(priv crypto.PrivateKey, firstBlockHash string, skipIndex int64, skipHash string) RotationVote {
	return RotationVote{
		Voter:          priv.Public().Hex(),
		FirstBlockHash: firstBlockHash,
		SkipIndex:      skipIndex,
		SkipHash:       skipHash,
		Sig:            crypto.Sign(priv, rotationBody(firstBlockHash, skipIndex, skipHash)),
	}
}

// VerifyRotationVote checks a rotation vote's signature.
func VerifyRotationVote(v RotationVote) error {
	pub, err := crypto.PubKeyFromHex(v.Voter)
	if err != nil {
		return fmt.Errorf("consensus: invalid rotation vote voter pubkey: %w", err)
	}
	return crypto.Verify(pub, rotationBody(v.FirstBlockHash, v.SkipIndex, v.SkipHash), v.Sig)
}

// AssembleALRP aggregates matching rotation votes (same first_block_hash,
// skip_index, skip_hash) into an ALRP once a majority of the quorum
// agrees, per spec §4.1. Returns nil if votes don't yet reach majority.
func AssembleALRP(votes []RotationVote, quorumSize int) *chain.ALRP {
	if len(votes) == 0 {
		return nil
	}
	first := votes[0]
	proofs := make(map[string]string, len(votes))
	for _, v := range votes {
		if v.FirstBlockHash != first.FirstBlockHash || v.SkipIndex != first.SkipIndex || v.SkipHash != first.SkipHash {
			continue // a vote for a different rotation target doesn't count toward this ALRP
		}
		proofs[v.Voter] = v.Sig
	}
	alrp := &chain.ALRP{
		FirstBlockHash: first.FirstBlockHash,
		SkipIndex:      first.SkipIndex,
		SkipHash:       first.SkipHash,
		Proofs:         proofs,
	}
	if !alrp.HasMajority(quorumSize) {
		return nil
	}
	return alrp
}

// aefpBody is what an AEFP vote's signature covers.
func aefpBody(lastLeaderPosition int, lastIndex int64, lastHash, hashOfFirstBlockByLastLeader string) []byte {
	return []byte(fmt.Sprintf("%d:%d:%s:%s", lastLeaderPosition, lastIndex, lastHash, hashOfFirstBlockByLastLeader))
}

// SignAEFPVote signs the epoch-rollover tuple with priv.
func SignAEFPVote(priv crypto.PrivateKey, lastLeaderPosition int, lastIndex int64, lastHash, hashOfFirstBlockByLastLeader string) (voter, sig string) {
	voter = priv.Public().Hex()
	sig = crypto.Sign(priv, aefpBody(lastLeaderPosition, lastIndex, lastHash, hashOfFirstBlockByLastLeader))
	return voter, sig
}

// VerifyAEFPVote checks one quorum member's AEFP vote signature.
func VerifyAEFPVote(pub crypto.PublicKey, lastLeaderPosition int, lastIndex int64, lastHash, hashOfFirstBlockByLastLeader, sigHex string) error {
	return crypto.Verify(pub, aefpBody(lastLeaderPosition, lastIndex, lastHash, hashOfFirstBlockByLastLeader), sigHex)
}

// AssembleAEFP aggregates epoch-rollover signatures into an AEFP once a
// majority of the quorum agrees on the same tuple.
func AssembleAEFP(lastLeaderPosition int, lastIndex int64, lastHash, hashOfFirstBlockByLastLeader string, sigs map[string]string, quorumSize int) *chain.AEFP {
	aefp := &chain.AEFP{
		LastLeaderPosition:           lastLeaderPosition,
		LastIndex:                    lastIndex,
		LastHash:                     lastHash,
		HashOfFirstBlockByLastLeader: hashOfFirstBlockByLastLeader,
		Proofs:                       sigs,
	}
	if !aefp.HasMajority(quorumSize) {
		return nil
	}
	return aefp
}
