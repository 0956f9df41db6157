package chain

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/undchain/modulr/crypto"
)

// DelayedTxsBatch carries transactions that arrived too late for their
// intended epoch and are instead replayed at the start of the next one.
type DelayedTxsBatch struct {
	EpochIndex           int64          `json:"epoch_index"`
	DelayedTransactions  []*Transaction `json:"delayed_transactions"`
	Proofs               map[string]string `json:"proofs"` // quorum member -> signature
}

// ExtraData rides along with a block's first index under a new leader
// or epoch; every other block carries an empty ExtraData.
type ExtraData struct {
	Rest                         string             `json:"rest,omitempty"`
	AEFPForPreviousEpoch         *AEFP              `json:"aefp_for_previous_epoch,omitempty"`
	DelayedTxsBatch              *DelayedTxsBatch   `json:"delayed_txs_batch,omitempty"`
	AggregatedLeadersRotationProofs map[string]*ALRP `json:"aggregated_leaders_rotation_proofs,omitempty"`
}

// Block is one entry in an epoch's ordered sequence.
type Block struct {
	Creator     string       `json:"creator"` // hex pubkey of the expected leader
	TimeMs      int64        `json:"time_ms"`
	EpochFullID string       `json:"epoch_full_id"`
	Transactions []*Transaction `json:"transactions"`
	ExtraData   ExtraData    `json:"extra_data"`
	Index       int64        `json:"index"`
	PrevHash    string       `json:"prev_hash"`
	Sig         string       `json:"sig"`
}

// BlockID is the canonical identifier an AFP commits to.
func (b *Block) BlockID() string {
	return fmt.Sprintf("%s#%d", b.EpochFullID, b.Index)
}

// canonicalTransactions builds a deterministic byte encoding of b's
// transaction list: each transaction's canonical bytes, length-prefixed
// to avoid boundary ambiguity, concatenated in block order (transaction
// order within a block is part of what's being committed to, so no
// sorting happens here).
func canonicalTransactions(txs []*Transaction) []byte {
	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, tx := range txs {
		data := tx.CanonicalBytes()
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
		buf.Write(lenBuf[:])
		buf.Write(data)
	}
	return buf.Bytes()
}

// Hash computes the block hash under networkID:
// H(creator ‖ time_ms ‖ canonical(transactions) ‖ network_id ‖ epoch_full_id ‖ index ‖ prev_hash).
func (b *Block) Hash(networkID string) string {
	var idxBuf [8]byte
	binary.BigEndian.PutUint64(idxBuf[:], uint64(b.Index))
	var timeBuf [8]byte
	binary.BigEndian.PutUint64(timeBuf[:], uint64(b.TimeMs))

	return crypto.HashConcatHex(
		[]byte(b.Creator),
		timeBuf[:],
		canonicalTransactions(b.Transactions),
		[]byte(networkID),
		[]byte(b.EpochFullID),
		idxBuf[:],
		[]byte(b.PrevHash),
	)
}

// Sign signs b's hash under networkID and sets Sig.
func (b *Block) Sign(networkID string, priv crypto.PrivateKey) {
	b.Sig = crypto.Sign(priv, []byte(b.Hash(networkID)))
}

// VerifySignature checks b.Sig against pub for the given networkID.
func (b *Block) VerifySignature(networkID string, pub crypto.PublicKey) error {
	return crypto.Verify(pub, []byte(b.Hash(networkID)), b.Sig)
}

// NewBlock creates an unsigned block.
func NewBlock(creator, epochFullID, prevHash string, index int64, timeMs int64, txs []*Transaction) *Block {
	return &Block{
		Creator:      creator,
		TimeMs:       timeMs,
		EpochFullID:  epochFullID,
		Transactions: txs,
		Index:        index,
		PrevHash:     prevHash,
	}
}
