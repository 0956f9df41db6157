// Package chain holds the core ledger types: transactions, blocks, the
// three aggregated proof kinds that finalize them, and the chain store
// that persists the confirmed sequence.
package chain

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/undchain/modulr/crypto"
)

// TxType identifies the kind of operation a transaction performs. Unlike
// a smart-contract call, every type here is interpreted by a fixed,
// built-in handler — there is no user-defined contract code.
type TxType string

const (
	TxJobFile           TxType = "job_file"
	TxPayoutFile        TxType = "payout_file"
	TxValidatorRequest  TxType = "validator_request"
	TxValidatorVote     TxType = "validator_vote"
	TxStorageChallenge  TxType = "storage_challenge"
	TxChallengeResponse TxType = "challenge_response"
	TxReliabilitySignal TxType = "reliability_signal"
	TxPerceptionUpdate  TxType = "perception_update"
)

// SigType identifies the signature scheme covering a transaction, kept
// as its own field (rather than assumed ed25519) so the scheme can be
// upgraded without changing the transaction shape.
type SigType string

// SigEd25519 is the only signature scheme Modulr ships today.
const SigEd25519 SigType = "ed25519"

// Transaction is the atomic unit submitted by clients, partners, and
// validators. Nonce is strictly monotonic per Creator; Sig covers the
// canonical encoding of every other field.
type Transaction struct {
	V        int             `json:"v"`
	Fee      uint64          `json:"fee"`
	Creator  string          `json:"creator"` // hex-encoded ed25519 public key
	SigType  SigType         `json:"sig_type"`
	TxType   TxType          `json:"tx_type"`
	Nonce    uint64          `json:"nonce"`
	Payload  json.RawMessage `json:"payload"`
	Sig      string          `json:"sig"`
}

// signingBody holds the fields covered by Sig. Keeping it distinct from
// Transaction means adding Sig to the wire struct later never risks
// accidentally being folded into what gets signed.
type signingBody struct {
	V       int             `json:"v"`
	Fee     uint64          `json:"fee"`
	Creator string          `json:"creator"`
	SigType SigType         `json:"sig_type"`
	TxType  TxType          `json:"tx_type"`
	Nonce   uint64          `json:"nonce"`
	Payload json.RawMessage `json:"payload"`
}

// CanonicalBytes returns the deterministic byte encoding that Sig covers.
func (tx *Transaction) CanonicalBytes() []byte {
	body := signingBody{
		V: tx.V, Fee: tx.Fee, Creator: tx.Creator, SigType: tx.SigType,
		TxType: tx.TxType, Nonce: tx.Nonce, Payload: tx.Payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil
	}
	return data
}

// ID is the transaction's content hash, used as its lookup key in the
// pool and in block inclusion records.
func (tx *Transaction) ID() string {
	return crypto.Hash(tx.CanonicalBytes())
}

// Sign signs tx with priv and sets SigType/Sig/Creator.
func (tx *Transaction) Sign(priv crypto.PrivateKey) {
	tx.SigType = SigEd25519
	tx.Creator = priv.Public().Hex()
	tx.Sig = crypto.Sign(priv, tx.CanonicalBytes())
}

// Verify checks tx's signature against its Creator field.
func (tx *Transaction) Verify() error {
	if tx.Creator == "" {
		return errors.New("chain: transaction missing creator")
	}
	pub, err := crypto.PubKeyFromHex(tx.Creator)
	if err != nil {
		return fmt.Errorf("chain: invalid creator pubkey: %w", err)
	}
	return crypto.Verify(pub, tx.CanonicalBytes(), tx.Sig)
}

// NewTransaction creates an unsigned transaction ready for Sign.
func NewTransaction(txType TxType, nonce, fee uint64, payload any) (*Transaction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("chain: marshal payload: %w", err)
	}
	return &Transaction{
		V:       1,
		Fee:     fee,
		TxType:  txType,
		Nonce:   nonce,
		Payload: raw,
	}, nil
}
