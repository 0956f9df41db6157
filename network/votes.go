package network

import (
	"encoding/json"

	"github.com/undchain/modulr/codec"
)

// VoteKind discriminates the payload carried by a VoteMessage. network
// does not import consensus (it would cycle back through the narrow
// BlockValidator interface Syncer already uses), so these wire shapes
// duplicate the relevant fields of consensus's vote types rather than
// referencing them directly.
type VoteKind string

const (
	VoteKindBlock    VoteKind = "block"
	VoteKindRotation VoteKind = "rotation"
	VoteKindAEFP     VoteKind = "aefp"
)

// BlockVote is one quorum member's finalization vote for a candidate
// block, covering (PrevHash, BlockID, BlockHash).
type BlockVote struct {
	EpochFullID string `json:"epoch_full_id"`
	Index       int64  `json:"index"`
	PrevHash    string `json:"prev_hash"`
	BlockID     string `json:"block_id"`
	BlockHash   string `json:"block_hash"`
	Voter       string `json:"voter"`
	Sig         string `json:"sig"`
}

// RotationVoteMsg is one quorum member's observation that the current
// leader's tenure timed out with no finalized block at SkipIndex.
type RotationVoteMsg struct {
	Voter          string `json:"voter"`
	FirstBlockHash string `json:"first_block_hash"`
	SkipIndex      int64  `json:"skip_index"`
	SkipHash       string `json:"skip_hash"`
	Sig            string `json:"sig"`
}

// AEFPVote is one quorum member's vote to close the current epoch.
type AEFPVote struct {
	LastLeaderPosition           int    `json:"last_leader_position"`
	LastIndex                    int64  `json:"last_index"`
	LastHash                     string `json:"last_hash"`
	HashOfFirstBlockByLastLeader string `json:"hash_of_first_block_by_last_leader"`
	Voter                        string `json:"voter"`
	Sig                          string `json:"sig"`
}

// VoteMessage is the VALIDATOR_VOTE wire envelope: exactly one of
// Block/Rotation/AEFP is populated, selected by Kind.
type VoteMessage struct {
	Kind     VoteKind         `json:"kind"`
	Block    *BlockVote       `json:"block,omitempty"`
	Rotation *RotationVoteMsg `json:"rotation,omitempty"`
	AEFP     *AEFPVote        `json:"aefp,omitempty"`
}

// BroadcastVote frames and sends msg to all peers as a VALIDATOR_VOTE
// packet.
func (n *Node) BroadcastVote(msg VoteMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	n.Broadcast(codec.Frame{
		Header:  codec.Header{PacketType: codec.ValidatorVote},
		Payload: data,
	})
	return nil
}

// HandleVotes registers h to be called for every incoming VALIDATOR_VOTE
// packet.
func (n *Node) HandleVotes(h func(peer *Peer, msg VoteMessage)) {
	n.Handle(codec.ValidatorVote, func(peer *Peer, f codec.Frame) {
		var msg VoteMessage
		if err := json.Unmarshal(f.Payload, &msg); err != nil {
			n.log.WithError(err).Warn("unmarshal vote message")
			return
		}
		h(peer, msg)
	})
}
