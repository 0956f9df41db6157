package orchestrator

import (
	"github.com/undchain/modulr/chain"
	"github.com/undchain/modulr/consensus"
	"github.com/undchain/modulr/crypto"
	"github.com/undchain/modulr/events"
	"github.com/undchain/modulr/network"
)

// handleProposedBlock is the Syncer.OnProposal hook: it runs whenever a
// leader's candidate block arrives without an AFP yet attached. It
// validates the block, casts this validator's own vote if it passes,
// and attempts finalization from whatever votes (its own plus any
// already-received peer votes) are on hand.
func (n *Node) handleProposedBlock(block *chain.Block) {
	if err := n.engine.ValidateBlock(block); err != nil {
		n.log.WithField("index", block.Index).WithError(err).Warn("rejecting invalid block proposal")
		return
	}
	n.votes.storeBlock(block)

	quorum := n.engine.QuorumMembers()
	if sig, err := n.engine.Vote(block, quorum); err != nil {
		n.log.WithField("index", block.Index).WithError(err).Debug("not voting for block")
	} else {
		n.castBlockVote(block, sig)
	}
	n.tryFinalize(block, quorum)
}

func (n *Node) castBlockVote(block *chain.Block, sig string) {
	voter := n.engine.PubKeyHex()
	n.votes.addBlockVote(block.EpochFullID, block.Index, voter, sig)

	msg := network.VoteMessage{
		Kind: network.VoteKindBlock,
		Block: &network.BlockVote{
			EpochFullID: block.EpochFullID,
			Index:       block.Index,
			PrevHash:    block.PrevHash,
			BlockID:     block.BlockID(),
			BlockHash:   block.Hash(n.epoch.NetworkID),
			Voter:       voter,
			Sig:         sig,
		},
	}
	if err := n.net.BroadcastVote(msg); err != nil {
		n.log.WithError(err).Warn("broadcast block vote failed")
	}
}

// tryFinalize assembles an AFP from whatever votes are on hand for
// block and, once it clears quorum majority, commits it and announces
// it to peers.
func (n *Node) tryFinalize(block *chain.Block, quorum []string) {
	sigs := n.votes.blockVotes(block.EpochFullID, block.Index)
	if len(sigs) == 0 {
		return
	}
	afp := consensus.AssembleAFP(block, n.epoch.NetworkID, sigs)
	if !afp.HasMajority(len(quorum)) {
		return
	}
	if err := n.bc.AddBlock(block, afp); err != nil {
		n.log.WithField("index", block.Index).WithError(err).Debug("finalize: add block")
		return
	}
	n.votes.clearBlock(block.EpochFullID, block.Index)

	if err := n.net.BroadcastFinalizedBlock(block, afp); err != nil {
		n.log.WithError(err).Warn("broadcast finalized block failed")
	}
	if n.events != nil {
		n.events.Emit(events.Event{
			Type: events.EventBlockCommitted,
			Data: map[string]any{"index": block.Index, "epoch_full_id": block.EpochFullID},
		})
	}
}

// handleVoteMessage dispatches an incoming VALIDATOR_VOTE packet by kind.
func (n *Node) handleVoteMessage(_ *network.Peer, msg network.VoteMessage) {
	switch msg.Kind {
	case network.VoteKindBlock:
		n.handleBlockVote(msg.Block)
	case network.VoteKindRotation:
		n.handleRotationVote(msg.Rotation)
	case network.VoteKindAEFP:
		n.handleAEFPVote(msg.AEFP)
	}
}

func (n *Node) handleBlockVote(v *network.BlockVote) {
	if v == nil {
		return
	}
	pub, err := crypto.PubKeyFromHex(v.Voter)
	if err != nil {
		n.log.WithField("voter", v.Voter).WithError(err).Warn("block vote from unparsable voter key")
		return
	}
	if err := consensus.VerifyVote(pub, v.PrevHash, v.BlockID, v.BlockHash, v.Sig); err != nil {
		n.log.WithField("voter", v.Voter).WithError(err).Warn("block vote signature invalid")
		return
	}
	n.votes.addBlockVote(v.EpochFullID, v.Index, v.Voter, v.Sig)
	if block := n.votes.getBlock(v.EpochFullID, v.Index); block != nil {
		n.tryFinalize(block, n.engine.QuorumMembers())
	}
}

// castRotationVote records this validator's own rotation vote and
// broadcasts it, then checks whether it (plus whatever's already
// accumulated) now assembles an ALRP.
func (n *Node) castRotationVote(epochFullID string, vote consensus.RotationVote) {
	votes := n.votes.addRotationVote(epochFullID, vote)
	n.tryAssembleALRP(epochFullID, vote.SkipIndex, votes)

	msg := network.VoteMessage{
		Kind: network.VoteKindRotation,
		Rotation: &network.RotationVoteMsg{
			Voter:          vote.Voter,
			FirstBlockHash: vote.FirstBlockHash,
			SkipIndex:      vote.SkipIndex,
			SkipHash:       vote.SkipHash,
			Sig:            vote.Sig,
		},
	}
	if err := n.net.BroadcastVote(msg); err != nil {
		n.log.WithError(err).Warn("broadcast rotation vote failed")
	}
}

func (n *Node) handleRotationVote(v *network.RotationVoteMsg) {
	if v == nil {
		return
	}
	rv := consensus.RotationVote{Voter: v.Voter, FirstBlockHash: v.FirstBlockHash, SkipIndex: v.SkipIndex, SkipHash: v.SkipHash, Sig: v.Sig}
	if err := consensus.VerifyRotationVote(rv); err != nil {
		n.log.WithField("voter", v.Voter).WithError(err).Warn("rotation vote signature invalid")
		return
	}
	epochFullID := n.epoch.Snapshot().FullID
	votes := n.votes.addRotationVote(epochFullID, rv)
	n.tryAssembleALRP(epochFullID, rv.SkipIndex, votes)
}

func (n *Node) tryAssembleALRP(epochFullID string, skipIndex int64, votes []consensus.RotationVote) {
	quorum := n.engine.QuorumMembers()
	alrp := consensus.AssembleALRP(votes, len(quorum))
	if alrp == nil {
		return
	}
	n.votes.clearRotationVotes(epochFullID, skipIndex)
	n.epoch.AdvanceLeader()
	n.log.WithField("skip_index", skipIndex).Info("leader rotation proof assembled, advancing leader")
}

// castAEFPVote records this validator's own AEFP vote and broadcasts it,
// then checks whether it now assembles an AEFP.
func (n *Node) castAEFPVote(epochFullID string, v network.AEFPVote) {
	sigs := n.votes.addAEFPVote(epochFullID, v)
	n.tryAssembleAEFP(epochFullID, v, sigs)

	if err := n.net.BroadcastVote(network.VoteMessage{Kind: network.VoteKindAEFP, AEFP: &v}); err != nil {
		n.log.WithError(err).Warn("broadcast AEFP vote failed")
	}
}

func (n *Node) handleAEFPVote(v *network.AEFPVote) {
	if v == nil {
		return
	}
	pub, err := crypto.PubKeyFromHex(v.Voter)
	if err != nil {
		n.log.WithField("voter", v.Voter).WithError(err).Warn("AEFP vote from unparsable voter key")
		return
	}
	if err := consensus.VerifyAEFPVote(pub, v.LastLeaderPosition, v.LastIndex, v.LastHash, v.HashOfFirstBlockByLastLeader, v.Sig); err != nil {
		n.log.WithField("voter", v.Voter).WithError(err).Warn("AEFP vote signature invalid")
		return
	}
	epochFullID := n.epoch.Snapshot().FullID
	sigs := n.votes.addAEFPVote(epochFullID, *v)
	n.tryAssembleAEFP(epochFullID, *v, sigs)
}

// tryAssembleAEFP closes the epoch once sigs clears quorum majority for
// the (lastLeaderPosition, lastIndex, lastHash, hashOfFirstBlockByLastLeader)
// tuple v carries. Adopting a fresh epoch.Handler for the next epoch is
// a separate step this does not perform — see findNewEpoch's doc comment.
func (n *Node) tryAssembleAEFP(epochFullID string, v network.AEFPVote, sigs map[string]string) {
	quorum := n.engine.QuorumMembers()
	aefp := consensus.AssembleAEFP(v.LastLeaderPosition, v.LastIndex, v.LastHash, v.HashOfFirstBlockByLastLeader, sigs, len(quorum))
	if aefp == nil {
		return
	}
	if err := n.bc.CommitAEFP(epochFullID, aefp); err != nil {
		n.log.WithError(err).Warn("commit AEFP failed")
		return
	}
	n.votes.clearAEFPVotes(epochFullID, v)
	n.log.WithField("epoch_full_id", epochFullID).Info("epoch finalization proof assembled")
	if n.events != nil {
		n.events.Emit(events.Event{Type: events.EventEpochRotated, Data: map[string]any{"epoch_full_id": epochFullID}})
	}
}
