// Package orchestrator wires together epoch, consensus, chain, txpool,
// and network into one running node: it owns the TCP/TLS
// listener and spawns the six long-lived cooperative tasks named in the
// protocol, each looping with its own cadence and cooperating only
// through the shared state stores.
package orchestrator

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/undchain/modulr/chain"
	"github.com/undchain/modulr/consensus"
	"github.com/undchain/modulr/crypto"
	"github.com/undchain/modulr/epoch"
	"github.com/undchain/modulr/events"
	"github.com/undchain/modulr/network"
	"github.com/undchain/modulr/txpool"
)

// Cadences for each cooperative task's polling loop. They are fixed
// constants and are not read from configuration.
const (
	BlockGenerationInterval           = 500 * time.Millisecond
	BlockSharingInterval              = 250 * time.Millisecond
	FindNewEpochInterval              = 1 * time.Second
	LeaderRotationInterval            = 500 * time.Millisecond
	NextEpochProposerInterval         = 1 * time.Second
	VerificationThreadAlignerInterval = 2 * time.Second
)

// Node owns one running node's cooperative task set.
type Node struct {
	engine *consensus.Engine
	epoch  *epoch.Handler
	bc     *chain.Blockchain
	pool   *txpool.Pool
	net    *network.Node
	events *events.Emitter
	votes  *voteTracker
	log    *logrus.Entry

	nextIndex int64
}

// New builds a Node ready to Run its six cooperative tasks, wiring its
// vote-collection pipeline into syncer's proposal path and netNode's
// VALIDATOR_VOTE handler. emitter may be nil, in which case block-commit
// notifications are simply not sent.
func New(engine *consensus.Engine, epochHandler *epoch.Handler, bc *chain.Blockchain, pool *txpool.Pool, netNode *network.Node, syncer *network.Syncer, emitter *events.Emitter) *Node {
	n := &Node{
		engine: engine,
		epoch:  epochHandler,
		bc:     bc,
		pool:   pool,
		net:    netNode,
		events: emitter,
		votes:  newVoteTracker(),
		log:    logrus.WithField("component", "orchestrator"),
	}
	syncer.OnProposal(n.handleProposedBlock)
	netNode.HandleVotes(n.handleVoteMessage)
	return n
}

// Run starts the listener and all six cooperative tasks, blocking until
// ctx is cancelled or one task returns a fatal error.
func (n *Node) Run(ctx context.Context) error {
	if err := n.net.Start(); err != nil {
		return err
	}
	defer n.net.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return n.blockGeneration(ctx) })
	g.Go(func() error { return n.blockSharingAndProofs(ctx) })
	g.Go(func() error { return n.findNewEpoch(ctx) })
	g.Go(func() error { return n.leaderRotation(ctx) })
	g.Go(func() error { return n.nextEpochProposer(ctx) })
	g.Go(func() error { return n.verificationThreadAligner(ctx) })
	return g.Wait()
}

func runLoop(ctx context.Context, interval time.Duration, step func()) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			step()
		}
	}
}

// blockGeneration produces a block whenever the local node is the
// current epoch's leader for the next index.
func (n *Node) blockGeneration(ctx context.Context) error {
	return runLoop(ctx, BlockGenerationInterval, n.blockGenerationOnce)
}

// blockGenerationOnce runs a single blockGeneration tick. Split out from
// blockGeneration so tests can exercise one production attempt without
// waiting on the ticker cadence. The leader announces and also votes on
// its own proposal via handleProposedBlock — with a single-member
// quorum that alone suffices to finalize it immediately; a
// block_committed event fires only once finalization actually happens,
// not merely on production.
func (n *Node) blockGenerationOnce() {
	idx := int(n.bc.TipIndex() + 1)
	if !n.engine.IsLeader() {
		return
	}
	block, err := n.engine.ProduceBlock(idx, time.Now().UnixMilli())
	if err != nil {
		n.log.WithError(err).Debug("block production skipped")
		return
	}
	if err := n.net.BroadcastBlock(block); err != nil {
		n.log.WithError(err).Warn("broadcast block failed")
	}
	n.handleProposedBlock(block)
}

// blockSharingAndProofs re-broadcasts the current tip together with its
// stored AFP to peers that may have missed the original finalization
// announcement.
func (n *Node) blockSharingAndProofs(ctx context.Context) error {
	return runLoop(ctx, BlockSharingInterval, func() {
		tip := n.bc.Tip()
		if tip == nil {
			return
		}
		afp, err := n.bc.GetAFP(tip.EpochFullID, tip.Index)
		if err != nil {
			n.log.WithField("index", tip.Index).WithError(err).Debug("re-share: tip AFP not found")
			return
		}
		if err := n.net.BroadcastFinalizedBlock(tip, afp); err != nil {
			n.log.WithError(err).Debug("re-broadcast tip failed")
		}
	})
}

// findNewEpoch drives the epoch-closing side of rollover: once the
// epoch's leader position has reached its final leader and that
// leader's tenure has timed out, the local validator signs and casts an
// AEFP vote for the current tip. The actual
// adoption of a freshly derived epoch.Handler for the next epoch is not
// performed here — Node's epoch field is fixed at construction, and
// swapping it for a new epoch mid-run is a follow-on step this
// implementation does not yet take.
func (n *Node) findNewEpoch(ctx context.Context) error {
	return runLoop(ctx, FindNewEpochInterval, func() {
		if !n.epoch.IsFinalLeader() {
			return
		}
		view := n.epoch.Snapshot()
		if !n.epoch.LeaderTimedOut(view.CurrentLeaderIdx, time.Now().UnixMilli()) {
			return
		}
		tip := n.bc.Tip()
		if tip == nil {
			return
		}
		lastHash := tip.Hash(n.epoch.NetworkID)
		// The first block produced by the final leader isn't tracked
		// separately from the tip in this implementation; this is exact
		// when the final leader produced exactly one block in its tenure.
		voter, sig := n.engine.SignAEFPVote(view.CurrentLeaderIdx, tip.Index, lastHash, lastHash)
		n.castAEFPVote(view.FullID, network.AEFPVote{
			LastLeaderPosition:           view.CurrentLeaderIdx,
			LastIndex:                    tip.Index,
			LastHash:                     lastHash,
			HashOfFirstBlockByLastLeader: lastHash,
			Voter:                        voter,
			Sig:                          sig,
		})
	})
}

// leaderRotation watches for a timed-out leader and casts this
// validator's own rotation vote; once a majority of such votes for the
// same skip target accumulates, the leader position actually advances
// (see tryAssembleALRP / epoch.Handler.AdvanceLeader).
func (n *Node) leaderRotation(ctx context.Context) error {
	return runLoop(ctx, LeaderRotationInterval, func() {
		view := n.epoch.Snapshot()
		if len(view.LeadersSequence) == 0 {
			return
		}
		idx := view.CurrentLeaderIdx
		if !n.epoch.LeaderTimedOut(idx, time.Now().UnixMilli()) {
			return
		}
		n.log.WithField("leader_index", idx).Debug("leader timed out, casting rotation vote")
		if n.events != nil {
			n.events.Emit(events.Event{Type: events.EventLeaderTimedOut, Data: map[string]any{"leader_index": idx}})
		}

		skipHash := crypto.ZeroHash
		if tip := n.bc.Tip(); tip != nil {
			skipHash = tip.Hash(n.epoch.NetworkID)
		}
		// The departing leader's first block hash isn't tracked separately
		// from the last finalized block in this implementation.
		vote := n.engine.SignRotationVote(skipHash, int64(idx), skipHash)
		n.castRotationVote(view.FullID, vote)
	})
}

// nextEpochProposer runs its cadence loop with an empty step: it does no
// work, and no leader sequence for a later epoch is prepared here.
func (n *Node) nextEpochProposer(ctx context.Context) error {
	return runLoop(ctx, NextEpochProposerInterval, func() {})
}

// verificationThreadAligner runs its cadence loop with an empty step: it
// does no work, and no approvement-thread metadata is written here.
func (n *Node) verificationThreadAligner(ctx context.Context) error {
	return runLoop(ctx, VerificationThreadAlignerInterval, func() {})
}
