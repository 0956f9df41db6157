package network

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/undchain/modulr/chain"
	"github.com/undchain/modulr/codec"
)

// GetBlocksRequest asks a peer for blocks starting at FromIndex within
// one epoch.
type GetBlocksRequest struct {
	EpochFullID string `json:"epoch_full_id"`
	FromIndex   int64  `json:"from_index"`
	Limit       int    `json:"limit"`
}

// BlocksResponse carries a batch of blocks with their finalization proofs.
type BlocksResponse struct {
	Blocks []*chain.Block `json:"blocks"`
	AFPs   []*chain.AFP   `json:"afps"`
}

// BlockValidator validates a block before it is accepted into the chain,
// satisfied by consensus.Engine's block-acceptance checks.
type BlockValidator interface {
	ValidateBlock(block *chain.Block) error
}

// batchBlockValidator is satisfied by consensus.Engine's VerifyBatch,
// letting handleBlocks validate an incoming batch concurrently under a
// bounded worker pool instead of one block at a time.
type batchBlockValidator interface {
	VerifyBatch(ctx context.Context, blocks []*chain.Block, maxWorkers int64) []error
}

// Syncer handles block synchronisation between nodes over the
// SyncCoChain/JobRequest packet types.
type Syncer struct {
	node      *Node
	bc        *chain.Blockchain
	validator BlockValidator
	log       *logrus.Entry

	proposalHandler func(block *chain.Block)
}

// NewSyncer creates a Syncer that requests missing blocks from peers and
// applies validated ones to bc.
func NewSyncer(node *Node, bc *chain.Blockchain, validator BlockValidator) *Syncer {
	s := &Syncer{node: node, bc: bc, validator: validator, log: logrus.WithField("component", "sync")}
	node.Handle(codec.JobRequest, s.handleGetBlocks)
	node.Handle(codec.SyncCoChain, s.handleBlocks)
	return s
}

// OnProposal registers the callback invoked for a validated block that
// arrives without an AFP — a live leader proposal rather than a
// catch-up response — instead of committing it straight to bc. The
// caller is expected to vote on it and eventually finalize it once a
// quorum-majority AFP is assembled.
func (s *Syncer) OnProposal(h func(block *chain.Block)) {
	s.proposalHandler = h
}

// RequestBlocks asks peer for blocks in epochFullID starting at fromIndex.
func (s *Syncer) RequestBlocks(peer *Peer, epochFullID string, fromIndex int64) error {
	req, err := json.Marshal(GetBlocksRequest{EpochFullID: epochFullID, FromIndex: fromIndex, Limit: 50})
	if err != nil {
		return err
	}
	return peer.Send(codec.Frame{
		Header:  codec.Header{PacketType: codec.JobRequest},
		Payload: req,
	})
}

func (s *Syncer) handleGetBlocks(peer *Peer, f codec.Frame) {
	var req GetBlocksRequest
	if err := json.Unmarshal(f.Payload, &req); err != nil {
		s.log.WithError(err).Warn("unmarshal get_blocks request")
		return
	}
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 50
	}

	blocks := make([]*chain.Block, 0, req.Limit)
	for idx := req.FromIndex; idx < req.FromIndex+int64(req.Limit); idx++ {
		b, err := s.bc.GetBlock(req.EpochFullID, idx)
		if err != nil {
			break
		}
		blocks = append(blocks, b)
	}
	data, err := json.Marshal(BlocksResponse{Blocks: blocks})
	if err != nil {
		s.log.WithError(err).Warn("marshal blocks response")
		return
	}
	_ = peer.Send(codec.Frame{
		Header:  codec.Header{PacketType: codec.SyncCoChain},
		Payload: data,
	})
}

func (s *Syncer) handleBlocks(_ *Peer, f codec.Frame) {
	var resp BlocksResponse
	if err := json.Unmarshal(f.Payload, &resp); err != nil {
		s.log.WithError(err).Warn("unmarshal blocks response")
		return
	}

	// Signature/leader checks are independent per block, so verify the
	// whole batch concurrently under a bounded worker pool before
	// applying anything; applying itself must stay sequential since
	// AddBlock enforces prev_hash linkage against the running tip.
	var verifyErrs []error
	if bv, ok := s.validator.(batchBlockValidator); ok {
		verifyErrs = bv.VerifyBatch(context.Background(), resp.Blocks, 0)
	}

	for i, b := range resp.Blocks {
		if verifyErrs != nil {
			if err := verifyErrs[i]; err != nil {
				s.log.WithField("index", b.Index).WithError(err).Warn("block validation failed")
				continue
			}
		} else if s.validator != nil {
			if err := s.validator.ValidateBlock(b); err != nil {
				s.log.WithField("index", b.Index).WithError(err).Warn("block validation failed")
				continue
			}
		}

		var afp *chain.AFP
		if i < len(resp.AFPs) {
			afp = resp.AFPs[i]
		}
		if afp == nil {
			// No AFP attached: this is a live leader proposal, not a
			// catch-up response. It hasn't cleared quorum yet, so it is
			// routed to the voting pipeline instead of committed directly.
			if s.proposalHandler != nil {
				s.proposalHandler(b)
			}
			continue
		}
		if err := s.bc.AddBlock(b, afp); err != nil {
			s.log.WithField("index", b.Index).WithError(err).Warn("add block failed")
			continue
		}
	}
}
