package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/undchain/modulr/chain"
	"github.com/undchain/modulr/epoch"
	"github.com/undchain/modulr/reliability"
	"github.com/undchain/modulr/sector"
	"github.com/undchain/modulr/txpool"
)

// Handler holds all dependencies needed to serve RPC methods.
type Handler struct {
	bc          *chain.Blockchain
	pool        *txpool.Pool
	epoch       *epoch.Handler
	sectors     map[string]*sector.Manager // sector_id -> manager
	reliability *reliability.Manager
	networkID   string // network_id mixed into block hashes (getChallengeSeed)
}

// NewHandler creates an RPC Handler.
func NewHandler(bc *chain.Blockchain, pool *txpool.Pool, epochHandler *epoch.Handler, sectors map[string]*sector.Manager, rel *reliability.Manager, networkID string) *Handler {
	return &Handler{bc: bc, pool: pool, epoch: epochHandler, sectors: sectors, reliability: rel, networkID: networkID}
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Method {
	case "getEpoch":
		return h.getEpoch(req)

	case "getBlock":
		return h.getBlock(req)

	case "getSector":
		return h.getSector(req)

	case "getChallengeSeed":
		return h.getChallengeSeed(req)

	case "getReliability":
		return h.getReliability(req)

	case "getValidatorSet":
		return okResponse(req.ID, h.epoch.Snapshot().Quorum)

	case "sendTx":
		return h.sendTx(req)

	case "getMempoolSize":
		return okResponse(req.ID, h.pool.Size())

	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

func (h *Handler) getEpoch(req Request) Response {
	return okResponse(req.ID, h.epoch.Snapshot())
}

func (h *Handler) getBlock(req Request) Response {
	var params struct {
		EpochFullID string `json:"epoch_full_id"`
		Index       *int64 `json:"index"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
	}

	var block *chain.Block
	var err error
	if params.Index != nil && params.EpochFullID != "" {
		block, err = h.bc.GetBlock(params.EpochFullID, *params.Index)
	} else {
		block = h.bc.Tip()
	}
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if block == nil {
		return errResponse(req.ID, CodeInternalError, "no block found")
	}
	return okResponse(req.ID, block)
}

func (h *Handler) getSector(req Request) Response {
	var params struct {
		SectorID  string `json:"sector_id"`
		Timestamp *int64 `json:"timestamp"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.SectorID == "" {
		return errResponse(req.ID, CodeInvalidParams, "sector_id is required")
	}
	mgr, ok := h.sectors[params.SectorID]
	if !ok {
		return errResponse(req.ID, CodeInvalidParams, "unknown sector_id")
	}

	if params.Timestamp != nil {
		state := mgr.GetStateAt(*params.Timestamp)
		return okResponse(req.ID, map[string]any{
			"state": state,
			"root":  mgr.CalculateMerkleRoot(state),
		})
	}
	root, ts := mgr.LastConfirmed()
	return okResponse(req.ID, map[string]any{"root": root, "confirmed_at": ts})
}

func (h *Handler) getChallengeSeed(req Request) Response {
	tip := h.bc.Tip()
	if tip == nil {
		return errResponse(req.ID, CodeInternalError, "no finalized block to derive a seed from")
	}
	return okResponse(req.ID, map[string]string{"seed": tip.Hash(h.networkID)})
}

func (h *Handler) getReliability(req Request) Response {
	var params struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.UserID == "" {
		return errResponse(req.ID, CodeInvalidParams, "user_id is required")
	}
	level, xp, history := h.reliability.GetUserSummary(params.UserID)
	return okResponse(req.ID, map[string]any{"level": level, "xp": xp, "history": history})
}

func (h *Handler) sendTx(req Request) Response {
	var tx chain.Transaction
	if err := json.Unmarshal(req.Params, &tx); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if err := tx.Verify(); err != nil {
		return errResponse(req.ID, CodeInvalidParams, "signature invalid: "+err.Error())
	}
	if err := h.pool.Add(&tx); err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]string{"tx_id": tx.ID()})
}
