package chain

import (
	"encoding/json"
	"fmt"

	"github.com/undchain/modulr/kvstore"
)

// Store persists blocks and AFPs to the BLOCKS namespace and tracks the
// per-epoch tip. Unlike the teacher's BlockStore, CommitBlock is
// implemented: committing a block, its AFP, and the tip pointer happen
// in one batch, so a crash mid-write can't leave the tip pointing at an
// unstored block.
type Store struct {
	table *kvstore.Table
}

// NewStore wraps db's BLOCKS namespace as a Store.
func NewStore(db kvstore.DB) *Store {
	return &Store{table: kvstore.NewTable(db, kvstore.Blocks)}
}

func blockKey(epochFullID string, index int64) []byte {
	return []byte(fmt.Sprintf("%s#%d", epochFullID, index))
}

func afpKey(epochFullID string, index int64) []byte {
	return []byte("afp#" + string(blockKey(epochFullID, index)))
}

func aefpKey(epochID string) []byte {
	return []byte("aefp#" + epochID)
}

func tipKey(epochFullID string) []byte {
	return []byte("tip#" + epochFullID)
}

// GetBlock loads the block at (epochFullID, index).
func (s *Store) GetBlock(epochFullID string, index int64) (*Block, error) {
	data, err := s.table.Get(blockKey(epochFullID, index))
	if err != nil {
		return nil, err
	}
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetAFP loads the AFP finalizing (epochFullID, index), if any.
func (s *Store) GetAFP(epochFullID string, index int64) (*AFP, error) {
	data, err := s.table.Get(afpKey(epochFullID, index))
	if err != nil {
		return nil, err
	}
	var afp AFP
	if err := json.Unmarshal(data, &afp); err != nil {
		return nil, err
	}
	return &afp, nil
}

// GetAEFP loads the AEFP that closed epochID, if any.
func (s *Store) GetAEFP(epochID string) (*AEFP, error) {
	data, err := s.table.Get(aefpKey(epochID))
	if err != nil {
		return nil, err
	}
	var aefp AEFP
	if err := json.Unmarshal(data, &aefp); err != nil {
		return nil, err
	}
	return &aefp, nil
}

// GetTip returns the highest committed index within epochFullID, or -1
// if nothing has been committed for that epoch yet.
func (s *Store) GetTip(epochFullID string) (int64, error) {
	data, err := s.table.Get(tipKey(epochFullID))
	if err == kvstore.ErrNotFound {
		return -1, nil
	}
	if err != nil {
		return -1, err
	}
	var idx int64
	if err := json.Unmarshal(data, &idx); err != nil {
		return -1, err
	}
	return idx, nil
}

// CommitBlock atomically persists block, its AFP, and advances the
// per-epoch tip pointer. A failed Write leaves none of the three
// changes visible, matching the "failed commit rolls back" requirement
// for the BLOCKS namespace.
func (s *Store) CommitBlock(block *Block, afp *AFP) error {
	blockData, err := json.Marshal(block)
	if err != nil {
		return err
	}
	afpData, err := json.Marshal(afp)
	if err != nil {
		return err
	}
	tipData, err := json.Marshal(block.Index)
	if err != nil {
		return err
	}

	batch := s.table.NewBatch()
	batch.Set(blockKey(block.EpochFullID, block.Index), blockData)
	batch.Set(afpKey(block.EpochFullID, block.Index), afpData)
	batch.Set(tipKey(block.EpochFullID), tipData)
	return batch.Write()
}

// CommitAEFP persists the AEFP that closed epochID.
func (s *Store) CommitAEFP(epochID string, aefp *AEFP) error {
	data, err := json.Marshal(aefp)
	if err != nil {
		return err
	}
	return s.table.Set(aefpKey(epochID), data)
}
