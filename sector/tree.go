package sector

import (
	"encoding/hex"
	"sort"

	"github.com/undchain/modulr/crypto"
)

// MerkleTree is a binary Merkle tree over the same (file_id, content_ref)
// leaves CalculateMerkleRoot hashes, built so a partner can produce a
// compact inclusion proof for one file during a storage challenge
// without requiring the challenger to replay the whole flat-string
// encoding. It does not replace CalculateMerkleRoot's flat-string root:
// that root is what gets committed on-chain for interop; this tree is a
// strictly local, additional structure a partner may use to answer
// "prove file X is part of state committed to root R" efficiently.
type MerkleTree struct {
	fileID []string // leaves[i] corresponds to fileID[i], both sorted by fileID
	levels [][][]byte
}

// BuildMerkleTree builds a MerkleTree over state.
func BuildMerkleTree(state map[string]string) *MerkleTree {
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	leaves := make([][]byte, 0, len(keys))
	for _, k := range keys {
		leaves = append(leaves, crypto.HashConcat([]byte(k), []byte(":"), []byte(state[k])))
	}

	return &MerkleTree{fileID: keys, levels: buildLevels(leaves)}
}

func buildLevels(leaves [][]byte) [][][]byte {
	if len(leaves) == 0 {
		return [][][]byte{{crypto.HashBytes(nil)}}
	}
	levels := [][][]byte{leaves}
	cur := leaves
	for len(cur) > 1 {
		var next [][]byte
		for i := 0; i < len(cur); i += 2 {
			if i+1 < len(cur) {
				next = append(next, crypto.HashConcat(cur[i], cur[i+1]))
			} else {
				next = append(next, crypto.HashConcat(cur[i], cur[i])) // odd node duplicated
			}
		}
		levels = append(levels, next)
		cur = next
	}
	return levels
}

// Root returns the tree's root hash, hex-encoded.
func (t *MerkleTree) Root() string {
	top := t.levels[len(t.levels)-1]
	return hex.EncodeToString(top[0])
}

// ProofStep is one sibling hash plus which side it sits on relative to
// the running hash, read leaf-to-root.
type ProofStep struct {
	Sibling   []byte
	SiblingOnRight bool
}

// Proof is an inclusion proof for one leaf.
type Proof struct {
	FileID   string
	LeafHash []byte
	Steps    []ProofStep
}

// ProveInclusion returns an inclusion proof for fileID, or false if
// fileID is not a leaf in this tree.
func (t *MerkleTree) ProveInclusion(fileID string) (Proof, bool) {
	idx := -1
	for i, id := range t.fileID {
		if id == fileID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Proof{}, false
	}

	proof := Proof{FileID: fileID, LeafHash: t.levels[0][idx]}
	pos := idx
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]
		if pos%2 == 0 {
			sibling := nodes[pos]
			if pos+1 < len(nodes) {
				sibling = nodes[pos+1]
			}
			proof.Steps = append(proof.Steps, ProofStep{Sibling: sibling, SiblingOnRight: true})
		} else {
			proof.Steps = append(proof.Steps, ProofStep{Sibling: nodes[pos-1], SiblingOnRight: false})
		}
		pos /= 2
	}
	return proof, true
}

// VerifyInclusion reports whether proof is consistent with root.
func VerifyInclusion(root string, proof Proof) bool {
	cur := proof.LeafHash
	for _, step := range proof.Steps {
		if step.SiblingOnRight {
			cur = crypto.HashConcat(cur, step.Sibling)
		} else {
			cur = crypto.HashConcat(step.Sibling, cur)
		}
	}
	return hex.EncodeToString(cur) == root
}
