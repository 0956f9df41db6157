// Package challenge implements the two-tier storage-challenge protocol:
// partners challenge each other directly to catch faulty storage early
// (Coordinator), escalating to a validator (Adjudicator) only on
// disagreement.
package challenge

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"sort"

	"github.com/undchain/modulr/crypto"
)

// FixedSliceLength is the byte length of the segment a challenge asks a
// partner to hash, fixed per the reference implementation.
const FixedSliceLength = 25

// Challenge is one issued partner-to-partner storage challenge.
type Challenge struct {
	ID                 string
	SectorID           string
	IssuedBy           string
	TargetOffset       int64
	TargetLength       int
	ExpectedResponders []string
}

// Outcome summarizes comparing every responder's reported hash.
type Outcome struct {
	Status          string // "valid" or "mismatch"
	MatchingHash    string
	Responders      []string
	HashGroups      map[string][]string
	SuspectedFaulty []string
}

// Coordinator issues and evaluates partner-to-partner storage
// challenges, grounded on PartnerStorageChallenger.
type Coordinator struct {
	sectorSize int64
	log        []Challenge
}

// NewCoordinator builds a Coordinator for a sector of the given size.
func NewCoordinator(sectorSize int64) *Coordinator {
	return &Coordinator{sectorSize: sectorSize}
}

// IssueChallenge deterministically derives a challenge for sectorID
// from seed (typically the block hash of the block that triggered this
// round), picking one of partners as the challenger and everyone else
// as expected responders.
func (c *Coordinator) IssueChallenge(sectorID string, partners []string, seed []byte) (Challenge, error) {
	if len(partners) < 2 {
		return Challenge{}, fmt.Errorf("challenge: at least two distinct partners required, got %d", len(partners))
	}

	sorted := append([]string(nil), partners...)
	sort.Strings(sorted)

	rng := rand.New(rand.NewSource(seedToInt64(seed)))
	maxOffset := c.sectorSize - 256
	if maxOffset < 0 {
		maxOffset = 0
	}
	offset := rng.Int63n(maxOffset + 1)
	challenger := sorted[rng.Intn(len(sorted))]

	responders := make([]string, 0, len(sorted)-1)
	for _, p := range sorted {
		if p != challenger {
			responders = append(responders, p)
		}
	}

	ch := Challenge{
		ID:                 fmt.Sprintf("challenge-%x-%s", seed, sectorID),
		SectorID:           sectorID,
		IssuedBy:           challenger,
		TargetOffset:       offset,
		TargetLength:       FixedSliceLength,
		ExpectedResponders: responders,
	}
	c.log = append(c.log, ch)
	return ch, nil
}

// HashSegment computes the expected response hash over content[offset:offset+length].
func HashSegment(content []byte, offset int64, length int) (string, error) {
	end := offset + int64(length)
	if offset < 0 || end > int64(len(content)) {
		return "", fmt.Errorf("challenge: segment [%d:%d] out of bounds for %d-byte content", offset, end, len(content))
	}
	return crypto.Hash(content[offset:end]), nil
}

// CompareResponses groups partner_id -> hash responses and reports
// agreement or disagreement (and, on disagreement, which partners are
// the lone dissenters).
func CompareResponses(responses map[string]string) Outcome {
	groups := make(map[string][]string)
	for partner, hash := range responses {
		groups[hash] = append(groups[hash], partner)
	}
	for _, ids := range groups {
		sort.Strings(ids)
	}

	if len(groups) == 1 {
		responders := make([]string, 0, len(responses))
		var matching string
		for h, ids := range groups {
			matching = h
			responders = append(responders, ids...)
		}
		sort.Strings(responders)
		return Outcome{Status: "valid", MatchingHash: matching, Responders: responders}
	}

	var suspected []string
	for _, ids := range groups {
		if len(ids) == 1 {
			suspected = append(suspected, ids[0])
		}
	}
	sort.Strings(suspected)
	return Outcome{Status: "mismatch", HashGroups: groups, SuspectedFaulty: suspected}
}

// Log returns every challenge issued by this coordinator.
func (c *Coordinator) Log() []Challenge {
	return append([]Challenge(nil), c.log...)
}

func seedToInt64(seed []byte) int64 {
	var buf [8]byte
	copy(buf[:], seed)
	return int64(binary.BigEndian.Uint64(buf[:]))
}
