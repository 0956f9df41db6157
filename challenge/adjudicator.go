package challenge

import (
	"github.com/undchain/modulr/reliability"
)

// Signaler is the subset of reliability.Manager the Adjudicator needs,
// expressed as an interface so it can be faked in tests without pulling
// in the full reliability engine.
type Signaler interface {
	ApplySignal(userID, jobID string, signal reliability.Signal, reporter string) reliability.Event
}

// Decision records the outcome of a validator adjudicating one escalated
// challenge, grounded on ValidatorStorageChallenger.accept_challenge.
type Decision struct {
	ChallengeID     string
	SectorID        string
	AccusedPartner  string
	ReporterPartner string
	JobID           string
	ExpectedHash    string
	ReportedHash    string
	Status          string // "pass" or "fail"
	AccusedResult   reliability.Event
	ReporterResult  reliability.Event
}

// Adjudicator is the validator-side enforcement mechanism: it accepts a
// partner-escalated challenge, verifies the reported hash against the
// expected sector content, and feeds the outcome into the reliability
// engine for both the accused and the reporter.
type Adjudicator struct {
	validatorID string
	reliability Signaler
}

// NewAdjudicator builds an Adjudicator for validatorID, applying
// decisions through reliability.
func NewAdjudicator(validatorID string, reliability Signaler) *Adjudicator {
	return &Adjudicator{validatorID: validatorID, reliability: reliability}
}

// AcceptChallenge verifies reportedHash against expectedContent's
// [targetOffset:targetOffset+targetLength] segment and applies the
// matching reliability signals to both the accused partner and the
// reporting partner.
func (a *Adjudicator) AcceptChallenge(
	challengeID, sectorID string,
	targetOffset int64, targetLength int,
	reportedHash string,
	expectedContent []byte,
	accusedPartner, reporterPartner, jobID string,
) (Decision, error) {
	expectedHash, err := HashSegment(expectedContent, targetOffset, targetLength)
	if err != nil {
		return Decision{}, err
	}
	passed := expectedHash == reportedHash

	// passed means the accused partner's content matches: the accusation
	// was wrong, so the accused is cleared and the reporter is dismissed.
	// !passed means the accused failed recomputation: the accusation was
	// correct, so the reporter is upheld.
	accusedSignal := reliability.ChallengeSucceeded
	reporterSignal := reliability.ValidatorDismissedReport
	status := "pass"
	if !passed {
		accusedSignal = reliability.ChallengeFailed
		reporterSignal = reliability.ValidatorUpheldReport
		status = "fail"
	}

	accusedResult := a.reliability.ApplySignal(accusedPartner, jobID, accusedSignal, a.validatorID)
	reporterResult := a.reliability.ApplySignal(reporterPartner, jobID, reporterSignal, a.validatorID)

	return Decision{
		ChallengeID:     challengeID,
		SectorID:        sectorID,
		AccusedPartner:  accusedPartner,
		ReporterPartner: reporterPartner,
		JobID:           jobID,
		ExpectedHash:    expectedHash,
		ReportedHash:    reportedHash,
		Status:          status,
		AccusedResult:   accusedResult,
		ReporterResult:  reporterResult,
	}, nil
}
