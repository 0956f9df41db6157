// Package reliability implements the XP/level trust engine: it turns
// consensus-confirmed events (successful storage challenges, upheld
// reports, malicious behavior) into a slow-to-gain, quick-to-lose score
// per user. It does not participate in consensus; it only transforms
// already-confirmed signals into XP and level changes.
package reliability

// Signal is a reliability event applied to a user's profile. Values are
// normative point deltas, not arbitrary weights.
type Signal int

const (
	ChallengeSucceeded      Signal = 10
	ChallengeFailed         Signal = -15
	MaliciousBehavior       Signal = -100
	ValidatorUpheldReport   Signal = 25
	ValidatorDismissedReport Signal = -5
	UsernamePurchased       Signal = 250
	SubscriptionPurchased   Signal = 500
)

var signalNames = map[Signal]string{
	ChallengeSucceeded:       "CHALLENGE_SUCCEEDED",
	ChallengeFailed:          "CHALLENGE_FAILED",
	MaliciousBehavior:        "MALICIOUS_BEHAVIOR",
	ValidatorUpheldReport:    "VALIDATOR_UPHELD_REPORT",
	ValidatorDismissedReport: "VALIDATOR_DISMISSED_REPORT",
	UsernamePurchased:        "USERNAME_PURCHASED",
	SubscriptionPurchased:    "SUBSCRIPTION_PURCHASED",
}

// String renders a Signal by its protocol name.
func (s Signal) String() string {
	if name, ok := signalNames[s]; ok {
		return name
	}
	return "UNKNOWN_SIGNAL"
}
