package challenge

import "regexp"

// Validation messages returned verbatim to clients.
const (
	MsgChallengeRequired = "Challenge required (string)"
	MsgChallengeFormat   = "Challenge must be 64 hex characters"
	MsgProofRequired     = "Encrypted challenge required (string)"
)

var hexTokenRe = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// ValidateSubmission syntactically checks the two client-submitted fields of
// a verification attempt before anything touches the keeper or the oracle.
// The inputs are the raw decoded JSON values so that non-string junk can be
// told apart from a malformed string. Every applicable message is reported,
// not just the first. A nil return means both fields are well formed.
func ValidateSubmission(challengeVal, proofVal any) []string {
	var errs []string

	if s, ok := challengeVal.(string); !ok {
		errs = append(errs, MsgChallengeRequired)
	} else if !hexTokenRe.MatchString(s) {
		errs = append(errs, MsgChallengeFormat)
	}

	if s, ok := proofVal.(string); !ok || s == "" {
		errs = append(errs, MsgProofRequired)
	}

	return errs
}
