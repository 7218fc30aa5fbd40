// Package challenge is the challenge-response authentication engine that
// gates privileged administrative operations. A requester is issued a
// short-lived random token, proves possession of the node's key material by
// having the attestation oracle decrypt their proof back to that token, and
// only then is the privileged operation allowed to run. Every token is
// single use.
package challenge

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/fluxnode/fluxosd"
)

// Challenge is one outstanding authentication token. Never mutated after
// creation; its only transitions are consumption and expiry, both of which
// remove it from its owner's pool.
type Challenge struct {
	Value       string    `json:"challenge"`
	BlockHeight int64     `json:"blockHeight"`
	IssuedAt    time.Time `json:"issuedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	OwnerIP     string    `json:"-"`
}

// NewValue mints a fresh random token: fluxosd.ChallengeBytes bytes of
// crypto/rand entropy rendered as lowercase hex.
func NewValue() (string, error) {
	buf := make([]byte, fluxosd.ChallengeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("challenge: can't read entropy: %w", err)
	}

	return hex.EncodeToString(buf), nil
}
