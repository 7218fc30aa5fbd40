// Package fluxosd holds package-wide constants for the FluxOS node agent.
package fluxosd

import "time"

// Version is the version of fluxosd. At build time this is replaced with the
// release tag by the linker.
var Version = "devel"

// BasePrefix is the URL prefix the administrative API is served under.
var BasePrefix = "/arcane"

const (
	// ChallengeTTL is how long an issued authentication challenge stays
	// valid before it is reaped.
	ChallengeTTL = 30 * time.Second

	// MaxChallengesPerIP caps how many unconsumed challenges a single
	// requester may hold at once.
	MaxChallengesPerIP = 16

	// ChallengeBytes is the entropy of a challenge token. Tokens are
	// rendered as hex, so the wire form is twice this many characters.
	ChallengeBytes = 32

	// MaxConfigPayloadBytes caps the serialized size of a configuration
	// payload accepted by the config-sync endpoint.
	MaxConfigPayloadBytes = 16 * 1024

	// DefaultOracleTimeout bounds a single round-trip to the attestation
	// oracle. Exceeding it counts as a failed decryption.
	DefaultOracleTimeout = 10 * time.Second

	// HeightCacheTTL is how long a chain height fetched from the daemon is
	// reused before it is refreshed.
	HeightCacheTTL = 60 * time.Second
)
