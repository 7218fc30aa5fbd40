package challenge

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/fluxnode/fluxosd"
	"github.com/fluxnode/fluxosd/lib/oracle"
)

// Verification reasons. Clients match on these strings, so they are part of
// the wire contract.
const (
	ReasonNoChallenges    = "No challenges for this IP"
	ReasonNotFound        = "Challenge not found or already used"
	ReasonDecryptFailed   = "Decryption failed"
	ReasonInvalidResponse = "Invalid decryption response"
	ReasonMismatch        = "Challenge mismatch"
	ReasonSuccess         = "Authentication successful"
)

// Result is the outcome of one verification attempt. Reason is always set.
type Result struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason"`
}

func failure(outcome, reason string) Result {
	verifications.WithLabelValues(outcome).Inc()
	return Result{Valid: false, Reason: reason}
}

// Verifier checks a client's proof of an outstanding challenge against the
// attestation oracle and consumes the challenge when, and only when,
// everything lines up.
type Verifier struct {
	Keeper *Keeper
	Oracle oracle.Decrypter

	// PurposeID and SystemID identify the protocol purpose and this node
	// in oracle requests.
	PurposeID string
	SystemID  string

	// Timeout bounds the oracle round-trip, zero means
	// fluxosd.DefaultOracleTimeout.
	Timeout time.Duration
}

// Verify runs the full verification protocol for one submission. The keeper
// lock is never held across the oracle call, so a slow oracle cannot stall
// unrelated issuance or verification.
func (v *Verifier) Verify(ctx context.Context, ownerIP, challengeValue, proof string) Result {
	lg := slog.With("owner_ip", ownerIP)

	// tokens are minted as lowercase hex but matched case-insensitively
	challengeValue = strings.ToLower(challengeValue)

	if !v.Keeper.HasOwner(ownerIP) {
		return failure("no_challenges", ReasonNoChallenges)
	}

	ch, ok := v.Keeper.Peek(ownerIP, challengeValue)
	if !ok {
		return failure("not_found", ReasonNotFound)
	}

	timeout := v.Timeout
	if timeout == 0 {
		timeout = fluxosd.DefaultOracleTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := v.Oracle.Decrypt(ctx, oracle.Request{
		PurposeID:   v.PurposeID,
		SystemID:    v.SystemID,
		Message:     proof,
		BlockHeight: ch.BlockHeight,
	})
	if err != nil {
		lg.Error("oracle decrypt call failed", "err", err)
		return failure("oracle_unreachable", ReasonDecryptFailed)
	}

	if resp.Status != oracle.StatusSuccess {
		reason := resp.Message
		if reason == "" {
			reason = ReasonDecryptFailed
		}
		return failure("oracle_rejected", reason)
	}

	payload, err := oracle.ParsePayload(resp.Data)
	if err != nil {
		lg.Error("oracle payload is not parseable", "err", err)
		return failure("bad_payload", ReasonInvalidResponse)
	}

	if payload.Status == oracle.StatusError {
		reason := payload.Message
		if reason == "" {
			reason = ReasonDecryptFailed
		}
		return failure("oracle_rejected", reason)
	}

	if payload.Message != challengeValue {
		return failure("mismatch", ReasonMismatch)
	}

	// Only now is the submission proven; burn the challenge. Losing this
	// race to a duplicate submission or the reaper reads as a miss.
	if _, ok := v.Keeper.Consume(ownerIP, challengeValue); !ok {
		return failure("not_found", ReasonNotFound)
	}

	verifications.WithLabelValues("success").Inc()
	return Result{Valid: true, Reason: ReasonSuccess}
}
