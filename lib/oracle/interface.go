// Package oracle defines the attestation oracle boundary: the external
// service that can reduce a client-submitted proof back to the challenge
// value it was derived from, if and only if the client holds the node's key
// material. The engine never decrypts anything itself.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Request is one decryption attempt. Everything in it is opaque to the
// oracle's caller: the proof is forwarded as submitted and the block height
// is forwarded as bound at challenge issuance.
type Request struct {
	PurposeID   string `json:"purposeId"`
	SystemID    string `json:"systemId"`
	Message     string `json:"message"`
	BlockHeight int64  `json:"blockHeight"`
}

// Response is the oracle's top-level verdict. On success Data carries a JSON
// document (see Payload). On error Message carries a human-readable cause,
// when the oracle provides one.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    string `json:"data,omitempty"`
}

// Payload is the structured document inside Response.Data. On success
// Message holds the recovered plaintext; on error it holds the oracle's
// error message.
type Payload struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ParsePayload decodes a Response's Data field.
func ParsePayload(data string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return Payload{}, fmt.Errorf("oracle: can't parse payload: %w", err)
	}

	return p, nil
}

// Decrypter is the verification capability the authentication engine
// consumes. Implementations must honor ctx cancellation; the engine bounds
// every call with a deadline.
type Decrypter interface {
	Decrypt(ctx context.Context, req Request) (Response, error)
}
