// Package oracletest has deterministic oracle.Decrypter fakes for testing
// the authentication protocol without real key material.
package oracletest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/fluxnode/fluxosd/lib/oracle"
)

// ErrUnreachable simulates an oracle transport failure.
var ErrUnreachable = errors.New("oracletest: oracle unreachable")

// Fake implements oracle.Decrypter by delegating to Handler. Calls counts
// the decrypt attempts; it is atomic because verification tests hit one Fake
// from many goroutines.
type Fake struct {
	Handler func(ctx context.Context, req oracle.Request) (oracle.Response, error)
	Calls   atomic.Int64
}

func (f *Fake) Decrypt(ctx context.Context, req oracle.Request) (oracle.Response, error) {
	f.Calls.Add(1)
	return f.Handler(ctx, req)
}

func successData(plaintext string) string {
	data, err := json.Marshal(oracle.Payload{
		Status:  oracle.StatusSuccess,
		Message: plaintext,
	})
	if err != nil {
		panic(fmt.Sprintf("oracletest: can't marshal payload: %v", err))
	}
	return string(data)
}

// Echo behaves like an oracle for which every proof is valid: it "decrypts"
// the submitted proof to itself. Tests submit the challenge value as the
// proof.
func Echo() *Fake {
	return &Fake{
		Handler: func(_ context.Context, req oracle.Request) (oracle.Response, error) {
			return oracle.Response{
				Status: oracle.StatusSuccess,
				Data:   successData(req.Message),
			}, nil
		},
	}
}

// Plaintext always recovers the given plaintext regardless of the proof.
func Plaintext(plaintext string) *Fake {
	return &Fake{
		Handler: func(context.Context, oracle.Request) (oracle.Response, error) {
			return oracle.Response{
				Status: oracle.StatusSuccess,
				Data:   successData(plaintext),
			}, nil
		},
	}
}

// Unreachable fails every call at the transport level.
func Unreachable() *Fake {
	return &Fake{
		Handler: func(context.Context, oracle.Request) (oracle.Response, error) {
			return oracle.Response{}, ErrUnreachable
		},
	}
}

// TopLevelError reports a non-success top-level status with the given
// message.
func TopLevelError(message string) *Fake {
	return &Fake{
		Handler: func(context.Context, oracle.Request) (oracle.Response, error) {
			return oracle.Response{
				Status:  oracle.StatusError,
				Message: message,
			}, nil
		},
	}
}

// Garbage reports success but with a payload that is not parseable JSON.
func Garbage() *Fake {
	return &Fake{
		Handler: func(context.Context, oracle.Request) (oracle.Response, error) {
			return oracle.Response{
				Status: oracle.StatusSuccess,
				Data:   "EPIC FAIL",
			}, nil
		},
	}
}

// PayloadError reports top-level success but an error inside the payload.
func PayloadError(message string) *Fake {
	return &Fake{
		Handler: func(context.Context, oracle.Request) (oracle.Response, error) {
			data, _ := json.Marshal(oracle.Payload{
				Status:  oracle.StatusError,
				Message: message,
			})
			return oracle.Response{
				Status: oracle.StatusSuccess,
				Data:   string(data),
			}, nil
		},
	}
}

// Hanging blocks until ctx is done, simulating an oracle that never answers.
func Hanging() *Fake {
	return &Fake{
		Handler: func(ctx context.Context, _ oracle.Request) (oracle.Response, error) {
			<-ctx.Done()
			return oracle.Response{}, ctx.Err()
		},
	}
}
