// Package configsync is the protected operation behind the challenge
// gate: accepting a configuration payload pushed to this node. It performs
// no authentication itself; callers must have a valid verification result
// first.
package configsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/ext"

	"github.com/fluxnode/fluxosd"
	"github.com/fluxnode/fluxosd/lib/store"
)

// SyncedMessage is returned to the caller on every successful sync.
const SyncedMessage = "Configuration synchronized successfully"

// Validation messages returned verbatim to clients.
const (
	MsgPayloadTooLarge  = "Config data must be at most 16 KiB"
	MsgPayloadNotObject = "Config data must be a plain object"
)

// lastConfigKey is where the most recently accepted payload is persisted.
const lastConfigKey = "config:last"

var ErrBadKeyPolicy = errors.New("configsync: key policy does not compile")

// Result reports one accepted sync.
type Result struct {
	Synced       bool     `json:"synced"`
	Message      string   `json:"message"`
	ReceivedKeys []string `json:"receivedKeys"`
}

// Syncer validates and applies configuration payloads.
type Syncer struct {
	keyPolicy cel.Program
	saved     *store.JSON[map[string]any]
}

type Options struct {
	// KeyPolicy is an optional CEL expression evaluated once per top-level
	// payload key, with the string variable `key` in scope. A key the
	// expression rejects fails validation of the whole payload. Empty
	// means every key is accepted.
	KeyPolicy string

	// Store, when set, persists the last accepted payload so it survives
	// agent restarts.
	Store store.Interface
}

func New(opts Options) (*Syncer, error) {
	result := &Syncer{}

	if opts.KeyPolicy != "" {
		env, err := cel.NewEnv(
			ext.Strings(),
			cel.Variable("key", cel.StringType),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadKeyPolicy, err)
		}

		ast, iss := env.Compile(opts.KeyPolicy)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadKeyPolicy, iss.Err())
		}

		prg, err := env.Program(ast, cel.EvalOptions(cel.OptOptimize))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadKeyPolicy, err)
		}

		result.keyPolicy = prg
	}

	if opts.Store != nil {
		result.saved = &store.JSON[map[string]any]{
			Underlying: opts.Store,
			Prefix:     "arcane:",
		}
	}

	return result, nil
}

// Validate checks the raw configData document against size, shape, and key
// policy. It returns the decoded payload plus every violation message. A
// missing or null document is fine: it decodes to a nil payload.
func (s *Syncer) Validate(raw json.RawMessage) (map[string]any, []string) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	if len(raw) > fluxosd.MaxConfigPayloadBytes {
		return nil, []string{MsgPayloadTooLarge}
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, []string{MsgPayloadNotObject}
	}

	var errs []string
	for _, key := range sortedKeys(payload) {
		if !s.keyAllowed(key) {
			errs = append(errs, fmt.Sprintf("Config key %q rejected by policy", key))
		}
	}

	if len(errs) != 0 {
		return nil, errs
	}

	return payload, nil
}

func (s *Syncer) keyAllowed(key string) bool {
	if s.keyPolicy == nil {
		return true
	}

	out, _, err := s.keyPolicy.Eval(map[string]any{"key": key})
	if err != nil {
		slog.Error("key policy evaluation failed, rejecting key", "key", key, "err", err)
		return false
	}

	if allowed, ok := out.(types.Bool); ok {
		return bool(allowed)
	}

	slog.Error("key policy did not evaluate to a bool, rejecting key", "key", key)
	return false
}

// Authorize applies an already-validated payload. It must only be called
// after a verification succeeded.
func (s *Syncer) Authorize(ctx context.Context, payload map[string]any) (Result, error) {
	keys := sortedKeys(payload)

	if s.saved != nil && len(payload) != 0 {
		if err := s.saved.Set(ctx, lastConfigKey, payload, store.NoExpiry); err != nil {
			return Result{}, fmt.Errorf("configsync: can't persist payload: %w", err)
		}
	}

	return Result{
		Synced:       true,
		Message:      SyncedMessage,
		ReceivedKeys: keys,
	}, nil
}

// LastSynced returns the most recently persisted payload, or store.ErrNotFound.
func (s *Syncer) LastSynced(ctx context.Context) (map[string]any, error) {
	if s.saved == nil {
		return nil, store.ErrNotFound
	}

	return s.saved.Get(ctx, lastConfigKey)
}

func sortedKeys(payload map[string]any) []string {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
