// Package store is the keyed persistence substrate of the node agent. It is
// used for things that must survive across requests but are fine to lose on
// a fresh install: cached daemon RPC results and the last synchronized node
// configuration.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when the backend has no live value for a key.
	ErrNotFound = errors.New("store: key not found")

	// ErrCodec is returned when a value cannot be converted between the
	// backend representation and the caller's type.
	ErrCodec = errors.New("store: can't encode or decode value")

	// ErrBadConfig is returned when a backend's configuration is invalid.
	ErrBadConfig = errors.New("store: configuration is invalid")
)

// Interface is the set of calls the agent makes against a storage backend.
// Backends may be in-memory, on-disk, or in a shared database.
type Interface interface {
	// Delete removes a value from the store by key.
	Delete(ctx context.Context, key string) error

	// Get returns the value of a key assuming it exists and has not expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set puts a value into the store. A ttl of zero means the value does
	// not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NoExpiry is the ttl value for entries that should not decay.
const NoExpiry time.Duration = 0

// JSON adapts a byte store into a typed store for one record type. Keys are
// namespaced with Prefix so unrelated consumers can share a backend.
type JSON[T any] struct {
	Underlying Interface
	Prefix     string
}

func (j *JSON[T]) key(key string) string {
	return j.Prefix + key
}

func (j *JSON[T]) Delete(ctx context.Context, key string) error {
	return j.Underlying.Delete(ctx, j.key(key))
}

func (j *JSON[T]) Get(ctx context.Context, key string) (T, error) {
	var result T

	data, err := j.Underlying.Get(ctx, j.key(key))
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("%w: %w", ErrCodec, err)
	}

	return result, nil
}

func (j *JSON[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCodec, err)
	}

	return j.Underlying.Set(ctx, j.key(key), data, ttl)
}
