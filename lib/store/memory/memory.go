// Package memory is the zero-configuration storage backend. State is lost on
// restart, which is acceptable for a single-node agent: caches refill and the
// last synced configuration is pushed again by the operator.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fluxnode/fluxosd/internal/expiremap"
	"github.com/fluxnode/fluxosd/lib/store"
)

type factory struct{}

func (factory) Build(ctx context.Context, _ json.RawMessage) (store.Interface, error) {
	return New(ctx), nil
}

func (factory) Valid(json.RawMessage) error { return nil }

func init() {
	store.Register("memory", factory{})
}

// forever stands in for "no expiry" since the underlying map always decays.
const forever = 100 * 365 * 24 * time.Hour

type impl struct {
	data *expiremap.Impl[string, []byte]
}

func (i *impl) Delete(_ context.Context, key string) error {
	if !i.data.Delete(key) {
		return fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}

	return nil
}

func (i *impl) Get(_ context.Context, key string) ([]byte, error) {
	result, ok := i.data.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}

	return result, nil
}

func (i *impl) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == store.NoExpiry {
		ttl = forever
	}

	i.data.Set(key, value, ttl)
	return nil
}

func (i *impl) cleanupThread(ctx context.Context) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			i.data.Cleanup()
		}
	}
}

// New creates an in-memory store whose sweeper runs until ctx is done.
func New(ctx context.Context) store.Interface {
	result := &impl{
		data: expiremap.New[string, []byte](),
	}

	go result.cleanupThread(ctx)

	return result
}
