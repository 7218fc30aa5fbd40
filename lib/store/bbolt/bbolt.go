// Package bbolt is the on-disk storage backend, backed by bbolt[1].
//
// All values live in a single bucket. Each record is a JSON envelope holding
// the raw data plus its expiry as unix nanoseconds, so the cleanup pass can
// decide staleness without understanding the payload. A zero expiry means the
// record never decays.
//
// bbolt is single-writer and local to the node, which matches how the agent
// runs: one process per node. For shared state across nodes, use the valkey
// backend instead.
//
// [1]: https://github.com/etcd-io/bbolt
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/fluxnode/fluxosd/lib/store"
	"go.etcd.io/bbolt"
)

var bucketName = []byte("fluxosd")

type record struct {
	Data      []byte `json:"data"`
	ExpiresAt int64  `json:"expiresAt"` // unix nanoseconds, 0 = no expiry
}

func (r record) expired(now time.Time) bool {
	return r.ExpiresAt != 0 && now.UnixNano() > r.ExpiresAt
}

// Store implements store.Interface backed by a bbolt database file.
type Store struct {
	bdb *bbolt.DB
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.bdb.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(bucketName)
		if bkt == nil || bkt.Get([]byte(key)) == nil {
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		return bkt.Delete([]byte(key))
	})
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var result []byte

	if err := s.bdb.View(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(bucketName)
		if bkt == nil {
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		raw := bkt.Get([]byte(key))
		if raw == nil {
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("%w: %q: %w", store.ErrCodec, key, err)
		}

		if rec.expired(time.Now()) {
			// reap outside the read transaction
			go s.Delete(context.Background(), key)
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		result = make([]byte, len(rec.Data))
		copy(result, rec.Data)

		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	rec := record{Data: value}
	if ttl != store.NoExpiry {
		rec.ExpiresAt = time.Now().Add(ttl).UnixNano()
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", store.ErrCodec, key, err)
	}

	return s.bdb.Update(func(tx *bbolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return fmt.Errorf("can't create bucket: %w", err)
		}

		return bkt.Put([]byte(key), raw)
	})
}

func (s *Store) cleanup(ctx context.Context) error {
	now := time.Now()

	return s.bdb.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(bucketName)
		if bkt == nil {
			return nil
		}

		c := bkt.Cursor()
		for key, raw := c.First(); key != nil; key, raw = c.Next() {
			var rec record
			if err := json.Unmarshal(raw, &rec); err != nil {
				slog.Warn("undecodable record during cleanup, removing", "key", string(key), "err", err)
				if err := c.Delete(); err != nil {
					return err
				}
				continue
			}

			if rec.expired(now) {
				if err := c.Delete(); err != nil {
					return err
				}
			}
		}

		return nil
	})
}

func (s *Store) cleanupThread(ctx context.Context) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.cleanup(ctx); err != nil {
				slog.Error("error during bbolt cleanup", "err", err)
			}
		}
	}
}
