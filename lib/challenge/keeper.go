package challenge

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fluxnode/fluxosd"
)

// held is a pooled challenge plus its reaper timer.
type held struct {
	ch    *Challenge
	timer *time.Timer
}

// Keeper owns every outstanding challenge, grouped into per-requester pools.
// All pool mutation happens under one mutex held only around in-memory work;
// the expensive oracle round-trip runs elsewhere. A challenge leaves its pool
// exactly once: either its reaper timer fires or Consume wins, never both.
type Keeper struct {
	mu    sync.Mutex
	pools map[string]map[string]*held

	ttl      time.Duration
	capacity int
}

type KeeperOptions struct {
	// TTL overrides the challenge lifetime, zero means
	// fluxosd.ChallengeTTL. Only tests should shorten this.
	TTL time.Duration

	// Capacity overrides the per-requester pool limit, zero means
	// fluxosd.MaxChallengesPerIP.
	Capacity int
}

func NewKeeper(opts KeeperOptions) *Keeper {
	if opts.TTL == 0 {
		opts.TTL = fluxosd.ChallengeTTL
	}
	if opts.Capacity == 0 {
		opts.Capacity = fluxosd.MaxChallengesPerIP
	}

	return &Keeper{
		pools:    map[string]map[string]*held{},
		ttl:      opts.TTL,
		capacity: opts.Capacity,
	}
}

// Issue mints a challenge bound to blockHeight for ownerIP, inserts it into
// the owner's pool, and arms its reaper.
func (k *Keeper) Issue(ownerIP string, blockHeight int64) (*Challenge, error) {
	if ownerIP == "" || ownerIP == "unknown" {
		return nil, ErrInvalidOwner
	}

	value, err := NewValue()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ch := &Challenge{
		Value:       value,
		BlockHeight: blockHeight,
		IssuedAt:    now,
		ExpiresAt:   now.Add(k.ttl),
		OwnerIP:     ownerIP,
	}

	k.mu.Lock()
	if len(k.pools[ownerIP]) >= k.capacity {
		k.mu.Unlock()
		challengesRateLimited.Inc()
		return nil, fmt.Errorf("%w: Maximum %d challenges per IP", ErrRateLimited, k.capacity)
	}

	pool, ok := k.pools[ownerIP]
	if !ok {
		pool = map[string]*held{}
		k.pools[ownerIP] = pool
	}

	pool[value] = &held{
		ch:    ch,
		timer: time.AfterFunc(k.ttl, func() { k.expire(ownerIP, value) }),
	}
	k.mu.Unlock()

	challengesIssued.Inc()
	return ch, nil
}

// expire is the reaper path. It races Consume for the same entry; the map
// removal under the lock decides the winner.
func (k *Keeper) expire(ownerIP, value string) {
	if _, ok := k.remove(ownerIP, value); !ok {
		return
	}

	challengesExpired.Inc()
	slog.Debug("challenge expired unconsumed", "owner_ip", ownerIP)
}

// HasOwner reports whether ownerIP holds any challenges at all. An owner
// whose pool drained is indistinguishable from one that never existed.
func (k *Keeper) HasOwner(ownerIP string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	_, ok := k.pools[ownerIP]
	return ok
}

// Peek looks a challenge up without consuming it.
func (k *Keeper) Peek(ownerIP, value string) (*Challenge, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	h, ok := k.pools[ownerIP][value]
	if !ok {
		return nil, false
	}

	return h.ch, true
}

// Outstanding counts the owner's pooled challenges.
func (k *Keeper) Outstanding(ownerIP string) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	return len(k.pools[ownerIP])
}

// Consume atomically removes a challenge, disarming its reaper. At most one
// caller gets the challenge back for any (ownerIP, value), no matter how
// many consumers and reapers race.
func (k *Keeper) Consume(ownerIP, value string) (*Challenge, bool) {
	ch, ok := k.remove(ownerIP, value)
	if !ok {
		return nil, false
	}

	challengesConsumed.Inc()
	return ch, true
}

func (k *Keeper) remove(ownerIP, value string) (*Challenge, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	pool, ok := k.pools[ownerIP]
	if !ok {
		return nil, false
	}

	h, ok := pool[value]
	if !ok {
		return nil, false
	}

	h.timer.Stop()
	delete(pool, value)
	if len(pool) == 0 {
		delete(k.pools, ownerIP)
	}

	return h.ch, true
}
