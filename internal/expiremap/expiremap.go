// Package expiremap is a simple generic map where every entry carries an
// expiry time. Expired entries are hidden from readers immediately and
// physically removed either lazily on access or in bulk by Cleanup.
package expiremap

import (
	"sync"
	"time"
)

// Zilch returns the zero value of any type.
func Zilch[T any]() T { return *new(T) }

type entry[V any] struct {
	value  V
	expiry time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return now.After(e.expiry)
}

type Impl[K comparable, V any] struct {
	data map[K]entry[V]
	lock sync.RWMutex
}

func New[K comparable, V any]() *Impl[K, V] {
	return &Impl[K, V]{
		data: map[K]entry[V]{},
	}
}

// Get fetches a value by key. Entries past their expiry read as absent even
// if Cleanup has not swept them yet.
func (m *Impl[K, V]) Get(key K) (V, bool) {
	m.lock.RLock()
	e, ok := m.data[key]
	m.lock.RUnlock()

	if !ok {
		return Zilch[V](), false
	}

	if e.expired(time.Now()) {
		m.lock.Lock()
		// recheck, a writer may have replaced the entry in the gap
		if cur, ok := m.data[key]; ok && cur.expired(time.Now()) {
			delete(m.data, key)
		}
		m.lock.Unlock()
		return Zilch[V](), false
	}

	return e.value, true
}

// Set stores a value that expires after ttl.
func (m *Impl[K, V]) Set(key K, value V, ttl time.Duration) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.data[key] = entry[V]{
		value:  value,
		expiry: time.Now().Add(ttl),
	}
}

// Delete removes a key and reports whether a live entry was present.
func (m *Impl[K, V]) Delete(key K) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	e, ok := m.data[key]
	if !ok {
		return false
	}

	delete(m.data, key)
	return !e.expired(time.Now())
}

// Len counts live entries.
func (m *Impl[K, V]) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()

	now := time.Now()
	n := 0
	for _, e := range m.data {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Cleanup removes every expired entry in one pass.
func (m *Impl[K, V]) Cleanup() {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := time.Now()
	for key, e := range m.data {
		if e.expired(now) {
			delete(m.data, key)
		}
	}
}
