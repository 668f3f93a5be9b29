package cache

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/sessionguard/jwt"
)

const defaultMaxEntries = 100_000

type memoryEntry struct {
	claims    jwt.Claims
	expiresAt time.Time
}

// Memory is an in-process Cache. It is the default for the engine because a
// hit must not cost a network round trip.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	maxEntries int
	now        func() time.Time
}

// NewMemory returns a Memory cache holding at most maxEntries results.
// A non-positive maxEntries selects a default.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Memory{
		entries:    make(map[string]memoryEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns a copy of the cached claims if the entry is still fresh.
func (m *Memory) Get(_ context.Context, key string) (*jwt.Claims, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	claims := entry.claims
	return &claims, true, nil
}

// Set stores claims for at most MaxTTL.
func (m *Memory) Set(_ context.Context, key string, claims *jwt.Claims, ttl time.Duration) error {
	ttl = clampTTL(ttl)
	if ttl <= 0 || claims == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxEntries {
		m.evictLocked(now)
	}
	m.entries[key] = memoryEntry{claims: *claims, expiresAt: now.Add(ttl)}
	return nil
}

// Delete drops keys. Missing keys are ignored.
func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

// Len reports the number of stored entries, fresh or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// evictLocked drops expired entries and, if the cache is still full, an
// arbitrary tenth of the rest.
func (m *Memory) evictLocked(now time.Time) {
	for key, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, key)
		}
	}
	if len(m.entries) < m.maxEntries {
		return
	}

	drop := m.maxEntries/10 + 1
	for key := range m.entries {
		if drop == 0 {
			break
		}
		delete(m.entries, key)
		drop--
	}
}
