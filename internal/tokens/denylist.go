package tokens

import (
	"context"
	"sync"
	"time"
)

// Denylist records token IDs (JTIs) that must no longer be accepted.
// Revoke takes effect immediately for subsequent IsRevoked calls; ttl
// should be the remaining lifetime of the token so entries expire on
// their own once the token itself would have expired.
type Denylist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type memoryEntry struct {
	exp time.Time
}

// MemoryDenylist is the single-process fallback (and the test backend).
type MemoryDenylist struct {
	mu sync.RWMutex
	m  map[string]memoryEntry
}

func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{
		m: make(map[string]memoryEntry),
	}
}

func (d *MemoryDenylist) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		// already expired, nothing to track
		return nil
	}

	d.mu.Lock()
	d.m[jti] = memoryEntry{exp: time.Now().Add(ttl)}
	d.mu.Unlock()

	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	now := time.Now()

	d.mu.RLock()
	e, ok := d.m[jti]
	d.mu.RUnlock()

	if !ok {
		return false, nil
	}

	if now.After(e.exp) {
		d.mu.Lock()
		delete(d.m, jti)
		d.mu.Unlock()
		return false, nil
	}

	return true, nil
}
