package memory

import (
	"context"
	"sync"
	"time"
)

// Denylist records revoked session token ids until their tokens would have expired anyway.
type Denylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewDenylist(now func() time.Time) *Denylist {
	if now == nil {
		now = time.Now
	}

	return &Denylist{
		entries: make(map[string]time.Time),
		now:     now,
	}
}

func (d *Denylist) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries[tokenID] = d.now().Add(ttl)

	return nil
}

func (d *Denylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	until, ok := d.entries[tokenID]
	if !ok {
		return false, nil
	}

	return d.now().Before(until), nil
}

// PruneExpired drops entries whose tokens have expired and returns how many were removed.
func (d *Denylist) PruneExpired() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	removed := 0

	for id, until := range d.entries {
		if !now.Before(until) {
			delete(d.entries, id)
			removed++
		}
	}

	return removed
}

func (d *Denylist) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.entries)
}
