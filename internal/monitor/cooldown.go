package monitor

import (
	"sync"
	"time"
)

// CooldownTracker suppresses repeat recognitions of the same identity on
// the same camera within the cooldown window. Entries live in memory only;
// a restart simply allows one extra recognition, which the attendance unique
// constraint absorbs.
type CooldownTracker struct {
	ttl time.Duration

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewCooldownTracker(ttl time.Duration) *CooldownTracker {
	return &CooldownTracker{ttl: ttl, seen: make(map[string]time.Time)}
}

// Stale reports whether the identity is outside its cooldown window on this
// scope and may be recorded again.
func (t *CooldownTracker) Stale(scope, id string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.seen[scope+"|"+id]
	return !ok || now.Sub(last) >= t.ttl
}

// Touch marks the identity as just recognized. Timestamps never move
// backwards, so out-of-order passes cannot shorten a window. Expired
// entries are pruned on the way through.
func (t *CooldownTracker) Touch(scope, id string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := scope + "|" + id
	if last, ok := t.seen[key]; !ok || now.After(last) {
		t.seen[key] = now
	}

	cutoff := now.Add(-2 * t.ttl)
	for k, v := range t.seen {
		if v.Before(cutoff) {
			delete(t.seen, k)
		}
	}
}
