// Package presence tracks recently-active players. The count feeds the
// matchmaking pressure metric as the effective population. Activity
// lives in redis TTL keys when redis is configured; otherwise an
// in-memory table expires entries itself.
package presence

import (
	"context"
	"log"
	"sync"
	"time"

	"ladder-platform/backend/internal/redis"
	"ladder-platform/backend/internal/store"
)

// Tracker records player activity and reports the effective
// population.
type Tracker struct {
	client *redis.Client // nil when redis is not configured
	store  *store.Store
	window time.Duration

	mu   sync.Mutex
	seen map[int64]time.Time
}

// New creates a presence tracker. client may be nil.
func New(client *redis.Client, st *store.Store, window time.Duration) *Tracker {
	if client == nil {
		log.Printf("[PRESENCE] redis not configured, using in-memory tracking")
	}
	return &Tracker{
		client: client,
		store:  st,
		window: window,
		seen:   make(map[int64]time.Time),
	}
}

// Touch marks a player as active now.
func (t *Tracker) Touch(ctx context.Context, uid int64) {
	if t.client != nil {
		err := t.client.TouchPresence(ctx, uid, t.window)
		if err == nil {
			return
		}
		log.Printf("[PRESENCE] redis touch failed for %d, falling back: %v", uid, err)
	}
	t.mu.Lock()
	t.seen[uid] = time.Now()
	t.mu.Unlock()
}

// Population returns the effective player population: everyone active
// within the window, floored by players with a recent rated game.
func (t *Tracker) Population(ctx context.Context) int {
	active := t.activeCount(ctx)
	if played := t.store.ActivePopulation(time.Now().Add(-t.window)); played > active {
		return played
	}
	return active
}

func (t *Tracker) activeCount(ctx context.Context) int {
	if t.client != nil {
		n, err := t.client.CountPresence(ctx)
		if err == nil {
			return n
		}
		log.Printf("[PRESENCE] redis count failed, falling back: %v", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-t.window)
	n := 0
	for uid, at := range t.seen {
		if at.Before(cutoff) {
			delete(t.seen, uid)
			continue
		}
		n++
	}
	return n
}
