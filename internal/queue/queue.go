// Package queue holds waiting players and runs the scheduled pairing
// waves that turn them into matches.
package queue

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"ladder-platform/backend/internal/catalog"
)

// Removal reasons. A removal with any reason other than matched emits
// a cancellation through the dequeue callback.
const (
	RemoveMatched      = "matched"
	RemoveCancelled    = "cancelled"
	RemoveAdmin        = "admin_removed"
	RemoveQueueCleared = "queue_cleared"
)

// ErrAlreadyQueued occurs when a player enqueues twice.
var ErrAlreadyQueued = errors.New("player already in queue")

// Entry is one player waiting in the queue. Races and Ratings are
// frozen at enqueue time.
type Entry struct {
	UID        int64
	Races      []catalog.Race
	Ratings    map[catalog.Race]int
	EnqueuedAt time.Time
	Waves      int

	// seq preserves insertion order for deterministic pairing.
	seq int64
}

// Engine is the waiting-player table plus the wave scheduler. A single
// mutex guards the entry table; pairing always runs on a snapshot copy
// without holding the lock.
type Engine struct {
	mu      sync.Mutex
	entries map[int64]*Entry
	nextSeq int64

	profile  Profile
	interval time.Duration

	// population supplies the recent-active player count for the
	// pressure metric.
	population func() int

	onPairs   func(pairs []Pair)
	onDequeue func(uid int64, reason string)
}

// New creates a queue engine with the given wave interval and tuning.
func New(profile Profile, interval time.Duration, population func() int) *Engine {
	return &Engine{
		entries:    make(map[int64]*Entry),
		profile:    profile,
		interval:   interval,
		population: population,
	}
}

// SetOnPairsCallback sets the callback invoked with each wave's pairs.
func (e *Engine) SetOnPairsCallback(cb func(pairs []Pair)) {
	e.onPairs = cb
}

// SetOnDequeueCallback sets the callback invoked when an entry leaves
// the queue for any reason other than being matched.
func (e *Engine) SetOnDequeueCallback(cb func(uid int64, reason string)) {
	e.onDequeue = cb
}

// Add inserts a player with wave count zero. The caller is responsible
// for the ban / live-match / setup guards; the engine only rejects
// double enqueues.
func (e *Engine) Add(uid int64, races []catalog.Race, ratings map[catalog.Race]int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.entries[uid]; ok {
		return ErrAlreadyQueued
	}
	e.nextSeq++
	e.entries[uid] = &Entry{
		UID:        uid,
		Races:      races,
		Ratings:    ratings,
		EnqueuedAt: time.Now().UTC(),
		seq:        e.nextSeq,
	}
	log.Printf("[QUEUE] player %d enqueued with %d race(s), queue size %d", uid, len(races), len(e.entries))
	return nil
}

// Remove unconditionally removes a player. Returns false if the player
// was not queued.
func (e *Engine) Remove(uid int64, reason string) bool {
	e.mu.Lock()
	_, ok := e.entries[uid]
	if ok {
		delete(e.entries, uid)
	}
	size := len(e.entries)
	e.mu.Unlock()

	if !ok {
		return false
	}
	log.Printf("[QUEUE] player %d removed (%s), queue size %d", uid, reason, size)
	if reason != RemoveMatched && e.onDequeue != nil {
		e.onDequeue(uid, reason)
	}
	return true
}

// IsQueued reports whether a player is currently waiting.
func (e *Engine) IsQueued(uid int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.entries[uid]
	return ok
}

// Size returns the number of waiting players.
func (e *Engine) Size() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

// Snapshot returns the current entries in insertion order, as copies.
func (e *Engine) Snapshot() []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Entry, 0, len(e.entries))
	for _, entry := range e.entries {
		out = append(out, *entry)
	}
	sortBySeq(out)
	return out
}

// Clear removes every waiting player in one batch under a single lock
// hold. Used by the admin emergency clear.
func (e *Engine) Clear(reason string) []int64 {
	e.mu.Lock()
	uids := make([]int64, 0, len(e.entries))
	ordered := make([]*Entry, 0, len(e.entries))
	for _, entry := range e.entries {
		ordered = append(ordered, entry)
	}
	e.entries = make(map[int64]*Entry)
	e.mu.Unlock()

	sortPtrsBySeq(ordered)
	for _, entry := range ordered {
		uids = append(uids, entry.UID)
		if e.onDequeue != nil {
			e.onDequeue(entry.UID, reason)
		}
	}
	log.Printf("[QUEUE] cleared %d entries (%s)", len(uids), reason)
	return uids
}

// RunWave executes one pairing wave: ages every entry, snapshots the
// table, pairs on the snapshot, and commits the resulting pairs by
// removing both sides. Exposed for deterministic tests.
func (e *Engine) RunWave() []Pair {
	e.mu.Lock()
	snapshot := make([]*Entry, 0, len(e.entries))
	for _, entry := range e.entries {
		entry.Waves++
		c := *entry
		snapshot = append(snapshot, &c)
	}
	e.mu.Unlock()

	if len(snapshot) < 2 {
		return nil
	}
	sortPtrsBySeq(snapshot)

	pairs := MatchWave(snapshot, e.population(), e.profile)
	if len(pairs) == 0 {
		return nil
	}

	// Commit: a player who dequeued between snapshot and commit voids
	// the pair.
	committed := pairs[:0]
	for _, p := range pairs {
		e.mu.Lock()
		_, leadOK := e.entries[p.Lead.UID]
		_, followOK := e.entries[p.Follow.UID]
		if leadOK && followOK {
			delete(e.entries, p.Lead.UID)
			delete(e.entries, p.Follow.UID)
		}
		e.mu.Unlock()
		if leadOK && followOK {
			committed = append(committed, p)
		}
	}

	if len(committed) > 0 {
		log.Printf("[QUEUE] wave produced %d pair(s)", len(committed))
		if e.onPairs != nil {
			e.onPairs(committed)
		}
	}
	return committed
}

// Run fires pairing waves on the configured interval until ctx is
// cancelled. Should be run as a goroutine.
func (e *Engine) Run(ctx context.Context) {
	log.Printf("[QUEUE] wave scheduler started (interval %s, profile %s)", e.interval, e.profile.Name)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.RunWave()
		case <-ctx.Done():
			log.Println("[QUEUE] wave scheduler stopped")
			return
		}
	}
}

func sortBySeq(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
}

func sortPtrsBySeq(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
}
