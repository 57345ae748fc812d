// Package notify implements the outbound message router: a two-tier
// priority queue drained by a single worker under a global rate limit.
// High-priority jobs (responses to user-initiated interactions) always
// fully drain before a low-priority job (match notifications,
// broadcasts, reminders) is attempted.
package notify

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Priority selects the queue a message enters.
type Priority int

const (
	// High is for direct responses to user-initiated commands.
	High Priority = iota
	// Low is for match lifecycle notifications and broadcasts.
	Low
)

// maxAttempts bounds delivery retries per message.
const maxAttempts = 3

// ErrRouterStopped is delivered to callers whose messages were still
// queued when the router shut down.
var ErrRouterStopped = errors.New("notification router stopped")

// Message is one outbound notification.
type Message struct {
	PlayerUID int64
	Type      string
	Payload   interface{}
}

// Sender delivers a message to the chat platform (or a test double).
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type job struct {
	msg      Message
	priority Priority
	attempts int
	result   chan error
}

// Router is the prioritized, rate-limited dispatch loop. Queues are
// unbounded; the rate limiter is the only throughput control.
type Router struct {
	mu     sync.Mutex
	high   []*job
	low    []*job
	wake   chan struct{}
	sender Sender
	limit  *rate.Limiter
}

// NewRouter creates a router dispatching at most ratePerSec messages
// per second through sender.
func NewRouter(sender Sender, ratePerSec float64) *Router {
	return &Router{
		wake:   make(chan struct{}, 1),
		sender: sender,
		limit:  rate.NewLimiter(rate.Limit(ratePerSec), 1),
	}
}

// Enqueue queues a message and returns a channel that resolves with
// the final delivery outcome (nil, or the last error after retries).
func (r *Router) Enqueue(priority Priority, msg Message) <-chan error {
	j := &job{msg: msg, priority: priority, result: make(chan error, 1)}

	r.mu.Lock()
	if priority == High {
		r.high = append(r.high, j)
	} else {
		r.low = append(r.low, j)
	}
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
	return j.result
}

// next pops the next job, always preferring the high queue.
func (r *Router) next() *job {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.high) > 0 {
		j := r.high[0]
		r.high = r.high[1:]
		return j
	}
	if len(r.low) > 0 {
		j := r.low[0]
		r.low = r.low[1:]
		return j
	}
	return nil
}

// requeue puts a failed job at the back of its own queue, keeping the
// caller's result channel alive.
func (r *Router) requeue(j *job) {
	r.mu.Lock()
	if j.priority == High {
		r.high = append(r.high, j)
	} else {
		r.low = append(r.low, j)
	}
	r.mu.Unlock()
}

// Run is the single dispatch loop. Should be run as a goroutine.
func (r *Router) Run(ctx context.Context) {
	log.Println("[NOTIFY] router started")
	for {
		j := r.next()
		if j == nil {
			select {
			case <-ctx.Done():
				r.failRemaining()
				log.Println("[NOTIFY] router stopped")
				return
			case <-r.wake:
				continue
			}
		}

		if err := r.limit.Wait(ctx); err != nil {
			// Shutdown while rate-limited: the job stays undelivered.
			j.result <- ErrRouterStopped
			r.failRemaining()
			log.Println("[NOTIFY] router stopped")
			return
		}

		j.attempts++
		if err := r.sender.Send(ctx, j.msg); err != nil {
			if j.attempts >= maxAttempts {
				log.Printf("[NOTIFY] dropping message %s to %d after %d attempts: %v",
					j.msg.Type, j.msg.PlayerUID, j.attempts, err)
				j.result <- err
			} else {
				log.Printf("[NOTIFY] retrying message %s to %d (attempt %d/%d): %v",
					j.msg.Type, j.msg.PlayerUID, j.attempts, maxAttempts, err)
				r.requeue(j)
			}
			continue
		}
		j.result <- nil
	}
}

// failRemaining resolves every still-queued job with ErrRouterStopped.
func (r *Router) failRemaining() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.high {
		j.result <- ErrRouterStopped
	}
	for _, j := range r.low {
		j.result <- ErrRouterStopped
	}
	r.high, r.low = nil, nil
}

// QueueDepths returns the current (high, low) queue lengths.
func (r *Router) QueueDepths() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.high), len(r.low)
}

// Drain blocks until both queues are empty or ctx expires. Used during
// graceful shutdown before the run loop is cancelled.
func (r *Router) Drain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		high, low := r.QueueDepths()
		if high == 0 && low == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
