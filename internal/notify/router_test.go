package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSender records delivered messages and can fail on demand.
type captureSender struct {
	mu        sync.Mutex
	delivered []Message
	failUntil map[string]int // message type -> remaining failures
}

func (c *captureSender) Send(_ context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failUntil[msg.Type] > 0 {
		c.failUntil[msg.Type]--
		return errors.New("platform unavailable")
	}
	c.delivered = append(c.delivered, msg)
	return nil
}

func (c *captureSender) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.delivered))
	for i, m := range c.delivered {
		out[i] = m.Type
	}
	return out
}

func await(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for delivery result")
		return nil
	}
}

func TestHighPriorityDrainsFirst(t *testing.T) {
	sender := &captureSender{}
	// Generous rate so the test is not limiter-bound.
	r := NewRouter(sender, 10000)

	// Enqueue before starting the loop so ordering is deterministic.
	lowDone := r.Enqueue(Low, Message{PlayerUID: 1, Type: "low_1"})
	high1 := r.Enqueue(High, Message{PlayerUID: 1, Type: "high_1"})
	high2 := r.Enqueue(High, Message{PlayerUID: 2, Type: "high_2"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	require.NoError(t, await(t, high1))
	require.NoError(t, await(t, high2))
	require.NoError(t, await(t, lowDone))

	assert.Equal(t, []string{"high_1", "high_2", "low_1"}, sender.types())
}

func TestRetryPreservesResultChannel(t *testing.T) {
	sender := &captureSender{failUntil: map[string]int{"flaky": 2}}
	r := NewRouter(sender, 10000)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	done := r.Enqueue(Low, Message{PlayerUID: 7, Type: "flaky"})
	// Two failures then success on the third attempt.
	require.NoError(t, await(t, done))
	assert.Equal(t, []string{"flaky"}, sender.types())
}

func TestThreeFailuresSurfaceError(t *testing.T) {
	sender := &captureSender{failUntil: map[string]int{"doomed": 99}}
	r := NewRouter(sender, 10000)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	done := r.Enqueue(High, Message{PlayerUID: 7, Type: "doomed"})
	err := await(t, done)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRouterStopped)
	assert.Empty(t, sender.types())
}

func TestRateLimitSpacesDispatches(t *testing.T) {
	sender := &captureSender{}
	r := NewRouter(sender, 20) // 50ms between sends

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	start := time.Now()
	var last <-chan error
	for i := 0; i < 4; i++ {
		last = r.Enqueue(High, Message{PlayerUID: int64(i), Type: "tick"})
	}
	require.NoError(t, await(t, last))
	// Four sends at 20/s need at least ~150ms of limiter spacing.
	assert.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond)
}

func TestStopFailsQueued(t *testing.T) {
	sender := &captureSender{}
	r := NewRouter(sender, 10000)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	// Messages enqueued after shutdown resolve when failRemaining ran;
	// those still queued at cancel resolve with ErrRouterStopped.
	pending := r.Enqueue(Low, Message{Type: "late"})
	select {
	case err := <-pending:
		assert.ErrorIs(t, err, ErrRouterStopped)
	case <-time.After(100 * time.Millisecond):
		// Router no longer running; late enqueues are never resolved.
		// Accept either behavior: the queue depth must reflect it.
		_, low := r.QueueDepths()
		assert.Equal(t, 1, low)
	}
}

func TestDrain(t *testing.T) {
	sender := &captureSender{}
	r := NewRouter(sender, 10000)

	for i := 0; i < 10; i++ {
		r.Enqueue(Low, Message{PlayerUID: int64(i), Type: "bulk"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer drainCancel()
	require.NoError(t, r.Drain(drainCtx))
	assert.Len(t, sender.types(), 10)
}
