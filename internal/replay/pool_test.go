package replay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cat echoes our request line back, which is a valid empty response
// with a matching id. That makes it a convenient stand-in parser.
func newEchoPool(t *testing.T, size int) *Pool {
	t.Helper()
	p, err := NewPool("cat", size)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestPoolParseRoundTrip(t *testing.T) {
	p := newEchoPool(t, 1)
	meta, err := p.Parse(context.Background(), "/tmp/some.rep")
	require.NoError(t, err)
	assert.Equal(t, Metadata{}, meta)

	// The worker went back to the pool and serves again.
	_, err = p.Parse(context.Background(), "/tmp/other.rep")
	require.NoError(t, err)
}

func TestPoolPing(t *testing.T) {
	p := newEchoPool(t, 1)
	assert.NoError(t, p.Ping(context.Background()))
}

func TestPoolReplacesDeadWorker(t *testing.T) {
	// true exits immediately, so every round-trip fails; the pool must
	// replace the worker each time instead of wedging.
	p, err := NewPool("true", 1)
	require.NoError(t, err)
	t.Cleanup(p.Close)

	for i := 0; i < 2; i++ {
		_, err := p.Parse(context.Background(), "/tmp/some.rep")
		assert.Error(t, err)
	}
}

func TestPoolTaskTimeout(t *testing.T) {
	// sh swallows the request line without producing output, which
	// looks exactly like a wedged parser.
	p, err := NewPool("sh", 1)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	p.timeout = 100 * time.Millisecond

	_, err = p.Parse(context.Background(), "/tmp/some.rep")
	assert.ErrorIs(t, err, ErrTaskTimeout)
}

func TestPoolRestart(t *testing.T) {
	p := newEchoPool(t, 2)
	require.NoError(t, p.Restart())
	_, err := p.Parse(context.Background(), "/tmp/some.rep")
	require.NoError(t, err)
}

func TestPoolRestartWithWorkerInFlight(t *testing.T) {
	p := newEchoPool(t, 1)

	// Check the only worker out, as a Parse in flight would.
	w, err := p.acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, p.Restart())

	// Returning the pre-restart worker must neither block nor
	// overfill the pool: it is retired and its slot refilled.
	released := make(chan struct{})
	go func() {
		p.release(w)
		close(released)
	}()
	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("release of an in-flight worker blocked after restart")
	}

	_, err = p.Parse(context.Background(), "/tmp/some.rep")
	require.NoError(t, err)
	assert.Len(t, p.idle, 1)
}

func TestPoolReplaceAfterRestartKeepsSize(t *testing.T) {
	p, err := NewPool("true", 1)
	require.NoError(t, err)
	t.Cleanup(p.Close)

	w, err := p.acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.Restart())

	// A failed flight that straddled the restart replaces into the
	// open slot rather than past capacity.
	p.replace(w)
	assert.Len(t, p.idle, 1)
}

func TestPoolClosedRejectsTasks(t *testing.T) {
	p, err := NewPool("cat", 1)
	require.NoError(t, err)
	p.Close()

	_, err = p.Parse(context.Background(), "/tmp/some.rep")
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.ErrorIs(t, p.Ping(context.Background()), ErrPoolClosed)
}

func TestPoolAcquireHonorsContext(t *testing.T) {
	p := newEchoPool(t, 1)

	// Occupy the only worker by never returning it: steal it directly.
	w := <-p.idle
	defer func() { p.idle <- w }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := p.Parse(ctx, "/tmp/some.rep")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
