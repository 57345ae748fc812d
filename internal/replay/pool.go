// Package replay ingests uploaded replay binaries: parsing happens in
// a sandboxed subprocess worker pool, and the parsed metadata is
// verified against the match record.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrPoolClosed occurs when a task is submitted after Close.
	ErrPoolClosed = errors.New("replay parser pool closed")
	// ErrTaskTimeout occurs when a parse task exceeds its deadline.
	ErrTaskTimeout = errors.New("replay parse task timed out")
)

// taskTimeout bounds a single parse round-trip; a worker that blows it
// is considered wedged and replaced.
const taskTimeout = 10 * time.Second

// pingInterval is how often the health monitor probes the pool.
const pingInterval = 30 * time.Second

// ParsedPlayer is one human player found in a replay.
type ParsedPlayer struct {
	Name string `json:"name"`
	Race string `json:"race"`
}

// Metadata is the parser's output for one replay file.
type Metadata struct {
	Players          []ParsedPlayer `json:"players"`
	Observers        []string       `json:"observers,omitempty"`
	MapName          string         `json:"map_name"`
	WinnerName       string         `json:"winner_name,omitempty"`
	DurationSeconds  int            `json:"duration_seconds"`
	CacheHandleCount int            `json:"cache_handle_count"`
}

// The wire protocol with the parser binary is one JSON object per
// line, requests on stdin and responses on stdout, correlated by id.
type parseRequest struct {
	ID   int64  `json:"id"`
	Op   string `json:"op"`
	Path string `json:"path,omitempty"`
}

type parseResponse struct {
	ID       int64     `json:"id"`
	Error    string    `json:"error,omitempty"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// worker is one parser subprocess. Requests are serialized per worker,
// so responses correlate FIFO. gen records the pool generation that
// started it; a worker returning from a flight that straddled a
// Restart is stale and gets retired instead of pooled.
type worker struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	out   *bufio.Reader
	gen   int
}

func startWorker(binary string) (*worker, error) {
	cmd := exec.Command(binary)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start parser worker: %w", err)
	}
	return &worker{cmd: cmd, stdin: stdin, out: bufio.NewReader(stdout)}, nil
}

func (w *worker) kill() {
	w.stdin.Close()
	if w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
	}
	_ = w.cmd.Wait()
}

type lineResult struct {
	line []byte
	err  error
}

func (w *worker) roundTrip(req parseRequest, timeout time.Duration) (parseResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return parseResponse{}, err
	}
	if _, err := w.stdin.Write(append(payload, '\n')); err != nil {
		return parseResponse{}, fmt.Errorf("worker write failed: %w", err)
	}

	ch := make(chan lineResult, 1)
	go func() {
		line, err := w.out.ReadBytes('\n')
		ch <- lineResult{line: line, err: err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			return parseResponse{}, fmt.Errorf("worker read failed: %w", r.err)
		}
		var resp parseResponse
		if err := json.Unmarshal(r.line, &resp); err != nil {
			return parseResponse{}, fmt.Errorf("malformed worker response: %w", err)
		}
		if resp.ID != req.ID {
			return parseResponse{}, fmt.Errorf("out-of-order worker response: got id %d, want %d", resp.ID, req.ID)
		}
		return resp, nil
	case <-time.After(timeout):
		return parseResponse{}, ErrTaskTimeout
	}
}

// Pool is a fixed-size set of parser subprocesses. A worker that
// errors, wedges or dies is killed and replaced; the periodic health
// probe restarts the whole pool when it stops answering pings.
type Pool struct {
	binary  string
	size    int
	timeout time.Duration

	mu     sync.Mutex
	idle   chan *worker
	closed bool
	// gen is bumped by Restart. Workers checked out across a restart
	// are replaced one-for-one when they come back, so the idle
	// channel never holds more than size workers and a release can
	// never block.
	gen int

	nextID atomic.Int64
}

// NewPool starts size parser subprocesses running the given binary.
func NewPool(binary string, size int) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	p := &Pool{binary: binary, size: size, timeout: taskTimeout, idle: make(chan *worker, size)}
	for i := 0; i < size; i++ {
		w, err := startWorker(binary)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.idle <- w
	}
	log.Printf("[REPLAY_POOL] started %d parser worker(s) (%s)", size, binary)
	return p, nil
}

func (p *Pool) acquire(ctx context.Context) (*worker, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	idle := p.idle
	p.mu.Unlock()

	select {
	case w := <-idle:
		return w, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// release returns a healthy worker; replace swaps in a fresh one after
// a failure. Both keep the pool at its configured size.
func (p *Pool) release(w *worker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		w.kill()
		return
	}
	if w.gen != p.gen {
		// The pool restarted while this worker was in flight; Restart
		// left its slot open, so retire it and fill the slot fresh.
		w.kill()
		p.spawnLocked()
		return
	}
	p.offerLocked(w)
}

func (p *Pool) replace(w *worker) {
	w.kill()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	log.Printf("[REPLAY_POOL] worker replaced")
	p.spawnLocked()
}

// spawnLocked starts a fresh worker for an open slot. On start failure
// the slot stays empty until the health monitor restarts the pool.
func (p *Pool) spawnLocked() {
	fresh, err := startWorker(p.binary)
	if err != nil {
		log.Printf("[REPLAY_POOL] worker restart failed: %v", err)
		return
	}
	fresh.gen = p.gen
	p.offerLocked(fresh)
}

// offerLocked hands a worker back to the idle channel without ever
// blocking under the pool mutex.
func (p *Pool) offerLocked(w *worker) {
	select {
	case p.idle <- w:
	default:
		log.Printf("[REPLAY_POOL] idle pool full, retiring surplus worker")
		w.kill()
	}
}

// Parse hands a replay file to a worker and returns the parsed
// metadata. A failed or timed-out worker is replaced.
func (p *Pool) Parse(ctx context.Context, path string) (Metadata, error) {
	w, err := p.acquire(ctx)
	if err != nil {
		return Metadata{}, err
	}
	req := parseRequest{ID: p.nextID.Add(1), Op: "parse", Path: path}
	resp, err := w.roundTrip(req, p.timeout)
	if err != nil {
		p.replace(w)
		return Metadata{}, err
	}
	p.release(w)

	if resp.Error != "" {
		return Metadata{}, fmt.Errorf("replay parse failed: %s", resp.Error)
	}
	if resp.Metadata == nil {
		return Metadata{}, nil
	}
	return *resp.Metadata, nil
}

// Ping probes one worker with a trivial task. An error means the pool
// is wedged or dead.
func (p *Pool) Ping(ctx context.Context) error {
	w, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	req := parseRequest{ID: p.nextID.Add(1), Op: "ping"}
	if _, err := w.roundTrip(req, p.timeout); err != nil {
		p.replace(w)
		return err
	}
	p.release(w)
	return nil
}

// Restart retires every idle worker and starts replacements. Workers
// checked out for in-flight tasks keep their slots open; release
// retires them on return and fills the slot then, so the pool never
// exceeds its configured size.
func (p *Pool) Restart() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.gen++
	drained := p.drainLocked()
	for i := 0; i < drained; i++ {
		w, err := startWorker(p.binary)
		if err != nil {
			return err
		}
		w.gen = p.gen
		p.idle <- w
	}
	log.Printf("[REPLAY_POOL] pool restarted (%d idle replaced, %d in flight)", drained, p.size-drained)
	return nil
}

// Run probes the pool on an interval and restarts it when a probe
// fails. Should be run as a goroutine.
func (p *Pool) Run(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := p.Ping(ctx); err != nil && !errors.Is(err, ErrPoolClosed) {
				log.Printf("[REPLAY_POOL] health probe failed, restarting pool: %v", err)
				if err := p.Restart(); err != nil && !errors.Is(err, ErrPoolClosed) {
					log.Printf("[REPLAY_POOL] pool restart failed: %v", err)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pool) drainLocked() int {
	drained := 0
	for {
		select {
		case w := <-p.idle:
			w.kill()
			drained++
		default:
			return drained
		}
	}
}

// Close kills all workers. In-flight tasks may still fail their
// round-trips.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.drainLocked()
	log.Printf("[REPLAY_POOL] closed")
}
