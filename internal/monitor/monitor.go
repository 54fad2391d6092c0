package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/five82/lantern/internal/source"
)

const (
	// DefaultInterval is the poll cadence when none is configured.
	DefaultInterval = time.Second
	maxBackoff      = 30 * time.Second
)

// ErrRunning is returned by Start when the monitor is already watching.
var ErrRunning = errors.New("monitor already running")

// Kind classifies the difference between two snapshots.
type Kind int

const (
	NoOp Kind = iota
	Truncated
	Grew
	SameSizeModified
)

func (k Kind) String() string {
	switch k {
	case NoOp:
		return "no-op"
	case Truncated:
		return "truncated"
	case Grew:
		return "grew"
	case SameSizeModified:
		return "same-size-modified"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Range is a half-open byte range [From, To).
type Range struct {
	From int64
	To   int64
}

// Snapshot is the observed size and modification time of a source.
type Snapshot struct {
	Size    int64
	ModTime time.Time
}

// SnapshotOf converts a source observation.
func SnapshotOf(info source.Info) Snapshot {
	return Snapshot{Size: info.Size, ModTime: info.ModTime}
}

// Change is the result of one classification. Range is set only for Grew.
type Change struct {
	Kind  Kind
	Range Range
}

// Classify compares the previous and current snapshots.
func Classify(prev, cur Snapshot) Change {
	switch {
	case cur.ModTime.Equal(prev.ModTime):
		return Change{Kind: NoOp}
	case cur.Size < prev.Size:
		return Change{Kind: Truncated}
	case cur.Size > prev.Size:
		return Change{Kind: Grew, Range: Range{From: prev.Size, To: cur.Size}}
	default:
		return Change{Kind: SameSizeModified}
	}
}

// Event is emitted once per poll. When Err is set the poll failed and Change
// is a NoOp.
type Event struct {
	Change   Change
	Snapshot Snapshot
	Err      error
	At       time.Time
}

// Stater reports the current size and modification time of a source.
type Stater interface {
	Stat(ctx context.Context) (source.Info, error)
}

// State is the lifecycle state of a Monitor.
type State int

const (
	Idle State = iota
	Watching
)

func (s State) String() string {
	if s == Watching {
		return "watching"
	}
	return "idle"
}

// Options configures a Monitor.
type Options struct {
	Interval time.Duration
	// Wake, when non-nil, triggers an immediate poll on every receive.
	Wake   <-chan struct{}
	Logger *slog.Logger
}

// Monitor polls a source and classifies each observed change.
type Monitor struct {
	src      Stater
	interval time.Duration
	wake     <-chan struct{}
	logger   *slog.Logger

	pollMu sync.Mutex

	mu       sync.Mutex
	last     Snapshot
	failures int
	state    State
	cancel   context.CancelFunc
	done     chan struct{}
}

// New returns an idle Monitor for src.
func New(src Stater, opts Options) *Monitor {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{src: src, interval: interval, wake: opts.Wake, logger: logger}
}

// Reset replaces the stored snapshot, typically after a full rebuild.
func (m *Monitor) Reset(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = snap
	m.failures = 0
}

// Retry restores snap as the stored snapshot after a change could not be
// applied, so the next poll classifies the same change again. The failure
// counts toward the backoff of the next poll.
func (m *Monitor) Retry(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = snap
	m.failures++
}

// Last returns the stored snapshot.
func (m *Monitor) Last() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Failures returns the number of consecutive failed polls.
func (m *Monitor) Failures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

// State reports whether the poll loop is running.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Poll stats the source once and classifies the result against the stored
// snapshot. On success the snapshot is replaced by the observation.
func (m *Monitor) Poll(ctx context.Context) Event {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()

	now := time.Now()
	info, err := m.src.Stat(ctx)
	if err != nil {
		m.mu.Lock()
		m.failures++
		failures := m.failures
		m.mu.Unlock()
		m.logger.Warn("source poll failed", "error", err, "consecutive_failures", failures)
		return Event{Change: Change{Kind: NoOp}, Snapshot: m.Last(), Err: err, At: now}
	}

	cur := SnapshotOf(info)
	m.mu.Lock()
	change := Classify(m.last, cur)
	m.last = cur
	m.failures = 0
	m.mu.Unlock()

	m.logger.Debug("source polled", "change", change.Kind.String(), "size", cur.Size)
	return Event{Change: change, Snapshot: cur, At: now}
}

// Start sets the baseline snapshot and launches the poll loop. emit is called
// from the loop goroutine once per poll and must not call Stop.
func (m *Monitor) Start(ctx context.Context, initial Snapshot, emit func(Event)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Watching {
		return ErrRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.last = initial
	m.failures = 0
	m.state = Watching
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(loopCtx, emit, m.done)
	return nil
}

// Stop halts the poll loop and waits for it to exit. No event is emitted
// after Stop returns. Stopping an idle monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state != Watching {
		m.mu.Unlock()
		return
	}
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done

	m.mu.Lock()
	m.state = Idle
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()
}

func (m *Monitor) run(ctx context.Context, emit func(Event), done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(m.interval)
	defer timer.Stop()
	wake := m.wake

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case _, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
			timer.Stop()
		}

		ev := m.Poll(ctx)
		if ctx.Err() != nil {
			return
		}
		if emit != nil {
			emit(ev)
		}
		timer.Reset(calculateBackoff(m.Failures(), m.interval))
	}
}

// calculateBackoff doubles the base interval for every consecutive failure,
// capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	if base >= maxBackoff {
		return base
	}
	d := base
	for range failures {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
