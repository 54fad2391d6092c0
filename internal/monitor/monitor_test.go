package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/five82/lantern/internal/source"
)

func TestClassify(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Second)

	tests := []struct {
		name string
		prev Snapshot
		cur  Snapshot
		want Change
	}{
		{"grew", Snapshot{100, t0}, Snapshot{150, t1}, Change{Kind: Grew, Range: Range{100, 150}}},
		{"truncated", Snapshot{100, t0}, Snapshot{40, t1}, Change{Kind: Truncated}},
		{"truncated to zero", Snapshot{100, t0}, Snapshot{0, t1}, Change{Kind: Truncated}},
		{"same mtime same size", Snapshot{100, t0}, Snapshot{100, t0}, Change{Kind: NoOp}},
		{"same mtime larger size", Snapshot{100, t0}, Snapshot{150, t0}, Change{Kind: NoOp}},
		{"same mtime smaller size", Snapshot{100, t0}, Snapshot{40, t0}, Change{Kind: NoOp}},
		{"same size new mtime", Snapshot{100, t0}, Snapshot{100, t1}, Change{Kind: SameSizeModified}},
		{"from zero snapshot", Snapshot{}, Snapshot{10, t0}, Change{Kind: Grew, Range: Range{0, 10}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.prev, tt.cur); got != tt.want {
				t.Errorf("Classify() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	baseInterval := 2 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, 2 * time.Second},
		{"negative failures", -1, 2 * time.Second},
		{"one failure", 1, 4 * time.Second},
		{"two failures", 2, 8 * time.Second},
		{"three failures", 3, 16 * time.Second},
		{"four failures capped", 4, 30 * time.Second}, // Would be 32s, capped to 30s
		{"many failures capped", 10, 30 * time.Second},
		{"huge failure count", 100, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(tt.failures, baseInterval)
			if got != tt.want {
				t.Errorf("calculateBackoff(%d, %v) = %v, want %v", tt.failures, baseInterval, got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff_MaxCap(t *testing.T) {
	baseInterval := time.Second
	for failures := 0; failures <= 70; failures++ {
		got := calculateBackoff(failures, baseInterval)
		if got > maxBackoff {
			t.Errorf("calculateBackoff(%d, %v) = %v, exceeds maxBackoff %v", failures, baseInterval, got, maxBackoff)
		}
	}
}

type flakyStater struct {
	mu   sync.Mutex
	info source.Info
	err  error
}

func (f *flakyStater) Stat(context.Context) (source.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info, f.err
}

func (f *flakyStater) set(info source.Info, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.info, f.err = info, err
}

func TestPoll_UpdatesSnapshot(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	st := &flakyStater{info: source.Info{Size: 150, ModTime: t0.Add(time.Second)}}
	m := New(st, Options{})
	m.Reset(Snapshot{Size: 100, ModTime: t0})

	ev := m.Poll(context.Background())
	if ev.Err != nil {
		t.Fatalf("Poll() err = %v", ev.Err)
	}
	if ev.Change.Kind != Grew || ev.Change.Range != (Range{100, 150}) {
		t.Fatalf("Poll() change = %+v, want Grew{100,150}", ev.Change)
	}
	if got := m.Last(); got.Size != 150 {
		t.Fatalf("Last().Size = %d, want 150", got.Size)
	}

	// Unchanged source classifies as a no-op on the next poll.
	if ev := m.Poll(context.Background()); ev.Change.Kind != NoOp {
		t.Fatalf("second Poll() = %v, want no-op", ev.Change.Kind)
	}
}

func TestRetry_ReclassifiesChange(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	st := &flakyStater{info: source.Info{Size: 150, ModTime: t0.Add(time.Second)}}
	m := New(st, Options{})
	m.Reset(Snapshot{Size: 100, ModTime: t0})

	if ev := m.Poll(context.Background()); ev.Change.Kind != Grew {
		t.Fatalf("Poll() = %v, want grew", ev.Change.Kind)
	}
	m.Retry(Snapshot{Size: 100, ModTime: t0})
	if m.Failures() != 1 {
		t.Fatalf("Failures() after Retry = %d, want 1", m.Failures())
	}

	ev := m.Poll(context.Background())
	if ev.Change.Kind != Grew || ev.Change.Range != (Range{100, 150}) {
		t.Fatalf("Poll() after Retry = %+v, want Grew{100,150}", ev.Change)
	}
	if m.Failures() != 0 {
		t.Fatalf("Failures() after successful poll = %d, want 0", m.Failures())
	}
}

func TestPoll_FailureKeepsSnapshot(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	boom := errors.New("stat failed")
	st := &flakyStater{err: boom}
	m := New(st, Options{})
	m.Reset(Snapshot{Size: 100, ModTime: t0})

	for i := 1; i <= 2; i++ {
		ev := m.Poll(context.Background())
		if !errors.Is(ev.Err, boom) {
			t.Fatalf("Poll() err = %v, want %v", ev.Err, boom)
		}
		if ev.Change.Kind != NoOp {
			t.Fatalf("failed Poll() change = %v, want no-op", ev.Change.Kind)
		}
		if m.Failures() != i {
			t.Fatalf("Failures() = %d, want %d", m.Failures(), i)
		}
	}
	if got := m.Last(); got.Size != 100 || !got.ModTime.Equal(t0) {
		t.Fatalf("Last() = %+v, want unchanged", got)
	}

	// A failed poll must not turn into a truncation once the source recovers.
	st.set(source.Info{Size: 100, ModTime: t0}, nil)
	if ev := m.Poll(context.Background()); ev.Err != nil || ev.Change.Kind != NoOp {
		t.Fatalf("recovered Poll() = %+v", ev)
	}
	if m.Failures() != 0 {
		t.Fatalf("Failures() = %d after recovery, want 0", m.Failures())
	}
}

func TestMonitor_StartStop(t *testing.T) {
	mem := source.NewMemory("m", []byte("a\n"))
	info, _ := mem.Stat(context.Background())

	wake := make(chan struct{}, 1)
	m := New(mem, Options{Interval: time.Hour, Wake: wake})

	events := make(chan Event, 8)
	if err := m.Start(context.Background(), SnapshotOf(info), func(ev Event) { events <- ev }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if m.State() != Watching {
		t.Fatalf("State() = %v, want watching", m.State())
	}
	if err := m.Start(context.Background(), Snapshot{}, nil); !errors.Is(err, ErrRunning) {
		t.Fatalf("second Start() err = %v, want ErrRunning", err)
	}

	mem.Append([]byte("b\n"))
	wake <- struct{}{}

	select {
	case ev := <-events:
		if ev.Change.Kind != Grew || ev.Change.Range != (Range{2, 4}) {
			t.Fatalf("event = %+v, want Grew{2,4}", ev.Change)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event after wake")
	}

	m.Stop()
	if m.State() != Idle {
		t.Fatalf("State() = %v after Stop, want idle", m.State())
	}
	m.Stop()
}

func TestMonitor_NoEventAfterStop(t *testing.T) {
	mem := source.NewMemory("m", nil)
	m := New(mem, Options{Interval: time.Millisecond})

	var stopped atomic.Bool
	var late atomic.Int64
	if err := m.Start(context.Background(), Snapshot{}, func(Event) {
		if stopped.Load() {
			late.Add(1)
		}
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for range 20 {
		mem.Append([]byte("x\n"))
		time.Sleep(time.Millisecond)
	}
	m.Stop()
	stopped.Store(true)
	time.Sleep(20 * time.Millisecond)

	if n := late.Load(); n != 0 {
		t.Fatalf("%d events emitted after Stop", n)
	}
}

func TestMonitor_ParentCancelStopsLoop(t *testing.T) {
	mem := source.NewMemory("m", nil)
	m := New(mem, Options{Interval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	if err := m.Start(ctx, Snapshot{}, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after parent cancel")
	}
}

func TestKindString(t *testing.T) {
	if Grew.String() != "grew" || SameSizeModified.String() != "same-size-modified" {
		t.Fatal("unexpected Kind names")
	}
	if Kind(42).String() != "kind(42)" {
		t.Fatalf("Kind(42).String() = %q", Kind(42).String())
	}
}
