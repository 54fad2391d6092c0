package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/five82/lantern/internal/filter"
	"github.com/five82/lantern/internal/format"
	"github.com/five82/lantern/internal/monitor"
	"github.com/five82/lantern/internal/source"
	"github.com/five82/lantern/internal/state"
)

const hdfsLog = "2015-10-18 18:01:47,978 ERROR org.apache.Foo: failed\n" +
	"java.lang.IllegalStateException: boom\n" +
	"\tat org.apache.Foo.run(Foo.java:10)\n" +
	"2015-10-18 18:01:48,001 INFO org.apache.Foo: recovered\n"

func openSession(t *testing.T, content string) (*Session, *source.Memory) {
	t.Helper()
	mem := source.NewMemory("mem", []byte(content))
	s := New(Options{Registry: format.NewDefaultRegistry()})
	t.Cleanup(s.Close)
	if err := s.Open(context.Background(), mem); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, mem
}

func growEvent(t *testing.T, mem *source.Memory, from int64) monitor.Event {
	t.Helper()
	info, err := mem.Stat(context.Background())
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	return monitor.Event{
		Change:   monitor.Change{Kind: monitor.Grew, Range: monitor.Range{From: from, To: info.Size}},
		Snapshot: monitor.SnapshotOf(info),
	}
}

func TestOpen_DetectsFormatAndParsesLines(t *testing.T) {
	s, _ := openSession(t, hdfsLog)

	if s.FormatID() != "hdfs-v2" {
		t.Fatalf("FormatID() = %q, want hdfs-v2", s.FormatID())
	}
	total, err := s.TotalLines()
	if err != nil || total != 4 {
		t.Fatalf("TotalLines() = %d, %v; want 4", total, err)
	}

	p, ok, err := s.Line(context.Background(), 1)
	if err != nil || !ok || !p.Structured() {
		t.Fatalf("Line(1) = %+v, %v, %v", p, ok, err)
	}
	if lvl, _ := p.Fields.Get("level"); lvl != "ERROR" {
		t.Fatalf("level = %q, want ERROR", lvl)
	}
	p, _, _ = s.Line(context.Background(), 3)
	if p.Structured() || p.Raw != "\tat org.apache.Foo.run(Foo.java:10)" {
		t.Fatalf("Line(3) = %+v, want continuation", p)
	}
	if _, ok, err := s.Line(context.Background(), 99); ok || err != nil {
		t.Fatalf("Line(99) ok=%v err=%v; want absent", ok, err)
	}

	snap := s.Store().Snapshot()
	if snap.Status.FormatName != "HDFS v2" || snap.Status.TotalLines != 4 || snap.Status.Building {
		t.Fatalf("status = %+v", snap.Status)
	}
}

func TestOpen_UnknownFormat(t *testing.T) {
	s, _ := openSession(t, "plain words\nmore words\n")
	if s.FormatID() != "" {
		t.Fatalf("FormatID() = %q, want empty", s.FormatID())
	}
	p, _, _ := s.Line(context.Background(), 1)
	if p.Structured() {
		t.Fatal("line parsed without a format")
	}
}

func TestNoSource(t *testing.T) {
	s := New(Options{})
	if _, err := s.TotalLines(); !errors.Is(err, ErrNoSource) {
		t.Fatalf("TotalLines() err = %v, want ErrNoSource", err)
	}
	if _, _, err := s.Line(context.Background(), 1); !errors.Is(err, ErrNoSource) {
		t.Fatalf("Line() err = %v, want ErrNoSource", err)
	}
	if err := s.Watch(context.Background()); !errors.Is(err, ErrNoSource) {
		t.Fatalf("Watch() err = %v, want ErrNoSource", err)
	}
}

func TestWindowAndFiltered(t *testing.T) {
	s, _ := openSession(t, hdfsLog)

	lines, err := s.Window(context.Background(), 2, 3)
	if err != nil || len(lines) != 2 || lines[0].Number != 2 {
		t.Fatalf("Window(2, 3) = %+v, %v", lines, err)
	}

	spec := filter.Spec{"level": filter.OneOf{Values: []string{"error"}}}

	// The window starts on continuation lines; they inherit line 1's match.
	got, sum, err := s.Filtered(context.Background(), 2, 4, spec)
	if err != nil {
		t.Fatalf("Filtered: %v", err)
	}
	if len(got) != 2 || got[0].Number != 2 || got[1].Number != 3 {
		t.Fatalf("Filtered(2, 4) lines = %+v", got)
	}
	if sum != (filter.Summary{Total: 3, Filtered: 2, StructuredFiltered: 0}) {
		t.Fatalf("Filtered summary = %+v", sum)
	}

	spec = filter.Spec{"level": filter.OneOf{Values: []string{"info"}}}
	got, _, err = s.Filtered(context.Background(), 2, 4, spec)
	if err != nil || len(got) != 1 || got[0].Number != 4 {
		t.Fatalf("Filtered(info) = %+v, %v", got, err)
	}
}

func TestScan(t *testing.T) {
	s, _ := openSession(t, hdfsLog)

	var seen []int
	sum, err := s.Scan(context.Background(), filter.Spec{"level": filter.OneOf{Values: []string{"ERROR"}}}, func(p format.ParsedLine) error {
		seen = append(seen, p.Number)
		return nil
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(seen) != 3 || sum != (filter.Summary{Total: 4, Filtered: 3, StructuredFiltered: 1}) {
		t.Fatalf("Scan seen %v summary %+v", seen, sum)
	}

	stop := errors.New("stop")
	_, err = s.Scan(context.Background(), nil, func(format.ParsedLine) error { return stop })
	if !errors.Is(err, stop) {
		t.Fatalf("Scan() err = %v, want stop", err)
	}
}

func TestApply_GrewExtendsIndex(t *testing.T) {
	s, mem := openSession(t, hdfsLog)

	mem.Append([]byte("2015-10-18 18:01:49,000 WARN org.apache.Foo: late\n\tmore\n"))
	if err := s.Apply(context.Background(), growEvent(t, mem, int64(len(hdfsLog)))); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	total, _ := s.TotalLines()
	if total != 6 {
		t.Fatalf("TotalLines() = %d, want 6", total)
	}
	snap := s.Store().Snapshot()
	if snap.Status.NewLines != 2 || snap.Status.LastChange != "grew" || snap.Status.TotalLines != 6 {
		t.Fatalf("status = %+v", snap.Status)
	}
	if len(snap.Notices) == 0 || snap.Notices[len(snap.Notices)-1] != "2 new lines" {
		t.Fatalf("notices = %v", snap.Notices)
	}
}

func TestApply_TruncatedRebuilds(t *testing.T) {
	s, mem := openSession(t, hdfsLog)

	mem.Replace([]byte("Jun 14 15:16:01 combo sshd[1]: hello\n"))
	info, _ := mem.Stat(context.Background())
	ev := monitor.Event{Change: monitor.Change{Kind: monitor.Truncated}, Snapshot: monitor.SnapshotOf(info)}
	if err := s.Apply(context.Background(), ev); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	total, _ := s.TotalLines()
	if total != 1 {
		t.Fatalf("TotalLines() = %d, want 1", total)
	}
	if s.FormatID() != "syslog" {
		t.Fatalf("FormatID() = %q after rebuild, want syslog", s.FormatID())
	}
	p, _, _ := s.Line(context.Background(), 1)
	if msg, _ := p.Fields.Get("message"); msg != "hello" {
		t.Fatalf("message = %q, want hello", msg)
	}
}

func TestApply_FailedPollLeavesIndex(t *testing.T) {
	s, _ := openSession(t, hdfsLog)

	for range 2 {
		if err := s.Apply(context.Background(), monitor.Event{Err: errors.New("stat failed")}); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}
	total, _ := s.TotalLines()
	if total != 4 {
		t.Fatalf("TotalLines() = %d, want 4", total)
	}
	if snap := s.Store().Snapshot(); !snap.IsOffline() {
		t.Fatalf("snapshot not offline after two failures: %+v", snap)
	}

	// A later successful no-op poll clears the error state.
	if err := s.Apply(context.Background(), monitor.Event{Change: monitor.Change{Kind: monitor.NoOp}}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if snap := s.Store().Snapshot(); snap.ConsecutiveFailures != 0 || snap.LastError != nil {
		t.Fatalf("error state not cleared: %+v", snap)
	}
}

func TestApply_SameSizeModifiedIsNoOp(t *testing.T) {
	s, mem := openSession(t, "a\nb\n")
	mem.Replace([]byte("x\ny\n"))
	info, _ := mem.Stat(context.Background())
	ev := monitor.Event{Change: monitor.Change{Kind: monitor.SameSizeModified}, Snapshot: monitor.SnapshotOf(info)}
	if err := s.Apply(context.Background(), ev); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	// The index is left as it was.
	if total, _ := s.TotalLines(); total != 2 {
		t.Fatalf("TotalLines() = %d, want 2", total)
	}
}

var errIODown = errors.New("io down")

// flakySource fails every ReadRange while fail is set. Stat keeps working.
type flakySource struct {
	*source.Memory
	fail   atomic.Bool
	failed atomic.Int32
}

func newFlaky(content string) *flakySource {
	return &flakySource{Memory: source.NewMemory("flaky", []byte(content))}
}

func (f *flakySource) ReadRange(ctx context.Context, start, end int64) ([]byte, error) {
	if f.fail.Load() {
		f.failed.Add(1)
		return nil, errIODown
	}
	return f.Memory.ReadRange(ctx, start, end)
}

func openFlaky(t *testing.T, content string, poll time.Duration) (*Session, *flakySource) {
	t.Helper()
	src := newFlaky(content)
	s := New(Options{Registry: format.NewDefaultRegistry(), PollInterval: poll})
	t.Cleanup(s.Close)
	if err := s.Open(context.Background(), src); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, src
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func totalIs(s *Session, want int) func() bool {
	return func() bool {
		total, err := s.TotalLines()
		return err == nil && total == want
	}
}

func TestApply_FailedExtendKeepsIndex(t *testing.T) {
	s, src := openFlaky(t, "a\n", 0)

	src.Append([]byte("b\nc\n"))
	ev := growEvent(t, src.Memory, 2)
	src.fail.Store(true)
	if err := s.Apply(context.Background(), ev); !errors.Is(err, errIODown) {
		t.Fatalf("Apply() err = %v, want %v", err, errIODown)
	}
	if total, err := s.TotalLines(); err != nil || total != 1 {
		t.Fatalf("TotalLines() = %d, %v; want 1", total, err)
	}
	if got := s.Baseline().Size; got != 2 {
		t.Fatalf("Baseline().Size = %d after failed extend, want 2", got)
	}

	src.fail.Store(false)
	if err := s.Apply(context.Background(), ev); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if total, _ := s.TotalLines(); total != 3 {
		t.Fatalf("TotalLines() = %d, want 3", total)
	}
	if got := s.Baseline().Size; got != 6 {
		t.Fatalf("Baseline().Size = %d, want 6", got)
	}
}

func TestApply_FailedRebuildKeepsIndex(t *testing.T) {
	s, src := openFlaky(t, "a\nb\nc\n", 0)

	src.Truncate(2)
	info, _ := src.Stat(context.Background())
	ev := monitor.Event{Change: monitor.Change{Kind: monitor.Truncated}, Snapshot: monitor.SnapshotOf(info)}
	src.fail.Store(true)
	if err := s.Apply(context.Background(), ev); !errors.Is(err, errIODown) {
		t.Fatalf("Apply() err = %v, want %v", err, errIODown)
	}
	// The previous index is still served.
	if total, err := s.TotalLines(); err != nil || total != 3 {
		t.Fatalf("TotalLines() = %d, %v; want 3", total, err)
	}
	if got := s.Baseline().Size; got != 6 {
		t.Fatalf("Baseline().Size = %d after failed rebuild, want 6", got)
	}

	src.fail.Store(false)
	if err := s.Apply(context.Background(), ev); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if total, err := s.TotalLines(); err != nil || total != 1 {
		t.Fatalf("TotalLines() = %d, %v; want 1", total, err)
	}

	src.Append([]byte("x\ny\n"))
	if err := s.Apply(context.Background(), growEvent(t, src.Memory, 2)); err != nil {
		t.Fatalf("Apply after rebuild: %v", err)
	}
	if total, _ := s.TotalLines(); total != 3 {
		t.Fatalf("TotalLines() = %d, want 3", total)
	}
}

func TestWatch_RetriesFailedExtend(t *testing.T) {
	s, src := openFlaky(t, "a\n", 10*time.Millisecond)
	if err := s.Watch(context.Background()); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	src.fail.Store(true)
	src.Append([]byte("b\nc\n"))
	waitFor(t, "a failed read", func() bool { return src.failed.Load() > 0 })
	src.fail.Store(false)

	waitFor(t, "appended lines to be indexed", totalIs(s, 3))
}

func TestWatch_RetriesFailedRebuild(t *testing.T) {
	s, src := openFlaky(t, "a\nb\nc\n", 10*time.Millisecond)
	if err := s.Watch(context.Background()); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	src.fail.Store(true)
	src.Truncate(2)
	waitFor(t, "a failed read", func() bool { return src.failed.Load() > 0 })
	if total, err := s.TotalLines(); err != nil || total != 3 {
		t.Fatalf("TotalLines() during failed rebuild = %d, %v; want 3", total, err)
	}
	src.fail.Store(false)

	waitFor(t, "rebuild after truncation", totalIs(s, 1))
	src.Append([]byte("x\ny\n"))
	waitFor(t, "growth after rebuild", totalIs(s, 3))
}

func TestOpen_FailureKeepsWatchingPrevious(t *testing.T) {
	mem := source.NewMemory("mem", []byte("a\n"))
	store := &state.Store{}
	s := New(Options{Store: store, PollInterval: 10 * time.Millisecond})
	t.Cleanup(s.Close)
	if err := s.Open(context.Background(), mem); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Watch(context.Background()); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	broken := newFlaky("x\n")
	broken.fail.Store(true)
	if err := s.Open(context.Background(), broken); !errors.Is(err, errIODown) {
		t.Fatalf("Open(broken) err = %v, want %v", err, errIODown)
	}
	if s.Source().Name() != "mem" || !s.Following() {
		t.Fatalf("Source() = %q, Following() = %v; want mem still followed", s.Source().Name(), s.Following())
	}
	if st := store.Snapshot().Status; st.Source != "mem" || !st.Following {
		t.Fatalf("status = %+v, want mem following", st)
	}

	mem.Append([]byte("b\n"))
	waitFor(t, "previous source to keep following", totalIs(s, 2))
}

type blockingSource struct {
	*source.Memory
	once    sync.Once
	started chan struct{}
}

func (b *blockingSource) ReadRange(ctx context.Context, start, end int64) ([]byte, error) {
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestOpen_CancelsSupersededBuild(t *testing.T) {
	s := New(Options{Registry: format.NewDefaultRegistry()})
	t.Cleanup(s.Close)

	slow := &blockingSource{Memory: source.NewMemory("slow", []byte("never\n")), started: make(chan struct{})}
	done := make(chan error, 1)
	go func() { done <- s.Open(context.Background(), slow) }()

	select {
	case <-slow.started:
	case <-time.After(5 * time.Second):
		t.Fatal("slow build never started")
	}

	fast := source.NewMemory("fast", []byte("one\ntwo\n"))
	if err := s.Open(context.Background(), fast); err != nil {
		t.Fatalf("Open(fast): %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("superseded Open() err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("superseded Open did not return")
	}

	if s.Source().Name() != "fast" {
		t.Fatalf("Source() = %q, want fast", s.Source().Name())
	}
	if total, _ := s.TotalLines(); total != 2 {
		t.Fatalf("TotalLines() = %d, want 2", total)
	}
}

func TestWatch_FollowsGrowth(t *testing.T) {
	mem := source.NewMemory("mem", []byte("a\n"))
	store := &state.Store{}
	s := New(Options{Store: store, PollInterval: 10 * time.Millisecond})
	t.Cleanup(s.Close)
	if err := s.Open(context.Background(), mem); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Watch(context.Background()); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if err := s.Watch(context.Background()); !errors.Is(err, monitor.ErrRunning) {
		t.Fatalf("second Watch() err = %v, want ErrRunning", err)
	}
	if !s.Following() || !store.Snapshot().Status.Following {
		t.Fatal("session not following after Watch")
	}

	mem.Append([]byte(strings.Repeat("b\n", 3)))

	deadline := time.Now().Add(5 * time.Second)
	for {
		if total, _ := s.TotalLines(); total == 4 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("index did not follow growth")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.StopWatching()
	if s.Following() || store.Snapshot().Status.Following {
		t.Fatal("still following after StopWatching")
	}
}

func TestSetFormat(t *testing.T) {
	s, _ := openSession(t, "ERROR: disk full\n")
	if err := s.SetFormat("nope"); err == nil {
		t.Fatal("SetFormat(unknown) err = nil")
	}
	if err := s.Registry().Register(format.Definition{
		ID:       "simple",
		Patterns: []string{`^(?<level>[A-Z]+): (?<msg>.*)$`},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.SetFormat("simple"); err != nil {
		t.Fatalf("SetFormat: %v", err)
	}
	// Pinned formats survive Detect.
	if id, _ := s.Detect(context.Background()); id != "simple" {
		t.Fatalf("Detect() = %q, want pinned simple", id)
	}
	p, _, _ := s.Line(context.Background(), 1)
	if msg, _ := p.Fields.Get("msg"); msg != "disk full" {
		t.Fatalf("msg = %q", msg)
	}
}
