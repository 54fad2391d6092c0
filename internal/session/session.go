package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/five82/lantern/internal/filter"
	"github.com/five82/lantern/internal/format"
	"github.com/five82/lantern/internal/lineindex"
	"github.com/five82/lantern/internal/monitor"
	"github.com/five82/lantern/internal/source"
	"github.com/five82/lantern/internal/state"
)

const (
	// DefaultSampleLines is the number of leading lines used for detection.
	DefaultSampleLines = 1000
	batchLines         = 512
	lookbackLines      = 4096
)

var (
	// ErrNoSource is returned when no source has been opened.
	ErrNoSource = errors.New("no source open")
	// ErrSuperseded is returned by Open when another Open replaced it before
	// its build finished.
	ErrSuperseded = errors.New("open superseded by a newer source")
)

// Options configures a Session.
type Options struct {
	Registry     *format.Registry
	Store        *state.Store
	Index        lineindex.Options
	SampleLines  int
	PollInterval time.Duration
	// WatchFiles enables filesystem notifications for local files in
	// addition to polling.
	WatchFiles bool
	Logger     *slog.Logger
}

// Session is the state of one open log source.
type Session struct {
	registry     *format.Registry
	store        *state.Store
	indexOpts    lineindex.Options
	sampleLines  int
	pollInterval time.Duration
	watchFiles   bool
	logger       *slog.Logger

	mu          sync.Mutex
	src         source.Source
	ix          *lineindex.Indexer
	formatID    string
	pinned      bool
	baseline    monitor.Snapshot
	openSeq     uint64
	cancelBuild context.CancelFunc
	mon         *monitor.Monitor
	cancelWatch context.CancelFunc
	following   bool

	applyMu sync.Mutex
}

// New returns a Session with no source open.
func New(opts Options) *Session {
	registry := opts.Registry
	if registry == nil {
		registry = format.NewRegistry()
	}
	store := opts.Store
	if store == nil {
		store = &state.Store{}
	}
	sample := opts.SampleLines
	if sample <= 0 {
		sample = DefaultSampleLines
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	indexOpts := opts.Index
	if indexOpts.Logger == nil {
		indexOpts.Logger = logger
	}
	return &Session{
		registry:     registry,
		store:        store,
		indexOpts:    indexOpts,
		sampleLines:  sample,
		pollInterval: opts.PollInterval,
		watchFiles:   opts.WatchFiles,
		logger:       logger,
	}
}

// Registry returns the format registry.
func (s *Session) Registry() *format.Registry { return s.registry }

// Store returns the status store.
func (s *Session) Store() *state.Store { return s.store }

// Open builds the index for src and detects its format. Any build still
// running for a previous Open is cancelled and the previous monitor stopped.
func (s *Session) Open(ctx context.Context, src source.Source) error {
	s.mu.Lock()
	if s.cancelBuild != nil {
		s.cancelBuild()
	}
	s.openSeq++
	seq := s.openSeq
	buildCtx, cancel := context.WithCancel(ctx)
	s.cancelBuild = cancel
	s.mu.Unlock()
	defer s.finishBuild(seq, cancel)

	s.store.Modify(func(st *state.Status) {
		*st = state.Status{Source: src.Name(), Building: true}
	})

	info, err := src.Stat(buildCtx)
	if err != nil {
		s.fail(seq, err)
		return fmt.Errorf("stat source: %w", err)
	}
	ix := lineindex.New(src, s.indexOpts)
	if err := ix.Build(buildCtx); err != nil {
		s.fail(seq, err)
		return fmt.Errorf("build index: %w", err)
	}
	formatID, err := s.detect(buildCtx, ix)
	if err != nil {
		s.fail(seq, err)
		return err
	}

	s.mu.Lock()
	if seq != s.openSeq {
		s.mu.Unlock()
		return ErrSuperseded
	}
	s.src = src
	s.ix = ix
	s.formatID = formatID
	s.pinned = false
	s.baseline = monitor.SnapshotOf(info)
	s.mu.Unlock()

	// The previous source keeps its monitor until the new one is served.
	s.StopWatching()
	s.logger.Info("source opened", "source", src.Name(), "format", formatID)
	s.publish()
	return nil
}

func (s *Session) finishBuild(seq uint64, cancel context.CancelFunc) {
	cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq == s.openSeq {
		s.cancelBuild = nil
	}
}

// fail records err for the Open numbered seq. The status of a source still
// being served is restored first.
func (s *Session) fail(seq uint64, err error) {
	if !s.current(seq) {
		return
	}
	s.publish()
	s.store.Update(nil, err)
}

func (s *Session) current(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return seq == s.openSeq
}

// detect samples the first lines of ix with a single batched read.
func (s *Session) detect(ctx context.Context, ix *lineindex.Indexer) (string, error) {
	lines, err := ix.ReadLines(ctx, 1, s.sampleLines)
	if err != nil {
		return "", fmt.Errorf("read sample: %w", err)
	}
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	id, _ := s.registry.Detect(strings.Join(texts, "\n"))
	return id, nil
}

// Detect re-runs format detection on the current source unless a format
// was pinned with SetFormat.
func (s *Session) Detect(ctx context.Context) (string, error) {
	s.mu.Lock()
	ix, pinned, id := s.ix, s.pinned, s.formatID
	s.mu.Unlock()
	if ix == nil {
		return "", ErrNoSource
	}
	if pinned {
		return id, nil
	}
	id, err := s.detect(ctx, ix)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	if s.ix == ix {
		s.formatID = id
	}
	s.mu.Unlock()
	s.publish()
	return id, nil
}

// SetFormat pins the format used for parsing. An empty id clears the pin and
// treats every line as unstructured until the next Detect.
func (s *Session) SetFormat(id string) error {
	if id != "" {
		if _, ok := s.registry.Get(id); !ok {
			return fmt.Errorf("unknown format %q", id)
		}
	}
	s.mu.Lock()
	s.formatID = id
	s.pinned = id != ""
	s.mu.Unlock()
	s.publish()
	return nil
}

// FormatID returns the active format id, empty when unknown.
func (s *Session) FormatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formatID
}

// Source returns the open source, or nil.
func (s *Session) Source() source.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src
}

func (s *Session) active() (*lineindex.Indexer, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ix == nil {
		return nil, "", ErrNoSource
	}
	return s.ix, s.formatID, nil
}

// TotalLines returns the number of indexed lines.
func (s *Session) TotalLines() (int, error) {
	ix, _, err := s.active()
	if err != nil {
		return 0, err
	}
	return ix.TotalLines()
}

// Line returns line n parsed with the active format.
func (s *Session) Line(ctx context.Context, n int) (format.ParsedLine, bool, error) {
	ix, id, err := s.active()
	if err != nil {
		return format.ParsedLine{}, false, err
	}
	text, ok, err := ix.ReadLine(ctx, n)
	if err != nil || !ok {
		return format.ParsedLine{}, ok, err
	}
	return s.registry.ParseLine(n, text, id), true, nil
}

// Window returns lines start through end inclusive, parsed with the active
// format. The range is clamped to the index.
func (s *Session) Window(ctx context.Context, start, end int) ([]format.ParsedLine, error) {
	ix, id, err := s.active()
	if err != nil {
		return nil, err
	}
	return s.window(ctx, ix, id, start, end)
}

func (s *Session) window(ctx context.Context, ix *lineindex.Indexer, id string, start, end int) ([]format.ParsedLine, error) {
	lines, err := ix.ReadLines(ctx, start, end)
	if err != nil {
		return nil, err
	}
	out := make([]format.ParsedLine, len(lines))
	for i, l := range lines {
		out[i] = s.registry.ParseLine(l.Number, l.Text, id)
	}
	return out, nil
}

// Filtered applies spec to lines start through end. Continuation lines at
// the top of the window inherit the decision of the nearest structured line
// above start.
func (s *Session) Filtered(ctx context.Context, start, end int, spec filter.Spec) ([]format.ParsedLine, filter.Summary, error) {
	ix, id, err := s.active()
	if err != nil {
		return nil, filter.Summary{}, err
	}
	lines, err := s.window(ctx, ix, id, start, end)
	if err != nil {
		return nil, filter.Summary{}, err
	}
	m := filter.NewMatcher(spec)
	if spec.Active() && len(lines) > 0 && !lines[0].Structured() {
		anchor, ok, err := s.anchor(ctx, ix, id, lines[0].Number-1)
		if err != nil {
			return nil, filter.Summary{}, err
		}
		if ok {
			m.Next(anchor)
		}
	}
	sum := filter.Summary{Total: len(lines)}
	out := make([]format.ParsedLine, 0, len(lines))
	for _, p := range lines {
		if !m.Next(p) {
			continue
		}
		out = append(out, p)
		sum.Filtered++
		if p.Structured() {
			sum.StructuredFiltered++
		}
	}
	return out, sum, nil
}

// anchor finds the nearest structured line at or above n.
func (s *Session) anchor(ctx context.Context, ix *lineindex.Indexer, id string, n int) (format.ParsedLine, bool, error) {
	floor := max(1, n-lookbackLines)
	for hi := n; hi >= floor; hi -= batchLines {
		lo := max(floor, hi-batchLines+1)
		lines, err := s.window(ctx, ix, id, lo, hi)
		if err != nil {
			return format.ParsedLine{}, false, err
		}
		for i := len(lines) - 1; i >= 0; i-- {
			if lines[i].Structured() {
				return lines[i], true, nil
			}
		}
	}
	return format.ParsedLine{}, false, nil
}

// Scan streams every indexed line through spec in batches, calling fn for
// each visible line. It returns the summary over the whole source.
func (s *Session) Scan(ctx context.Context, spec filter.Spec, fn func(format.ParsedLine) error) (filter.Summary, error) {
	ix, id, err := s.active()
	if err != nil {
		return filter.Summary{}, err
	}
	total, err := ix.TotalLines()
	if err != nil {
		return filter.Summary{}, err
	}
	m := filter.NewMatcher(spec)
	sum := filter.Summary{Total: total}
	for start := 1; start <= total; start += batchLines {
		lines, err := s.window(ctx, ix, id, start, start+batchLines-1)
		if err != nil {
			return sum, err
		}
		for _, p := range lines {
			if !m.Next(p) {
				continue
			}
			sum.Filtered++
			if p.Structured() {
				sum.StructuredFiltered++
			}
			if fn != nil {
				if err := fn(p); err != nil {
					return sum, err
				}
			}
		}
	}
	return sum, nil
}

// Apply updates the index for one monitor event. A failed poll is recorded
// and otherwise ignored. When the change cannot be applied the index keeps
// its previous state and Baseline still describes it.
func (s *Session) Apply(ctx context.Context, ev monitor.Event) error {
	return s.apply(ctx, nil, ev)
}

// apply is Apply restricted to events observed on src. Events for a source
// that has since been replaced are dropped. A nil src accepts any event.
func (s *Session) apply(ctx context.Context, src source.Source, ev monitor.Event) error {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	if ev.Err != nil {
		s.store.Update(nil, ev.Err)
		return nil
	}
	ix, _, err := s.active()
	if err != nil {
		return err
	}
	if src != nil && ix.Source() != src {
		return nil
	}

	switch ev.Change.Kind {
	case monitor.Grew:
		added, err := ix.Extend(ctx, ev.Change.Range.To)
		if err != nil {
			s.store.Update(nil, err)
			return fmt.Errorf("extend index: %w", err)
		}
		s.store.Modify(func(st *state.Status) { st.NewLines = added })
		if added > 0 {
			s.store.Notify("%d new lines", added)
		}
	case monitor.Truncated:
		fresh := lineindex.New(ix.Source(), s.indexOpts)
		if err := fresh.Build(ctx); err != nil {
			s.store.Update(nil, err)
			return fmt.Errorf("rebuild index: %w", err)
		}
		s.mu.Lock()
		if s.ix != ix {
			s.mu.Unlock()
			return nil
		}
		s.ix = fresh
		s.mu.Unlock()
		ix = fresh
		if _, err := s.Detect(ctx); err != nil {
			return err
		}
		s.store.Modify(func(st *state.Status) { st.NewLines = 0 })
		s.store.Notify("source truncated; index rebuilt")
	}
	s.mu.Lock()
	if s.ix == ix {
		s.baseline = ev.Snapshot
	}
	s.mu.Unlock()
	s.store.Modify(func(st *state.Status) { st.LastChange = ev.Change.Kind.String() })
	s.publish()
	return nil
}

// Baseline returns the snapshot of the source as last applied to the index.
func (s *Session) Baseline() monitor.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline
}

// Watch starts the change monitor for the open source. Events are applied
// from the monitor goroutine until ctx is done or Close is called.
func (s *Session) Watch(ctx context.Context) error {
	s.mu.Lock()
	src, baseline := s.src, s.baseline
	if src == nil {
		s.mu.Unlock()
		return ErrNoSource
	}
	if s.mon != nil {
		s.mu.Unlock()
		return monitor.ErrRunning
	}
	watchCtx, cancel := context.WithCancel(ctx)
	opts := monitor.Options{Interval: s.pollInterval, Logger: s.logger}
	if path, ok := source.LocalPath(src); ok && s.watchFiles {
		wake, err := source.Watch(watchCtx, path, s.logger)
		if err != nil {
			s.logger.Warn("file notifications unavailable, polling only", "error", err)
		} else {
			opts.Wake = wake
		}
	}
	mon := monitor.New(src, opts)
	s.mon = mon
	s.cancelWatch = cancel
	s.following = true
	s.mu.Unlock()

	if err := mon.Start(watchCtx, baseline, func(ev monitor.Event) {
		if err := s.apply(watchCtx, src, ev); err != nil {
			s.logger.Warn("apply change failed", "change", ev.Change.Kind.String(), "error", err)
			mon.Retry(s.Baseline())
		}
	}); err != nil {
		s.StopWatching()
		return err
	}
	s.publish()
	return nil
}

// StopWatching stops the change monitor, if running.
func (s *Session) StopWatching() {
	s.mu.Lock()
	mon, cancel := s.mon, s.cancelWatch
	s.mon = nil
	s.cancelWatch = nil
	s.following = false
	s.mu.Unlock()
	if mon != nil {
		mon.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if mon != nil {
		s.publish()
	}
}

// Following reports whether the change monitor is running.
func (s *Session) Following() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.following
}

// Close cancels any running build and stops the monitor.
func (s *Session) Close() {
	s.mu.Lock()
	if s.cancelBuild != nil {
		s.cancelBuild()
	}
	s.mu.Unlock()
	s.StopWatching()
}

func (s *Session) publish() {
	s.mu.Lock()
	src, ix, id, following := s.src, s.ix, s.formatID, s.following
	s.mu.Unlock()
	if src == nil || ix == nil {
		return
	}

	name := ""
	if def, ok := s.registry.Get(id); ok {
		name = def.DisplayName()
	}
	total, _ := ix.TotalLines()
	st := s.store.Snapshot().Status
	st.Source = src.Name()
	st.FormatID = id
	st.FormatName = name
	st.TotalLines = total
	st.Covered = ix.Covered()
	st.Building = false
	st.Following = following
	s.store.Update(&st, nil)
}
