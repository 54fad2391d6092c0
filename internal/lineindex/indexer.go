package lineindex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/five82/lantern/internal/cache"
	"github.com/five82/lantern/internal/source"
)

const (
	// DefaultChunkSize is the read size used while scanning.
	DefaultChunkSize = 1 << 20
	// DefaultCacheCapacity is the number of line texts kept in memory.
	DefaultCacheCapacity = 2000

	maxReadAttempts = 3
)

var (
	// ErrNotIndexed is returned when the index is queried before any
	// successful Build.
	ErrNotIndexed = errors.New("line index not built")
	// ErrIndexChanged is returned when the index kept changing while a read
	// was in flight.
	ErrIndexChanged = errors.New("line index changed during read")
)

// Span locates one line in the source. End excludes the line terminator.
type Span struct {
	Line  int
	Start int64
	End   int64
}

// Len returns the length of the line text in bytes.
func (s Span) Len() int64 { return s.End - s.Start }

// Line is a line number with its text.
type Line struct {
	Number int
	Text   string
}

// Options configures an Indexer. Zero values select defaults.
type Options struct {
	ChunkSize     int
	CacheCapacity int
	Logger        *slog.Logger
}

// Stats reports cache effectiveness.
type Stats struct {
	Len      int
	Capacity int
	Hits     uint64
	Misses   uint64
}

// Indexer builds and serves the line index of a single source.
type Indexer struct {
	src       source.Source
	chunkSize int
	logger    *slog.Logger

	buildMu sync.Mutex

	mu       sync.Mutex
	built    bool
	spans    []Span
	covered  int64
	tailOpen bool
	gen      uint64
	cache    *cache.Cache[int, string]
	hits     uint64
	misses   uint64
}

// New returns an unbuilt Indexer for src.
func New(src source.Source, opts Options) *Indexer {
	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	capacity := opts.CacheCapacity
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		src:       src,
		chunkSize: chunk,
		logger:    logger,
		cache:     cache.New[int, string](capacity),
	}
}

// Source returns the source the indexer is bound to.
func (ix *Indexer) Source() source.Source { return ix.src }

// Build scans the whole source and replaces the index. On error the previous
// index is kept.
func (ix *Indexer) Build(ctx context.Context) error {
	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()

	info, err := ix.src.Stat(ctx)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	sc := &scanner{next: 1}
	if err := ix.scan(ctx, sc, 0, info.Size); err != nil {
		return err
	}
	tailOpen := sc.finish(info.Size)

	ix.mu.Lock()
	ix.spans = sc.spans
	ix.covered = info.Size
	ix.tailOpen = tailOpen
	ix.built = true
	ix.gen++
	ix.cache.Clear()
	ix.mu.Unlock()

	ix.logger.Info("index built", "source", ix.src.Name(), "lines", len(sc.spans), "bytes", info.Size)
	return nil
}

// Extend indexes the bytes in [Covered(), end) and appends the new spans. It
// returns the number of lines added. An end at or below the covered offset is
// a no-op.
func (ix *Indexer) Extend(ctx context.Context, end int64) (int, error) {
	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()

	ix.mu.Lock()
	if !ix.built {
		ix.mu.Unlock()
		return 0, ErrNotIndexed
	}
	if end <= ix.covered {
		ix.mu.Unlock()
		return 0, nil
	}
	keep := len(ix.spans)
	resume := ix.covered
	if ix.tailOpen && keep > 0 {
		keep--
		resume = ix.spans[keep].Start
	}
	before := len(ix.spans)
	gen := ix.gen
	ix.mu.Unlock()

	sc := &scanner{next: keep + 1, lineStart: resume}
	if err := ix.scan(ctx, sc, resume, end); err != nil {
		return 0, err
	}
	tailOpen := sc.finish(end)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.gen != gen {
		return 0, ErrIndexChanged
	}
	if keep < len(ix.spans) {
		ix.cache.Remove(keep + 1)
	}
	ix.spans = append(ix.spans[:keep:keep], sc.spans...)
	ix.covered = end
	ix.tailOpen = tailOpen
	ix.gen++
	added := len(ix.spans) - before

	ix.logger.Info("index extended", "source", ix.src.Name(), "added", added, "lines", len(ix.spans), "bytes", end)
	return added, nil
}

// Invalidate discards the index and the cache. The indexer returns to the
// unbuilt state.
func (ix *Indexer) Invalidate() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.built = false
	ix.spans = nil
	ix.covered = 0
	ix.tailOpen = false
	ix.gen++
	ix.cache.Clear()
}

// Built reports whether a build has completed since creation or the last
// Invalidate.
func (ix *Indexer) Built() bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.built
}

// Covered returns the number of source bytes the index accounts for.
func (ix *Indexer) Covered() int64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.covered
}

// TotalLines returns the number of indexed lines.
func (ix *Indexer) TotalLines() (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if !ix.built {
		return 0, ErrNotIndexed
	}
	return len(ix.spans), nil
}

// Span returns the span of line n.
func (ix *Indexer) Span(n int) (Span, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if n < 1 || n > len(ix.spans) {
		return Span{}, false
	}
	return ix.spans[n-1], true
}

// Spans returns a copy of the index.
func (ix *Indexer) Spans() []Span {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return append([]Span(nil), ix.spans...)
}

// ReadLine returns the text of line n (1-based). ok is false when n is out of
// range.
func (ix *Indexer) ReadLine(ctx context.Context, n int) (text string, ok bool, err error) {
	for range maxReadAttempts {
		ix.mu.Lock()
		if !ix.built {
			ix.mu.Unlock()
			return "", false, ErrNotIndexed
		}
		if n < 1 || n > len(ix.spans) {
			ix.mu.Unlock()
			return "", false, nil
		}
		if v, hit := ix.cache.Get(n); hit {
			ix.hits++
			ix.mu.Unlock()
			return v, true, nil
		}
		ix.misses++
		span := ix.spans[n-1]
		gen := ix.gen
		ix.mu.Unlock()

		b, err := ix.src.ReadRange(ctx, span.Start, span.End)
		if err != nil {
			return "", false, err
		}
		text := string(b)

		ix.mu.Lock()
		if ix.gen == gen {
			ix.cache.Set(n, text)
			ix.mu.Unlock()
			return text, true, nil
		}
		ix.mu.Unlock()
	}
	return "", false, ErrIndexChanged
}

// ReadLines returns lines start through end inclusive, clamped to the index.
// The covering byte range is fetched with a single read.
func (ix *Indexer) ReadLines(ctx context.Context, start, end int) ([]Line, error) {
	for range maxReadAttempts {
		ix.mu.Lock()
		if !ix.built {
			ix.mu.Unlock()
			return nil, ErrNotIndexed
		}
		if start < 1 {
			start = 1
		}
		if end > len(ix.spans) {
			end = len(ix.spans)
		}
		if start > end {
			ix.mu.Unlock()
			return []Line{}, nil
		}
		spans := append([]Span(nil), ix.spans[start-1:end]...)
		gen := ix.gen
		ix.mu.Unlock()

		base := spans[0].Start
		b, err := ix.src.ReadRange(ctx, base, spans[len(spans)-1].End)
		if err != nil {
			return nil, err
		}

		ix.mu.Lock()
		changed := ix.gen != gen
		ix.mu.Unlock()
		if changed {
			continue
		}

		lines := make([]Line, len(spans))
		for i, s := range spans {
			lines[i] = Line{Number: s.Line, Text: string(b[s.Start-base : s.End-base])}
		}
		return lines, nil
	}
	return nil, ErrIndexChanged
}

// SetCacheCapacity resizes the line cache, evicting least recently used
// entries as needed. Zero disables caching.
func (ix *Indexer) SetCacheCapacity(n int) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.cache.SetCapacity(n)
}

// CacheStats returns the current cache size and hit counters.
func (ix *Indexer) CacheStats() Stats {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return Stats{
		Len:      ix.cache.Len(),
		Capacity: ix.cache.Capacity(),
		Hits:     ix.hits,
		Misses:   ix.misses,
	}
}

func (ix *Indexer) scan(ctx context.Context, sc *scanner, from, to int64) error {
	for off := from; off < to; {
		if err := ctx.Err(); err != nil {
			return err
		}
		next := min(off+int64(ix.chunkSize), to)
		chunk, err := ix.src.ReadRange(ctx, off, next)
		if err != nil {
			return fmt.Errorf("scan source: %w", err)
		}
		sc.feed(chunk, off)
		off = next
	}
	return nil
}

// scanner accumulates spans across chunks.
type scanner struct {
	spans     []Span
	next      int
	lineStart int64
	prevCR    bool
}

func (s *scanner) feed(chunk []byte, base int64) {
	off := 0
	for {
		i := bytes.IndexByte(chunk[off:], '\n')
		if i < 0 {
			break
		}
		pos := off + i
		abs := base + int64(pos)
		end := abs
		if pos > 0 {
			if chunk[pos-1] == '\r' {
				end--
			}
		} else if s.prevCR {
			end--
		}
		s.add(max(end, s.lineStart))
		s.lineStart = abs + 1
		off = pos + 1
	}
	if len(chunk) > 0 {
		s.prevCR = chunk[len(chunk)-1] == '\r'
	}
}

// finish records the unterminated final line, if any, and reports whether
// one was recorded. A trailing \r is kept: without a following \n it is
// content, and Extend re-scans the line if the \n arrives later.
func (s *scanner) finish(size int64) bool {
	if s.lineStart >= size {
		return false
	}
	s.add(size)
	return true
}

func (s *scanner) add(end int64) {
	s.spans = append(s.spans, Span{Line: s.next, Start: s.lineStart, End: end})
	s.next++
}
