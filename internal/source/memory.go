package source

import (
	"context"
	"io"
	"sync"
	"time"
)

// Memory is an in-memory Source. Writers may append to or truncate it while
// readers hold it, which makes it the reference source for tests and for
// content piped in on stdin.
type Memory struct {
	name string

	mu      sync.RWMutex
	data    []byte
	modTime time.Time
	now     func() time.Time
}

// NewMemory returns a Memory source holding a copy of data.
func NewMemory(name string, data []byte) *Memory {
	m := &Memory{name: name, now: time.Now}
	m.data = append([]byte(nil), data...)
	m.modTime = m.now()
	return m
}

// Name implements Source.
func (m *Memory) Name() string { return m.name }

// Stat implements Source.
func (m *Memory) Stat(ctx context.Context) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Info{Size: int64(len(m.data)), ModTime: m.modTime}, nil
}

// ReadRange implements Source.
func (m *Memory) ReadRange(ctx context.Context, start, end int64) ([]byte, error) {
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if end > int64(len(m.data)) {
		return nil, &ReadError{Source: m.name, Start: start, End: end, Err: io.ErrUnexpectedEOF}
	}
	out := make([]byte, end-start)
	copy(out, m.data[start:end])
	return out, nil
}

// Append adds p to the end of the content and bumps the modification time.
func (m *Memory) Append(p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append(m.data, p...)
	m.touchLocked()
}

// Truncate cuts the content to size bytes and bumps the modification time.
func (m *Memory) Truncate(size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if size < 0 {
		size = 0
	}
	if size < int64(len(m.data)) {
		m.data = m.data[:size]
	}
	m.touchLocked()
}

// Replace swaps the entire content and bumps the modification time.
func (m *Memory) Replace(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	m.touchLocked()
}

// Touch bumps the modification time without changing the content.
func (m *Memory) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touchLocked()
}

// touchLocked guarantees a strictly increasing ModTime even when the clock
// has not advanced since the previous write.
func (m *Memory) touchLocked() {
	next := m.now()
	if !next.After(m.modTime) {
		next = m.modTime.Add(time.Nanosecond)
	}
	m.modTime = next
}
