package state

import (
	"fmt"
	"sync"
	"time"
)

// maxNotices bounds the notice history kept in the store.
const maxNotices = 20

// Status describes the open log source as last observed by the session.
type Status struct {
	Source     string
	FormatID   string
	FormatName string
	TotalLines int
	Covered    int64
	Building   bool
	Following  bool
	// NewLines is the number of lines the most recent extension added.
	NewLines int
	// LastChange names the most recent change classification.
	LastChange string
}

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Status              Status
	HasStatus           bool
	Notices             []string
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive failed polls
}

// IsOffline returns true when the source has been unreadable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Update replaces the stored status. When err is non-nil the previous status
// is kept but the error is recorded for visibility.
func (s *Store) Update(status *Status, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
		return
	}

	if status != nil {
		s.snapshot.Status = *status
		s.snapshot.HasStatus = true
	} else {
		s.snapshot.HasStatus = false
	}
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
}

// Modify applies fn to a copy of the current status and stores the result.
// It does not touch the error state.
func (s *Store) Modify(fn func(*Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := s.snapshot.Status
	fn(&status)
	s.snapshot.Status = status
	s.snapshot.HasStatus = true
	s.snapshot.LastUpdated = time.Now()
}

// Notify appends a notice, dropping the oldest beyond the history limit.
func (s *Store) Notify(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Notices = append(s.snapshot.Notices, fmt.Sprintf(format, args...))
	if over := len(s.snapshot.Notices) - maxNotices; over > 0 {
		s.snapshot.Notices = append([]string(nil), s.snapshot.Notices[over:]...)
	}
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Notices = cloneNotices(s.snapshot.Notices)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func cloneNotices(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	dup := make([]string, len(items))
	copy(dup, items)
	return dup
}
