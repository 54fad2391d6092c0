// Package state provides the thread-safe status store shared by the session
// and the UI.
//
// # Overview
//
// The session goroutine (index builds, monitor events) writes; the UI reads
// on its own refresh schedule. Store mediates between them with an RWMutex
// and hands out copies, so a rendered frame never observes a half-applied
// update.
//
//	Producer (session):          Consumer (UI):
//	┌────────────────┐           ┌─────────────────┐
//	│ Build/Extend   │           │                 │
//	│      ↓         │           │                 │
//	│ store.Update() │──────────→│ store.Snapshot()│
//	│ store.Notify() │  (mutex)  │      ↓          │
//	└────────────────┘           │  render         │
//	                             └─────────────────┘
//
// # Update Semantics
//
//	store.Update(status, nil)  replace status, clear error, reset failures
//	store.Update(nil, err)     keep status, record error, count failure
//	store.Modify(fn)           edit status in place, error state untouched
//	store.Notify(msg)          append to the bounded notice history
//
// IsOffline reports two or more consecutive failures, which the UI shows as
// an unreadable source rather than a single transient error.
//
// The zero Store is ready to use.
package state
