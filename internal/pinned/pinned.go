// Package pinned tracks the identity of the app currently displayed in the
// compositor's picture-in-picture window.
package pinned

import (
	"context"
	"sync"
)

// Tracker supplies the identity of the currently pinned foreground app.
// The boolean result is false when no window is pinned.
type Tracker interface {
	TopPinnedApp(ctx context.Context) (appID string, ok bool, err error)
}

// TrackerFunc adapts a function to the Tracker interface
type TrackerFunc func(ctx context.Context) (string, bool, error)

func (f TrackerFunc) TopPinnedApp(ctx context.Context) (string, bool, error) {
	return f(ctx)
}

// Fixed returns a Tracker that always reports the given app as pinned.
// Used when the pinned app is set once via configuration or flag.
func Fixed(appID string) Tracker {
	return TrackerFunc(func(ctx context.Context) (string, bool, error) {
		if appID == "" {
			return "", false, nil
		}
		return appID, true, nil
	})
}

// Store is a Tracker updated externally, typically by compositor hooks
// delivering pinned/unpinned events over the control channel
type Store struct {
	mu    sync.RWMutex
	appID string
}

// NewStore creates a Store with no pinned app
func NewStore() *Store {
	return &Store{}
}

// Set records appID as the currently pinned app
func (s *Store) Set(appID string) {
	s.mu.Lock()
	s.appID = appID
	s.mu.Unlock()
}

// Clear records that no app is pinned
func (s *Store) Clear() {
	s.mu.Lock()
	s.appID = ""
	s.mu.Unlock()
}

// TopPinnedApp returns the last recorded pinned app identity
func (s *Store) TopPinnedApp(ctx context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.appID == "" {
		return "", false, nil
	}
	return s.appID, true, nil
}
