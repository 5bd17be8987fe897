package connectivity

import (
	"sync"

	"github.com/pbengoa/Tourline-front-sub001/internal/domain"
)

// ManualLifecycle is a LifecycleProvider driven by explicit calls.
type ManualLifecycle struct {
	mu    sync.Mutex
	state domain.AppState

	subscribers listeners[domain.AppState]
}

// NewManualLifecycle creates a lifecycle that starts in the foreground.
func NewManualLifecycle() *ManualLifecycle {
	return &ManualLifecycle{state: domain.AppStateActive}
}

// Subscribe registers fn for lifecycle transitions.
func (l *ManualLifecycle) Subscribe(fn func(domain.AppState)) (unsubscribe func()) {
	return l.subscribers.add(fn)
}

// State returns the current app state.
func (l *ManualLifecycle) State() domain.AppState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Foreground reports the app became active.
func (l *ManualLifecycle) Foreground() { l.set(domain.AppStateActive) }

// Background reports the app went to the background.
func (l *ManualLifecycle) Background() { l.set(domain.AppStateBackground) }

func (l *ManualLifecycle) set(s domain.AppState) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
	l.subscribers.emit(s)
}
