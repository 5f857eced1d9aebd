package auth

import (
	"context"
	"sync"
	"time"
)

// IdleExtendAfter is how long after the last activity signal the session
// gets its expiry pushed forward.
const IdleExtendAfter = 30 * time.Minute

// ActivityMonitor debounces user-activity signals per session. Each
// signal restarts that session's idle timer; when a timer fires and the
// session is still live, the session is extended. Rapid repeated signals
// reset the one timer rather than spawning more.
type ActivityMonitor struct {
	sessions *SessionManager
	delay    time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

func NewActivityMonitor(sessions *SessionManager) *ActivityMonitor {
	return &ActivityMonitor{
		sessions: sessions,
		delay:    IdleExtendAfter,
		timers:   make(map[string]*time.Timer),
	}
}

// Touch records an activity signal for the session. Unauthenticated
// session IDs are ignored.
func (a *ActivityMonitor) Touch(sessionID string) {
	if sessionID == "" || !a.sessions.IsAuthenticated(context.Background(), sessionID) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	if t, ok := a.timers[sessionID]; ok {
		t.Reset(a.delay)
		return
	}
	a.timers[sessionID] = time.AfterFunc(a.delay, func() {
		a.fire(sessionID)
	})
}

func (a *ActivityMonitor) fire(sessionID string) {
	a.mu.Lock()
	delete(a.timers, sessionID)
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return
	}

	ctx := context.Background()
	if a.sessions.IsAuthenticated(ctx, sessionID) {
		_ = a.sessions.Extend(ctx, sessionID)
	}
}

// Close stops all pending timers.
func (a *ActivityMonitor) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	for id, t := range a.timers {
		t.Stop()
		delete(a.timers, id)
	}
}
