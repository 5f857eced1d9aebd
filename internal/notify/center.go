// Package notify keeps a bounded, in-memory set of user-facing alerts
// with automatic expiry for non-persistent entries.
package notify

import (
	"sync"
	"time"

	"budgetblu/internal/log"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

const (
	// MaxVisible caps how many alerts a user can have at once; adding
	// past the cap evicts the oldest.
	MaxVisible = 5

	// DefaultDuration is how long a non-persistent alert stays before
	// auto-dismissal.
	DefaultDuration = 5 * time.Second
)

// Alert is one notification shown to a user. Error alerts are persistent
// and stay until explicitly dismissed.
type Alert struct {
	ID         string
	UserID     string
	Severity   Severity
	Title      string
	Message    string
	Persistent bool
	CreatedAt  time.Time
}

type entry struct {
	alert     Alert
	timer     *time.Timer
	remaining time.Duration // valid only while paused
	deadline  time.Time
}

// Center manages alerts for all users. Alerts are ordered oldest first
// within a user.
type Center struct {
	mu     sync.Mutex
	byUser map[string][]*entry
	paused map[string]bool // per user
	logger *log.Logger
	now    func() time.Time
	closed bool
}

func NewCenter(logger *log.Logger) *Center {
	return &Center{
		byUser: make(map[string][]*entry),
		paused: make(map[string]bool),
		logger: logger.WithComponent(log.ComponentNotify),
		now:    time.Now,
	}
}

// Push adds an alert for the user. Error severity forces persistence;
// everything else auto-dismisses after DefaultDuration. When the user
// already has MaxVisible alerts the oldest one is evicted first.
func (c *Center) Push(userID string, sev Severity, title, message string) Alert {
	c.mu.Lock()
	defer c.mu.Unlock()

	a := Alert{
		ID:         uuid.New().String(),
		UserID:     userID,
		Severity:   sev,
		Title:      title,
		Message:    message,
		Persistent: sev == SeverityError,
		CreatedAt:  c.now(),
	}

	list := c.byUser[userID]
	if len(list) >= MaxVisible {
		c.dropLocked(userID, list[0].alert.ID)
		list = c.byUser[userID]
	}

	e := &entry{alert: a}
	if !a.Persistent {
		if c.paused[userID] {
			e.remaining = DefaultDuration
		} else {
			e.deadline = c.now().Add(DefaultDuration)
			e.timer = time.AfterFunc(DefaultDuration, func() { c.Dismiss(userID, a.ID) })
		}
	}
	c.byUser[userID] = append(list, e)

	c.logger.Debug("alert pushed",
		log.FieldUserID, userID, "severity", string(sev), "title", title)
	return a
}

// Dismiss removes one alert. Dismissing an unknown ID is a no-op.
func (c *Center) Dismiss(userID, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked(userID, id)
}

// DismissAll clears every alert for the user.
func (c *Center) DismissAll(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.byUser[userID] {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	delete(c.byUser, userID)
}

// List returns the user's current alerts, oldest first.
func (c *Center) List(userID string) []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.byUser[userID]
	out := make([]Alert, 0, len(list))
	for _, e := range list {
		out = append(out, e.alert)
	}
	return out
}

// Pause freezes auto-dismissal for the user, preserving each alert's
// remaining time.
func (c *Center) Pause(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused[userID] {
		return
	}
	c.paused[userID] = true
	now := c.now()
	for _, e := range c.byUser[userID] {
		if e.timer == nil {
			continue
		}
		e.timer.Stop()
		e.timer = nil
		e.remaining = e.deadline.Sub(now)
		if e.remaining < 0 {
			e.remaining = 0
		}
	}
}

// Resume restarts auto-dismissal with whatever time each alert had left.
func (c *Center) Resume(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused[userID] {
		return
	}
	delete(c.paused, userID)
	for _, e := range c.byUser[userID] {
		if e.alert.Persistent || e.timer != nil {
			continue
		}
		d := e.remaining
		if d <= 0 {
			d = time.Millisecond
		}
		id := e.alert.ID
		uid := e.alert.UserID
		e.deadline = c.now().Add(d)
		e.timer = time.AfterFunc(d, func() { c.Dismiss(uid, id) })
	}
}

// Close stops all timers. The center must not be used afterwards.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for uid, list := range c.byUser {
		for _, e := range list {
			if e.timer != nil {
				e.timer.Stop()
			}
		}
		delete(c.byUser, uid)
	}
}

func (c *Center) dropLocked(userID, id string) {
	list := c.byUser[userID]
	for i, e := range list {
		if e.alert.ID != id {
			continue
		}
		if e.timer != nil {
			e.timer.Stop()
		}
		c.byUser[userID] = append(list[:i], list[i+1:]...)
		if len(c.byUser[userID]) == 0 {
			delete(c.byUser, userID)
		}
		return
	}
}
