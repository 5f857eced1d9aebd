// Package tier implements the ephemeral storage tier: process-local
// session records and sanitized current-user snapshots. It mirrors the
// role sessionStorage plays next to the durable SQLite tier, with fast
// reads and everything gone on restart.
package tier

import (
	"context"
	"sync"
	"time"

	"budgetblu/internal/cache"
	"budgetblu/internal/core"
)

// MemoryStore holds sessions in memory. It satisfies the same store
// contract as the SQLite tier so the session manager can treat both
// uniformly.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]core.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]core.Session)}
}

func (s *MemoryStore) PutSession(_ context.Context, sess core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// CleanExpired sweeps sessions past their expiry so a long-lived process
// does not accumulate dead entries. Implements cache.Cleaner.
func (s *MemoryStore) CleanExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Size returns the number of live session records.
func (s *MemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Snapshots caches sanitized users keyed by session ID, the fast-read
// current-user record that sits alongside the session itself.
type Snapshots struct {
	users *cache.LRUCache[core.User]
}

// NewSnapshots sizes the snapshot cache. TTL matches the longest
// non-remembered session so stale snapshots age out on their own.
func NewSnapshots(maxUsers int) *Snapshots {
	return &Snapshots{users: cache.NewLRUCache[core.User](maxUsers, 24*time.Hour)}
}

func (s *Snapshots) Put(sessionID string, u core.User) {
	s.users.Set(sessionID, u.Sanitized())
}

func (s *Snapshots) Get(sessionID string) (core.User, bool) {
	return s.users.Get(sessionID)
}

func (s *Snapshots) Delete(sessionID string) {
	s.users.Delete(sessionID)
}

// CleanExpired implements cache.Cleaner.
func (s *Snapshots) CleanExpired() int {
	return s.users.CleanExpired()
}
