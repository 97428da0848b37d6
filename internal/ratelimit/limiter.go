// Package ratelimit provides fixed-window request limiting keyed by user.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter answers whether a user may make another request in the
// current window.
type Limiter interface {
	// Allow records an attempt for the user and reports whether it is
	// within the configured limit. Denied attempts still count toward
	// the window.
	Allow(ctx context.Context, userID int64) (bool, error)
}

type userEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryLimiter is a fixed-window limiter backed by process memory.
// Windows are tracked per user and swept periodically.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[int64]*userEntry

	maxRequests int
	window      time.Duration
	done        chan struct{}
}

// NewMemoryLimiter creates a limiter allowing maxRequests per window
// per user and starts its background sweep.
func NewMemoryLimiter(maxRequests int, window time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		entries:     make(map[int64]*userEntry),
		maxRequests: maxRequests,
		window:      window,
		done:        make(chan struct{}),
	}
	go l.sweep()
	return l
}

func (l *MemoryLimiter) sweep() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := time.Now()
			for id, entry := range l.entries {
				if now.After(entry.expiresAt) {
					delete(l.entries, id)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Allow implements Limiter.
func (l *MemoryLimiter) Allow(_ context.Context, userID int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, exists := l.entries[userID]
	if !exists || now.After(entry.expiresAt) {
		l.entries[userID] = &userEntry{count: 1, expiresAt: now.Add(l.window)}
		return true, nil
	}

	entry.count++
	return entry.count <= l.maxRequests, nil
}

// Close stops the background sweep.
func (l *MemoryLimiter) Close() {
	close(l.done)
}
