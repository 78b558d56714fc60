// Package cache provides in-process caches with TTL expiry and a manager that
// sweeps expired entries in the background.
package cache

import (
	"log/slog"
	"time"
)

// Cache is the subset of LRUCache used by callers that only read and write.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically cleans every registered cache.
type Manager struct {
	caches map[string]Cleaner
	stop   chan struct{}
	done   chan struct{}
}

func NewManager() *Manager {
	return &Manager{
		caches: make(map[string]Cleaner),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Register adds a cache under name. Call before StartCleanup.
func (m *Manager) Register(name string, c Cleaner) {
	m.caches[name] = c
}

// StartCleanup runs the sweep every interval until Stop is called.
func (m *Manager) StartCleanup(interval time.Duration) {
	go m.run(interval)
}

// CleanNow sweeps all caches once and returns the number of removed entries.
func (m *Manager) CleanNow() int {
	total := 0
	for name, c := range m.caches {
		n := c.CleanExpired()
		if n > 0 {
			slog.Debug("Cache entries expired", "cache", name, "removed", n)
		}
		total += n
	}
	return total
}

func (m *Manager) run(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CleanNow()
		case <-m.stop:
			return
		}
	}
}

// Stop ends the cleanup goroutine started by StartCleanup.
func (m *Manager) Stop() {
	close(m.stop)
	<-m.done
}
