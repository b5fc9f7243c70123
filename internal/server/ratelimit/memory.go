package ratelimit

import (
	"sync"
	"time"
)

// memoryLimiter is a token bucket per key. Each bucket holds up to
// Requests tokens and refills Requests tokens per Window.
type memoryLimiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stopOnce sync.Once
	stopCh   chan struct{}
}

type bucket struct {
	tokens float64
	last   time.Time
}

var _ Stoppable = (*memoryLimiter)(nil)

// NewMemoryLimiter creates an in-process limiter. Idle buckets are dropped
// every two windows.
func NewMemoryLimiter(cfg Config) Stoppable {
	l := newMemoryLimiter(cfg, time.Now)
	if cfg.Enabled && cfg.Window > 0 {
		go l.sweep(2 * cfg.Window)
	}
	return l
}

func newMemoryLimiter(cfg Config, now func() time.Time) *memoryLimiter {
	return &memoryLimiter{
		cfg:     cfg,
		now:     now,
		buckets: make(map[string]*bucket),
		stopCh:  make(chan struct{}),
	}
}

func (l *memoryLimiter) Allow(key string) bool {
	if !l.cfg.Enabled {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	capacity := float64(l.cfg.Requests)

	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: capacity - 1, last: now}
		return capacity >= 1
	}

	rate := capacity / l.cfg.Window.Seconds()
	b.tokens = min(capacity, b.tokens+now.Sub(b.last).Seconds()*rate)
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *memoryLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

func (l *memoryLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *memoryLimiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.dropIdle(every)
		case <-l.stopCh:
			return
		}
	}
}

func (l *memoryLimiter) dropIdle(idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, b := range l.buckets {
		if now.Sub(b.last) > idle {
			delete(l.buckets, key)
		}
	}
}
