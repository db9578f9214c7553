// Package admission implements the pre-parse checks that a client is within
// its rate and concurrency budget, plus per-IP bandwidth throttling for
// response bodies.
package admission

import (
	"sync"
	"time"
)

// Defaults for the admission thresholds.
const (
	DefaultRequestsPerMinute = 120
	DefaultMaxConcurrent     = 10
	DefaultIdleEvictionTTL   = 5 * time.Minute

	window     = 60 * time.Second
	sweepEvery = 256
)

// bucket is the per-IP admission state.
type bucket struct {
	windowStart time.Time
	requests    int
	active      int
	lastSeen    time.Time
}

// Limiter tracks per-IP request windows and concurrent connections. A single
// lock guards the map; every critical section is O(1).
type Limiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	perMinute  int
	maxActive  int
	idleTTL    time.Duration
	admissions uint64

	now func() time.Time // injectable for tests
}

// NewLimiter creates a Limiter with the given thresholds. Zero values select
// the defaults.
func NewLimiter(perMinute, maxConcurrent int) *Limiter {
	if perMinute <= 0 {
		perMinute = DefaultRequestsPerMinute
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Limiter{
		buckets:   make(map[string]*bucket),
		perMinute: perMinute,
		maxActive: maxConcurrent,
		idleTTL:   DefaultIdleEvictionTTL,
		now:       time.Now,
	}
}

// Rejection describes why a connection was refused.
type Rejection struct {
	Reason     string // "rate_limited" or "connection_limited"
	RetryAfter int    // seconds, clamped to [1, 60]
}

// Guard is returned for an admitted connection. Release must be called in
// every exit path; it decrements the active count and stamps last-seen.
type Guard struct {
	l    *Limiter
	ip   string
	once sync.Once
}

// Release ends the connection's admission. Safe to call more than once.
func (g *Guard) Release() {
	g.once.Do(func() {
		g.l.mu.Lock()
		if b, ok := g.l.buckets[g.ip]; ok {
			b.active--
			b.lastSeen = g.l.now()
		}
		g.l.mu.Unlock()
	})
}

// TryAdmit checks the per-IP window and concurrency budget, incrementing
// both on success. A nil Rejection means admitted.
func (l *Limiter) TryAdmit(ip string) (*Guard, *Rejection) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	l.admissions++
	if l.admissions%sweepEvery == 0 {
		l.sweepLocked(now)
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{windowStart: now}
		l.buckets[ip] = b
	}

	if now.Sub(b.windowStart) >= window {
		b.windowStart = now
		b.requests = 0
	}

	if b.requests >= l.perMinute {
		return nil, &Rejection{
			Reason:     "rate_limited",
			RetryAfter: retryAfter(now, b.windowStart),
		}
	}
	if b.active >= l.maxActive {
		return nil, &Rejection{
			Reason:     "connection_limited",
			RetryAfter: retryAfter(now, b.windowStart),
		}
	}

	b.requests++
	b.active++
	b.lastSeen = now
	return &Guard{l: l, ip: ip}, nil
}

func retryAfter(now, windowStart time.Time) int {
	secs := 60 - int(now.Sub(windowStart).Seconds())
	if secs < 1 {
		secs = 1
	}
	if secs > 60 {
		secs = 60
	}
	return secs
}

// sweepLocked evicts buckets idle beyond the TTL with no active
// connections. Caller holds the lock.
func (l *Limiter) sweepLocked(now time.Time) {
	for ip, b := range l.buckets {
		if b.active == 0 && now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, ip)
		}
	}
}

// Sweep runs an eviction pass immediately. Called by the background
// maintenance loop in addition to the every-Nth-admission trigger.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	l.sweepLocked(l.now())
	l.mu.Unlock()
}

// BucketCount returns the number of tracked IPs.
func (l *Limiter) BucketCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Active returns the active connection count for an IP.
func (l *Limiter) Active(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[ip]; ok {
		return b.active
	}
	return 0
}
