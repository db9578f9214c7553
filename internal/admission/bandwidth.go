package admission

import (
	"context"
	"io"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bandwidthEntry tracks a rate limiter with last access time
type bandwidthEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Bandwidth throttles response body bytes per client IP. Zero Mbps disables
// throttling.
type Bandwidth struct {
	mbps     float64
	mu       sync.Mutex
	limiters map[string]*bandwidthEntry
}

// NewBandwidth creates a per-IP byte throttle.
func NewBandwidth(mbps float64) *Bandwidth {
	return &Bandwidth{
		mbps:     mbps,
		limiters: make(map[string]*bandwidthEntry),
	}
}

// Limiter gets or creates the limiter for a client IP. Returns nil when
// throttling is disabled.
func (b *Bandwidth) Limiter(clientIP string) *rate.Limiter {
	if b == nil || b.mbps <= 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if e, ok := b.limiters[clientIP]; ok {
		e.lastAccess = time.Now()
		return e.limiter
	}

	// Convert Mbps to bytes per second
	bytesPerSecond := (b.mbps * 1_000_000) / 8
	burst := max(
		// 100ms burst
		int(bytesPerSecond/10),
		// Minimum 4KB burst
		4096,
	)

	lim := rate.NewLimiter(rate.Limit(bytesPerSecond), burst)
	b.limiters[clientIP] = &bandwidthEntry{limiter: lim, lastAccess: time.Now()}
	return lim
}

// Sweep removes limiters unused for over an hour to prevent unbounded
// growth.
func (b *Bandwidth) Sweep() {
	if b == nil {
		return
	}
	stale := time.Now().Add(-1 * time.Hour)
	b.mu.Lock()
	for ip, e := range b.limiters {
		if e.lastAccess.Before(stale) {
			delete(b.limiters, ip)
		}
	}
	b.mu.Unlock()
}

// ThrottledWriter wraps an io.Writer with rate limiting
type ThrottledWriter struct {
	W       io.Writer
	Limiter *rate.Limiter
}

func (t *ThrottledWriter) Write(p []byte) (int, error) {
	// Wait for rate limiter to allow this write. WaitN caps at the burst,
	// so large chunks are split.
	if t.Limiter != nil {
		remaining := p
		for len(remaining) > 0 {
			n := len(remaining)
			if burst := t.Limiter.Burst(); n > burst {
				n = burst
			}
			if err := t.Limiter.WaitN(context.Background(), n); err != nil {
				return len(p) - len(remaining), err
			}
			written, err := t.W.Write(remaining[:n])
			remaining = remaining[written:]
			if err != nil {
				return len(p) - len(remaining), err
			}
		}
		return len(p), nil
	}
	return t.W.Write(p)
}
