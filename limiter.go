package folio

import (
	"sync"
	"time"
)

// sweepThreshold is the number of tracked IPs past which Record drops every
// expired entry, not just the caller's.
const sweepThreshold = 1024

// LoginLimiter rate-limits failed login attempts per client IP.
type LoginLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	max      int
	window   time.Duration
	now      func() time.Time
	sweepAt  int
}

// NewLoginLimiter creates a LoginLimiter that allows max failures per window.
func NewLoginLimiter(max int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		attempts: make(map[string][]time.Time),
		max:      max,
		window:   window,
		now:      time.Now,
		sweepAt:  sweepThreshold,
	}
}

// prune drops hits older than the window. Callers hold l.mu.
func (l *LoginLimiter) prune(ip string) []time.Time {
	cutoff := l.now().Add(-l.window)
	hits := l.attempts[ip]
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.attempts, ip)
		return nil
	}
	l.attempts[ip] = kept
	return kept
}

// Check returns true if the IP has not exceeded the rate limit.
// It does not record an attempt; call Record on failure.
func (l *LoginLimiter) Check(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prune(ip)) < l.max
}

// sweep prunes every tracked IP. Callers hold l.mu.
func (l *LoginLimiter) sweep() {
	for ip := range l.attempts {
		l.prune(ip)
	}
}

// Record registers a failed login attempt for the given IP. IPs that fail
// once and never return are dropped once the map grows past sweepAt.
func (l *LoginLimiter) Record(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.attempts) >= l.sweepAt {
		l.sweep()
	}
	l.attempts[ip] = append(l.prune(ip), l.now())
}

// Reset forgets the IP, typically after a successful login.
func (l *LoginLimiter) Reset(ip string) {
	l.mu.Lock()
	delete(l.attempts, ip)
	l.mu.Unlock()
}
