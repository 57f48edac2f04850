// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Limiter is a fixed-window counter per key: the first hit opens a window
// of duration and the count resets when it ends. It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	limit    int           // max hits per window
	duration time.Duration // window length
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

type window struct {
	count     int
	expiresAt time.Time
}

// New creates a limiter allowing limit hits per key per duration and starts
// its cleanup loop. Call Stop to end the loop.
func New(limit int, duration time.Duration) *Limiter {
	l := &Limiter{
		windows:  make(map[string]*window),
		limit:    limit,
		duration: duration,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	go l.cleanupLoop(duration * 2)
	return l
}

// Allow records a hit for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.expiresAt) {
		l.windows[key] = &window{count: 1, expiresAt: now.Add(l.duration)}
		return true
	}
	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// RetryAfter returns how long until key's window resets (0 if not limited).
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || w.count < l.limit {
		return 0
	}
	if d := w.expiresAt.Sub(l.now()); d > 0 {
		return d
	}
	return 0
}

// Reset clears the window for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *Limiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			for key, w := range l.windows {
				if now.After(w.expiresAt) {
					delete(l.windows, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// TrustedProxies lists the networks whose forwarding headers are honored.
type TrustedProxies []*net.IPNet

// ParseTrustedProxies parses a comma-separated list of CIDRs or bare IPs.
// An empty list trusts nobody.
func ParseTrustedProxies(list string) (TrustedProxies, error) {
	var out TrustedProxies
	for _, raw := range strings.Split(list, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			ip := net.ParseIP(raw)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", raw)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func (p TrustedProxies) contains(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range p {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the address of the client that sent r.
// X-Forwarded-For and X-Real-IP are read only when the direct peer is a
// trusted proxy. X-Forwarded-For is walked from the right, skipping trusted
// hops, so a client cannot pick its own address by prepending entries.
func ClientIP(r *http.Request, trusted TrustedProxies) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	if !trusted.contains(peer) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !trusted.contains(hop) {
				return hop
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

// CodeLimiter throttles guesses at short codes (attendance and join codes).
// A six-digit code is only a million values, so attempts are limited both
// per user and per client IP.
type CodeLimiter struct {
	user    *Limiter
	ip      *Limiter
	proxies TrustedProxies
}

// NewCodeLimiter returns the default policy: 5 attempts per user per scope
// per minute, 30 per IP per minute.
func NewCodeLimiter() *CodeLimiter {
	return NewCodeLimiterWithConfig(5, time.Minute, 30, time.Minute)
}

// NewCodeLimiterWithConfig creates a code limiter with custom limits.
func NewCodeLimiterWithConfig(userLimit int, userWindow time.Duration, ipLimit int, ipWindow time.Duration) *CodeLimiter {
	return &CodeLimiter{
		user: New(userLimit, userWindow),
		ip:   New(ipLimit, ipWindow),
	}
}

// TrustProxies makes Check read forwarding headers from requests sent by
// the given proxies. Call it before serving requests.
func (c *CodeLimiter) TrustProxies(p TrustedProxies) { c.proxies = p }

// Check records an attempt by userID against scope (e.g. a team id) and
// reports whether it may proceed. When blocked, retryAfter says how long
// the caller should wait.
func (c *CodeLimiter) Check(r *http.Request, userID, scope string) (allowed bool, retryAfter time.Duration) {
	ipKey := ClientIP(r, c.proxies)
	if !c.ip.Allow(ipKey) {
		return false, c.ip.RetryAfter(ipKey)
	}
	userKey := userID + "|" + scope
	if !c.user.Allow(userKey) {
		return false, c.user.RetryAfter(userKey)
	}
	return true, 0
}

// Reset clears the user's attempts for scope after a successful code.
func (c *CodeLimiter) Reset(userID, scope string) {
	c.user.Reset(userID + "|" + scope)
}

// Stop ends both cleanup loops.
func (c *CodeLimiter) Stop() {
	c.user.Stop()
	c.ip.Stop()
}
