package http

import (
	"net"
	"net/http"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/splatgrid/models"
	"golang.org/x/time/rate"
)

const (
	defaultRPS   = 5
	defaultBurst = 10
)

// LimiterPool holds a token bucket per key.
type LimiterPool struct {
	RPS   float64
	Burst int

	mutex    sync.Mutex
	limiters map[string]*rate.Limiter
}

func (p *LimiterPool) get(key string) *rate.Limiter {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.limiters == nil {
		p.limiters = make(map[string]*rate.Limiter)
	}
	if l, ok := p.limiters[key]; ok {
		return l
	}

	rps := p.RPS
	if rps <= 0 {
		rps = defaultRPS
	}
	burst := p.Burst
	if burst <= 0 {
		burst = defaultBurst
	}

	l := rate.NewLimiter(rate.Limit(rps), burst)
	p.limiters[key] = l
	return l
}

// Allow reports whether a request identified by the given key may proceed.
func (p *LimiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

// Len returns the number of tracked keys.
func (p *LimiterPool) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.limiters)
}

// HandleWithRateLimit responds with 429 when the caller exceeded its rate.
// Callers are identified by their user id when authenticated and by their
// remote address otherwise. Safe methods are never limited.
func HandleWithRateLimit(p *LimiterPool, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet ||
			r.Method == http.MethodHead ||
			r.Method == http.MethodOptions {
			h.ServeHTTP(w, r)
			return
		}

		key := rateLimitKey(r)
		if !p.Allow(key) {
			logs.WithTag("key", key).
				WithTag("path", r.URL.Path).
				Debug("rate limited")
			Error(w, http.StatusTooManyRequests, "too many requests")
			return
		}

		h.ServeHTTP(w, r)
	})
}

func rateLimitKey(r *http.Request) string {
	if u, ok := models.UserFromContext(r.Context()); ok {
		return "user:" + u.ID
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
