package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"mercado/internal/config"
	pkgerrors "mercado/pkg/errors"
	"mercado/pkg/metrics"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per client IP.
type Limiter struct {
	cfg      config.RateLimitConfig
	mu       sync.Mutex
	visitors map[string]*visitor
}

func New(cfg config.RateLimitConfig) *Limiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 10 * time.Minute
	}
	return &Limiter{cfg: cfg, visitors: make(map[string]*visitor)}
}

// Run evicts idle visitors until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evict(now)
		}
	}
}

func (l *Limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.cfg.MaxAge {
			delete(l.visitors, ip)
		}
	}
}

func (l *Limiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(l.cfg.RPS), l.cfg.Burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

func (l *Limiter) Middleware() gin.HandlerFunc {
	limitHeader := strconv.Itoa(int(l.cfg.RPS))

	return func(c *gin.Context) {
		limiter := l.get(c.ClientIP())
		c.Header("X-RateLimit-Limit", limitHeader)

		if !limiter.Allow() {
			metrics.RateLimitRequestsTotal.WithLabelValues("limited").Inc()
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, pkgerrors.ToErrorResponse(pkgerrors.ErrTooManyRequests))
			return
		}

		metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()
		remaining := int(limiter.Tokens())
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		c.Next()
	}
}
