package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitConfig configures per-client request limiting
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled" envconfig:"ENABLED"`
	RequestsPerMinute int           `yaml:"requests_per_minute" envconfig:"REQUESTS_PER_MINUTE"`
	BurstSize         int           `yaml:"burst_size" envconfig:"BURST_SIZE"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval" envconfig:"CLEANUP_INTERVAL"`
}

// SetDefaults fills unset fields
func (c *RateLimitConfig) SetDefaults() {
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = 600
	}
	if c.BurstSize <= 0 {
		c.BurstSize = int(math.Ceil(float64(c.RequestsPerMinute) / 60.0))
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 10 * time.Minute
	}
}

// RateLimiter tracks a token bucket per client key
type RateLimiter struct {
	config RateLimitConfig
	logger *zap.Logger

	mu       sync.Mutex
	limiters map[string]*clientLimiter

	stopOnce sync.Once
	stopCh   chan struct{}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter. Stop releases its cleanup loop.
func NewRateLimiter(cfg RateLimitConfig, logger *zap.Logger) *RateLimiter {
	cfg.SetDefaults()
	rl := &RateLimiter{
		config:   cfg,
		logger:   logger.Named("ratelimit"),
		limiters: make(map[string]*clientLimiter),
		stopCh:   make(chan struct{}),
	}
	if cfg.Enabled {
		go rl.cleanupLoop()
	}
	return rl
}

func (r *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.cleanup()
		}
	}
}

// cleanup removes limiters that have been idle for three intervals
func (r *RateLimiter) cleanup() {
	cutoff := time.Now().Add(-3 * r.config.CleanupInterval)
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, l := range r.limiters {
		if l.lastSeen.Before(cutoff) {
			delete(r.limiters, key)
		}
	}
}

// Allow reports whether a request for key may proceed
func (r *RateLimiter) Allow(key string) bool {
	if !r.config.Enabled {
		return true
	}

	r.mu.Lock()
	l, ok := r.limiters[key]
	if !ok {
		l = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(float64(r.config.RequestsPerMinute)/60.0), r.config.BurstSize),
		}
		r.limiters[key] = l
	}
	l.lastSeen = time.Now()
	r.mu.Unlock()

	return l.limiter.Allow()
}

// retryAfter is the time until one token is available
func (r *RateLimiter) retryAfter() time.Duration {
	return time.Duration(float64(time.Minute) / float64(r.config.RequestsPerMinute))
}

// Stop ends the cleanup loop
func (r *RateLimiter) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// RateLimitMiddleware rejects requests over the per-client limit with 429
func RateLimitMiddleware(rl *RateLimiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.config.Enabled {
			c.Next()
			return
		}

		clientIP := c.ClientIP()
		if !rl.Allow(clientIP) {
			logger.Debug("Rate limit exceeded", zap.String("client_ip", clientIP))
			secs := int(math.Ceil(rl.retryAfter().Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}

		c.Next()
	}
}
