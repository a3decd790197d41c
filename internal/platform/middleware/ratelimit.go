package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/caregrid/caregrid/internal/platform/auth"
)

// RateLimitConfig holds throttling settings for the API surface.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig returns settings suitable for a single agency
// deployment.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

// Callers idle longer than callerIdleTTL are dropped once the tracking map
// reaches maxTrackedCallers.
const (
	maxTrackedCallers = 10000
	callerIdleTTL     = time.Minute
)

type callerState struct {
	tokens   float64
	lastSeen time.Time
}

// limiter tracks a token bucket per caller. Buckets refill continuously at
// RequestsPerSecond up to BurstSize.
type limiter struct {
	mu      sync.Mutex
	cfg     RateLimitConfig
	callers map[string]*callerState
	now     func() time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	return &limiter{
		cfg:     cfg,
		callers: make(map[string]*callerState),
		now:     time.Now,
	}
}

// take consumes one token for the caller. When the bucket is empty it
// returns false and the number of whole seconds until a token refills.
func (l *limiter) take(key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	st, ok := l.callers[key]
	if !ok {
		if len(l.callers) >= maxTrackedCallers {
			l.evictIdle(now)
		}
		st = &callerState{tokens: float64(l.cfg.BurstSize)}
		l.callers[key] = st
	} else {
		st.tokens += now.Sub(st.lastSeen).Seconds() * l.cfg.RequestsPerSecond
		if burst := float64(l.cfg.BurstSize); st.tokens > burst {
			st.tokens = burst
		}
	}
	st.lastSeen = now

	if st.tokens < 1 {
		wait := 1
		if l.cfg.RequestsPerSecond > 0 {
			wait = int((1-st.tokens)/l.cfg.RequestsPerSecond) + 1
		}
		return false, wait
	}
	st.tokens--
	return true, 0
}

func (l *limiter) evictIdle(now time.Time) {
	for k, st := range l.callers {
		if now.Sub(st.lastSeen) > callerIdleTTL {
			delete(l.callers, k)
		}
	}
}

// rateLimitKey identifies the caller for throttling. Authenticated traffic
// is limited per user; unauthenticated traffic falls back to the agency,
// then the client IP.
func rateLimitKey(c echo.Context) string {
	actor := auth.ActorFromContext(c.Request().Context())
	if actor.UserID != uuid.Nil {
		return "user:" + actor.UserID.String()
	}
	if tenant, ok := c.Get("jwt_tenant_id").(string); ok && tenant != "" {
		return "tenant:" + tenant
	}
	return "ip:" + c.RealIP()
}

// RateLimit returns middleware that throttles each caller with a token
// bucket. Rejected requests get a 429 with a Retry-After hint.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	lim := newLimiter(cfg)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64))

			ok, retryAfter := lim.take(rateLimitKey(c))
			if !ok {
				h.Set("Retry-After", strconv.Itoa(retryAfter))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
