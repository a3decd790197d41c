package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/caregrid/caregrid/internal/platform/auth"
)

func newTestLimiter(cfg RateLimitConfig) (*limiter, *time.Time) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	l := newLimiter(cfg)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter_BurstThenDeny(t *testing.T) {
	l, _ := newTestLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 3})

	for i := 0; i < 3; i++ {
		if ok, _ := l.take("user:a"); !ok {
			t.Fatalf("request %d within burst was denied", i+1)
		}
	}

	ok, wait := l.take("user:a")
	if ok {
		t.Fatal("request beyond burst was allowed")
	}
	if wait < 1 {
		t.Fatalf("wait = %d, want at least 1 second", wait)
	}
}

func TestLimiter_Refill(t *testing.T) {
	l, now := newTestLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})

	l.take("user:a")
	l.take("user:a")
	if ok, _ := l.take("user:a"); ok {
		t.Fatal("empty bucket allowed a request")
	}

	*now = now.Add(2 * time.Second)
	for i := 0; i < 2; i++ {
		if ok, _ := l.take("user:a"); !ok {
			t.Fatalf("refilled request %d was denied", i+1)
		}
	}
	if ok, _ := l.take("user:a"); ok {
		t.Fatal("bucket allowed more than the refilled amount")
	}
}

func TestLimiter_RefillCapsAtBurst(t *testing.T) {
	l, now := newTestLimiter(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 2})

	l.take("user:a")
	*now = now.Add(time.Hour)

	allowed := 0
	for i := 0; i < 5; i++ {
		if ok, _ := l.take("user:a"); ok {
			allowed++
		}
	}
	if allowed != 2 {
		t.Fatalf("allowed %d requests after long idle, want burst of 2", allowed)
	}
}

func TestLimiter_EvictIdle(t *testing.T) {
	l, now := newTestLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})

	l.take("user:stale")
	*now = now.Add(2 * time.Minute)
	l.take("user:fresh")

	l.mu.Lock()
	l.evictIdle(*now)
	_, staleKept := l.callers["user:stale"]
	_, freshKept := l.callers["user:fresh"]
	l.mu.Unlock()

	if staleKept {
		t.Error("idle caller was not evicted")
	}
	if !freshKept {
		t.Error("active caller was evicted")
	}
}

func newLimitContext(e *echo.Echo) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/shifts", nil)
	req.RemoteAddr = "192.0.2.1:51000"
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRateLimitKey(t *testing.T) {
	e := echo.New()

	t.Run("authenticated user", func(t *testing.T) {
		c, _ := newLimitContext(e)
		actor := auth.Actor{UserID: uuid.New(), AgencyID: "sunrise_care", Roles: []string{"caregiver"}}
		c.SetRequest(c.Request().WithContext(auth.WithActor(c.Request().Context(), actor)))

		want := "user:" + actor.UserID.String()
		if got := rateLimitKey(c); got != want {
			t.Errorf("rateLimitKey() = %q, want %q", got, want)
		}
	})

	t.Run("tenant without actor", func(t *testing.T) {
		c, _ := newLimitContext(e)
		c.Set("jwt_tenant_id", "oakwood_home")

		if got := rateLimitKey(c); got != "tenant:oakwood_home" {
			t.Errorf("rateLimitKey() = %q, want tenant:oakwood_home", got)
		}
	})

	t.Run("anonymous falls back to IP", func(t *testing.T) {
		c, _ := newLimitContext(e)

		if got := rateLimitKey(c); got != "ip:192.0.2.1" {
			t.Errorf("rateLimitKey() = %q, want ip:192.0.2.1", got)
		}
	})
}

func TestRateLimit_PerCallerIsolation(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})
	handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	send := func(actor auth.Actor) (int, http.Header, error) {
		c, rec := newLimitContext(e)
		c.SetRequest(c.Request().WithContext(auth.WithActor(c.Request().Context(), actor)))
		err := handler(c)
		if err != nil {
			if he, ok := err.(*echo.HTTPError); ok {
				return he.Code, rec.Header(), err
			}
		}
		return rec.Code, rec.Header(), err
	}

	alice := auth.Actor{UserID: uuid.New(), AgencyID: "sunrise_care"}
	bob := auth.Actor{UserID: uuid.New(), AgencyID: "sunrise_care"}

	if code, _, err := send(alice); err != nil || code != http.StatusOK {
		t.Fatalf("first request: code=%d err=%v", code, err)
	}

	code, headers, err := send(alice)
	if err == nil || code != http.StatusTooManyRequests {
		t.Fatalf("second request: code=%d err=%v, want 429", code, err)
	}
	if headers.Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}

	// A different user in the same agency has their own bucket.
	if code, _, err := send(bob); err != nil || code != http.StatusOK {
		t.Fatalf("other caller: code=%d err=%v, want 200", code, err)
	}
}

func TestRateLimit_SetsLimitHeader(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 50, BurstSize: 100})
	handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	c, rec := newLimitContext(e)
	if err := handler(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "50" {
		t.Errorf("X-RateLimit-Limit = %q, want 50", got)
	}
}
