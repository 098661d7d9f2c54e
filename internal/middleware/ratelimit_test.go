package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"

	"github.com/openboard/openboard/internal/config"
)

// newTestLimiter backs the edge limiter with an in-process miniredis.
func newTestLimiter(t *testing.T, rate, burst int) *EdgeRateLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return NewEdgeRateLimiterWithClient(rdb, redis_rate.Limit{
		Rate:   rate,
		Burst:  burst,
		Period: time.Minute,
	}, nil)
}

func edgeRouter(e *EdgeRateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(EdgeRateLimitMiddleware(e))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func doGet(r *gin.Engine, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = ip + ":12345"
	r.ServeHTTP(w, req)
	return w
}

func TestEdgeRateLimit_AllowsWithinBurst(t *testing.T) {
	r := edgeRouter(newTestLimiter(t, 10, 3))

	for i := 0; i < 3; i++ {
		if w := doGet(r, "10.0.0.1"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
	}
}

func TestEdgeRateLimit_RejectsOverBurst(t *testing.T) {
	r := edgeRouter(newTestLimiter(t, 1, 2))

	doGet(r, "10.0.0.2")
	doGet(r, "10.0.0.2")
	w := doGet(r, "10.0.0.2")

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}
}

func TestEdgeRateLimit_KeysAreIndependentPerIP(t *testing.T) {
	r := edgeRouter(newTestLimiter(t, 1, 1))

	if w := doGet(r, "10.0.0.3"); w.Code != http.StatusOK {
		t.Fatalf("first ip: status = %d, want 200", w.Code)
	}
	if w := doGet(r, "10.0.0.3"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("first ip second request: status = %d, want 429", w.Code)
	}
	// A different client is unaffected.
	if w := doGet(r, "10.0.0.4"); w.Code != http.StatusOK {
		t.Fatalf("second ip: status = %d, want 200", w.Code)
	}
}

func TestEdgeRateLimit_KeysByIPOnly(t *testing.T) {
	// The limiter sits before authentication in the chain, so a user id on
	// the context never changes the key: same IP, same bucket.
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", c.Query("as"))
		c.Next()
	})
	r.Use(EdgeRateLimitMiddleware(newTestLimiter(t, 1, 1)))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	do := func(user string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping?as="+user, nil)
		req.RemoteAddr = "10.0.0.8:12345"
		r.ServeHTTP(w, req)
		return w
	}

	if w := do("alice"); w.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want 200", w.Code)
	}
	if w := do("bob"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request, different user: status = %d, want 429", w.Code)
	}
}

func TestEdgeRateLimit_SetsRateHeaders(t *testing.T) {
	r := edgeRouter(newTestLimiter(t, 10, 5))

	w := doGet(r, "10.0.0.5")
	if got := w.Header().Get("X-RateLimit-Limit"); got != "10" {
		t.Errorf("X-RateLimit-Limit = %q, want 10", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got == "" {
		t.Error("X-RateLimit-Remaining header missing")
	}
}

func TestEdgeRateLimit_FailsOpenWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	e := NewEdgeRateLimiterWithClient(rdb, redis_rate.Limit{
		Rate: 1, Burst: 1, Period: time.Minute,
	}, nil)
	r := edgeRouter(e)

	mr.Close()

	// With Redis gone every request passes straight through.
	for i := 0; i < 5; i++ {
		if w := doGet(r, "10.0.0.6"); w.Code != http.StatusOK {
			t.Fatalf("request %d with redis down: status = %d, want 200", i+1, w.Code)
		}
	}
}

func TestEdgeRateLimit_DisabledIsPassThrough(t *testing.T) {
	if e := NewEdgeRateLimiter(&config.EdgeConfig{Enabled: false}, nil); e != nil {
		t.Fatal("NewEdgeRateLimiter should return nil when disabled")
	}
	r := edgeRouter(nil)
	for i := 0; i < 10; i++ {
		if w := doGet(r, "10.0.0.7"); w.Code != http.StatusOK {
			t.Fatalf("pass-through request %d: status = %d, want 200", i+1, w.Code)
		}
	}
}
