// admission.go bridges the admission controller into the Gin chain. Each
// mutating route is tagged with a logical operation name ("clone-board",
// "create-card"); the middleware looks up that operation's sliding-window,
// daily, and global limits in the current rate-limit config and asks the
// controller to admit the request before the handler runs.
package middleware

import (
	"strconv"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/openboard/openboard/internal/admission"
	"github.com/openboard/openboard/internal/apperr"
	"github.com/openboard/openboard/internal/config"
)

// LimitSource holds the live rate-limit configuration. The config watcher
// swaps in a new snapshot on reload; in-flight requests keep the snapshot
// they started with.
type LimitSource struct {
	current atomic.Pointer[config.RateLimitsConfig]
}

// NewLimitSource seeds the source with the boot-time configuration.
func NewLimitSource(limits *config.RateLimitsConfig) *LimitSource {
	s := &LimitSource{}
	s.current.Store(limits)
	return s
}

// Update replaces the active limits. Safe to call concurrently with requests.
func (s *LimitSource) Update(limits *config.RateLimitsConfig) {
	if limits != nil {
		s.current.Store(limits)
	}
}

// Load returns the active limits, or nil when none were configured.
func (s *LimitSource) Load() *config.RateLimitsConfig {
	if s == nil {
		return nil
	}
	return s.current.Load()
}

// Admission enforces the per-user sliding window, the per-user daily quota,
// and the global circuit breaker for one logical operation. Limits the
// operation has no entry for are simply not enforced, so new operations can
// ship before their limits are tuned.
//
// Runs after auth: the caller identity must already be on the context.
func Admission(ctrl *admission.Controller, limits *LimitSource, op string) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := limits.Load()
		if cfg == nil || !cfg.Enabled {
			c.Next()
			return
		}

		userID := c.GetString("user_id")
		if userID == "" {
			// Anonymous mutations never reach admission (auth rejects them
			// first), but fall back to the client IP so a misordered chain
			// degrades to per-IP limiting instead of a shared global bucket.
			userID = "anon:" + c.ClientIP()
		}

		ctx := c.Request.Context()

		if w, ok := cfg.WindowFor(op); ok {
			if err := ctrl.Admit(ctx, userID, op, w.MaxRequests, w.Window); err != nil {
				abortAdmission(c, err)
				return
			}
		}
		if max, ok := cfg.Daily[op]; ok {
			if err := ctrl.AdmitDaily(ctx, userID, op, max); err != nil {
				abortAdmission(c, err)
				return
			}
		}
		if max, ok := cfg.GlobalDaily[op]; ok {
			if err := ctrl.AdmitGlobalDaily(ctx, op, max); err != nil {
				abortAdmission(c, err)
				return
			}
		}

		c.Next()
	}
}

func abortAdmission(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	// Daily quota rejections reset at midnight UTC and carry no per-second
	// hint, so only window rejections get a Retry-After header.
	if retry := apperr.RetryAfter(err); retry > 0 {
		secs := int(retry.Seconds() + 0.5)
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		body["retry_after"] = secs
	}
	c.AbortWithStatusJSON(apperr.Status(err), body)
}
