package httpserver

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"storefront-core/internal/auth"
	"storefront-core/internal/domain"
)

const principalKey = "principal"

// requestLogger logs one line per request through the service logger.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		}
		if p, ok := c.Get(principalKey); ok {
			attrs = append(attrs, slog.String("user_id", p.(domain.Principal).UserID))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("error", c.Errors.String()))
		}

		ctx := c.Request.Context()
		switch {
		case status >= http.StatusInternalServerError:
			logger.ErrorContext(ctx, "http request", attrs...)
		case status >= http.StatusBadRequest:
			logger.WarnContext(ctx, "http request", attrs...)
		default:
			logger.InfoContext(ctx, "http request", attrs...)
		}
	}
}

// authMiddleware requires a valid bearer token and stores the principal on the context.
func authMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		p, err := validator.Validate(token)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

func principal(c *gin.Context) domain.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return domain.Principal{}
	}
	p, _ := v.(domain.Principal)
	return p
}

// userLimiter keeps one token bucket per user. Buckets that have refilled completely carry no state and
// are dropped by a sweep at most once per refill period.
type userLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	limit     rate.Limit
	burst     int
	refill    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newUserLimiter(perMinute int) *userLimiter {
	return &userLimiter{
		limiters:  make(map[string]*rate.Limiter),
		limit:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:     perMinute,
		refill:    time.Minute,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (l *userLimiter) allow(userID string) bool {
	now := l.now()
	l.mu.Lock()
	if now.Sub(l.lastSweep) >= l.refill {
		l.sweep(now)
	}
	lim, ok := l.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = lim
	}
	l.mu.Unlock()
	return lim.AllowN(now, 1)
}

// sweep must be called with mu held.
func (l *userLimiter) sweep(now time.Time) {
	for id, lim := range l.limiters {
		if lim.TokensAt(now) >= float64(l.burst) {
			delete(l.limiters, id)
		}
	}
	l.lastSweep = now
}

func rateLimitPerUser(l *userLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(principal(c).UserID) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{
				StatusCode: http.StatusTooManyRequests,
				Message:    "too many checkout attempts, try again shortly",
			})
			return
		}
		c.Next()
	}
}
