package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/promodoro/backend/internal/apperrors"
	"github.com/promodoro/backend/internal/auth"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	messageTooManyRequests = "Too many requests."
	limiterIdleTTL         = 10 * time.Minute
	limiterPruneThreshold  = 1024
)

var errAlreadyAuthenticated = errors.New("request already carries a live session")

// corsMiddleware admits credentialed calls from the configured origins only.
// Without origins the API is same-origin.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	if len(allowedOrigins) == 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Accept", "Cache-Control", "Last-Event-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// authorizeRequest admits requests carrying a live session cookie.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingSessionToken):
			h.logger.Debug("session cookie missing", zap.String("path", c.FullPath()))
		case errors.Is(err, auth.ErrExpiredSessionToken):
			h.logger.Info("token validation failed", zap.Error(err))
		default:
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		h.respondError(c, apperrors.Unauthorized("server.authorize.invalid_session", err))
		return
	}
	user, err := h.users.Authorize(c.Request.Context(), claims)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Set(userIDContextKey, user.ID)
	c.Set(claimsContextKey, claims)
	c.Next()
}

// guestOnly rejects sign-in and sign-up attempts from requests that are already signed in.
func (h *httpHandler) guestOnly(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		c.Next()
		return
	}
	if _, err := h.users.Authorize(c.Request.Context(), claims); err != nil {
		c.Next()
		return
	}
	h.respondError(c, apperrors.Validation("server.guest_only.authenticated", errAlreadyAuthenticated))
}

// clientRateLimiter keeps one token bucket per client IP.
type clientRateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*clientLimiter
	now      func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientRateLimiter(perSecond float64, burst int) *clientRateLimiter {
	if perSecond <= 0 {
		perSecond = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &clientRateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*clientLimiter),
		now:      time.Now,
	}
}

func (l *clientRateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if len(l.limiters) >= limiterPruneThreshold {
		for existing, entry := range l.limiters {
			if now.Sub(entry.lastSeen) > limiterIdleTTL {
				delete(l.limiters, existing)
			}
		}
	}
	entry, ok := l.limiters[key]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *clientRateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": messageTooManyRequests,
			})
			return
		}
		c.Next()
	}
}
