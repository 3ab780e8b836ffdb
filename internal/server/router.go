package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/promodoro/backend/internal/auth"
	"github.com/promodoro/backend/internal/settings"
	"github.com/promodoro/backend/internal/stats"
	"github.com/promodoro/backend/internal/timer"
	"github.com/promodoro/backend/internal/users"
	"go.uber.org/zap"
)

const (
	userIDContextKey = "promodoro_user_id"
	claimsContextKey = "promodoro_session_claims"
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingUsersService     = errors.New("users service dependency required")
	errMissingTimerService     = errors.New("timer service dependency required")
	errMissingSettingsService  = errors.New("settings service dependency required")
	errMissingStatsService     = errors.New("stats service dependency required")
	errMissingDispatcher       = errors.New("realtime dispatcher dependency required")
	errMissingCookieName       = errors.New("cookie name required")
)

// SessionValidator resolves the session carried by a request.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

type Dependencies struct {
	SessionValidator  SessionValidator
	Users             *users.Service
	Timer             *timer.Service
	Settings          *settings.Service
	Stats             *stats.Service
	Dispatcher        *RealtimeDispatcher
	Logger            *zap.Logger
	CookieName        string
	CookieSecure      bool
	Development       bool
	AllowedOrigins    []string
	AuthRatePerSecond float64
	AuthRateBurst     int
	HeartbeatInterval time.Duration
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	switch {
	case deps.SessionValidator == nil:
		return nil, errMissingSessionValidator
	case deps.Users == nil:
		return nil, errMissingUsersService
	case deps.Timer == nil:
		return nil, errMissingTimerService
	case deps.Settings == nil:
		return nil, errMissingSettingsService
	case deps.Stats == nil:
		return nil, errMissingStatsService
	case deps.Dispatcher == nil:
		return nil, errMissingDispatcher
	case deps.CookieName == "":
		return nil, errMissingCookieName
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = realtimeHeartbeatInterval
	}

	handler := &httpHandler{
		sessions:          deps.SessionValidator,
		users:             deps.Users,
		timer:             deps.Timer,
		settings:          deps.Settings,
		stats:             deps.Stats,
		dispatcher:        deps.Dispatcher,
		logger:            logger,
		cookieName:        deps.CookieName,
		cookieSecure:      deps.CookieSecure,
		development:       deps.Development,
		heartbeatInterval: heartbeat,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	router.GET("/healthz", func(c *gin.Context) {
		respondOK(c, http.StatusOK, gin.H{"status": "ok"})
	})

	limiter := newClientRateLimiter(deps.AuthRatePerSecond, deps.AuthRateBurst)
	guest := router.Group("/auth")
	guest.Use(limiter.middleware(), handler.guestOnly)
	guest.POST("/register", handler.handleRegister)
	guest.POST("/login", handler.handleLogin)
	router.POST("/auth/logout", handler.handleLogout)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/timer/current", handler.handleCurrentEvent)
	protected.POST("/timer/toggle", handler.handleToggleEvent)
	protected.POST("/timer/advance", handler.handleAdvanceEvent)
	protected.GET("/timer/stream", handler.handleTimerStream)

	protected.GET("/settings", handler.handleGetSettings)
	protected.PUT("/settings/durations", handler.handleSaveDurations)
	protected.PUT("/settings/other", handler.handleSaveOtherSettings)

	protected.GET("/stats/daily-progress", handler.handleDailyProgress)
	protected.GET("/stats/session/current", handler.handleCurrentWorkingTime)
	protected.GET("/stats/session/longest", handler.handleLongestSession)
	protected.GET("/stats/streak", handler.handleStreak)
	protected.GET("/stats/yearly", handler.handleYearlyProgress)

	return router, nil
}

type httpHandler struct {
	sessions          SessionValidator
	users             *users.Service
	timer             *timer.Service
	settings          *settings.Service
	stats             *stats.Service
	dispatcher        *RealtimeDispatcher
	logger            *zap.Logger
	cookieName        string
	cookieSecure      bool
	development       bool
	heartbeatInterval time.Duration
}
