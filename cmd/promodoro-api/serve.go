package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/promodoro/backend/internal/auth"
	"github.com/promodoro/backend/internal/config"
	"github.com/promodoro/backend/internal/database"
	"github.com/promodoro/backend/internal/logging"
	"github.com/promodoro/backend/internal/server"
	"github.com/promodoro/backend/internal/settings"
	"github.com/promodoro/backend/internal/stats"
	"github.com/promodoro/backend/internal/timer"
	"github.com/promodoro/backend/internal/users"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.Environment)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if !appConfig.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(databaseOptions(appConfig), logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	handler, err := buildHandler(appConfig, db, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("environment", appConfig.Environment),
			zap.String("database_driver", appConfig.DatabaseDriver),
		)
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func buildHandler(appConfig config.AppConfig, db *gorm.DB, logger *zap.Logger) (http.Handler, error) {
	tokenIssuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        appConfig.Issuer,
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return nil, err
	}
	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        appConfig.Issuer,
		CookieName:    appConfig.CookieName,
	})
	if err != nil {
		return nil, err
	}

	usersService, err := users.NewService(users.ServiceConfig{
		Database:   db,
		Tokens:     tokenIssuer,
		IDProvider: users.NewUUIDProvider(),
		Clock:      time.Now,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	dispatcher := server.NewRealtimeDispatcher()
	timerService, err := timer.NewService(timer.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
		Notifier: dispatcher,
	})
	if err != nil {
		return nil, err
	}
	settingsService, err := settings.NewService(settings.ServiceConfig{Database: db, Logger: logger})
	if err != nil {
		return nil, err
	}
	statsService, err := stats.NewService(stats.ServiceConfig{Database: db, Clock: time.Now, Logger: logger})
	if err != nil {
		return nil, err
	}

	return server.NewHTTPHandler(server.Dependencies{
		SessionValidator:  sessionValidator,
		Users:             usersService,
		Timer:             timerService,
		Settings:          settingsService,
		Stats:             statsService,
		Dispatcher:        dispatcher,
		Logger:            logger,
		CookieName:        appConfig.CookieName,
		CookieSecure:      appConfig.CookieSecure,
		Development:       appConfig.IsDevelopment(),
		AllowedOrigins:    appConfig.AllowedOrigins,
		AuthRatePerSecond: appConfig.AuthRatePerSecond,
		AuthRateBurst:     appConfig.AuthRateBurst,
	})
}
