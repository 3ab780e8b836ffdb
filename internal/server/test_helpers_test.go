package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/promodoro/backend/internal/auth"
	"github.com/promodoro/backend/internal/database"
	"github.com/promodoro/backend/internal/settings"
	"github.com/promodoro/backend/internal/stats"
	"github.com/promodoro/backend/internal/timer"
	"github.com/promodoro/backend/internal/users"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	testCookieName    = "token"
	testSigningSecret = "server-test-secret"
	testPassword      = "Secret1!"
)

type testServer struct {
	handler    http.Handler
	dispatcher *RealtimeDispatcher
}

type testServerOption func(*Dependencies)

func withRateLimit(perSecond float64, burst int) testServerOption {
	return func(deps *Dependencies) {
		deps.AuthRatePerSecond = perSecond
		deps.AuthRateBurst = burst
	}
}

func newTestServer(t *testing.T, options ...testServerOption) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(database.Options{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "server.db"),
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{SigningSecret: []byte(testSigningSecret)})
	if err != nil {
		t.Fatalf("failed to build token issuer: %v", err)
	}
	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		CookieName:    testCookieName,
	})
	if err != nil {
		t.Fatalf("failed to build session validator: %v", err)
	}
	usersService, err := users.NewService(users.ServiceConfig{Database: db, Tokens: issuer, HashCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("failed to build users service: %v", err)
	}
	dispatcher := NewRealtimeDispatcher()
	timerService, err := timer.NewService(timer.ServiceConfig{Database: db, Notifier: dispatcher})
	if err != nil {
		t.Fatalf("failed to build timer service: %v", err)
	}
	settingsService, err := settings.NewService(settings.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build settings service: %v", err)
	}
	statsService, err := stats.NewService(stats.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build stats service: %v", err)
	}

	deps := Dependencies{
		SessionValidator:  validator,
		Users:             usersService,
		Timer:             timerService,
		Settings:          settingsService,
		Stats:             statsService,
		Dispatcher:        dispatcher,
		Logger:            zap.NewNop(),
		CookieName:        testCookieName,
		AuthRatePerSecond: 1000,
		AuthRateBurst:     1000,
		HeartbeatInterval: time.Hour,
	}
	for _, option := range options {
		option(&deps)
	}
	handler, err := NewHTTPHandler(deps)
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return &testServer{handler: handler, dispatcher: dispatcher}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, cookie *http.Cookie) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		request.AddCookie(cookie)
	}
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)

	payload := map[string]interface{}{}
	if recorder.Body.Len() > 0 {
		if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
			t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
		}
	}
	return recorder, payload
}

func (s *testServer) register(t *testing.T, username string) *http.Cookie {
	t.Helper()
	recorder, payload := s.do(t, http.MethodPost, "/auth/register", map[string]string{
		"username":         username,
		"password":         testPassword,
		"confirm_password": testPassword,
	}, nil)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("register failed with %d: %v", recorder.Code, payload)
	}
	return sessionCookie(t, recorder)
}

func sessionCookie(t *testing.T, recorder *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == testCookieName {
			return cookie
		}
	}
	t.Fatalf("expected %s cookie in response", testCookieName)
	return nil
}

func eventFrom(t *testing.T, payload map[string]interface{}) map[string]interface{} {
	t.Helper()
	event, ok := payload["event"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected event object, got %v", payload)
	}
	return event
}
