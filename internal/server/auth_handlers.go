package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/promodoro/backend/internal/apperrors"
	"github.com/promodoro/backend/internal/users"
)

type userPayload struct {
	ID       string     `json:"id"`
	Username string     `json:"username"`
	Role     users.Role `json:"role"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request users.RegisterInput
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, apperrors.Validation("server.register.invalid_body", err))
		return
	}
	session, err := h.users.Register(c.Request.Context(), request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.setSessionCookie(c, session)
	respondOK(c, http.StatusCreated, gin.H{"user": newUserPayload(session.User)})
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request users.LoginInput
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, apperrors.Validation("server.login.invalid_body", err))
		return
	}
	session, err := h.users.Login(c.Request.Context(), request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.setSessionCookie(c, session)
	respondOK(c, http.StatusOK, gin.H{"user": newUserPayload(session.User)})
}

// handleLogout revokes the current session when there is one and always clears the cookie.
func (h *httpHandler) handleLogout(c *gin.Context) {
	if claims, err := h.sessions.ValidateRequest(c.Request); err == nil {
		if err := h.users.Logout(c.Request.Context(), claims); err != nil {
			h.respondError(c, err)
			return
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, "", -1, "/", "", h.cookieSecure, true)
	respondOK(c, http.StatusOK, nil)
}

func (h *httpHandler) setSessionCookie(c *gin.Context, session users.Session) {
	maxAge := int(time.Until(session.Token.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, session.Token.Value, maxAge, "/", "", h.cookieSecure, true)
}

func newUserPayload(user users.User) userPayload {
	return userPayload{ID: user.ID, Username: user.Username, Role: user.Role}
}
