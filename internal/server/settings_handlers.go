package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/promodoro/backend/internal/apperrors"
	"github.com/promodoro/backend/internal/settings"
)

func (h *httpHandler) handleGetSettings(c *gin.Context) {
	prefs, err := h.settings.Preferences(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"settings": prefs})
}

func (h *httpHandler) handleSaveDurations(c *gin.Context) {
	var request settings.DurationsInput
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, apperrors.Validation("server.save_durations.invalid_body", err))
		return
	}
	prefs, err := h.settings.SaveDurations(c.Request.Context(), c.GetString(userIDContextKey), request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"settings": prefs})
}

func (h *httpHandler) handleSaveOtherSettings(c *gin.Context) {
	var request settings.OtherSettingsInput
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, apperrors.Validation("server.save_other_settings.invalid_body", err))
		return
	}
	prefs, err := h.settings.SaveOtherSettings(c.Request.Context(), c.GetString(userIDContextKey), request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"settings": prefs})
}
