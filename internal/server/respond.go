package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/promodoro/backend/internal/apperrors"
	"go.uber.org/zap"
)

func respondOK(c *gin.Context, status int, data gin.H) {
	body := gin.H{"success": true}
	for key, value := range data {
		body[key] = value
	}
	c.JSON(status, body)
}

// respondError renders err as a failure envelope. Internal causes are logged and never sent.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	classified, ok := apperrors.As(err)
	if !ok {
		classified = apperrors.Internal("server.unclassified", err)
	}

	status := http.StatusInternalServerError
	message := apperrors.MessageInternal
	switch classified.Kind {
	case apperrors.KindUnauthorized:
		status = http.StatusUnauthorized
		message = apperrors.MessageUnauthorized
	case apperrors.KindValidation:
		status = http.StatusBadRequest
		message = classified.Message
		if message == "" {
			message = apperrors.MessageInvalid
		}
		if h.development && classified.Err != nil {
			message = message + " " + classified.Err.Error()
		}
	case apperrors.KindNotFound:
		status = http.StatusNotFound
		message = classified.Message
	default:
		h.logger.Error("request failed",
			zap.String("code", classified.Code),
			zap.String("path", c.FullPath()),
			zap.String("user_id", c.GetString(userIDContextKey)),
			zap.Error(classified.Err),
		)
	}

	body := gin.H{"success": false, "message": message}
	if classified.Field != "" {
		body["field"] = classified.Field
	}
	c.AbortWithStatusJSON(status, body)
}
