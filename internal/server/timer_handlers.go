package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/promodoro/backend/internal/apperrors"
	"github.com/promodoro/backend/internal/calendar"
)

var (
	errMissingEventID = errors.New("event id is required")
	errInvalidEventID = errors.New("event id must be positive")
)

type timerActionRequest struct {
	ID     *int64 `json:"id"`
	Offset *int   `json:"offset"`
}

func (h *httpHandler) handleCurrentEvent(c *gin.Context) {
	offset, err := offsetFromQuery(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	event, err := h.timer.ResolveCurrentEvent(c.Request.Context(), c.GetString(userIDContextKey), offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"event": event})
}

func (h *httpHandler) handleToggleEvent(c *gin.Context) {
	eventID, offset, err := bindTimerAction(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	event, err := h.timer.ToggleEvent(c.Request.Context(), c.GetString(userIDContextKey), eventID, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"event": event})
}

func (h *httpHandler) handleAdvanceEvent(c *gin.Context) {
	eventID, offset, err := bindTimerAction(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	event, err := h.timer.AdvanceEvent(c.Request.Context(), c.GetString(userIDContextKey), eventID, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"event": event})
}

// handleTimerStream pushes a timer-change event whenever another request mutates
// the caller's timer, plus periodic heartbeats to keep proxies from closing the stream.
func (h *httpHandler) handleTimerStream(c *gin.Context) {
	ctx := c.Request.Context()
	stream, cleanup := h.dispatcher.Subscribe(ctx, c.GetString(userIDContextKey))
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case message, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(message.EventType, gin.H{
				"event_id":  message.EventID,
				"timestamp": message.Timestamp.Format(time.RFC3339),
				"source":    realtimeSourceBackend,
			})
			return true
		case tick := <-heartbeat.C:
			c.SSEvent(realtimeEventHeartbeat, gin.H{
				"timestamp": tick.UTC().Format(time.RFC3339),
				"source":    realtimeSourceBackend,
			})
			return true
		}
	})
}

func offsetFromQuery(c *gin.Context) (calendar.Offset, error) {
	offset, err := calendar.ParseOffset(c.Query("offset"))
	if err != nil {
		return 0, invalidOffset(err)
	}
	return offset, nil
}

func bindTimerAction(c *gin.Context) (int64, calendar.Offset, error) {
	var request timerActionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		return 0, 0, apperrors.Validation("server.timer_action.invalid_body", err)
	}
	if request.ID == nil {
		invalid := apperrors.FieldInvalid("server.timer_action.missing_id", "id", apperrors.MessageInvalid)
		invalid.Err = errMissingEventID
		return 0, 0, invalid
	}
	if *request.ID < 1 {
		invalid := apperrors.FieldInvalid("server.timer_action.invalid_id", "id", apperrors.MessageInvalid)
		invalid.Err = errInvalidEventID
		return 0, 0, invalid
	}
	if request.Offset == nil {
		return 0, 0, invalidOffset(calendar.ErrInvalidOffset)
	}
	offset, err := calendar.NewOffset(*request.Offset)
	if err != nil {
		return 0, 0, invalidOffset(err)
	}
	return *request.ID, offset, nil
}

func invalidOffset(cause error) error {
	invalid := apperrors.FieldInvalid("server.offset.invalid", "offset", apperrors.MessageInvalid)
	invalid.Err = cause
	return invalid
}
