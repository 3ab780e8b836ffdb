package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleDailyProgress(c *gin.Context) {
	offset, err := offsetFromQuery(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	progress, err := h.stats.DailyProgress(c.Request.Context(), c.GetString(userIDContextKey), offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"daily_goal":                  progress.DailyGoal,
		"promodoros_until_long_break": progress.PromodorosUntilLongBreak,
		"current_promodoros":          progress.CurrentPromodoros,
	})
}

func (h *httpHandler) handleCurrentWorkingTime(c *gin.Context) {
	offset, err := offsetFromQuery(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	worked, err := h.stats.CurrentWorkingTime(c.Request.Context(), c.GetString(userIDContextKey), offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"time": worked.Minutes})
}

func (h *httpHandler) handleLongestSession(c *gin.Context) {
	offset, err := offsetFromQuery(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	longest, err := h.stats.LongestSession(c.Request.Context(), c.GetString(userIDContextKey), offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"time": longest.Minutes, "date": longest.Date})
}

func (h *httpHandler) handleStreak(c *gin.Context) {
	offset, err := offsetFromQuery(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	streaks, err := h.stats.Streak(c.Request.Context(), c.GetString(userIDContextKey), offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"current_streak": streaks.Current,
		"longest_streak": streaks.Longest,
	})
}

func (h *httpHandler) handleYearlyProgress(c *gin.Context) {
	offset, err := offsetFromQuery(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	yearly, err := h.stats.YearlyProgress(c.Request.Context(), c.GetString(userIDContextKey), offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"events": yearly.Events, "min": yearly.Min, "max": yearly.Max})
}
