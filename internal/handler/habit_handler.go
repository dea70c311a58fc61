package handler

import (
	"net/http"
	"strconv"

	"habittracker/internal/service/habit"
	"habittracker/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type HabitHandler struct {
	svc    *habit.Service
	logger *zap.Logger
}

func NewHabitHandler(svc *habit.Service, logger *zap.Logger) *HabitHandler {
	return &HabitHandler{svc: svc, logger: logger}
}

type habitRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// target resolves the caller and the :id path parameter. It writes the
// error response itself and returns ok=false on failure.
func (h *HabitHandler) target(c *gin.Context) (userID, habitID int, ok bool) {
	userID, ok = currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return 0, 0, false
	}
	idStr := c.Param("id")
	habitID, err := strconv.Atoi(idStr)
	if err != nil || habitID < 1 {
		h.logger.Warn("invalid habit id", zap.String("habit_id", idStr))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid habit id"})
		return 0, 0, false
	}
	return userID, habitID, true
}

func (h *HabitHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	habits, err := h.svc.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "ListHabits", err)
		return
	}

	logger.WithTrace(c.Request.Context(), h.logger).Debug("ListHabits: success",
		zap.Int("user_id", userID),
		zap.Int("habit_count", len(habits)),
	)
	c.JSON(http.StatusOK, gin.H{"habits": habits})
}

func (h *HabitHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}
	var req habitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	created, err := h.svc.Create(c.Request.Context(), userID, req.Name, req.Description)
	if err != nil {
		respondError(c, h.logger, "CreateHabit", err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *HabitHandler) Get(c *gin.Context) {
	userID, habitID, ok := h.target(c)
	if !ok {
		return
	}

	found, err := h.svc.Get(c.Request.Context(), userID, habitID)
	if err != nil {
		respondError(c, h.logger, "GetHabit", err)
		return
	}
	c.JSON(http.StatusOK, found)
}

func (h *HabitHandler) Update(c *gin.Context) {
	userID, habitID, ok := h.target(c)
	if !ok {
		return
	}
	var req habitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	updated, err := h.svc.Update(c.Request.Context(), userID, habitID, req.Name, req.Description)
	if err != nil {
		respondError(c, h.logger, "UpdateHabit", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *HabitHandler) Delete(c *gin.Context) {
	userID, habitID, ok := h.target(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), userID, habitID); err != nil {
		respondError(c, h.logger, "DeleteHabit", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HabitHandler) Track(c *gin.Context) {
	userID, habitID, ok := h.target(c)
	if !ok {
		return
	}

	res, err := h.svc.Track(c.Request.Context(), userID, habitID)
	if err != nil {
		respondError(c, h.logger, "TrackHabit", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"habit":   res.Habit,
		"day":     res.Day.Format("2006-01-02"),
		"created": res.Created,
	})
}

func (h *HabitHandler) Streak(c *gin.Context) {
	userID, habitID, ok := h.target(c)
	if !ok {
		return
	}

	current, err := h.svc.Streak(c.Request.Context(), userID, habitID)
	if err != nil {
		respondError(c, h.logger, "GetStreak", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"habit_id":       habitID,
		"current_streak": current,
	})
}

// Progress serves ?days=N (default from config) as an object keyed by day,
// oldest first.
func (h *HabitHandler) Progress(c *gin.Context) {
	userID, habitID, ok := h.target(c)
	if !ok {
		return
	}
	days := 0
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days"})
			return
		}
		days = n
		if days == 0 {
			// an explicit 0 is out of range, not a request for the default
			days = -1
		}
	}

	progress, err := h.svc.Progress(c.Request.Context(), userID, habitID, days)
	if err != nil {
		respondError(c, h.logger, "GetProgress", err)
		return
	}
	c.JSON(http.StatusOK, progress)
}
