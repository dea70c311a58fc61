package handler

import (
	"errors"
	"net/http"

	"habittracker/internal/model"
	"habittracker/internal/service/auth"
	"habittracker/internal/service/habit"
	"habittracker/pkg/logger"
	"habittracker/pkg/rbac"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContextUserID is the gin context key holding the authenticated user id.
const ContextUserID = "user_id"

func currentUserID(c *gin.Context) (int, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int)
	return id, ok
}

// respondError maps service errors onto HTTP statuses. Anything unknown is
// logged and reported as 500 without details.
func respondError(c *gin.Context, log *zap.Logger, op string, err error) {
	var (
		denied  *rbac.PermissionDeniedError
		invalid *habit.ValidationError
		policy  *auth.PolicyError
	)
	switch {
	case errors.Is(err, model.ErrHabitNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "habit not found"})
	case errors.As(err, &denied):
		c.JSON(http.StatusForbidden, gin.H{"error": denied.Error()})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error()})
	case errors.As(err, &policy):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "password does not meet policy", "details": policy.Violations})
	case errors.Is(err, auth.ErrInvalidEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		logger.WithTrace(c.Request.Context(), log).Error(op+": request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
