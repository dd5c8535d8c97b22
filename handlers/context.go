package handlers

import (
	"net/http"
	"strconv"

	"rivelya/middleware"
	"rivelya/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// getLogger retrieves a Zap logger from the Gin context or falls back to the global one.
func getLogger(c *gin.Context) *zap.Logger {
	if l, exists := c.Get("logger"); exists {
		if logger, ok := l.(*zap.Logger); ok {
			return logger
		}
	}
	return utils.GetLogger()
}

// currentUser returns the authenticated user id set by JWTAuthMiddleware.
func currentUser(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.CtxUserID)
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse{
			Message: "User ID not found in context", Code: "unauthenticated",
		})
		return "", false
	}
	return userID, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		getLogger(c).Debug("invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadRequest, utils.ErrorResponse{
			Message: "invalid input", Code: "invalid_input", Details: err.Error(),
		})
		return false
	}
	return true
}

func queryLimit(c *gin.Context) int64 {
	n, err := strconv.ParseInt(c.Query("limit"), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

type decisionInput struct {
	Accept *bool `json:"accept" binding:"required"`
}
