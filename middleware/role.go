package middleware

import (
	"net/http"

	"rivelya/utils"

	"github.com/gin-gonic/gin"
)

// RequireExpert rejects callers whose token carries no expert profile.
func RequireExpert() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxExpertID) == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, utils.ErrorResponse{
				Message: "This endpoint is reserved for experts", Code: "not_an_expert",
			})
			return
		}
		c.Next()
	}
}

// RequireRole rejects callers whose token role differs from role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxRole) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, utils.ErrorResponse{
				Message: "Insufficient permissions", Code: "forbidden",
			})
			return
		}
		c.Next()
	}
}
