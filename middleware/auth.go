package middleware

import (
	"net/http"
	"strings"

	"rivelya/utils"

	"github.com/gin-gonic/gin"
)

// Context keys set by JWTAuthMiddleware.
const (
	CtxUserID   = "userID"
	CtxRole     = "role"
	CtxExpertID = "expertID"
)

// JWTAuthMiddleware resolves the caller from a bearer token. Browsers cannot set headers on
// an EventSource, so the token may also arrive as the access_token query parameter.
func JWTAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		} else {
			tokenString = c.Query("access_token")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse{
				Message: "Missing or invalid Authorization header", Code: "unauthenticated",
			})
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse{
				Message: "Invalid token", Code: "unauthenticated",
			})
			return
		}

		c.Set(CtxUserID, claims.Subject)
		c.Set(CtxRole, claims.Role)
		c.Set(CtxExpertID, claims.ExpertID)
		c.Next()
	}
}
