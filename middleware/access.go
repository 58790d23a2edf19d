// middleware/access.go

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/schoolsync/pulse/access"
	logger "github.com/schoolsync/pulse/logging"
	"github.com/schoolsync/pulse/model"
)

// RequireAccess gates a route on an access rule. It shares the evaluator
// used for programmatic and display gating, so the three never diverge.
func RequireAccess(evaluator *access.Evaluator, rule model.AccessRule) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		if !evaluator.Evaluate(principal, rule) {
			logger.Warn("Access rule denied request",
				zap.String("userID", principal.UserID),
				zap.String("path", c.Request.URL.Path))
			c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			c.Abort()
			return
		}
		c.Next()
	}
}
