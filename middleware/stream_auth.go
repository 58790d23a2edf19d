// middleware/stream_auth.go

package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	logger "github.com/schoolsync/pulse/logging"
	"github.com/schoolsync/pulse/model"
)

const principalKey = "principal"

// StreamAuth validates the HMAC bearer token on incoming requests and puts
// the resolved principal on the context. Browser WebSocket clients cannot
// set headers, so a token query parameter is accepted as a fallback.
func StreamAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		principal, err := parseToken(token, secret)
		if err != nil {
			logger.Warn("Rejected stream credentials", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		c.Set(principalKey, principal)
		c.Set("userID", principal.UserID)
		c.Next()
	}
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(c *gin.Context) (model.Principal, bool) {
	value, exists := c.Get(principalKey)
	if !exists {
		return model.Principal{}, false
	}
	principal, ok := value.(model.Principal)
	return principal, ok
}

func parseToken(tokenString, secret string) (model.Principal, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return model.Principal{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return model.Principal{}, fmt.Errorf("invalid token claims")
	}

	principal := model.Principal{}
	if sub, err := claims.GetSubject(); err == nil {
		principal.UserID = sub
	}
	principal.Roles = claimStrings(claims, "roles")
	principal.Permissions = claimStrings(claims, "permissions")
	return principal, nil
}

func claimStrings(claims jwt.MapClaims, key string) []string {
	raw, ok := claims[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// IssueToken mints an HMAC bearer token for a principal. Used by the dev
// relay and tests.
func IssueToken(principal model.Principal, secret string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": principal.UserID,
		"exp": time.Now().Add(ttl).Unix(),
	}
	if len(principal.Roles) > 0 {
		claims["roles"] = principal.Roles
	}
	if len(principal.Permissions) > 0 {
		claims["permissions"] = principal.Permissions
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
