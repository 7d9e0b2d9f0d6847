// Package middleware holds the bearer-token admin-auth gate for opsapi's
// /admin group, grounded on internal/middleware.AuthMiddleware.RequireAuth
// — same "extract token, verify, 401/403 on failure" shape, swapped from
// session-lookup auth to a static JWT secret since this domain has no
// user/session table.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/avitoscout/orchestrator/internal/logging"
	"github.com/avitoscout/orchestrator/internal/opsapi/apierr"
	"github.com/avitoscout/orchestrator/internal/opsapi/reqctx"
)

type AuthMiddleware struct {
	log    *logging.Logger
	secret []byte
}

func NewAuthMiddleware(log *logging.Logger, secret string) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("component", "OpsAPIAuthMiddleware"), secret: []byte(secret)}
}

// RequireAdmin validates a bearer JWT signed with the configured secret.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := reqctx.RequestID(c.Request.Context())

		tokenString := extractBearerToken(c)
		if tokenString == "" {
			m.abort(c, requestID, "missing_bearer_token", nil)
			return
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
			return m.secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			m.log.Debug("rejected admin token", "request_id", requestID, "error", err)
			m.abort(c, requestID, "invalid_token", err)
			return
		}
		c.Next()
	}
}

func (m *AuthMiddleware) abort(c *gin.Context, requestID, code string, err error) {
	apiErr := apierr.New(http.StatusUnauthorized, code, err)
	c.AbortWithStatusJSON(apiErr.Status, apierr.Body{
		Error:     apiErr.Error(),
		Code:      apiErr.Code,
		RequestID: requestID,
	})
}

func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:]
	}
	return ""
}
