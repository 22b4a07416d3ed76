package api

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"accord/backend/go/internal/models"
	"accord/backend/go/internal/pii"
	userservice "accord/backend/go/internal/user_service/service"
)

// Context keys set by the auth middleware.
const (
	ctxUserID = "userID"
	ctxToken  = "authToken"
)

// AuthMiddleware validates the bearer token on every request of a group.
// Revoked and expired tokens are rejected; the user ID and raw token are
// stored on the context for the handlers.
func AuthMiddleware(auth *userservice.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header must be of the form 'Bearer <token>'"})
			return
		}
		tokenString := parts[1]

		userID, err := auth.ValidateToken(c.Request.Context(), tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or revoked token"})
			return
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxToken, tokenString)
		c.Next()
	}
}

// RequireAdmin guards the administrative endpoints. It runs after
// AuthMiddleware and checks the role against the database, so revoking the
// admin role takes effect on the next request.
func RequireAdmin(auth *userservice.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint(ctxUserID)
		isAdmin, err := auth.UserHasRole(userID, models.RoleAdmin)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "role check failed"})
			return
		}
		if !isAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}

// redactingWriter buffers the response body so it can be redacted before
// anything reaches the client.
type redactingWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *redactingWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

func (w *redactingWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

// ResponseRedaction rewrites detected PII in response bodies. It is
// installed on the Q&A routes when response redaction is enabled, so an
// answer quoting a sensitive passage never leaves the service unredacted.
func ResponseRedaction(redactor *pii.Redactor) gin.HandlerFunc {
	return func(c *gin.Context) {
		w := &redactingWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = w
		c.Next()
		c.Writer = w.ResponseWriter

		if w.body.Len() == 0 {
			return
		}
		if _, err := w.ResponseWriter.Write([]byte(redactor.Redact(w.body.String()))); err != nil {
			_ = c.Error(err)
		}
	}
}
