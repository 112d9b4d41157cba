package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"gamelend/internal/domain"
	"gamelend/internal/pkg/jwt"
	"gamelend/internal/repository"
)

const (
	ContextSession = "session"
	ContextUserID  = "user_id"
)

type SessionStore interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
}

// SessionAuth resolves the browser session cookie, or a bearer token sent
// directly by an API client, into a *domain.Session on the gin context.
func SessionAuth(store SessionStore, tokens *jwt.Service, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, err := c.Cookie(cookieName); err == nil && id != "" {
			sess, err := store.GetByID(c.Request.Context(), id)
			if err != nil {
				if !errors.Is(err, repository.ErrSessionNotFound) {
					_ = c.Error(err)
				}
				abortUnauthorized(c, "SESSION_EXPIRED", "Session expired, please log in again")
				return
			}
			setSession(c, sess)
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "AUTH_HEADER_MISSING", "Authorization required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
			abortUnauthorized(c, "INVALID_AUTH_FORMAT", "Authorization header must be 'Bearer <token>'")
			return
		}

		token := strings.TrimSpace(parts[1])
		claims, err := tokens.ValidateToken(token)
		if err != nil {
			abortUnauthorized(c, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		// Bearer callers get a session keyed by the token digest so their
		// view survives across requests.
		setSession(c, &domain.Session{
			ID:        "bearer:" + repository.HashSessionID(token),
			Token:     token,
			ViewerID:  claims.UserID,
			Username:  claims.Username,
			ExpiresAt: claims.Expiry(),
		})
		c.Next()
	}
}

// SessionFrom returns the session set by SessionAuth, or nil.
func SessionFrom(c *gin.Context) *domain.Session {
	v, ok := c.Get(ContextSession)
	if !ok {
		return nil
	}
	sess, _ := v.(*domain.Session)
	return sess
}

func setSession(c *gin.Context, sess *domain.Session) {
	c.Set(ContextSession, sess)
	c.Set(ContextUserID, sess.ViewerID)
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": message},
	})
}
