// Package middleware provides Gin HTTP middleware for authentication, rate
// limiting, security headers, request IDs, and metrics.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RequestID → Metrics → RateLimit → Auth → Handler
//
// Security headers run first so they appear on all responses including
// errors. Rate limiting runs before auth to block brute-force attempts
// before any DB work. Auth populates the account identity; handlers read it
// from the context.
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plugin-registry/plugin-registry/internal/auth"
	"github.com/plugin-registry/plugin-registry/internal/db/models"
	"github.com/plugin-registry/plugin-registry/internal/session"
)

// Context keys populated by the auth middleware.
const (
	AccountKey   = "account"
	AccountIDKey = "account_id"
	SessionIDKey = "session_id"
)

// AccountResolver loads accounts by id.
type AccountResolver interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
}

// TokenAuthenticator resolves a token digest to its row.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, digest []byte) (*models.APIToken, error)
}

// SessionAuth authenticates browser requests via the session cookie.
// Requests without a valid, unexpired session bound to an account get 401.
func SessionAuth(store session.Store, accounts AccountResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(session.CookieName)
		if err != nil || sessionID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
			return
		}

		data, err := store.Get(c.Request.Context(), sessionID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
			return
		}
		if data == nil || data.AccountID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
			return
		}

		account, err := accounts.GetByID(c.Request.Context(), data.AccountID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load account"})
			return
		}
		if account == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
			return
		}

		c.Set(AccountKey, account)
		c.Set(AccountIDKey, account.ID)
		c.Set(SessionIDKey, sessionID)
		c.Next()
	}
}

// TokenAuth authenticates API requests via a bearer API token. The token's
// SHA-256 digest is looked up against the active-token index; revoked or
// unknown tokens get 401.
func TokenAuth(tokens TokenAuthenticator, accounts AccountResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		plaintext := auth.ExtractBearer(c.GetHeader("Authorization"))
		if plaintext == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		token, err := tokens.Authenticate(c.Request.Context(), auth.DigestToken(plaintext))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to verify token"})
			return
		}
		if token == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		account, err := accounts.GetByID(c.Request.Context(), token.AccountID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load account"})
			return
		}
		if account == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(AccountKey, account)
		c.Set(AccountIDKey, account.ID)
		c.Next()
	}
}

// CurrentAccount returns the authenticated account from the context.
func CurrentAccount(c *gin.Context) *models.Account {
	v, ok := c.Get(AccountKey)
	if !ok {
		return nil
	}
	account, _ := v.(*models.Account)
	return account
}
