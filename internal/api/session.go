// session.go implements the browser login endpoints: OAuth kickoff, the
// GitHub callback, and logout.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plugin-registry/plugin-registry/internal/auth"
	"github.com/plugin-registry/plugin-registry/internal/db/models"
	"github.com/plugin-registry/plugin-registry/internal/session"
)

// GitHubLogin abstracts the OAuth flow for handler tests.
type GitHubLogin interface {
	AuthCodeURL(state string) string
	CompleteLogin(ctx context.Context, code string) (*auth.GitHubUser, string, error)
}

// AccountUpserter provisions accounts on login.
type AccountUpserter interface {
	Upsert(ctx context.Context, ghID int64, ghLogin, ghAccessToken string) (*models.Account, error)
}

// SessionHandlers serves /session.
type SessionHandlers struct {
	store        session.Store
	github       GitHubLogin
	accounts     AccountUpserter
	cookieSecure bool
	cookieMaxAge int
}

// NewSessionHandlers creates the session handler set.
func NewSessionHandlers(store session.Store, github GitHubLogin, accounts AccountUpserter, cookieSecure bool, cookieMaxAge int) *SessionHandlers {
	return &SessionHandlers{
		store:        store,
		github:       github,
		accounts:     accounts,
		cookieSecure: cookieSecure,
		cookieMaxAge: cookieMaxAge,
	}
}

// Begin starts the OAuth flow: a fresh session holds the state parameter
// and the client is handed the GitHub authorization URL.
func (h *SessionHandlers) Begin(c *gin.Context) {
	sessionID, err := session.NewID()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	state, err := session.NewID()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	if err := h.store.Set(c.Request.Context(), sessionID, &session.Data{OAuthState: state}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store session"})
		return
	}

	h.setCookie(c, sessionID, h.cookieMaxAge)
	c.JSON(http.StatusOK, gin.H{
		"url":   h.github.AuthCodeURL(state),
		"state": state,
	})
}

// Authorize is the OAuth callback. The state parameter must match the value
// stashed when the flow began; on success the session is bound to the
// upserted account.
func (h *SessionHandlers) Authorize(c *gin.Context) {
	sessionID, err := c.Cookie(session.CookieName)
	if err != nil || sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no login in progress"})
		return
	}

	data, err := h.store.Get(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}
	if data == nil || data.OAuthState == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no login in progress"})
		return
	}

	if c.Query("state") != data.OAuthState {
		c.JSON(http.StatusBadRequest, gin.H{"error": auth.ErrStateMismatch.Error()})
		return
	}

	user, accessToken, err := h.github.CompleteLogin(c.Request.Context(), c.Query("code"))
	if err != nil {
		slog.Warn("oauth exchange failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "github login failed"})
		return
	}

	account, err := h.accounts.Upsert(c.Request.Context(), user.ID, user.Login, accessToken)
	if err != nil {
		slog.Error("account upsert failed", "gh_login", user.Login, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to provision account"})
		return
	}

	if err := h.store.Set(c.Request.Context(), sessionID, &session.Data{AccountID: account.ID}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store session"})
		return
	}

	slog.Info("account logged in", "gh_login", account.GhLogin)
	c.JSON(http.StatusOK, account)
}

// Logout deletes the session and clears the cookie.
func (h *SessionHandlers) Logout(c *gin.Context) {
	sessionID, err := c.Cookie(session.CookieName)
	if err == nil && sessionID != "" {
		if err := h.store.Delete(c.Request.Context(), sessionID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete session"})
			return
		}
	}

	h.setCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

func (h *SessionHandlers) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetCookie(session.CookieName, value, maxAge, "/", "", h.cookieSecure, true)
}
