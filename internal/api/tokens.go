// tokens.go implements the /me account endpoints: profile, API token
// creation, listing, and revocation.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plugin-registry/plugin-registry/internal/auth"
	"github.com/plugin-registry/plugin-registry/internal/db/models"
	"github.com/plugin-registry/plugin-registry/internal/middleware"
)

// TokenStore is the repository surface the token handlers need.
type TokenStore interface {
	Create(ctx context.Context, accountID, name string, digest []byte) (*models.APIToken, error)
	ListByAccount(ctx context.Context, accountID string) ([]*models.APIToken, error)
	Revoke(ctx context.Context, accountID, tokenID string) (bool, error)
}

// AccountHandlers serves /me.
type AccountHandlers struct {
	tokens TokenStore
}

// NewAccountHandlers creates the account handler set.
func NewAccountHandlers(tokens TokenStore) *AccountHandlers {
	return &AccountHandlers{tokens: tokens}
}

// Me returns the authenticated account.
func (h *AccountHandlers) Me(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentAccount(c))
}

// ListTokens returns the account's active API tokens. Digests never leave
// the database layer serialized.
func (h *AccountHandlers) ListTokens(c *gin.Context) {
	account := middleware.CurrentAccount(c)

	tokens, err := h.tokens.ListByAccount(c.Request.Context(), account.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tokens"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

type createTokenRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateToken mints a new API token. The plaintext appears once in this
// response and is never retrievable again.
func (h *AccountHandlers) CreateToken(c *gin.Context) {
	var req createTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token name is required"})
		return
	}

	plaintext, digest, err := auth.GenerateToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	account := middleware.CurrentAccount(c)
	token, err := h.tokens.Create(c.Request.Context(), account.ID, req.Name, digest)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
		return
	}

	token.Plaintext = plaintext
	c.JSON(http.StatusCreated, token)
}

// RevokeToken revokes one of the account's tokens.
func (h *AccountHandlers) RevokeToken(c *gin.Context) {
	account := middleware.CurrentAccount(c)

	ok, err := h.tokens.Revoke(c.Request.Context(), account.ID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "token not found"})
		return
	}

	c.Status(http.StatusNoContent)
}
