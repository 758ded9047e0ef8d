// token_repository.go implements TokenRepository, providing database queries
// for API token creation, listing, revocation, and digest-based
// authentication lookup.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/plugin-registry/plugin-registry/internal/db/models"
)

// TokenRepository handles API token database operations.
type TokenRepository struct {
	db *sqlx.DB
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create inserts a new token row for the account. The caller supplies the
// digest; the plaintext never reaches this layer.
func (r *TokenRepository) Create(ctx context.Context, accountID, name string, digest []byte) (*models.APIToken, error) {
	query := `
		INSERT INTO api_tokens (account_id, name, token_digest)
		VALUES ($1, $2, $3)
		RETURNING id, account_id, name, token_digest, revoked, last_used_at, created_at
	`

	token := &models.APIToken{}
	err := r.db.GetContext(ctx, token, query, accountID, name, digest)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	return token, nil
}

// ListByAccount returns all non-revoked tokens for an account, newest first.
func (r *TokenRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.APIToken, error) {
	query := `
		SELECT id, account_id, name, token_digest, revoked, last_used_at, created_at
		FROM api_tokens
		WHERE account_id = $1 AND NOT revoked
		ORDER BY created_at DESC
	`

	tokens := make([]*models.APIToken, 0)
	err := r.db.SelectContext(ctx, &tokens, query, accountID)
	if err != nil {
		return nil, err
	}

	return tokens, nil
}

// Revoke marks the token revoked. The account scope prevents revoking
// another account's token by guessing its id. Returns false when no
// matching active token exists.
func (r *TokenRepository) Revoke(ctx context.Context, accountID, tokenID string) (bool, error) {
	query := `
		UPDATE api_tokens
		SET revoked = TRUE
		WHERE id = $1 AND account_id = $2 AND NOT revoked
	`

	result, err := r.db.ExecContext(ctx, query, tokenID, accountID)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// Authenticate resolves a token digest to its row, updating last_used_at in
// the same statement so the lookup and the usage stamp are atomic. Revoked
// tokens never match.
func (r *TokenRepository) Authenticate(ctx context.Context, digest []byte) (*models.APIToken, error) {
	query := `
		UPDATE api_tokens
		SET last_used_at = NOW()
		WHERE token_digest = $1 AND NOT revoked
		RETURNING id, account_id, name, token_digest, revoked, last_used_at, created_at
	`

	token := &models.APIToken{}
	err := r.db.GetContext(ctx, token, query, digest)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return token, nil
}
