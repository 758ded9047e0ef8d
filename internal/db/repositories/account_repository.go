// Package repositories implements the database query layer for the plugin
// registry. Each repository wraps a connection pool and exposes typed
// methods over raw SQL; a not-found lookup returns (nil, nil).
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/plugin-registry/plugin-registry/internal/db/models"
)

// AccountRepository handles account database operations.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Upsert creates the account for a GitHub user on first login, or refreshes
// the login name and access token on subsequent logins. gh_id is the stable
// key; gh_login may change when a user renames their GitHub account.
func (r *AccountRepository) Upsert(ctx context.Context, ghID int64, ghLogin, ghAccessToken string) (*models.Account, error) {
	query := `
		INSERT INTO accounts (gh_id, gh_login, gh_access_token)
		VALUES ($1, $2, $3)
		ON CONFLICT (gh_id) DO UPDATE
		SET gh_login = EXCLUDED.gh_login,
		    gh_access_token = EXCLUDED.gh_access_token,
		    updated_at = NOW()
		RETURNING id, gh_id, gh_login, gh_access_token, created_at, updated_at
	`

	account := &models.Account{}
	err := r.db.GetContext(ctx, account, query, ghID, ghLogin, ghAccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert account: %w", err)
	}

	return account, nil
}

// GetByID retrieves an account by its primary key.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `
		SELECT id, gh_id, gh_login, gh_access_token, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`

	account := &models.Account{}
	err := r.db.GetContext(ctx, account, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return account, nil
}

// GetByLogin retrieves an account by its GitHub login name.
func (r *AccountRepository) GetByLogin(ctx context.Context, ghLogin string) (*models.Account, error) {
	query := `
		SELECT id, gh_id, gh_login, gh_access_token, created_at, updated_at
		FROM accounts
		WHERE gh_login = $1
	`

	account := &models.Account{}
	err := r.db.GetContext(ctx, account, query, ghLogin)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return account, nil
}
