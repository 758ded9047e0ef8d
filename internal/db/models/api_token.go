package models

import "time"

// APIToken represents an API token for non-browser authentication.
// Only the SHA-256 digest of the token is persisted; the plaintext is
// returned once from the creation endpoint and never stored.
type APIToken struct {
	ID          string     `db:"id" json:"id"`
	AccountID   string     `db:"account_id" json:"-"`
	Name        string     `db:"name" json:"name"`
	TokenDigest []byte     `db:"token_digest" json:"-"`
	Revoked     bool       `db:"revoked" json:"revoked"`
	LastUsedAt  *time.Time `db:"last_used_at" json:"last_used_at"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`

	// Plaintext is populated only on the row returned by CreateToken.
	Plaintext string `db:"-" json:"plaintext,omitempty"`
}
