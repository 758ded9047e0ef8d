// Package models defines the database model types for the plugin registry.
// Each type corresponds to a database table and uses struct tags for both
// JSON serialization and sqlx row scanning. Models are pure data types;
// query logic belongs in the repositories layer.
package models

import "time"

// Account represents a registry account provisioned from a GitHub login.
// The GitHub access token is stored so the registry can refresh profile
// data, and is never serialized into API responses.
type Account struct {
	ID            string    `db:"id" json:"id"`
	GhID          int64     `db:"gh_id" json:"gh_id"`
	GhLogin       string    `db:"gh_login" json:"gh_login"`
	GhAccessToken string    `db:"gh_access_token" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
