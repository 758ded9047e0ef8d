package models

import "time"

// Plugin represents a published plugin. Metadata fields mirror the manifest
// of the most recently published version; the natural key is
// (account_id, name) with name stored lowercase.
type Plugin struct {
	ID          string    `db:"id" json:"id"`
	AccountID   string    `db:"account_id" json:"-"`
	Name        string    `db:"name" json:"name"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Author      string    `db:"author" json:"author"`
	Description string    `db:"description" json:"description"`
	Repository  *string   `db:"repository" json:"repository"`
	Wasm        bool      `db:"wasm" json:"wasm"`
	Downloads   int64     `db:"downloads" json:"downloads"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
