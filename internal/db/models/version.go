package models

import "time"

// Version represents a single published version of a plugin. Yanked
// versions remain on record but are excluded from search and latest
// resolution.
type Version struct {
	ID        string    `db:"id" json:"id"`
	PluginID  string    `db:"plugin_id" json:"-"`
	Num       string    `db:"num" json:"version"`
	Yanked    bool      `db:"yanked" json:"yanked"`
	Downloads int64     `db:"downloads" json:"downloads"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
