// Package session implements the server-side session store backing browser
// logins. Sessions are opaque random IDs carried in a cookie and mapped to a
// small payload with a TTL. Two backends are provided behind a common
// interface: an in-process map for single-node deployments and Redis for
// multi-node ones. The backend is selected by configuration through New.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/plugin-registry/plugin-registry/internal/config"
)

// CookieName is the session cookie set on login.
const CookieName = "session"

// Data is the payload stored per session.
type Data struct {
	AccountID  string `json:"account_id,omitempty"`
	OAuthState string `json:"oauth_state,omitempty"`
}

// Store is a TTL key-value store for session payloads. Get returns
// (nil, nil) for a missing or expired session.
type Store interface {
	Get(ctx context.Context, id string) (*Data, error)
	Set(ctx context.Context, id string, data *Data) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// New constructs the configured session store backend.
func New(cfg config.SessionConfig) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(cfg.TTL), nil
	case "redis":
		return NewRedisStore(cfg.Redis, cfg.TTL)
	default:
		return nil, fmt.Errorf("unsupported session backend: %s", cfg.Backend)
	}
}

// NewID generates a random 128-bit session identifier.
func NewID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
