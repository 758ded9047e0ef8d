package session

import (
	"time"

	"github.com/plugin-registry/plugin-registry/internal/config"
)

func configWithBackend(backend string) config.SessionConfig {
	return config.SessionConfig{
		Backend: backend,
		TTL:     time.Minute,
	}
}
