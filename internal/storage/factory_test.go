package storage

import (
	"testing"

	"github.com/plugin-registry/plugin-registry/internal/config"
)

func TestNewBackendUnknown(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.DefaultBackend = "tape"

	if _, err := NewBackend(cfg); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestRegisterAndDispatch(t *testing.T) {
	called := false
	Register("fake", func(cfg *config.Config) (Backend, error) {
		called = true
		return nil, nil
	})

	cfg := &config.Config{}
	cfg.Storage.DefaultBackend = "fake"

	if _, err := NewBackend(cfg); err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	if !called {
		t.Error("expected factory to be invoked")
	}
}
