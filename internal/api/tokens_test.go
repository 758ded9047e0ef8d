package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/plugin-registry/plugin-registry/internal/db/models"
	"github.com/plugin-registry/plugin-registry/internal/middleware"
)

type stubTokenStore struct {
	created *models.APIToken
	list    []*models.APIToken
	revoked bool
	err     error

	createdName   string
	createdDigest []byte
}

func (s *stubTokenStore) Create(_ context.Context, accountID, name string, digest []byte) (*models.APIToken, error) {
	s.createdName = name
	s.createdDigest = digest
	if s.created == nil {
		s.created = &models.APIToken{ID: "tok-1", AccountID: accountID, Name: name, CreatedAt: time.Now()}
	}
	return s.created, s.err
}

func (s *stubTokenStore) ListByAccount(context.Context, string) ([]*models.APIToken, error) {
	return s.list, s.err
}

func (s *stubTokenStore) Revoke(context.Context, string, string) (bool, error) {
	return s.revoked, s.err
}

// withAccount injects an authenticated account the way the auth middleware
// does, so handlers can be tested without a session store.
func withAccount(account *models.Account) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.AccountKey, account)
		c.Next()
	}
}

func newAccountRouter(tokens TokenStore) *gin.Engine {
	handlers := NewAccountHandlers(tokens)
	account := &models.Account{ID: "acct-1", GhLogin: "octocat"}

	router := gin.New()
	me := router.Group("/me", withAccount(account))
	me.GET("", handlers.Me)
	me.GET("/tokens", handlers.ListTokens)
	me.POST("/tokens", handlers.CreateToken)
	me.DELETE("/tokens/:id", handlers.RevokeToken)
	return router
}

func TestMe(t *testing.T) {
	router := newAccountRouter(&stubTokenStore{})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"gh_login":"octocat"`) {
		t.Errorf("body missing gh_login: %s", w.Body.String())
	}
	if strings.Contains(w.Body.String(), "gh_access_token") {
		t.Errorf("body leaks access token: %s", w.Body.String())
	}
}

func TestCreateTokenReturnsPlaintextOnce(t *testing.T) {
	store := &stubTokenStore{}
	router := newAccountRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/me/tokens", strings.NewReader(`{"name":"ci"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var token models.APIToken
	if err := json.Unmarshal(w.Body.Bytes(), &token); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(token.Plaintext) != 32 {
		t.Errorf("plaintext length = %d, want 32", len(token.Plaintext))
	}
	if store.createdName != "ci" {
		t.Errorf("created name = %q, want ci", store.createdName)
	}
	if len(store.createdDigest) != 32 {
		t.Errorf("digest length = %d, want 32", len(store.createdDigest))
	}
}

func TestCreateTokenRequiresName(t *testing.T) {
	router := newAccountRouter(&stubTokenStore{})

	req := httptest.NewRequest(http.MethodPost, "/me/tokens", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestListTokens(t *testing.T) {
	store := &stubTokenStore{list: []*models.APIToken{
		{ID: "tok-1", Name: "ci"},
		{ID: "tok-2", Name: "laptop"},
	}}
	router := newAccountRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/me/tokens", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Tokens []*models.APIToken `json:"tokens"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(body.Tokens) != 2 {
		t.Errorf("tokens = %d, want 2", len(body.Tokens))
	}
}

func TestRevokeToken(t *testing.T) {
	router := newAccountRouter(&stubTokenStore{revoked: true})

	req := httptest.NewRequest(http.MethodDelete, "/me/tokens/tok-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
}

func TestRevokeTokenNotFound(t *testing.T) {
	router := newAccountRouter(&stubTokenStore{revoked: false})

	req := httptest.NewRequest(http.MethodDelete, "/me/tokens/unknown", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
