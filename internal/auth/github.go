package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/plugin-registry/plugin-registry/internal/config"
)

// ErrStateMismatch is returned when the state parameter on the OAuth
// callback does not match the value stashed in the caller's session.
var ErrStateMismatch = errors.New("oauth state mismatch")

// GitHubUser is the subset of the GitHub /user response the registry keeps.
type GitHubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// GitHubAuthenticator drives the OAuth authorization-code flow against
// GitHub. The endpoint URLs are configurable so tests can point the flow at
// an httptest server.
type GitHubAuthenticator struct {
	oauth      *oauth2.Config
	apiBaseURL string
	client     *http.Client
}

// NewGitHubAuthenticator builds an authenticator from the registry config.
func NewGitHubAuthenticator(cfg config.GitHubConfig, redirectURL string) *GitHubAuthenticator {
	endpoint := github.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	apiBase := cfg.APIBaseURL
	if apiBase == "" {
		apiBase = "https://api.github.com"
	}

	return &GitHubAuthenticator{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  redirectURL,
		},
		apiBaseURL: apiBase,
		client:     http.DefaultClient,
	}
}

// AuthCodeURL returns the GitHub authorization page URL for a login attempt.
// The caller stores state in the session and verifies it on the callback.
func (a *GitHubAuthenticator) AuthCodeURL(state string) string {
	return a.oauth.AuthCodeURL(state)
}

// CompleteLogin exchanges the authorization code for an access token and
// fetches the authenticated user's profile.
func (a *GitHubAuthenticator) CompleteLogin(ctx context.Context, code string) (*GitHubUser, string, error) {
	token, err := a.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	user, err := a.fetchUser(ctx, token.AccessToken)
	if err != nil {
		return nil, "", err
	}

	return user, token.AccessToken, nil
}

func (a *GitHubAuthenticator) fetchUser(ctx context.Context, accessToken string) (*GitHubUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiBaseURL+"/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch github user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github user endpoint returned %d", resp.StatusCode)
	}

	var user GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode github user: %w", err)
	}

	return &user, nil
}
