package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// LinkScopes are requested on every account link: the profile, the email
// list (for the institutional gate) and repositories (for provisioning and
// invitations with the user's own token).
var LinkScopes = []string{"read:user", "user:email", "repo"}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization Code flow.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
//  1. The server redirects the user to GitHub's authorization endpoint with the
//     client id, the scopes and an opaque "state".
//  2. The user approves (or denies) on GitHub.
//  3. GitHub redirects back to the callback URL with a short-lived "code" and
//     the same "state".
//  4. The server exchanges the code for an access token (server-to-server).
//
// Fetching the profile and emails with that token is the githubapi package's job.
type GitHubProvider struct {
	config *oauth2.Config
}

// NewGitHubProvider creates a GitHubProvider with the given credentials.
// callbackURL must match the "Authorization callback URL" of the OAuth App exactly.
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       LinkScopes,
			Endpoint:     github.Endpoint,
		},
	}
}

// WithEndpoint overrides the authorize and token URLs. Tests point it at an
// httptest server.
func (p *GitHubProvider) WithEndpoint(authURL, tokenURL string) *GitHubProvider {
	cfg := *p.config
	cfg.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
	return &GitHubProvider{config: &cfg}
}

// AuthURL returns the URL to redirect the user to for authorization.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for an access token.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("auth: missing OAuth code")
	}
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}
	return tok, nil
}
