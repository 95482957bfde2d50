// Package auth supplies connector credentials. Sources produce a fresh
// core.Credentials value on each call; credential refresh is wholesale
// replacement, never field mutation.
package auth

import (
	"context"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/junctionhq/junction/pkg/connector/core"
	cerrors "github.com/junctionhq/junction/pkg/errors"
)

// CredentialSource yields credentials for a connector. Implementations
// must be safe for concurrent use.
type CredentialSource interface {
	Credentials(ctx context.Context) (*core.Credentials, error)
}

// StaticSource returns a fixed token, for providers using long-lived API
// keys or personal access tokens.
type StaticSource struct {
	Token     string
	TokenType string
}

func (s *StaticSource) Credentials(ctx context.Context) (*core.Credentials, error) {
	if s.Token == "" {
		return nil, cerrors.New(cerrors.CategoryConfig, "static credential source requires a token")
	}
	tokenType := s.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &core.Credentials{
		AccessToken: s.Token,
		TokenType:   tokenType,
	}, nil
}

// ClientCredentialsSource fetches tokens from an OAuth2 token endpoint
// using the client credentials grant. Tokens are cached and reused until
// expiry.
type ClientCredentialsSource struct {
	scope  string
	source oauth2.TokenSource
}

// NewClientCredentialsSource builds a token source for the given client.
// The context is used for all token endpoint requests the source makes.
func NewClientCredentialsSource(ctx context.Context, clientID, clientSecret, tokenURL string, scopes []string) (*ClientCredentialsSource, error) {
	if clientID == "" || clientSecret == "" || tokenURL == "" {
		return nil, cerrors.New(cerrors.CategoryConfig, "client credentials source requires client id, secret, and token url")
	}

	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}
	return &ClientCredentialsSource{
		scope:  strings.Join(scopes, " "),
		source: cfg.TokenSource(ctx),
	}, nil
}

// Credentials returns the current token, fetching or refreshing it if
// the cached one is expired. Endpoint failures classify as auth errors.
func (s *ClientCredentialsSource) Credentials(ctx context.Context) (*core.Credentials, error) {
	token, err := s.source.Token()
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.CategoryAuth, "fetching oauth2 token")
	}
	return fromToken(token, s.scope), nil
}

func fromToken(token *oauth2.Token, scope string) *core.Credentials {
	var expiresAt time.Time
	if !token.Expiry.IsZero() {
		expiresAt = token.Expiry
	}
	return &core.Credentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Scope:        scope,
		ExpiresAt:    expiresAt,
	}
}
