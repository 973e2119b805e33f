// ABOUTME: Identity provider abstraction and its OAuth2 implementation
// ABOUTME: Password grant signs in, refresh_token grant renews stale credentials

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// ErrCancelled means the user abandoned the sign-in flow
var ErrCancelled = errors.New("sign-in cancelled")

// Login carries what the user typed into the sign-in form
type Login struct {
	Username string
	Password string
}

// Provider issues and renews tokens for a signed-in identity
type Provider interface {
	Authenticate(ctx context.Context, login Login) (*oauth2.Token, error)
	Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error)
}

// OAuthConfig describes the token endpoint of the identity provider
type OAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Timeout      time.Duration
}

// OAuthProvider talks to an OAuth2 token endpoint
type OAuthProvider struct {
	conf       *oauth2.Config
	httpClient *http.Client
}

// NewOAuthProvider builds a provider for the given endpoint
func NewOAuthProvider(cfg OAuthConfig) *OAuthProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &OAuthProvider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *OAuthProvider) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// Authenticate exchanges username and password for a token
func (p *OAuthProvider) Authenticate(ctx context.Context, login Login) (*oauth2.Token, error) {
	if login.Username == "" || login.Password == "" {
		return nil, fmt.Errorf("username and password are required")
	}
	tok, err := p.conf.PasswordCredentialsToken(p.withClient(ctx), login.Username, login.Password)
	if err != nil {
		return nil, describeTokenError(err)
	}
	return tok, nil
}

// Refresh renews tok with its refresh token
func (p *OAuthProvider) Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	if tok == nil || tok.RefreshToken == "" {
		return nil, fmt.Errorf("credential expired and no refresh token is available")
	}
	// A token with only the refresh token set is never valid, so Token() always
	// goes to the endpoint.
	src := p.conf.TokenSource(p.withClient(ctx), &oauth2.Token{RefreshToken: tok.RefreshToken})
	fresh, err := src.Token()
	if err != nil {
		return nil, describeTokenError(err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tok.RefreshToken
	}
	return fresh, nil
}

func describeTokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorDescription != "" {
			return fmt.Errorf("identity provider refused: %s", re.ErrorDescription)
		}
		if re.ErrorCode != "" {
			return fmt.Errorf("identity provider refused: %s", re.ErrorCode)
		}
		if re.Response != nil {
			return fmt.Errorf("identity provider returned status %d", re.Response.StatusCode)
		}
	}
	return fmt.Errorf("cannot reach identity provider: %w", err)
}
