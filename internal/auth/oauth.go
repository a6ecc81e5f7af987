package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrMalformedBundle is returned when a credential bundle cannot be decoded.
var ErrMalformedBundle = errors.New("malformed credential bundle")

// Bundle is the decoded credential bundle. It is never persisted.
type Bundle struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

// DecodeBundle decodes a base64 JSON credential bundle.
// Standard and URL-safe alphabets are accepted, with or without padding.
func DecodeBundle(encoded string) (*Bundle, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedBundle)
	}

	raw, err := decodeBase64(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBundle, err)
	}

	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrMalformedBundle, err)
	}

	var missing []string
	if b.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if b.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if b.RefreshToken == "" {
		missing = append(missing, "refresh_token")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedBundle, strings.Join(missing, ", "))
	}
	return &b, nil
}

func decodeBase64(s string) ([]byte, error) {
	var firstErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// Exchanger trades a credential bundle for a short-lived access token.
type Exchanger interface {
	Exchange(ctx context.Context, b *Bundle) (*oauth2.Token, error)
}

// AuthService performs the refresh-token grant and builds bearer clients.
// It holds no tokens; every Exchange call hits the token endpoint.
type AuthService struct {
	tokenURL   string
	httpClient *http.Client
}

// NewAuthService creates a new AuthService.
// An empty tokenURL uses Google's endpoint. httpClient may be nil.
func NewAuthService(tokenURL string, httpClient *http.Client) *AuthService {
	if tokenURL == "" {
		tokenURL = google.Endpoint.TokenURL
	}
	return &AuthService{tokenURL: tokenURL, httpClient: httpClient}
}

// Config returns the OAuth2 config for a bundle. Client credentials are sent in
// the request body, so the grant carries exactly client_id, client_secret,
// refresh_token and grant_type.
func (s *AuthService) Config(b *Bundle) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     b.ClientID,
		ClientSecret: b.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  s.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// Exchange runs the refresh-token grant.
func (s *AuthService) Exchange(ctx context.Context, b *Bundle) (*oauth2.Token, error) {
	token := &oauth2.Token{
		RefreshToken: b.RefreshToken,
		Expiry:       time.Now().Add(-1 * time.Hour), // Force refresh
	}

	tok, err := s.Config(b).TokenSource(s.withClient(ctx), token).Token()
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("token exchange failed: response has no access_token")
	}
	return tok, nil
}

func (s *AuthService) withClient(ctx context.Context) context.Context {
	return withHTTPClient(ctx, s.httpClient)
}

// NewBearerClient returns an http.Client that sends tok as a bearer token on
// top of base's transport. base may be nil.
func NewBearerClient(ctx context.Context, base *http.Client, tok *oauth2.Token) *http.Client {
	return oauth2.NewClient(withHTTPClient(ctx, base), oauth2.StaticTokenSource(tok))
}

func withHTTPClient(ctx context.Context, c *http.Client) context.Context {
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c)
}

// GrantErrorMessage describes a token endpoint rejection, preferring the
// provider's error code and description.
func GrantErrorMessage(err error) string {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) && rErr.ErrorCode != "" {
		if rErr.ErrorDescription != "" {
			return rErr.ErrorCode + ": " + rErr.ErrorDescription
		}
		return rErr.ErrorCode
	}
	return err.Error()
}
