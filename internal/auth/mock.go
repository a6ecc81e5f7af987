package auth

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// MockExchanger implements Exchanger for local development (no token endpoint required).
type MockExchanger struct {
	AccessToken string
}

func NewMockExchanger() *MockExchanger {
	return &MockExchanger{AccessToken: "dev-access-token"}
}

func (m *MockExchanger) Exchange(ctx context.Context, b *Bundle) (*oauth2.Token, error) {
	return &oauth2.Token{
		AccessToken: m.AccessToken,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}, nil
}
