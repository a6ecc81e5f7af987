package adapter

import (
	"context"
	"net/http"
)

// StoreProvider builds a Store bound to an authenticated HTTP client.
// It is called once per upload, after the access token has been obtained.
type StoreProvider interface {
	GetStore(ctx context.Context, client *http.Client) (Store, error)
}
