package googledrive

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/adapter"
)

// Provider implements adapter.StoreProvider for Google Drive.
type Provider struct {
	endpoint string
	logger   *slog.Logger
}

// NewProvider creates a new Google Drive provider. endpoint may be empty.
func NewProvider(endpoint string, logger *slog.Logger) *Provider {
	return &Provider{endpoint: endpoint, logger: logger}
}

// GetStore returns a DriveAdapter using the given authenticated client.
func (p *Provider) GetStore(ctx context.Context, client *http.Client) (adapter.Store, error) {
	storage, err := NewDriveAdapter(ctx, client, p.endpoint, p.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive adapter: %w", err)
	}
	return storage, nil
}
