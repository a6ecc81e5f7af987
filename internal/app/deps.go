package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/action"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/adapter"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/adapter/googledrive"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/adapter/memory"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/auth"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/config"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/crypto"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/history"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/secret"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/uploader"
)

// DevFolderID is a folder that exists in the DEV_MODE store, so folder
// uploads can be tried without a Google account.
const DevFolderID = "dev-folder"

// Dependencies are the collaborators of the action, either real AWS and
// Google clients or their in-memory stand-ins in DEV_MODE.
type Dependencies struct {
	Exchanger  auth.Exchanger
	Stores     adapter.StoreProvider
	Secrets    secret.Resolver
	Decrypter  crypto.Encryptor
	Recorder   history.Recorder
	HTTPClient *http.Client
}

// NewDependencies builds the collaborators described by cfg.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	httpClient := newHTTPClient(cfg.Timeout())

	if cfg.DevMode {
		logger.Info("using in-memory drive, mock token exchange and env secrets (DEV_MODE=true)")
		store := memory.NewMemoryAdapter()
		store.Put(adapter.FileMetadata{ID: DevFolderID, Name: "Renders", MIMEType: adapter.FolderMIMEType, Parents: []string{"root"}})
		return &Dependencies{
			Exchanger:  auth.NewMockExchanger(),
			Stores:     memory.NewProvider(store),
			Secrets:    secret.NewEnvResolver(),
			Decrypter:  crypto.NewMockEncryptor(),
			Recorder:   history.NewMockRecorder(),
			HTTPClient: httpClient,
		}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	deps := &Dependencies{
		Exchanger:  auth.NewAuthService(cfg.TokenURL, httpClient),
		Stores:     googledrive.NewProvider(cfg.DriveEndpoint, logger),
		Secrets:    secret.NewSSMResolver(ssm.NewFromConfig(awsCfg)),
		Decrypter:  crypto.NewKMSService(kms.NewFromConfig(awsCfg), cfg.KMSKeyID),
		HTTPClient: httpClient,
	}
	if cfg.HistoryTable != "" {
		deps.Recorder = history.NewDynamoRecorder(dynamodb.NewFromConfig(awsCfg), cfg.HistoryTable)
	} else {
		logger.Info("history_table not set, upload history is disabled")
	}
	return deps, nil
}

// newHTTPClient returns a client without an overall deadline, so large
// uploads are never cut off mid-body. A positive timeout bounds the wait for
// response headers only.
func newHTTPClient(responseTimeout time.Duration) *http.Client {
	if responseTimeout <= 0 {
		return &http.Client{}
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = responseTimeout
	return &http.Client{Transport: transport}
}

// Uploader returns an uploader over the dependencies.
func (d *Dependencies) Uploader(logger *slog.Logger) *uploader.Uploader {
	return uploader.New(d.Exchanger, d.Stores, logger, uploader.WithHTTPClient(d.HTTPClient))
}

// Runner returns the postrender action over the dependencies.
func (d *Dependencies) Runner(cfg *config.Config, logger *slog.Logger) *action.Runner {
	return &action.Runner{
		Uploader:                d.Uploader(logger),
		Secrets:                 d.Secrets,
		Decrypter:               d.Decrypter,
		Recorder:                d.Recorder,
		Logger:                  logger,
		DefaultCredentialsParam: cfg.CredentialsParam,
		UploadRoot:              cfg.UploadRoot,
		CredentialsPrefix:       cfg.CredentialsPrefix,
	}
}
