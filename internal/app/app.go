package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/config"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/handler"
)

const (
	defaultJWTSecretParam = "/nexrender/jwt-secret"
	devJWTSecret          = "default-dev-secret"
	devAllowedOrigin      = "http://localhost:3000"

	defaultCredentialsPrefix = "/nexrender/credentials/"
)

// App holds the dependencies for the Lambda function.
type App struct {
	uploadHandler *handler.UploadHandler
	allowedOrigin string
	logger        *slog.Logger
}

// NewApp initializes the application dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	jwtSecretParam := cfg.JWTSecretParam
	if jwtSecretParam == "" {
		jwtSecretParam = defaultJWTSecretParam
	}
	jwtSecret, err := deps.Secrets.GetSecret(ctx, jwtSecretParam)
	if err != nil {
		if !cfg.DevMode {
			return nil, fmt.Errorf("failed to resolve JWT secret: %w", err)
		}
		logger.Warn("failed to resolve JWT secret, using the development default", slog.String("error", err.Error()))
		jwtSecret = devJWTSecret
	}

	origin := cfg.AllowedOrigin
	if origin == "" && cfg.DevMode {
		origin = devAllowedOrigin
	}

	// Callers of the HTTP trigger are remote, so their paths and secret
	// names are always confined.
	runner := deps.Runner(cfg, logger)
	if runner.UploadRoot == "" {
		runner.UploadRoot = os.TempDir()
	}
	if runner.CredentialsPrefix == "" {
		runner.CredentialsPrefix = defaultCredentialsPrefix
	}

	return &App{
		uploadHandler: handler.NewUploadHandler(runner, deps.Recorder, jwtSecret, logger),
		allowedOrigin: origin,
		logger:        logger,
	}, nil
}

// HandleRequest routes API Gateway requests to the appropriate handler.
func (app *App) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	path := strings.TrimPrefix(req.Path, "/api")
	method := req.HTTPMethod

	app.logger.Info("request", slog.String("method", method), slog.String("path", path))

	if method == http.MethodOptions {
		return app.corsResponse(events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}), nil
	}

	if req.PathParameters == nil {
		req.PathParameters = make(map[string]string)
	}

	switch {
	case path == "/uploads" && method == http.MethodPost:
		return app.corsResponse(app.must(app.uploadHandler.CreateUpload(ctx, req))), nil
	case strings.HasPrefix(path, "/uploads/") && method == http.MethodGet:
		id := strings.Trim(strings.TrimPrefix(path, "/uploads/"), "/")
		if id != "" && !strings.Contains(id, "/") {
			req.PathParameters["invocationId"] = id
			return app.corsResponse(app.must(app.uploadHandler.GetUpload(ctx, req))), nil
		}
	}

	return app.corsResponse(events.APIGatewayProxyResponse{
		StatusCode: http.StatusNotFound,
		Body:       fmt.Sprintf("Not Found: %s %s", method, path),
	}), nil
}

// corsResponse adds CORS headers when an origin is configured.
func (app *App) corsResponse(resp events.APIGatewayProxyResponse) events.APIGatewayProxyResponse {
	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	if app.allowedOrigin == "" {
		return resp
	}
	resp.Headers["Access-Control-Allow-Origin"] = app.allowedOrigin
	resp.Headers["Access-Control-Allow-Methods"] = "GET,POST,OPTIONS"
	resp.Headers["Access-Control-Allow-Headers"] = "Content-Type,Authorization"
	return resp
}

// must unwraps a handler response, turning an error into a 500.
func (app *App) must(resp events.APIGatewayProxyResponse, err error) events.APIGatewayProxyResponse {
	if err != nil {
		app.logger.Error("handler error", slog.String("error", err.Error()))
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Internal Server Error"}
	}
	return resp
}
