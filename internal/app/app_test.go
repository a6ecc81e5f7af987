package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/config"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/handler"
)

func newDevApp(t *testing.T) *App {
	t.Helper()
	t.Setenv("JWT_SECRET", "app-test-secret")

	cfg := config.DefaultConfig()
	cfg.DevMode = true
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	a, err := NewApp(context.Background(), cfg, logger)
	require.NoError(t, err)
	return a
}

func bearer(t *testing.T, secret string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "farm-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + s
}

func TestHandleRequest_UploadRoundTrip(t *testing.T) {
	a := newDevApp(t)
	ctx := context.Background()

	workpath := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workpath, "result.mp4"), []byte("frames"), 0o644))
	creds := base64.StdEncoding.EncodeToString([]byte(`{"client_id":"a","client_secret":"b","refresh_token":"c"}`))

	body, _ := json.Marshal(map[string]any{
		"job": map[string]string{"uid": "job-1", "output": "result.mp4", "workpath": workpath},
		"action": map[string]string{
			"base64Credentials": creds,
			"folderId":          DevFolderID,
			"compositionName":   "CompX",
			"fileName":          "out.mp4",
		},
	})

	resp, err := a.HandleRequest(ctx, events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/api/uploads",
		Headers:    map[string]string{"Authorization": bearer(t, "app-test-secret")},
		Body:       string(body),
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode, resp.Body)
	assert.Equal(t, devAllowedOrigin, resp.Headers["Access-Control-Allow-Origin"])

	var created handler.UploadResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &created))
	assert.Equal(t, "out.mp4", created.RemoteName)

	resp, err = a.HandleRequest(ctx, events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodGet,
		Path:       "/uploads/" + created.InvocationID,
		Headers:    map[string]string{"Authorization": bearer(t, "app-test-secret")},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)
}

func TestHandleRequest_Routing(t *testing.T) {
	a := newDevApp(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"preflight", http.MethodOptions, "/uploads", http.StatusNoContent},
		{"unknown path", http.MethodGet, "/notes", http.StatusNotFound},
		{"wrong method", http.MethodDelete, "/uploads/abc", http.StatusNotFound},
		{"nested id", http.MethodGet, "/uploads/a/b", http.StatusNotFound},
		{"unauthenticated create", http.MethodPost, "/uploads", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := a.HandleRequest(ctx, events.APIGatewayProxyRequest{HTTPMethod: tt.method, Path: tt.path})
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestNewApp_DevFallbackSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	cfg := config.DefaultConfig()
	cfg.DevMode = true
	a, err := NewApp(context.Background(), cfg, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	require.NoError(t, err)

	resp, err := a.HandleRequest(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:     http.MethodGet,
		Path:           "/uploads/missing",
		Headers:        map[string]string{"Authorization": bearer(t, devJWTSecret)},
		PathParameters: map[string]string{},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleRequest_ConfinesCallerInput(t *testing.T) {
	a := newDevApp(t)
	creds := base64.StdEncoding.EncodeToString([]byte(`{"client_id":"a","client_secret":"b","refresh_token":"c"}`))
	outside := "/etc/passwd"
	if _, err := os.Stat(outside); err != nil {
		t.Skip("no file outside the temp directory to try")
	}

	tests := []struct {
		name   string
		job    map[string]string
		action map[string]string
	}{
		{
			name:   "file outside the upload root",
			job:    map[string]string{"uid": "job-1", "output": outside},
			action: map[string]string{"base64Credentials": creds, "fileName": "passwd.txt"},
		},
		{
			name:   "secret outside the credentials prefix",
			job:    map[string]string{"uid": "job-1", "output": filepath.Join(t.TempDir(), "result.mp4")},
			action: map[string]string{"credentialsParam": "/nexrender/jwt-secret", "fileName": "out.mp4"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if out := tt.job["output"]; out != outside {
				require.NoError(t, os.WriteFile(out, []byte("frames"), 0o644))
			}
			body, _ := json.Marshal(map[string]any{"job": tt.job, "action": tt.action})

			resp, err := a.HandleRequest(context.Background(), events.APIGatewayProxyRequest{
				HTTPMethod: http.MethodPost,
				Path:       "/uploads",
				Headers:    map[string]string{"Authorization": bearer(t, "app-test-secret")},
				Body:       string(body),
			})
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, resp.Body)
			assert.NotContains(t, resp.Body, "app-test-secret")
		})
	}
}

func TestNewHTTPClient(t *testing.T) {
	c := newHTTPClient(0)
	assert.Zero(t, c.Timeout)
	assert.Nil(t, c.Transport)

	c = newHTTPClient(30 * time.Second)
	assert.Zero(t, c.Timeout, "request bodies are never cut off")
	transport, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, transport.ResponseHeaderTimeout)
}
