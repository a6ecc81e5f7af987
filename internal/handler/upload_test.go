package handler_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/action"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/adapter"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/adapter/memory"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/auth"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/handler"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/history"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/model"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/uploader"
)

var testCredentials = base64.StdEncoding.EncodeToString(
	[]byte(`{"client_id":"cid","client_secret":"secret","refresh_token":"refresh"}`))

type fakeSecrets map[string]string

func (f fakeSecrets) GetSecret(_ context.Context, name string) (string, error) {
	v, ok := f[name]
	if !ok {
		return "", errors.New("parameter not found: " + name)
	}
	return v, nil
}

type testEnv struct {
	handler  *handler.UploadHandler
	store    *memory.MemoryAdapter
	recorder *history.MockRecorder
	workpath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	workpath := t.TempDir()
	if err := os.WriteFile(filepath.Join(workpath, "result.mp4"), []byte("frames"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := memory.NewMemoryAdapter()
	store.Put(adapter.FileMetadata{ID: "P1", Name: "Renders", MIMEType: adapter.FolderMIMEType, Parents: []string{"root"}})
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	recorder := history.NewMockRecorder()

	runner := &action.Runner{
		Uploader: uploader.New(auth.NewMockExchanger(), memory.NewProvider(store), logger),
		Secrets: fakeSecrets{
			"/nexrender/credentials/farm": testCredentials,
			"/nexrender/jwt-secret":       testJWTSecret,
		},
		Recorder:          recorder,
		Logger:            logger,
		UploadRoot:        workpath,
		CredentialsPrefix: "/nexrender/credentials/",
	}
	return &testEnv{
		handler:  handler.NewUploadHandler(runner, recorder, testJWTSecret, logger),
		store:    store,
		recorder: recorder,
		workpath: workpath,
	}
}

func (e *testEnv) body(t *testing.T, mutate func(*handler.UploadRequest)) string {
	t.Helper()
	req := handler.UploadRequest{
		Job: model.Job{UID: "job-1", Output: "result.mp4", Workpath: e.workpath},
		Action: model.ActionParams{
			Base64Credentials: testCredentials,
			FolderURL:         "https://drive.google.com/drive/folders/P1",
			CompositionName:   "CompX",
			FileName:          "out.mp4",
		},
	}
	if mutate != nil {
		mutate(&req)
	}
	b, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestUploadHandler_CreateAndGet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.handler.CreateUpload(ctx, makeRequest("POST", "/uploads", env.body(t, nil)))
	if err != nil {
		t.Fatalf("CreateUpload returned error: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 Created, got %d: %s", resp.StatusCode, resp.Body)
	}

	var created handler.UploadResponse
	if err := json.Unmarshal([]byte(resp.Body), &created); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if created.RemoteName != "out.mp4" || created.RemoteID == "" || created.InvocationID == "" {
		t.Errorf("Unexpected response %+v", created)
	}

	get := makeRequest("GET", "/uploads/"+created.InvocationID, "")
	get.PathParameters["invocationId"] = created.InvocationID
	resp, _ = env.handler.GetUpload(ctx, get)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, resp.Body)
	}

	var rec model.UploadRecord
	json.Unmarshal([]byte(resp.Body), &rec)
	if rec.RemoteID != created.RemoteID || rec.Pipeline != testPipelineID || rec.Status != model.StatusSucceeded {
		t.Errorf("Unexpected record %+v", rec)
	}
}

func TestUploadHandler_Unauthorized(t *testing.T) {
	env := newTestEnv(t)
	req := makeRequest("POST", "/uploads", env.body(t, nil))
	req.Headers = map[string]string{}

	resp, _ := env.handler.CreateUpload(context.Background(), req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", resp.StatusCode)
	}
	if env.store.TotalCalls() != 0 {
		t.Errorf("Expected no storage calls, got %d", env.store.TotalCalls())
	}
}

func TestUploadHandler_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*testEnv)
		mutate func(*handler.UploadRequest)
		status int
		code   string
	}{
		{
			name:   "bad body",
			status: http.StatusBadRequest,
			code:   handler.ErrorBadInput,
		},
		{
			name:   "wrong invocation type",
			mutate: func(r *handler.UploadRequest) { r.Type = "prerender" },
			status: http.StatusBadRequest,
			code:   handler.ErrorBadInput,
		},
		{
			name:   "malformed credentials",
			mutate: func(r *handler.UploadRequest) { r.Action.Base64Credentials = "@@@" },
			status: http.StatusBadRequest,
			code:   handler.ErrorCredentials,
		},
		{
			name:   "missing parent",
			mutate: func(r *handler.UploadRequest) { r.Action.FolderURL = "https://drive.google.com/drive/folders/GONE" },
			status: http.StatusNotFound,
			code:   handler.ErrorFolderMissing,
		},
		{
			name: "trashed parent",
			setup: func(e *testEnv) {
				e.store.Put(adapter.FileMetadata{ID: "P1", Name: "Renders", MIMEType: adapter.FolderMIMEType, Trashed: true})
			},
			status: http.StatusConflict,
			code:   handler.ErrorFolderTrashed,
		},
		{
			name:   "remote failure",
			setup:  func(e *testEnv) { e.store.FailUpload = adapter.ErrPermissionDenied },
			status: http.StatusBadGateway,
			code:   handler.ErrorRemote,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.setup != nil {
				tt.setup(env)
			}
			body := "{not json"
			if tt.name != "bad body" {
				body = env.body(t, tt.mutate)
			}

			resp, _ := env.handler.CreateUpload(context.Background(), makeRequest("POST", "/uploads", body))
			if resp.StatusCode != tt.status {
				t.Fatalf("Expected %d, got %d: %s", tt.status, resp.StatusCode, resp.Body)
			}

			var errBody struct {
				Error struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			json.Unmarshal([]byte(resp.Body), &errBody)
			if errBody.Error.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, errBody.Error.Code)
			}
			if errBody.Error.Message == "" {
				t.Error("Expected an error message")
			}
		})
	}
}

func TestUploadHandler_GetUpload_NotFound(t *testing.T) {
	env := newTestEnv(t)

	req := makeRequest("GET", "/uploads/missing", "")
	req.PathParameters["invocationId"] = "missing"
	resp, _ := env.handler.GetUpload(context.Background(), req)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestUploadHandler_GetUpload_OtherPipeline(t *testing.T) {
	env := newTestEnv(t)
	env.recorder.Record(context.Background(), &model.UploadRecord{
		InvocationID: "inv-9",
		Pipeline:     "someone-else",
		Status:       model.StatusSucceeded,
	})

	req := makeRequest("GET", "/uploads/inv-9", "")
	req.PathParameters["invocationId"] = "inv-9"
	resp, _ := env.handler.GetUpload(context.Background(), req)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for another pipeline's record, got %d", resp.StatusCode)
	}
}

func TestUploadHandler_GetUpload_MissingID(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.handler.GetUpload(context.Background(), makeRequest("GET", "/uploads/", ""))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestUploadHandler_RejectsFilesOutsideUploadRoot(t *testing.T) {
	outside := filepath.Join(t.TempDir(), "passwd")
	if err := os.WriteFile(outside, []byte("root:x:0:0"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(*testing.T, *handler.UploadRequest, string)
	}{
		{"absolute job output", func(_ *testing.T, r *handler.UploadRequest, _ string) { r.Job.Output = outside }},
		{"absolute action input", func(_ *testing.T, r *handler.UploadRequest, _ string) { r.Action.Input = outside }},
		{"traversal", func(_ *testing.T, r *handler.UploadRequest, workpath string) {
			rel, _ := filepath.Rel(workpath, outside)
			r.Job.Output = rel
		}},
		{"symlink", func(t *testing.T, r *handler.UploadRequest, workpath string) {
			if err := os.Symlink(outside, filepath.Join(workpath, "link.mp4")); err != nil {
				t.Fatal(err)
			}
			r.Job.Output = "link.mp4"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			body := env.body(t, func(r *handler.UploadRequest) { tt.mutate(t, r, env.workpath) })

			resp, _ := env.handler.CreateUpload(context.Background(), makeRequest("POST", "/uploads", body))
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("Expected 400, got %d: %s", resp.StatusCode, resp.Body)
			}
			if env.store.TotalCalls() != 0 {
				t.Errorf("Expected no storage calls, got %d", env.store.TotalCalls())
			}
			if env.recorder.Len() != 0 {
				t.Errorf("Expected no history record, got %d", env.recorder.Len())
			}
		})
	}
}

func TestUploadHandler_RejectsCredentialsParamOutsidePrefix(t *testing.T) {
	env := newTestEnv(t)
	body := env.body(t, func(r *handler.UploadRequest) {
		r.Action.Base64Credentials = ""
		r.Action.CredentialsParam = "/nexrender/jwt-secret"
	})

	resp, _ := env.handler.CreateUpload(context.Background(), makeRequest("POST", "/uploads", body))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", resp.StatusCode, resp.Body)
	}
	if strings.Contains(resp.Body, testJWTSecret) {
		t.Errorf("Response leaks the secret: %s", resp.Body)
	}
	if env.store.TotalCalls() != 0 {
		t.Errorf("Expected no storage calls, got %d", env.store.TotalCalls())
	}
}

func TestUploadHandler_CredentialsParamInsidePrefix(t *testing.T) {
	env := newTestEnv(t)
	body := env.body(t, func(r *handler.UploadRequest) {
		r.Action.Base64Credentials = ""
		r.Action.CredentialsParam = "/nexrender/credentials/farm"
	})

	resp, _ := env.handler.CreateUpload(context.Background(), makeRequest("POST", "/uploads", body))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", resp.StatusCode, resp.Body)
	}
}
