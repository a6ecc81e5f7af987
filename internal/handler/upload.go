package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/action"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/history"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/model"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/uploader"
)

// ActionRunner is implemented by *action.Runner.
type ActionRunner interface {
	Run(ctx context.Context, job model.Job, params model.ActionParams, invocationType string) (*action.Outcome, error)
}

// UploadHandler lets a render pipeline trigger an upload over HTTP and look
// up past uploads.
type UploadHandler struct {
	runner    ActionRunner
	records   history.Recorder
	jwtSecret string
	logger    *slog.Logger
}

func NewUploadHandler(runner ActionRunner, records history.Recorder, jwtSecret string, logger *slog.Logger) *UploadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadHandler{runner: runner, records: records, jwtSecret: jwtSecret, logger: logger}
}

// UploadRequest is the body of POST /uploads. Type defaults to "postrender".
type UploadRequest struct {
	Job    model.Job          `json:"job"`
	Action model.ActionParams `json:"action"`
	Type   string             `json:"type,omitempty"`
}

// UploadResponse is the body of a successful POST /uploads.
type UploadResponse struct {
	InvocationID string `json:"invocationId"`
	RemoteID     string `json:"remoteId"`
	RemoteName   string `json:"remoteName"`
	FolderID     string `json:"folderId,omitempty"`
}

// CreateUpload handles POST /uploads.
func (h *UploadHandler) CreateUpload(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	pipeline, err := GetPipelineID(req, h.jwtSecret)
	if err != nil {
		return errorResponse(err), nil
	}

	var body UploadRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return errorResponse(uploader.ConfigError("Invalid request body: %v", err)), nil
	}
	if body.Type == "" {
		body.Type = action.PostRender
	}

	out, err := h.runner.Run(action.WithPipeline(ctx, pipeline), body.Job, body.Action, body.Type)
	if err != nil {
		h.logger.Error("upload request failed", slog.String("pipeline", pipeline), slog.String("error", err.Error()))
		return errorResponse(err), nil
	}

	return jsonResponse(http.StatusCreated, UploadResponse{
		InvocationID: out.InvocationID,
		RemoteID:     out.RemoteID,
		RemoteName:   out.RemoteName,
		FolderID:     out.FolderID,
	}), nil
}

// GetUpload handles GET /uploads/{invocationId}. Records of other pipelines
// are reported as missing.
func (h *UploadHandler) GetUpload(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	pipeline, err := GetPipelineID(req, h.jwtSecret)
	if err != nil {
		return errorResponse(err), nil
	}

	id := req.PathParameters["invocationId"]
	if id == "" {
		return errorResponse(uploader.ConfigError("Missing invocation ID")), nil
	}
	if h.records == nil {
		return errorResponse(history.ErrNotFound), nil
	}

	rec, err := h.records.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, history.ErrNotFound) {
			h.logger.Error("failed to read upload record", slog.String("invocation_id", id), slog.String("error", err.Error()))
		}
		return errorResponse(err), nil
	}
	if rec.Pipeline != "" && rec.Pipeline != pipeline {
		return errorResponse(history.ErrNotFound), nil
	}

	return jsonResponse(http.StatusOK, rec), nil
}
