package handler

import (
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	goerrors "github.com/goliatone/go-errors"

	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/history"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/uploader"
)

// Text codes returned in error bodies.
const (
	ErrorBadInput      = "UPLOAD_BAD_INPUT"
	ErrorCredentials   = "UPLOAD_INVALID_CREDENTIALS"
	ErrorUnauthorized  = "UPLOAD_UNAUTHORIZED"
	ErrorAuthFailed    = "UPLOAD_AUTH_FAILED"
	ErrorFolderMissing = "UPLOAD_FOLDER_NOT_FOUND"
	ErrorFolderTrashed = "UPLOAD_FOLDER_TRASHED"
	ErrorRemote        = "UPLOAD_REMOTE_FAILED"
	ErrorNotFound      = "UPLOAD_NOT_FOUND"
	ErrorInternal      = "UPLOAD_INTERNAL_ERROR"
)

// ToServiceError maps an error from the action or the history store onto a
// go-errors service error with an HTTP status code.
func ToServiceError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich
	}

	if kind, ok := uploader.KindOf(err); ok {
		switch kind {
		case uploader.KindConfig:
			return newServiceError(err, goerrors.CategoryBadInput, http.StatusBadRequest, ErrorBadInput)
		case uploader.KindCredential:
			return newServiceError(err, goerrors.CategoryBadInput, http.StatusBadRequest, ErrorCredentials)
		case uploader.KindAuth:
			return newServiceError(err, goerrors.CategoryAuth, http.StatusUnauthorized, ErrorAuthFailed)
		case uploader.KindNotFound:
			return newServiceError(err, goerrors.CategoryNotFound, http.StatusNotFound, ErrorFolderMissing)
		case uploader.KindInvalidState:
			return newServiceError(err, goerrors.CategoryConflict, http.StatusConflict, ErrorFolderTrashed)
		case uploader.KindRemote:
			return newServiceError(err, goerrors.CategoryExternal, http.StatusBadGateway, ErrorRemote)
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return newServiceError(err, goerrors.CategoryAuth, http.StatusUnauthorized, ErrorUnauthorized)
	case errors.Is(err, history.ErrNotFound):
		return newServiceError(err, goerrors.CategoryNotFound, http.StatusNotFound, ErrorNotFound)
	}

	return goerrors.New("An unexpected error occurred", goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorInternal)
}

func newServiceError(err error, category goerrors.Category, status int, textCode string) *goerrors.Error {
	return goerrors.New(err.Error(), category).
		WithCode(status).
		WithTextCode(textCode)
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorResponse(err error) events.APIGatewayProxyResponse {
	svcErr := ToServiceError(err)
	var body errorBody
	body.Error.Code = svcErr.TextCode
	body.Error.Message = svcErr.Message
	status := svcErr.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return jsonResponse(status, body)
}
