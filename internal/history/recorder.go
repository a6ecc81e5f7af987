// Package history keeps one audit record per upload invocation.
package history

import (
	"context"
	"errors"

	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/model"
)

var (
	// ErrNotFound is returned by Get when no record exists.
	ErrNotFound = errors.New("upload record not found")
	// ErrDuplicate is returned by Record when the invocation id was already recorded.
	ErrDuplicate = errors.New("upload record already exists")
)

// Recorder stores and retrieves upload records. Records are written once and
// never read back by the upload path itself.
type Recorder interface {
	Record(ctx context.Context, rec *model.UploadRecord) error
	Get(ctx context.Context, invocationID string) (*model.UploadRecord, error)
}
