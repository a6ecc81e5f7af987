package googledrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/adapter"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	folderFields = "id, name, parents, driveId, trashed"
	searchFields = "files(id, name, mimeType, parents, trashed)"
	createFields = "id, name, mimeType, parents, driveId"
	uploadFields = "id, name, mimeType, parents, size"
)

// escapeQueryValue escapes a string literal for use inside single quotes in a Drive query.
func escapeQueryValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// buildChildQuery renders the Drive search expression for q.
func buildChildQuery(q adapter.ChildQuery) string {
	expr := fmt.Sprintf("'%s' in parents and name = '%s' and trashed = false",
		escapeQueryValue(q.ParentID), escapeQueryValue(q.Name))
	if q.FoldersOnly {
		expr += fmt.Sprintf(" and mimeType = '%s'", adapter.FolderMIMEType)
	}
	return expr
}

// DriveAdapter implements adapter.Store for Google Drive.
type DriveAdapter struct {
	service *drive.Service
	logger  *slog.Logger
}

// NewDriveAdapter creates a new DriveAdapter.
// client must already carry the bearer token. endpoint overrides the API base
// URL (e.g. "http://127.0.0.1:8085/drive/v3/") and is empty in production.
func NewDriveAdapter(ctx context.Context, client *http.Client, endpoint string, logger *slog.Logger) (*DriveAdapter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Drive client: %w", err)
	}
	return &DriveAdapter{service: srv, logger: logger}, nil
}

// GetFolder fetches folder metadata, including shared drive items.
func (d *DriveAdapter) GetFolder(ctx context.Context, folderID string) (*adapter.FileMetadata, error) {
	f, err := d.service.Files.Get(folderID).
		SupportsAllDrives(true).
		Fields(googleapi.Field(folderFields)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to get folder %s: %w", folderID, classify(err))
	}
	meta := toMetadata(f)
	return &meta, nil
}

// FindChildren searches a folder for non-trashed items with an exact name.
func (d *DriveAdapter) FindChildren(ctx context.Context, q adapter.ChildQuery) ([]adapter.FileMetadata, error) {
	expr := buildChildQuery(q)
	d.logger.Debug("searching drive", slog.String("q", expr))

	call := d.service.Files.List().
		Q(expr).
		Fields(googleapi.Field(searchFields)).
		IncludeItemsFromAllDrives(true).
		SupportsAllDrives(true)
	if q.DriveID != "" {
		call = call.Corpora("drive").DriveId(q.DriveID)
	}

	r, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to search folder %s: %w", q.ParentID, classify(err))
	}

	files := make([]adapter.FileMetadata, 0, len(r.Files))
	for _, f := range r.Files {
		files = append(files, toMetadata(f))
	}
	return files, nil
}

// CreateFolder creates a folder under parentID.
func (d *DriveAdapter) CreateFolder(ctx context.Context, name, parentID string) (*adapter.FileMetadata, error) {
	f := &drive.File{
		Name:     name,
		MimeType: adapter.FolderMIMEType,
		Parents:  []string{parentID},
	}

	res, err := d.service.Files.Create(f).
		SupportsAllDrives(true).
		Fields(googleapi.Field(createFields)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to create folder: %w", classify(err))
	}
	meta := toMetadata(res)
	return &meta, nil
}

// UploadFile uploads content as a new file in a single multipart request.
func (d *DriveAdapter) UploadFile(ctx context.Context, name, parentID, mimeType string, content io.Reader) (*adapter.FileMetadata, error) {
	f := &drive.File{
		Name:    name,
		Parents: []string{parentID},
	}

	// ChunkSize(0) disables the resumable protocol.
	res, err := d.service.Files.Create(f).
		Media(content, googleapi.ContentType(mimeType), googleapi.ChunkSize(0)).
		SupportsAllDrives(true).
		Fields(googleapi.Field(uploadFields)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to upload file: %w", classify(err))
	}
	meta := toMetadata(res)
	return &meta, nil
}

func toMetadata(f *drive.File) adapter.FileMetadata {
	return adapter.FileMetadata{
		ID:       f.Id,
		Name:     f.Name,
		MIMEType: f.MimeType,
		Parents:  f.Parents,
		DriveID:  f.DriveId,
		Trashed:  f.Trashed,
		Size:     f.Size,
	}
}

// classify converts a *googleapi.Error into an *adapter.APIError.
func classify(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		msg := gErr.Message
		if msg == "" {
			msg = strings.TrimSpace(gErr.Body)
		}
		if msg == "" {
			msg = http.StatusText(gErr.Code)
		}
		return &adapter.APIError{
			StatusCode: gErr.Code,
			Message:    msg,
			Err:        adapter.ClassifyStatus(gErr.Code),
		}
	}
	return err
}
