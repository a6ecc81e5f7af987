package adapter

import (
	"context"
	"io"
)

// FolderMIMEType is the MIME type the drive uses for folders.
const FolderMIMEType = "application/vnd.google-apps.folder"

// FileMetadata represents metadata about a file or folder in the remote drive.
type FileMetadata struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	MIMEType string   `json:"mimeType"`
	Parents  []string `json:"parents,omitempty"`
	DriveID  string   `json:"driveId,omitempty"`
	Trashed  bool     `json:"trashed"`
	Size     int64    `json:"size"`
}

// IsFolder reports whether the item is a folder.
func (f FileMetadata) IsFolder() bool {
	return f.MIMEType == FolderMIMEType
}

// ChildQuery selects non-trashed children of a folder by exact name.
type ChildQuery struct {
	ParentID    string
	Name        string
	FoldersOnly bool

	// DriveID scopes the search to a shared drive. Empty searches all drives.
	DriveID string
}

// Store defines the drive operations the upload flow needs.
// Implementations must not cache results between calls.
type Store interface {
	// GetFolder fetches metadata for a folder, including its trashed state.
	GetFolder(ctx context.Context, folderID string) (*FileMetadata, error)

	// FindChildren lists non-trashed items matching the query, in provider order.
	FindChildren(ctx context.Context, q ChildQuery) ([]FileMetadata, error)

	// CreateFolder creates a folder under parentID.
	CreateFolder(ctx context.Context, name, parentID string) (*FileMetadata, error)

	// UploadFile creates a file under parentID from content in a single request.
	UploadFile(ctx context.Context, name, parentID, mimeType string, content io.Reader) (*FileMetadata, error)
}
