package googledrive

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/adapter"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/testutil/fakedrive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestEscapeQueryValue(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain name unchanged", "CompX", "CompX"},
		{"escapes single quote", "Bob's render", `Bob\'s render`},
		{"escapes backslash", `a\b`, `a\\b`},
		{"escapes backslash before quote", `a\'b`, `a\\\'b`},
		{"handles empty string", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := escapeQueryValue(tt.in)
			if got != tt.want {
				t.Errorf("escapeQueryValue(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildChildQuery(t *testing.T) {
	tests := []struct {
		name string
		in   adapter.ChildQuery
		want string
	}{
		{
			"folder search",
			adapter.ChildQuery{ParentID: "P1", Name: "CompX", FoldersOnly: true},
			"'P1' in parents and name = 'CompX' and trashed = false and mimeType = 'application/vnd.google-apps.folder'",
		},
		{
			"file search",
			adapter.ChildQuery{ParentID: "F9", Name: "out.mp4"},
			"'F9' in parents and name = 'out.mp4' and trashed = false",
		},
		{
			"quoted name",
			adapter.ChildQuery{ParentID: "F9", Name: "it's.mp4"},
			`'F9' in parents and name = 'it\'s.mp4' and trashed = false`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildChildQuery(tt.in)
			if got != tt.want {
				t.Errorf("buildChildQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func newTestAdapter(t *testing.T, srv *fakedrive.Server) *DriveAdapter {
	t.Helper()
	ctx := context.Background()
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: srv.AccessToken}))
	d, err := NewDriveAdapter(ctx, client, srv.Endpoint(), nil)
	require.NoError(t, err)
	return d
}

func TestDriveAdapter_GetFolder(t *testing.T) {
	srv := fakedrive.New()
	defer srv.Close()
	srv.AddFolder("P1", "Renders", "root", false)
	srv.AddFolder("P2", "Old", "root", true)

	d := newTestAdapter(t, srv)

	f, err := d.GetFolder(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, "P1", f.ID)
	assert.Equal(t, "Renders", f.Name)
	assert.Equal(t, []string{"root"}, f.Parents)
	assert.False(t, f.Trashed)

	trashed, err := d.GetFolder(context.Background(), "P2")
	require.NoError(t, err)
	assert.True(t, trashed.Trashed)
}

func TestDriveAdapter_GetFolder_NotFound(t *testing.T) {
	srv := fakedrive.New()
	defer srv.Close()

	d := newTestAdapter(t, srv)

	_, err := d.GetFolder(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, adapter.ErrNotFound))

	var apiErr *adapter.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 404, apiErr.StatusCode)
	assert.Equal(t, "File not found: missing.", adapter.ProviderMessage(err))
}

func TestDriveAdapter_BadTokenIsUnauthorized(t *testing.T) {
	srv := fakedrive.New()
	defer srv.Close()
	srv.AddFolder("P1", "Renders", "root", false)

	ctx := context.Background()
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "wrong"}))
	d, err := NewDriveAdapter(ctx, client, srv.Endpoint(), nil)
	require.NoError(t, err)

	_, err = d.GetFolder(ctx, "P1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, adapter.ErrUnauthorized))
}

func TestDriveAdapter_FindChildren(t *testing.T) {
	srv := fakedrive.New()
	defer srv.Close()
	srv.AddFolder("P1", "Renders", "root", false)
	srv.AddFolder("C1", "CompX", "P1", false)
	srv.AddFolder("C2", "CompX", "P1", true)
	srv.AddFile("X1", "CompX", "P1")
	srv.AddFolder("C3", "CompX", "other", false)

	d := newTestAdapter(t, srv)
	ctx := context.Background()

	folders, err := d.FindChildren(ctx, adapter.ChildQuery{ParentID: "P1", Name: "CompX", FoldersOnly: true})
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "C1", folders[0].ID)
	assert.True(t, folders[0].IsFolder())

	all, err := d.FindChildren(ctx, adapter.ChildQuery{ParentID: "P1", Name: "CompX"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	reqs := srv.SearchRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "true", reqs[0].Get("supportsAllDrives"))
	assert.Equal(t, "true", reqs[0].Get("includeItemsFromAllDrives"))
	assert.Empty(t, reqs[0].Get("corpora"))
}

func TestDriveAdapter_FindChildren_SharedDrive(t *testing.T) {
	srv := fakedrive.New()
	defer srv.Close()

	d := newTestAdapter(t, srv)

	files, err := d.FindChildren(context.Background(), adapter.ChildQuery{ParentID: "P1", Name: "a.mp4", DriveID: "D1"})
	require.NoError(t, err)
	assert.Empty(t, files)

	reqs := srv.SearchRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "drive", reqs[0].Get("corpora"))
	assert.Equal(t, "D1", reqs[0].Get("driveId"))
}

func TestDriveAdapter_CreateFolder(t *testing.T) {
	srv := fakedrive.New()
	defer srv.Close()

	d := newTestAdapter(t, srv)

	f, err := d.CreateFolder(context.Background(), "CompX", "P1")
	require.NoError(t, err)
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, "CompX", f.Name)
	assert.Equal(t, adapter.FolderMIMEType, f.MIMEType)
	assert.Equal(t, []string{"P1"}, f.Parents)
	assert.Equal(t, 1, srv.Calls(fakedrive.CallCreateFolder))
}

func TestDriveAdapter_CreateFolder_Rejected(t *testing.T) {
	srv := fakedrive.New()
	defer srv.Close()
	srv.FailCreate = "The user does not have sufficient permissions for this file."

	d := newTestAdapter(t, srv)

	_, err := d.CreateFolder(context.Background(), "CompX", "P1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, adapter.ErrPermissionDenied))
	assert.Equal(t, srv.FailCreate, adapter.ProviderMessage(err))
}

func TestDriveAdapter_UploadFile_Multipart(t *testing.T) {
	srv := fakedrive.New()
	defer srv.Close()

	d := newTestAdapter(t, srv)
	content := "rendered video bytes"

	f, err := d.UploadFile(context.Background(), "out.mp4", "C1", "video/mp4", strings.NewReader(content))
	require.NoError(t, err)
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, "out.mp4", f.Name)
	assert.Equal(t, int64(len(content)), f.Size)

	uploads := srv.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "multipart", uploads[0].UploadType)
	assert.Equal(t, "out.mp4", uploads[0].Name)
	assert.Equal(t, []string{"C1"}, uploads[0].Parents)
	assert.Equal(t, "video/mp4", uploads[0].ContentType)
	assert.Equal(t, content, string(uploads[0].Body))
}

func TestDriveAdapter_UploadFile_ProviderMessage(t *testing.T) {
	srv := fakedrive.New()
	defer srv.Close()
	srv.FailUpload = "Media type not supported."

	d := newTestAdapter(t, srv)

	_, err := d.UploadFile(context.Background(), "out.mp4", "C1", "video/mp4", strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, "Media type not supported.", adapter.ProviderMessage(err))
}
