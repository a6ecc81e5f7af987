// Package uploader uploads one rendered file to Google Drive.
//
// An upload runs five stages strictly in order: the credential bundle is
// exchanged for an access token, the parent folder is verified, the
// composition subfolder is found or created, a collision-free file name is
// chosen and the file is sent in a single multipart request. The first
// failing stage aborts the upload with an *Error describing its Kind.
//
// Nothing is cached between uploads. Two concurrent uploads into the same
// new subfolder can both miss each other's folder and create two folders
// with the same name; later uploads then pick the first one the API returns.
package uploader

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/adapter"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/auth"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/model"
)

const (
	defaultMIMEType = "application/octet-stream"
	rootFolderID    = "root"
)

// Request is the complete input of one upload.
type Request struct {
	// Credentials is the base64 encoded credential bundle.
	Credentials string

	// FolderURL or FolderID name the parent folder; at most one may be set.
	// With neither, the file goes straight into DriveID (or "root") and no
	// subfolder is used.
	FolderURL string
	FolderID  string

	// CompositionName is the subfolder created under the parent. Required with a parent.
	CompositionName string

	// LocalPath must be absolute.
	LocalPath string
	FileName  string
	DriveID   string

	// MimeType of the upload. Empty detects it from the file extension.
	MimeType string
}

// Uploader runs uploads. It is safe for concurrent use; each Upload call
// carries its own state.
type Uploader struct {
	exchanger  auth.Exchanger
	stores     adapter.StoreProvider
	httpClient *http.Client
	logger     *slog.Logger
	random     io.Reader
	onState    func(State)
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithHTTPClient sets the base client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(u *Uploader) { u.httpClient = c }
}

// WithRandom sets the source of name suffix bytes. Defaults to crypto/rand.
func WithRandom(r io.Reader) Option {
	return func(u *Uploader) { u.random = r }
}

// WithStateHook registers fn to be called on every state transition.
func WithStateHook(fn func(State)) Option {
	return func(u *Uploader) { u.onState = fn }
}

// New creates an Uploader.
func New(exchanger auth.Exchanger, stores adapter.StoreProvider, logger *slog.Logger, opts ...Option) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	u := &Uploader{
		exchanger: exchanger,
		stores:    stores,
		logger:    logger,
		random:    rand.Reader,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// run holds the state of a single Upload call.
type run struct {
	u      *Uploader
	req    Request
	state  State
	logger *slog.Logger
}

// Upload performs one upload and returns the created file.
func (u *Uploader) Upload(ctx context.Context, req Request) (*model.UploadResult, error) {
	r := &run{
		u:      u,
		req:    req,
		state:  StateValidating,
		logger: u.logger.With(slog.String("file_name", req.FileName)),
	}

	res, err := r.execute(ctx)
	if err != nil {
		r.transition(StateFailed)
		return nil, err
	}
	r.transition(StateDone)
	return res, nil
}

func (r *run) transition(s State) {
	r.state = s
	r.logger.Debug("upload state", slog.String("state", s.String()))
	if r.u.onState != nil {
		r.u.onState(s)
	}
}

func (r *run) execute(ctx context.Context) (*model.UploadResult, error) {
	parentID, err := r.validate()
	if err != nil {
		return nil, err
	}

	r.transition(StateAuthenticating)
	store, err := r.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	r.transition(StateVerifyingFolder)
	var parent *model.FolderRef
	if parentID != "" {
		if parent, err = r.verifyFolder(ctx, store, parentID); err != nil {
			return nil, err
		}
	}

	r.transition(StateResolvingSubfolder)
	var dest *model.FolderRef
	if parent != nil {
		if dest, err = r.resolveSubfolder(ctx, store, parent); err != nil {
			return nil, err
		}
	} else {
		dest = r.flatDestination()
	}

	r.transition(StateResolvingName)
	name, err := r.resolveName(ctx, store, dest)
	if err != nil {
		return nil, err
	}

	r.transition(StateUploading)
	return r.upload(ctx, store, dest, model.FileDescriptor{
		LocalPath:    r.req.LocalPath,
		DesiredName:  r.req.FileName,
		ResolvedName: name,
		MimeType:     detectMIMEType(r.req),
	})
}

// validate checks the request without touching the network and returns the
// parent folder id, or "" for a flat upload.
func (r *run) validate() (string, error) {
	req := r.req
	if req.FileName == "" {
		return "", ConfigError("Missing fileName.")
	}
	if req.LocalPath == "" {
		return "", ConfigError("Missing input file path.")
	}
	if !filepath.IsAbs(req.LocalPath) {
		return "", ConfigError("Input file path must be absolute: %s", req.LocalPath)
	}
	if req.FolderURL != "" && req.FolderID != "" {
		return "", ConfigError("Only one of folderUrl and folderId may be set.")
	}

	parentID := req.FolderID
	if req.FolderURL != "" {
		id, err := ParseFolderReference(req.FolderURL)
		if err != nil {
			return "", err
		}
		parentID = id
	}
	if parentID != "" && req.CompositionName == "" {
		return "", ConfigError("Missing compositionName.")
	}

	info, err := os.Stat(req.LocalPath)
	if err != nil {
		return "", newError(KindConfig, StateValidating, err, "Input file is not accessible: %s", req.LocalPath)
	}
	if info.IsDir() {
		return "", ConfigError("Input path is a directory: %s", req.LocalPath)
	}
	return parentID, nil
}

func (r *run) authenticate(ctx context.Context) (adapter.Store, error) {
	bundle, err := auth.DecodeBundle(r.req.Credentials)
	if err != nil {
		return nil, newError(KindCredential, r.state, err, "[Google Drive] Invalid credentials: %v", err)
	}

	tok, err := r.u.exchanger.Exchange(ctx, bundle)
	if err != nil {
		return nil, newError(KindAuth, r.state, err, "[Google Drive] Authentication failed: %s", auth.GrantErrorMessage(err))
	}

	client := auth.NewBearerClient(ctx, r.u.httpClient, tok)
	store, err := r.u.stores.GetStore(ctx, client)
	if err != nil {
		return nil, newError(KindRemote, r.state, err, "[Google Drive] %v", err)
	}
	return store, nil
}

func (r *run) verifyFolder(ctx context.Context, store adapter.Store, folderID string) (*model.FolderRef, error) {
	r.logger.Info("verifying parent folder", slog.String("folder_id", folderID), slog.String("drive_id", r.req.DriveID))

	f, err := store.GetFolder(ctx, folderID)
	if err != nil {
		if errors.Is(err, adapter.ErrNotFound) || errors.Is(err, adapter.ErrPermissionDenied) {
			return nil, newError(KindNotFound, r.state, err,
				"[Google Drive] Parent folder not found or not accessible: %s (%s)", folderID, adapter.ProviderMessage(err))
		}
		return nil, newError(KindRemote, r.state, err, "[Google Drive] %s", adapter.ProviderMessage(err))
	}
	if f.Trashed {
		return nil, newError(KindInvalidState, r.state, nil, "[Google Drive] Parent folder is in the trash.")
	}

	ref := toFolderRef(f)
	r.logger.Info("parent folder verified", slog.String("folder_name", ref.Name), slog.String("folder_id", ref.ID))
	return &ref, nil
}

func (r *run) resolveSubfolder(ctx context.Context, store adapter.Store, parent *model.FolderRef) (*model.FolderRef, error) {
	name := r.req.CompositionName
	matches, err := store.FindChildren(ctx, adapter.ChildQuery{
		ParentID:    parent.ID,
		Name:        name,
		FoldersOnly: true,
		DriveID:     r.driveScope(parent),
	})
	if err != nil {
		return nil, newError(KindRemote, r.state, err, "[Google Drive] Failed to search for folder %s: %s", name, adapter.ProviderMessage(err))
	}

	if len(matches) > 0 {
		if len(matches) > 1 {
			r.logger.Warn("multiple folders share the composition name, using the first",
				slog.String("folder_name", name), slog.Int("matches", len(matches)))
		}
		ref := toFolderRef(&matches[0])
		r.logger.Info("folder exists", slog.String("folder_name", ref.Name), slog.String("folder_id", ref.ID))
		return &ref, nil
	}

	r.logger.Info("folder doesn't exist, creating", slog.String("folder_name", name))
	created, err := store.CreateFolder(ctx, name, parent.ID)
	if err != nil {
		return nil, newError(KindRemote, r.state, err, "[Google Drive] Failed to create folder %s: %s", name, adapter.ProviderMessage(err))
	}
	ref := toFolderRef(created)
	if ref.DriveID == "" {
		ref.DriveID = parent.DriveID
	}
	r.logger.Info("folder created", slog.String("folder_name", ref.Name), slog.String("folder_id", ref.ID))
	return &ref, nil
}

func (r *run) flatDestination() *model.FolderRef {
	id := r.req.DriveID
	if id == "" {
		id = rootFolderID
	}
	r.logger.Info("no parent folder given, uploading to drive root", slog.String("folder_id", id))
	return &model.FolderRef{ID: id, DriveID: r.req.DriveID}
}

func (r *run) resolveName(ctx context.Context, store adapter.Store, dest *model.FolderRef) (string, error) {
	desired := r.req.FileName
	existing, err := store.FindChildren(ctx, adapter.ChildQuery{
		ParentID: dest.ID,
		Name:     desired,
		DriveID:  r.driveScope(dest),
	})
	if err != nil {
		return "", newError(KindRemote, r.state, err, "[Google Drive] Failed to search for file %s: %s", desired, adapter.ProviderMessage(err))
	}
	if len(existing) == 0 {
		return desired, nil
	}

	name, err := conflictName(desired, r.u.random)
	if err != nil {
		return "", newError(KindRemote, r.state, err, "[Google Drive] %v", err)
	}
	r.logger.Info("file name conflict", slog.String("new_name", name))
	return name, nil
}

func (r *run) upload(ctx context.Context, store adapter.Store, dest *model.FolderRef, fd model.FileDescriptor) (*model.UploadResult, error) {
	f, err := os.Open(fd.LocalPath)
	if err != nil {
		return nil, newError(KindConfig, r.state, err, "Input file is not readable: %s", fd.LocalPath)
	}
	defer f.Close()

	r.logger.Info("uploading file",
		slog.String("path", fd.LocalPath),
		slog.String("name", fd.ResolvedName),
		slog.String("folder_id", dest.ID),
		slog.String("mime_type", fd.MimeType))

	created, err := store.UploadFile(ctx, fd.ResolvedName, dest.ID, fd.MimeType, f)
	if err != nil {
		return nil, newError(KindRemote, r.state, err, "[Google Drive] Upload failed: %s", adapter.ProviderMessage(err))
	}

	r.logger.Info("file uploaded", slog.String("remote_name", created.Name), slog.String("remote_id", created.ID))
	return &model.UploadResult{
		RemoteID:   created.ID,
		RemoteName: created.Name,
		FolderID:   dest.ID,
	}, nil
}

// driveScope picks the shared drive a search is restricted to.
func (r *run) driveScope(f *model.FolderRef) string {
	if r.req.DriveID != "" {
		return r.req.DriveID
	}
	return f.DriveID
}

func toFolderRef(f *adapter.FileMetadata) model.FolderRef {
	ref := model.FolderRef{
		ID:      f.ID,
		Name:    f.Name,
		DriveID: f.DriveID,
		Trashed: f.Trashed,
	}
	if len(f.Parents) > 0 {
		ref.ParentID = f.Parents[0]
	}
	return ref
}

func detectMIMEType(req Request) string {
	if req.MimeType != "" {
		return req.MimeType
	}
	for _, p := range []string{req.FileName, req.LocalPath} {
		if t := mime.TypeByExtension(filepath.Ext(p)); t != "" {
			return t
		}
	}
	return defaultMIMEType
}
