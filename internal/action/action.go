// Package action runs the upload as a nexrender postrender action: it checks
// the invocation, resolves the credential bundle and the rendered file, runs
// the uploader and records the outcome.
package action

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/history"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/model"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/secret"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/uploader"
)

// LogPrefix tags every message the action logs or raises.
const LogPrefix = "[nexrender-action-upload-google-drive]"

// PostRender is the only invocation type the action accepts.
const PostRender = "postrender"

// Uploader is implemented by *uploader.Uploader.
type Uploader interface {
	Upload(ctx context.Context, req uploader.Request) (*model.UploadResult, error)
}

// Decrypter turns an encrypted credential bundle back into its base64 form.
type Decrypter interface {
	Decrypt(ctx context.Context, ciphertext string) (string, error)
}

// Outcome is the result of one successful Run.
type Outcome struct {
	InvocationID string `json:"invocationId"`
	*model.UploadResult
}

// Runner executes the action. Secrets, Decrypter and Recorder are optional.
type Runner struct {
	Uploader  Uploader
	Secrets   secret.Resolver
	Decrypter Decrypter
	Recorder  history.Recorder
	Logger    *slog.Logger

	// DefaultCredentialsParam is used when the action names no credentials at all.
	DefaultCredentialsParam string

	// UploadRoot, when set, is the directory every input file must resolve
	// into after symlinks are followed.
	UploadRoot string

	// CredentialsPrefix, when set, restricts the credentialsParam an action
	// may name. DefaultCredentialsParam is not subject to it.
	CredentialsPrefix string

	newID func() string
	now   func() time.Time
}

type pipelineKey struct{}

// WithPipeline attaches the identity of the calling pipeline to ctx. It ends
// up in the history record.
func WithPipeline(ctx context.Context, pipeline string) context.Context {
	return context.WithValue(ctx, pipelineKey{}, pipeline)
}

func pipelineFrom(ctx context.Context) string {
	p, _ := ctx.Value(pipelineKey{}).(string)
	return p
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func configError(msg string, args ...any) error {
	return uploader.ConfigError(LogPrefix+" "+msg, args...)
}

// Run uploads the job's rendered output. Upload failures are logged and
// returned unchanged.
func (r *Runner) Run(ctx context.Context, job model.Job, params model.ActionParams, invocationType string) (*Outcome, error) {
	if invocationType != PostRender {
		return nil, configError("Action can only be run in postrender mode, you provided: %s.", invocationType)
	}
	if params.Base64Credentials == "" && params.CredentialsParam == "" && r.DefaultCredentialsParam == "" {
		return nil, configError("Missing base64Credentials.")
	}
	if params.FileName == "" {
		return nil, configError("Missing fileName.")
	}
	if (params.FolderURL != "" || params.FolderID != "") && params.CompositionName == "" {
		return nil, configError("Missing compositionName.")
	}

	invocationID := r.invocationID()
	logger := r.logger().With(slog.String("invocation_id", invocationID), slog.String("job_uid", job.UID))

	input, err := resolveInput(job, params)
	if err != nil {
		return nil, err
	}
	if input, err = r.confine(input); err != nil {
		return nil, err
	}

	logger.Info(LogPrefix+" Uploading file to Google Drive", slog.String("path", input))

	res, err := r.upload(ctx, params, input)
	r.record(ctx, logger, invocationID, job, res, err)
	if err != nil {
		logger.Error(LogPrefix+" Failed to upload file", slog.String("error", err.Error()))
		return nil, err
	}

	logger.Info(LogPrefix+" File uploaded successfully to Google Drive",
		slog.String("remote_id", res.RemoteID),
		slog.String("remote_name", res.RemoteName))
	return &Outcome{InvocationID: invocationID, UploadResult: res}, nil
}

func (r *Runner) upload(ctx context.Context, params model.ActionParams, input string) (*model.UploadResult, error) {
	creds, err := r.credentials(ctx, params)
	if err != nil {
		return nil, err
	}
	return r.Uploader.Upload(ctx, uploader.Request{
		Credentials:     creds,
		FolderURL:       params.FolderURL,
		FolderID:        params.FolderID,
		CompositionName: params.CompositionName,
		LocalPath:       input,
		FileName:        params.FileName,
		DriveID:         params.DriveID,
		MimeType:        params.MimeType,
	})
}

// credentials returns the base64 bundle from the action, or from the secret
// store, decrypting it when the action says it is encrypted.
func (r *Runner) credentials(ctx context.Context, params model.ActionParams) (string, error) {
	creds := params.Base64Credentials
	if creds == "" {
		name := params.CredentialsParam
		if name == "" {
			name = r.DefaultCredentialsParam
		}
		if params.CredentialsParam != "" && !r.credentialsParamAllowed(name) {
			return "", configError("credentialsParam %s is outside %s.", name, r.CredentialsPrefix)
		}
		if r.Secrets == nil {
			return "", configError("credentialsParam %s cannot be resolved: no secret store configured.", name)
		}
		v, err := r.Secrets.GetSecret(ctx, name)
		if err != nil {
			return "", uploader.CredentialError(err, "%s Failed to read credentials from %s: %v", LogPrefix, name, err)
		}
		creds = v
	}

	if params.EncryptedCredentials {
		if r.Decrypter == nil {
			return "", configError("encryptedCredentials is set but no key is configured.")
		}
		plain, err := r.Decrypter.Decrypt(ctx, creds)
		if err != nil {
			return "", uploader.CredentialError(err, "%s Failed to decrypt credentials: %v", LogPrefix, err)
		}
		creds = plain
	}
	return creds, nil
}

// resolveInput picks the file to upload: the action's input, else the job
// output, with relative paths taken against the job workpath.
func resolveInput(job model.Job, params model.ActionParams) (string, error) {
	input := params.Input
	if input == "" {
		input = job.Output
	}
	if input == "" {
		return "", configError("Missing job output.")
	}
	if !filepath.IsAbs(input) {
		if job.Workpath == "" {
			return "", configError("Relative input %s needs a job workpath.", input)
		}
		input = filepath.Join(job.Workpath, input)
	}
	return input, nil
}

// confine follows symlinks in input and checks that the result lies under
// UploadRoot. It returns the resolved path.
func (r *Runner) confine(input string) (string, error) {
	if r.UploadRoot == "" {
		return input, nil
	}
	root, err := filepath.EvalSymlinks(filepath.Clean(r.UploadRoot))
	if err != nil {
		return "", configError("Upload root %s is not accessible.", r.UploadRoot)
	}
	resolved, err := filepath.EvalSymlinks(filepath.Clean(input))
	if err != nil {
		return "", configError("Input file is not accessible: %s", input)
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", configError("Input %s is outside the upload root.", input)
	}
	return resolved, nil
}

func (r *Runner) credentialsParamAllowed(name string) bool {
	if r.CredentialsPrefix == "" {
		return true
	}
	prefix := strings.TrimSuffix(r.CredentialsPrefix, "/") + "/"
	return strings.HasPrefix(path.Clean(name), prefix)
}

func (r *Runner) invocationID() string {
	if r.newID != nil {
		return r.newID()
	}
	return uuid.New().String()
}

// record writes the audit entry. Failures are logged only.
func (r *Runner) record(ctx context.Context, logger *slog.Logger, invocationID string, job model.Job, res *model.UploadResult, uploadErr error) {
	if r.Recorder == nil {
		return
	}

	now := time.Now
	if r.now != nil {
		now = r.now
	}
	rec := &model.UploadRecord{
		InvocationID: invocationID,
		JobUID:       job.UID,
		Pipeline:     pipelineFrom(ctx),
		CreatedAt:    now().UTC(),
	}
	if uploadErr != nil {
		rec.Status = model.StatusFailed
		rec.ErrorMessage = uploadErr.Error()
		if kind, ok := uploader.KindOf(uploadErr); ok {
			rec.ErrorKind = kind.String()
		}
	} else {
		rec.Status = model.StatusSucceeded
		rec.RemoteID = res.RemoteID
		rec.RemoteName = res.RemoteName
		rec.FolderID = res.FolderID
	}

	// The upload already happened; a cancelled request must not drop its record.
	if err := r.Recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
		level := slog.LevelWarn
		if errors.Is(err, history.ErrDuplicate) {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "failed to record upload", slog.String("error", err.Error()))
	}
}
