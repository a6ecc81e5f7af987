package uploader

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
)

// ExternalResult is the outcome of one external upload process.
type ExternalResult struct {
	RemoteID string
	ExitCode int
	Stdout   string
	Stderr   string
}

// ExternalUploader hands the file to another program instead of calling the
// Drive API itself. The program is run as "<Program> <Args...> <localPath>"
// and is expected to print the remote id as its last line of output.
type ExternalUploader struct {
	Program string
	Args    []string
	Env     []string
	Logger  *slog.Logger
}

// Upload runs the program once for localPath.
func (e *ExternalUploader) Upload(ctx context.Context, localPath string) (*ExternalResult, error) {
	if e.Program == "" {
		return nil, ConfigError("Missing external upload program.")
	}
	if localPath == "" {
		return nil, ConfigError("Missing input file path.")
	}
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	args := append(append([]string(nil), e.Args...), localPath)
	cmd := exec.CommandContext(ctx, e.Program, args...)
	if len(e.Env) > 0 {
		cmd.Env = append(cmd.Environ(), e.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Info("running external uploader", slog.String("program", e.Program), slog.String("path", localPath))
	err := cmd.Run()

	res := &ExternalResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, newError(KindRemote, StateUploading, err,
				"[Google Drive] External uploader exited with code %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
		}
		res.ExitCode = -1
		return res, newError(KindRemote, StateUploading, err, "[Google Drive] External uploader failed to start: %v", err)
	}

	res.RemoteID = lastLine(res.Stdout)
	logger.Info("external uploader finished", slog.String("remote_id", res.RemoteID))
	return res, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
