package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/action"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/app"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/model"
)

// actionModules are the module names a nexrender job uses for this action.
var actionModules = []string{
	"nexrender-action-upload-google-drive",
	"nexrender-action-upload-gdrive",
}

// jobFile is a nexrender job as written to disk: the fields the action reads
// plus its postrender action list.
type jobFile struct {
	model.Job
	Actions struct {
		Postrender []json.RawMessage `json:"postrender"`
	} `json:"actions"`
}

type uploadFlags struct {
	jobPath          string
	invocationType   string
	credentials      string
	credentialsParam string
	encrypted        bool
	folderURL        string
	folderID         string
	composition      string
	fileName         string
	input            string
	driveID          string
	mimeType         string
	jsonOutput       bool
}

func newUploadCmd() *cobra.Command {
	var f uploadFlags

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a job's rendered output",
		Long: `Upload a job's rendered output to Google Drive.

The job is read from --job ("-" for stdin). Action parameters come from the
job's postrender entry for this module and are overridden by flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUpload(cmd, &f)
		},
	}

	cmd.Flags().StringVar(&f.jobPath, "job", "", `nexrender job JSON file, "-" for stdin`)
	cmd.Flags().StringVar(&f.invocationType, "type", action.PostRender, "invocation type")
	cmd.Flags().StringVar(&f.credentials, "credentials", "", "base64 encoded credential bundle")
	cmd.Flags().StringVar(&f.credentialsParam, "credentials-param", "", "secret parameter holding the credential bundle")
	cmd.Flags().BoolVar(&f.encrypted, "encrypted", false, "the credential bundle is KMS ciphertext")
	cmd.Flags().StringVar(&f.folderURL, "folder-url", "", "Drive folder URL of the parent folder")
	cmd.Flags().StringVar(&f.folderID, "folder-id", "", "id of the parent folder")
	cmd.Flags().StringVar(&f.composition, "composition", "", "subfolder name under the parent folder")
	cmd.Flags().StringVar(&f.fileName, "file-name", "", "name of the uploaded file")
	cmd.Flags().StringVar(&f.input, "input", "", "file to upload instead of the job output")
	cmd.Flags().StringVar(&f.driveID, "drive-id", "", "shared drive id")
	cmd.Flags().StringVar(&f.mimeType, "mime-type", "", "content type of the upload")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "print the result as JSON")

	return cmd
}

func runUpload(cmd *cobra.Command, f *uploadFlags) error {
	job := &jobFile{}
	if f.jobPath != "" {
		var err error
		if job, err = readJob(f.jobPath, cmd.InOrStdin()); err != nil {
			return err
		}
	}

	params, err := actionFromJob(job)
	if err != nil {
		return err
	}
	applyUploadFlags(cmd, f, &params)

	logger := buildLogger(cmd)
	deps, err := app.NewDependencies(cmd.Context(), resolvedCfg, logger)
	if err != nil {
		return err
	}

	out, err := deps.Runner(resolvedCfg, logger).Run(cmd.Context(), job.Job, params, f.invocationType)
	if err != nil {
		return err
	}

	if f.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.RemoteID)
	return nil
}

func readJob(path string, stdin io.Reader) (*jobFile, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading job %s: %w", path, err)
	}

	var job jobFile
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("parsing job %s: %w", path, err)
	}
	return &job, nil
}

// actionFromJob returns the parameters of the first postrender entry whose
// module is this action, or empty parameters when there is none.
func actionFromJob(job *jobFile) (model.ActionParams, error) {
	for _, raw := range job.Actions.Postrender {
		var entry struct {
			Module string `json:"module"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			return model.ActionParams{}, fmt.Errorf("parsing postrender action: %w", err)
		}
		if !isActionModule(entry.Module) {
			continue
		}
		var params model.ActionParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return model.ActionParams{}, fmt.Errorf("parsing %s action: %w", entry.Module, err)
		}
		return params, nil
	}
	return model.ActionParams{}, nil
}

func isActionModule(module string) bool {
	for _, m := range actionModules {
		if module == m || strings.HasSuffix(module, "/"+m) {
			return true
		}
	}
	return false
}

func applyUploadFlags(cmd *cobra.Command, f *uploadFlags, p *model.ActionParams) {
	set := func(name string, dst *string, v string) {
		if cmd.Flags().Changed(name) {
			*dst = v
		}
	}
	set("credentials", &p.Base64Credentials, f.credentials)
	set("credentials-param", &p.CredentialsParam, f.credentialsParam)
	set("folder-url", &p.FolderURL, f.folderURL)
	set("folder-id", &p.FolderID, f.folderID)
	set("composition", &p.CompositionName, f.composition)
	set("file-name", &p.FileName, f.fileName)
	set("input", &p.Input, f.input)
	set("drive-id", &p.DriveID, f.driveID)
	set("mime-type", &p.MimeType, f.mimeType)
	if cmd.Flags().Changed("encrypted") {
		p.EncryptedCredentials = f.encrypted
	}
}
