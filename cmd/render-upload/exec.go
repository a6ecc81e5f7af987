package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/uploader"
)

func newExecCmd() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "exec --input FILE -- PROGRAM [ARGS...]",
		Short: "Upload by running an external program",
		Long: `Run PROGRAM with ARGS followed by the input path. The program's last line
of output is printed as the remote id. A non-zero exit fails the command.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := &uploader.ExternalUploader{
				Program: args[0],
				Args:    args[1:],
				Logger:  buildLogger(cmd),
			}
			res, err := e.Upload(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.RemoteID)
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "file to upload")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}
