package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/app"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/auth"
)

func newEncryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a credential bundle for use with --encrypted",
		Long: `Read a base64 credential bundle from stdin, check that it decodes, and print
its KMS ciphertext (key from kms_key_id).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading bundle: %w", err)
			}
			bundle := strings.TrimSpace(string(data))
			if _, err := auth.DecodeBundle(bundle); err != nil {
				return err
			}

			deps, err := app.NewDependencies(cmd.Context(), resolvedCfg, buildLogger(cmd))
			if err != nil {
				return err
			}
			ciphertext, err := deps.Decrypter.Encrypt(cmd.Context(), bundle)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ciphertext)
			return nil
		},
	}
}
