package main

import (
	"fmt"

	"github.com/spf13/cobra"

	domainerrors "github.com/ochairo/pybuild/internal/domain/errors"
)

func newVerifyCmd(a *app) *cobra.Command {
	var (
		sha256 string
		sigURL string
	)

	cmd := &cobra.Command{
		Use:   "verify <archive>",
		Short: "Verify the checksum and signature of a source archive",
		Example: `  pybuild verify build/downloads/Python-3.9.1.tgz --sha256 <digest>
  pybuild verify build/downloads/Python-3.9.1.tgz --sig-url https://www.python.org/ftp/python/3.9.1/Python-3.9.1.tgz.asc`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sha256 == "" && sigURL == "" {
				return domainerrors.Configurationf("nothing to verify: pass --sha256 and/or --sig-url")
			}
			fetcher, err := a.fetcher(cmd.Context())
			if err != nil {
				return err
			}
			archive := args[0]
			if err := fetcher.Verify(cmd.Context(), archive, sha256); err != nil {
				return err
			}
			if err := fetcher.VerifySignature(cmd.Context(), archive, sigURL); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s verified\n", archive)
			return nil
		},
	}

	cmd.Flags().StringVar(&sha256, "sha256", "", "Expected SHA-256 digest of the archive")
	cmd.Flags().StringVar(&sigURL, "sig-url", "", "URL of a detached GPG signature (needs build.keyring or build.keys_url)")
	return cmd
}
