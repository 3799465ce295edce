package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ochairo/pybuild/internal/domain-adapters/gateways"
	domainerrors "github.com/ochairo/pybuild/internal/domain/errors"
)

func newZipLibCmd(a *app) *cobra.Command {
	var checkOnly bool

	cmd := &cobra.Command{
		Use:   "ziplib <python-lib-dir>",
		Short: "Compact an installed standard library into pythonXY.zip",
		Long: `Compact an installed standard library (e.g. <prefix>/lib/python3.9) into
<prefix>/lib/python39.zip, leaving only os.py, lib-dynload and an empty
site-packages behind.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pythonLib := filepath.Clean(args[0])
			zipPath, err := zipPathFor(pythonLib)
			if err != nil {
				return err
			}
			packager := gateways.NewPackager(a.logger)
			if !checkOnly {
				if _, err := packager.CompactStdlib(cmd.Context(), pythonLib, zipPath); err != nil {
					return err
				}
			}
			if err := packager.CheckZipLib(pythonLib, zipPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", zipPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "Only check an already compacted library")
	return cmd
}

// zipPathFor maps .../lib/python3.9 to .../lib/python39.zip
func zipPathFor(pythonLib string) (string, error) {
	base := filepath.Base(pythonLib)
	ver, ok := strings.CutPrefix(base, "python")
	if !ok || ver == "" {
		return "", domainerrors.Configurationf("%s is not a pythonX.Y library directory", pythonLib)
	}
	return filepath.Join(filepath.Dir(pythonLib), "python"+strings.ReplaceAll(ver, ".", "")+".zip"), nil
}
