package main

import (
	"github.com/spf13/cobra"

	"github.com/ochairo/pybuild/internal/config"
	"github.com/ochairo/pybuild/internal/domain/interfaces"
	"github.com/ochairo/pybuild/internal/external-adapters/zerolog"
)

// app carries state shared by all subcommands of one invocation
type app struct {
	root      string
	verbosity int

	cfg    *config.Config
	logger *zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "pybuild",
		Short: "Build relocatable Python interpreters",
		Long: `pybuild compiles CPython and its native dependencies (bzip2, openssl, xz)
in shared, static, framework and package variants, and rewrites the
resulting binaries so they no longer reference the build toolchain.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.root)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = zerolog.NewConsole(max(a.verbosity, cfg.Log.Verbosity))
			a.logger.Debug("Command started", interfaces.F("command", cmd.Name()), interfaces.F("root", cfg.Root))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().CountVarP(&a.verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	rootCmd.PersistentFlags().StringVar(&a.root, "root", ".", "Project root holding pybuild.toml and the build tree")

	rootCmd.AddCommand(
		newBuildCmd(a),
		newListCmd(a),
		newAnalyzeCmd(a),
		newRelinkCmd(a),
		newVerifyCmd(a),
		newZipLibCmd(a),
	)
	return rootCmd
}
