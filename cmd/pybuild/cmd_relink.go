package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	orchestrators "github.com/ochairo/pybuild/internal/domain-orchestrators"
	"github.com/ochairo/pybuild/internal/domain/entities"
	domainerrors "github.com/ochairo/pybuild/internal/domain/errors"
	"github.com/ochairo/pybuild/internal/domain/services"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <binary>...",
		Short: "List the library references of binaries and mark toolchain ones",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := a.cfg.Settings(nil)
			if err != nil {
				return err
			}
			relinker := a.relinker(a.shell(settings))
			for _, path := range args {
				rec, err := relinker.Analyze(cmd.Context(), path)
				if err != nil {
					return err
				}
				printRecord(cmd.OutOrStdout(), rec)
			}
			return nil
		},
	}
}

func printRecord(w io.Writer, rec entities.BinaryDependencyRecord) {
	mark := func(matched bool) string {
		if matched {
			return "  [toolchain]"
		}
		return ""
	}
	fmt.Fprintf(w, "%s (%d to rewrite)\n", rec.BinaryPath, rec.MatchedCount())
	if rec.SelfID != "" {
		fmt.Fprintf(w, "  id  %s%s\n", rec.SelfID, mark(rec.SelfIDMatched))
	}
	for _, ref := range rec.References {
		fmt.Fprintf(w, "  ref %s%s\n", ref.Path, mark(ref.Matched))
	}
}

func newRelinkCmd(a *app) *cobra.Command {
	var (
		profile           string
		name              string
		framework         string
		dependentOverride string
	)

	cmd := &cobra.Command{
		Use:   "relink <binary>...",
		Short: "Rewrite toolchain references of binaries to relocatable paths",
		Example: `  pybuild relink externals/py.mxo/Contents/MacOS/py --profile bundle-embedded
  pybuild relink support/python3.9/lib/libpython3.9.dylib --profile relocatable-package --name python3.9`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rule := entities.RewriteProfile(profile)
			if !slices.Contains(services.RewriteProfiles(), rule) {
				return domainerrors.Configurationf("unknown rewrite profile %q (want one of %v)", profile, services.RewriteProfiles())
			}
			settings, err := a.cfg.Settings(nil)
			if err != nil {
				return err
			}
			python := entities.Product{Name: "Python", Version: settings.PyVersion}
			if name == "" {
				name = python.NameVer()
			}
			if framework == "" {
				framework = services.FrameworkPath(python)
			}

			relinker := a.relinker(a.shell(settings))
			opts := orchestrators.RelinkOptions{
				Profile:           rule,
				Vars:              services.RewriteVars{Name: name, Framework: framework},
				DependentOverride: dependentOverride,
			}
			for _, path := range args {
				count, err := relinker.Relink(cmd.Context(), path, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d reference(s) rewritten\n", path, count)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&profile, "profile", string(entities.RewriteBundleEmbedded), "Rewrite profile: bundle-embedded, relocatable-package or framework-embedded")
	flags.StringVar(&name, "name", "", "Support directory name for {name} (default python<ver>)")
	flags.StringVar(&framework, "framework", "", "Framework binary path for {framework} (default Python.framework/Versions/<ver>/Python)")
	flags.StringVar(&dependentOverride, "dependent-override", "", "Replace the dependent template for these binaries")
	return cmd
}
