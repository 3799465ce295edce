package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	orchestrators "github.com/ochairo/pybuild/internal/domain-orchestrators"
	domainerrors "github.com/ochairo/pybuild/internal/domain/errors"
)

func newBuildCmd(a *app) *cobra.Command {
	var (
		opts      orchestrators.RunOptions
		pyVersion string
		settings  map[string]string
		overrides []string
	)

	cmd := &cobra.Command{
		Use:   "build <recipe>...",
		Short: "Run the selected actions of one or more recipes",
		Long: `Run the selected actions of one or more recipes. Actions run in the order
reset, download, install, build, clean, ziplib; unselected actions are skipped.
The first failure aborts the run.

Use "pybuild list" to see the available recipes.`,
		Example: `  pybuild build python-shared --download --build
  pybuild build python-framework-pkg --reset --build --py-version 3.8.6
  pybuild build openssl --build --set ssl_version=1.1.1h
  pybuild build xz --download --override xz.url_template=https://mirror.example.com/{name}-{version}.tar.gz
  pybuild build python-static --dump=json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := map[string]string{}
			for k, v := range settings {
				values[k] = v
			}
			if pyVersion != "" {
				values["py_version"] = pyVersion
			}
			merged, err := a.cfg.Settings(values)
			if err != nil {
				return err
			}
			productOverrides, err := parseOverrides(overrides)
			if err != nil {
				return err
			}

			catalog, err := a.catalog(cmd.Context())
			if err != nil {
				return err
			}
			tools, err := a.tools(cmd.Context(), merged)
			if err != nil {
				return err
			}
			factory := orchestrators.NewRecipeFactory(catalog, merged, a.cfg.Layout(), tools, productOverrides)
			orch := orchestrators.NewRecipeOrchestrator(a.logger)
			opts.DumpDir = a.cfg.Root

			// Resolve every recipe before running any of them
			recipes := make([]*orchestrators.Recipe, 0, len(args))
			for _, name := range args {
				recipe, err := factory.NewRecipe(name)
				if err != nil {
					return err
				}
				recipes = append(recipes, recipe)
			}

			for _, recipe := range recipes {
				result, err := orch.Run(cmd.Context(), recipe, opts)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), result.Summary())
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.Reset, "reset", false, "Remove the product prefix and source tree")
	flags.BoolVar(&opts.Download, "download", false, "Download and unpack source archives")
	flags.BoolVar(&opts.Install, "install", false, "Run reset, download, preprocess, build and post-processing (strip, ziplib, relink); an existing product is only post-processed")
	flags.BoolVar(&opts.Build, "build", false, "Compile dependencies and the product without post-processing")
	flags.BoolVar(&opts.Clean, "clean", false, "Strip the installed tree according to the profile")
	flags.BoolVar(&opts.ZipLib, "ziplib", false, "Compact the standard library into pythonXY.zip")
	flags.StringVar(&opts.Dump, "dump", "", "Write the resolved builders as yml, json or all")
	flags.Lookup("dump").NoOptDefVal = "yml"
	flags.StringVar(&pyVersion, "py-version", "", "Python version to build (e.g. 3.8.6)")
	flags.StringToStringVar(&settings, "set", nil, "Override a setting (py_version, bz2_version, ssl_version, xz_version, deployment_target, jobs)")
	flags.StringArrayVar(&overrides, "override", nil, "Override a catalog field as <product>.<field>=<value>")
	return cmd
}

// parseOverrides turns product.field=value pairs into per-product override maps
func parseOverrides(pairs []string) (map[string]map[string]string, error) {
	out := map[string]map[string]string{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		product, field, dotted := strings.Cut(key, ".")
		if !ok || !dotted || product == "" || field == "" {
			return nil, domainerrors.Configurationf("override %q must have the form <product>.<field>=<value>", pair)
		}
		product = strings.ToLower(product)
		if out[product] == nil {
			out[product] = map[string]string{}
		}
		out[product][field] = value
	}
	return out, nil
}
