package main

import (
	"fmt"

	"github.com/spf13/cobra"

	orchestrators "github.com/ochairo/pybuild/internal/domain-orchestrators"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog products and available recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := a.catalog(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Products:")
			for _, p := range catalog.List() {
				url := p.URL()
				if url == "" {
					url = "-"
				}
				fmt.Fprintf(out, "  %-10s %-10s %s\n", p.Name, p.Version, url)
			}

			fmt.Fprintln(out, "\nRecipes:")
			for _, name := range orchestrators.RecipeNames() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			return nil
		},
	}
}
