package cmd

import (
	"github.com/ZacxDev/pagesgen/bundle"
	"github.com/ZacxDev/pagesgen/config"
	"github.com/ZacxDev/pagesgen/content"
	"github.com/ZacxDev/pagesgen/output"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render every page of the built bundle into dist/public",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd.Flags(), map[string]string{
			"generate.concurrency": "concurrency",
			"origin":               "origin",
		}); err != nil {
			return err
		}
		project, s, err := loadProject()
		if err != nil {
			return err
		}
		if project.Content.Mode == config.ContentModeDynamic {
			output.Warn("generate enumerates documents from local data; content.mode dynamic only applies to the dev server")
		}

		res, err := bundle.Generate(cmd.Context(), s, bundle.GenerateOptions{
			Documents:   content.NewLocalStore(s.LocalData().GetAbsolutePath()),
			Concurrency: project.Generate.Concurrency,
			Origin:      project.Origin,
		})
		if res != nil && res.Failed > 0 {
			return errors.Errorf("%d of %d pages failed: %v", res.Failed, res.Failed+len(res.Pages), multierr.Errors(err))
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().IntP("concurrency", "j", 8, "Pages rendered in parallel")
	generateCmd.Flags().String("origin", "", "Site origin; enables sitemap.xml")
}
