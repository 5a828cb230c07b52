package cmd

import (
	"github.com/ZacxDev/pagesgen/bundle"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Validate the sources and write the production bundle to dist",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, s, err := loadProject()
		if err != nil {
			return err
		}
		minify, _ := cmd.Flags().GetBool("minify")

		_, err = bundle.Build(cmd.Context(), s, bundle.BuildOptions{Minify: minify})
		return err
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().Bool("minify", true, "Minify client bundles")
}
