package cmd

import (
	"github.com/ZacxDev/pagesgen/features"
	"github.com/ZacxDev/pagesgen/loader"
	"github.com/ZacxDev/pagesgen/output"
	"github.com/spf13/cobra"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Write sites-config/features.json from the templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, s, err := loadProject()
		if err != nil {
			return err
		}

		templates, err := loader.Templates(cmd.Context(), loader.SourceLoader{}, s)
		if err != nil {
			return err
		}

		path := s.FeaturesConfig().GetAbsolutePath()
		if err := features.WriteFile(path, features.Emit(templates)); err != nil {
			return err
		}
		output.Info("wrote features config", "path", path, "features", templates.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(featuresCmd)
}
