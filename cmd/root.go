package cmd

import (
	"os"

	"github.com/ZacxDev/pagesgen/config"
	"github.com/ZacxDev/pagesgen/content"
	"github.com/ZacxDev/pagesgen/output"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	v       *viper.Viper
)

var rootCmd = &cobra.Command{
	Use:   "pagesgen",
	Short: "pagesgen - static pages from templates and entity streams",
	Long: `pagesgen renders one HTML page per entity of a content stream, plus static pages,
from plush templates. It runs a dev server, builds a fingerprinted production bundle
and generates the site from it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		output.SetupLogging(verbose)

		var err error
		v, err = config.NewViper(cfgFile)
		if err != nil {
			return err
		}
		return bindFlags(cmd.Flags(), map[string]string{
			"root":  "root",
			"scope": "scope",
		})
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		output.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./pages.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().String("root", ".", "project root")
	rootCmd.PersistentFlags().String("scope", "", "scope subdirectory checked before the shared templates")
}

// bindFlags maps config keys to flags. A flag only overrides the config
// when it is set on the command line.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return errors.Wrapf(err, "binding --%s", name)
		}
	}
	return nil
}

func loadProject() (*config.Project, *config.Structure, error) {
	project, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}
	return project, config.NewStructure(project), nil
}

// documentFetcher picks the content source configured for single-document
// fetches.
func documentFetcher(p *config.Project, s *config.Structure) content.Fetcher {
	if p.Content.Mode == config.ContentModeDynamic {
		return &content.CLIFetcher{Command: p.Content.Command, Dir: s.Root().GetAbsolutePath()}
	}
	return content.NewLocalStore(s.LocalData().GetAbsolutePath())
}
