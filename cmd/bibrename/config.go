package main

import (
	"fmt"
	"os"

	"github.com/matsen/bibrename/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")
}

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialize configuration",
	Long: `Show or initialize configuration.

Settings are read from $XDG_CONFIG_HOME/bibrename/config.yml (default
~/.config/bibrename/config.yml), then overridden by environment variables:

  BIBRENAME_MAILTO        contact address for the registries' polite pools
  BIBRENAME_CROSSREF_URL  Crossref API base URL
  BIBRENAME_OPENALEX_URL  OpenAlex API base URL
  BIBRENAME_CACHE         lookup cache path (":memory:" for none on disk)
  BIBRENAME_ADDR          HTTP listen address for serve

A .env file in the working directory is loaded first.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		data, err := yaml.Marshal(cfg)
		if err != nil {
			exitWithError(ExitError, "encoding config: %v", err)
		}
		fmt.Print(string(data))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.Path()
		status := "missing"
		if _, err := os.Stat(path); err == nil {
			status = "exists"
		}

		if humanOutput {
			outputHuman("%s (%s)\n", path, status)
		} else {
			outputJSON(StatusResponse{Status: status, Path: path})
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.Path()
		if path == "" {
			exitWithError(ExitConfigError, "cannot determine config directory")
		}
		if _, err := os.Stat(path); err == nil && !configInitForce {
			exitWithError(ExitConfigError, "config already exists: %s (use --force to overwrite)", path)
		}

		if err := config.Default().Save(path); err != nil {
			exitWithError(ExitConfigError, "%v", err)
		}

		if humanOutput {
			outputHuman("Wrote %s\n", path)
		} else {
			outputJSON(StatusResponse{Status: "created", Path: path})
		}
		return nil
	},
}
