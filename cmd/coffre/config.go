package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/forest6511/coffre/internal/config"
)

var (
	configOutput string
	configForce  bool
)

// configCmd groups the configuration file commands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the coffre configuration file",
}

// configInitCmd writes the effective configuration to a file.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the current settings",
	Long: `Write the effective settings (defaults, environment and flags merged)
to a YAML file. By default the file goes to the user config directory.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipVaultAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configOutput
		if path == "" {
			var err error
			path, err = config.GetConfigPath()
			if err != nil {
				return err
			}
		}
		if err := config.WriteConfigFile(&cfg, path, configForce); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Configuration written to %s\n", path)
		return nil
	},
}

// configShowCmd prints the effective configuration.
var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Print the effective configuration",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipVaultAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(&cfg)
		if err != nil {
			return err
		}
		_, err = stdout.Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().StringVarP(&configOutput, "output", "o", "", "Write to this path instead of the user config directory")
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing file")
}
