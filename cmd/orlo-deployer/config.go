package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/orlo-deployer/internal/config"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Print the configuration a deployment would run with, as YAML.

Values are layered from built-in defaults, the user config
(~/.config/orlo-deployer/config.yaml), the project config
(.orlo-deployer.yaml), ORLO_* environment variables and flags.
Password and token are masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if path := config.GetProjectConfigPath(); path != "" && opts.configFile == "" {
				fmt.Fprintf(out, "# project config: %s\n", path)
			}

			data, err := yaml.Marshal(cfg.Redacted())
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = out.Write(data)
			return err
		},
	}
}
