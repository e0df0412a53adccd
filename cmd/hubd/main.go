package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hubd/internal/config"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "hubd",
		Short:         "Robot command hub and control loop daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (yaml|json|toml); defaults apply when omitted")
	return root
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		var cfg config.Config
		err := cfg.Validate()
		return cfg, err
	}
	return config.Load(path)
}
