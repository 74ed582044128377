package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/701789262a/backend-dailychat/config"
	"github.com/701789262a/backend-dailychat/version"
)

type commandContext struct {
	configFlag *string
	envFlag    *string
}

// load reads the service's config file and environment into cfg.
// Defaults and validation happen in bootstrap.NewApp.
func (c *commandContext) load(service string, cfg any) error {
	var opts []config.LoaderOption
	if path := strings.TrimSpace(*c.configFlag); path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	if path := strings.TrimSpace(*c.envFlag); path != "" {
		opts = append(opts, config.WithEnvFile(path))
	}
	return config.LoadConfig(service, cfg, opts...)
}

func newRootCommand() *cobra.Command {
	var configFlag, envFlag string
	ctx := &commandContext{configFlag: &configFlag, envFlag: &envFlag}

	rootCmd := &cobra.Command{
		Use:           "voiceid",
		Short:         "Distributed speaker identification",
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&envFlag, "env-file", "", "Path to a .env file")

	rootCmd.AddCommand(newRegistryCommand(ctx))
	rootCmd.AddCommand(newDispatcherCommand(ctx))
	rootCmd.AddCommand(newNodeCommand(ctx))
	rootCmd.AddCommand(newNodesCommand(ctx))
	return rootCmd
}
