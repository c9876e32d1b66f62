package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/danmuck/colonyctl/internal/logging"
)

type configLoader func() (appConfig, error)

func newRootCmd() *cobra.Command {
	var cfgPath string
	load := func() (appConfig, error) {
		if cfgPath == "" {
			return defaultAppConfig(), nil
		}
		return loadAppConfig(cfgPath)
	}

	root := &cobra.Command{
		Use:           "colonyctl",
		Short:         "Colony session protocol tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.ConfigureRuntime()
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "runtime config file (TOML)")

	root.AddCommand(newEventsCmd())
	root.AddCommand(newDecodeCmd())
	root.AddCommand(newMinigamesCmd(load))
	root.AddCommand(newSimulateCmd(load))
	root.AddCommand(newInitConfigCmd())
	return root
}

// applyLogLevel raises or lowers the global level from the config file.
func applyLogLevel(level string) error {
	if level == "" {
		return nil
	}
	lvl, ok := logging.ParseLevel(level)
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
