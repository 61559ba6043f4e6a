package main

import "github.com/spf13/cobra"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pacebot",
		Short:         "Multi-client Telegram action scheduler",
		Long:          "pacebot drives repeated chat actions (messages, photos, titles) through a pool of bot clients, pacing each chat and backing off when Telegram pushes back.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "./config.json", "path to config file (.json, .yaml, .toml)")

	rootCmd.AddCommand(
		newRunCmd(),
		newStateCmd(),
		newVersionCmd(),
	)
	return rootCmd
}
