package main

import (
	"github.com/layer-3/farmgate/conf"
	"github.com/layer-3/farmgate/observability"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configFile = ""

var rootCmd = cobra.Command{
	Use:   "farmgate",
	Short: "Wallet sign-in and abuse prevention service",
	Run: func(cmd *cobra.Command, args []string) {
		execWithConfig(cmd, serve)
	},
}

func rootCommand() *cobra.Command {
	rootCmd.AddCommand(&serveCmd, &reapCmd, signCmd(), &versionCmd)
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "the config file to use")

	return &rootCmd
}

func execWithConfig(cmd *cobra.Command, fn func(cmd *cobra.Command, config *conf.GlobalConfiguration)) {
	config, err := conf.LoadGlobal(configFile)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %+v", err)
	}

	if err := observability.ConfigureLogging(&config.Logging); err != nil {
		logrus.WithError(err).Fatal("Unable to configure logging")
	}

	fn(cmd, config)
}
