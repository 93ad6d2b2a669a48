package main

import (
	"github.com/layer-3/farmgate/conf"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var reapCmd = cobra.Command{
	Use:  "reap",
	Long: "Delete spent nonces and elapsed rate limit records",
	Run: func(cmd *cobra.Command, args []string) {
		execWithConfig(cmd, reap)
	},
}

func reap(cmd *cobra.Command, config *conf.GlobalConfiguration) {
	ctx := cmd.Context()

	a, err := buildApp(ctx, config)
	if err != nil {
		logrus.WithError(err).Fatal("Unable to start")
	}
	defer a.Close()

	if _, err := a.authService.Reaper().Sweep(ctx); err != nil {
		logrus.WithError(err).Fatal("Sweep failed")
	}
}
