package main

import (
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/farmgate/conf"
	transport "github.com/layer-3/farmgate/transport/http"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = cobra.Command{
	Use:  "serve",
	Long: "Start API server",
	Run: func(cmd *cobra.Command, args []string) {
		execWithConfig(cmd, serve)
	},
}

func serve(cmd *cobra.Command, config *conf.GlobalConfiguration) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, config)
	if err != nil {
		logrus.WithError(err).Fatal("Unable to start")
	}
	defer a.Close()

	gin.SetMode(gin.ReleaseMode)
	router := transport.SetupRouter(a.authService, a.metrics)
	if err := router.SetTrustedProxies(config.API.TrustedProxies); err != nil {
		logrus.WithError(err).Fatal("Invalid trusted proxies")
	}

	addr := net.JoinHostPort(config.API.Host, config.API.Port)
	if err := transport.ListenAndServe(ctx, addr, router, config.API.ReadTimeout, config.API.ShutdownTimeout); err != nil {
		logrus.WithError(err).Fatal("http server listen failed")
	}
}
