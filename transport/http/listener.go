package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// ListenAndServe serves handler on hostAndPort until ctx is done, then shuts
// down gracefully within shutdownTimeout
func ListenAndServe(ctx context.Context, hostAndPort string, handler http.Handler, readTimeout, shutdownTimeout time.Duration) error {
	baseCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// stop also ends the shutdown goroutine when the server never started
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	log := logrus.WithField("component", "api")

	server := &http.Server{
		Addr:              hostAndPort,
		Handler:           handler,
		ReadHeaderTimeout: 2 * time.Second, // to mitigate a Slowloris attack
		ReadTimeout:       readTimeout,
		BaseContext: func(net.Listener) context.Context {
			return baseCtx
		},
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("shutdown failed")
		}
	}()

	log.Infof("FarmGate API started on: %s", hostAndPort)
	err := server.ListenAndServe()
	stop()
	<-done

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
