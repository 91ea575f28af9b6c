package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"occupancy/internal/platform/metrics"
	"occupancy/internal/platform/tracing"
	httptransport "occupancy/internal/transport/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.HTTP.Addr
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), a, ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides OCCUPANCY_HTTP_ADDR)")
	return cmd
}

// serve runs the API on ln until ctx is cancelled, then drains in-flight
// requests.
func serve(ctx context.Context, a *app, ln net.Listener) error {
	router := httptransport.NewRouter(a.svc, httptransport.Options{
		Logger:      a.log,
		Metrics:     metrics.Handler(a.registry),
		MetricsPath: a.cfg.HTTP.MetricsPath,
		Exporter:    a.exporter,
		Propagator:  tracing.Propagator(),
	})
	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("http server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.log.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
