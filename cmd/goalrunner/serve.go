package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ZanzyTHEbar/goalrunner/internal/httpapi"
)

var (
	serveAddr            string
	serveShutdownTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().DurationVar(&serveShutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, wireOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	addr := a.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	mux := http.NewServeMux()
	mux.Handle("/", httpapi.NewRouter(httpapi.Config{
		Runner:   a.runner,
		Store:    a.store,
		Registry: a.registry,
		Metrics:  a.executor,
		Version:  versionName,
		Logger:   a.logger,
	}))
	if a.genkit != nil {
		registerFlows(a, mux)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("HTTP API listening", "addr", addr, "tools", a.registry.Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down HTTP API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
