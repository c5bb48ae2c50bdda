package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/HendryAvila/hbadvisor/internal/server"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio transport) with background updates",
		Long: `Start the MCP server on stdin/stdout.

Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "hbadvisor": {
        "command": "hbadvisor",
        "args": ["serve"]
      }
    }
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9464); empty disables")
	return cmd
}

func (c *cli) serve(ctx context.Context) error {
	app, err := c.openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	s := server.New(app)

	// Everything below shares one context: when stdio closes or a signal
	// arrives, the scheduler stops scheduling and the metrics listener
	// shuts down. An in-flight store write always completes first.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.Scheduler.Run(ctx)
		return nil
	})

	if addr := c.cfg.MetricsAddr; addr != "" {
		g.Go(func() error { return serveMetrics(ctx, addr, c.log) })
	}

	g.Go(func() error {
		defer cancel()
		stdio := mcpserver.NewStdioServer(s)
		stdio.SetErrorLogger(slog.NewLogLogger(c.log.Handler(), slog.LevelError))
		c.log.Info("hbadvisor MCP server ready", "version", server.Version, "data_dir", c.cfg.DataDir)
		err := stdio.Listen(ctx, os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("stdio server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// serveMetrics exposes the default Prometheus registry until ctx ends.
func serveMetrics(ctx context.Context, addr string, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
