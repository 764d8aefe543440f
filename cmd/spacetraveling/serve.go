package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eringen/spacetraveling"
)

var (
	serveAddr  string
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the site, regenerating pages on the configured interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		site := cfg.Site
		if serveAddr != "" {
			site.Addr = serveAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app := spacetraveling.New(site)
		if err := app.Init(); err != nil {
			return err
		}

		if serveWatch && site.CMSEndpoint == "" {
			go func() {
				if err := app.WatchContent(ctx); err != nil {
					slog.Error("content watcher stopped", "error", err)
				}
			}()
		}

		errCh := make(chan error, 1)
		go func() { errCh <- app.Start(ctx) }()

		select {
		case err := <-errCh:
			app.Close()
			return err
		case <-ctx.Done():
		}

		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "drop generated pages when markdown content changes")
}
