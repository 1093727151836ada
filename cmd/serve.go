package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/listx/internal/server"
	"github.com/desertthunder/listx/internal/shared"
)

// Serve runs the HTTP API until interrupted, then shuts down gracefully.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx, cmd); err != nil {
		return err
	}

	addr := r.config.Server
	if cmd.IsSet("host") {
		addr.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		addr.Port = cmd.Int("port")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := shared.WithLogger(r.logger, "component", "http")
	api := server.NewAPI(r.repo, r.order, r.backups, server.APIOptions{Logger: logger})
	httpServer := server.NewHTTPServer(addr.Addr(), api, logger)

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting HTTP server at %v", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	r.writePlain("→ Serving on http://%s (Ctrl+C to stop)\n", httpServer.Addr)

	select {
	case err, ok := <-serverErrors:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	r.logger.Info("shutting down HTTP server")

	// Open event streams end with their subscriptions.
	r.order.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}
	return nil
}
