// Package serve implements the serve command: the HTTP API server.
package serve

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wildsight/wildsight-go/internal/api"
	"github.com/wildsight/wildsight-go/internal/conf"
	"github.com/wildsight/wildsight-go/internal/logging"
	"github.com/wildsight/wildsight-go/internal/runtime"
)

const shutdownTimeout = 10 * time.Second

// Command returns the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
		},
	}
}

func run(settings *conf.Settings) error {
	logger := logging.ForService("serve")

	if settings.Main.Log.Enabled {
		fileLogger, closer, err := logging.NewFileLogger(settings.Main.Log.Path, "serve", slog.LevelInfo)
		if err != nil {
			logger.Warn("file logging disabled", "error", err)
		} else {
			logger = fileLogger
			defer func() { _ = closer() }()
		}
	}

	result := conf.ValidateSettings(settings)
	for _, w := range result.Warnings {
		logger.Warn("configuration warning", "detail", w)
	}
	if !result.Valid {
		for _, e := range result.Errors {
			logger.Error("configuration error", "detail", e)
		}
		return fmt.Errorf("refusing to start with invalid configuration")
	}

	rt, err := runtime.Build(settings)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("failed to close datastore", "error", err)
		}
	}()

	controller := api.New(rt)
	defer controller.Shutdown()

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	errChan := make(chan error, 1)
	go func() {
		if err := controller.Start(addr); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()
	logger.Info("server started", "addr", addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return controller.Echo.Shutdown(ctx)
}
