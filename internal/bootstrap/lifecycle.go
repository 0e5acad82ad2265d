package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

const signalChannelBufferSize = 1

// RunUntilInterrupt runs the server until interrupted by signal or error.
func RunUntilInterrupt(deps *CommandDeps, server *ServerComponents, cronRunner *cron.Cron) error {
	sigChan := make(chan os.Signal, signalChannelBufferSize)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case serverErr := <-server.ErrorChan:
		deps.Logger.Error("Server error", logger.Error(serverErr))
		<-cronRunner.Stop().Done()
		return fmt.Errorf("server error: %w", serverErr)
	case sig := <-sigChan:
		return Shutdown(deps, server, cronRunner, sig)
	}
}

// Shutdown stops the schedules, waits for running passes to finish, then
// drains the HTTP server.
func Shutdown(deps *CommandDeps, server *ServerComponents, cronRunner *cron.Cron, sig os.Signal) error {
	log := deps.Logger
	log.Info("Shutdown signal received", logger.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), deps.Config.Server.ShutdownTimeout)
	defer cancel()

	log.Info("Stopping schedules")
	select {
	case <-cronRunner.Stop().Done():
	case <-ctx.Done():
		log.Warn("Timed out waiting for running passes to finish")
	}

	log.Info("Stopping HTTP server")
	if err := server.Server.Shutdown(ctx); err != nil {
		log.Error("Failed to stop server", logger.Error(err))
		return fmt.Errorf("failed to stop server: %w", err)
	}

	log.Info("Server stopped successfully")
	return nil
}
