// Package cli holds the start-up steps shared by cmd/expensetracker and
// cmd/export-worker.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"expensetracker/internal/backend"
	"expensetracker/internal/config"
	"expensetracker/internal/jobs"
	"expensetracker/internal/log"
	"expensetracker/internal/sheets/memory"
)

// LoadEnvFile loads the .env file for local development.
// A missing file is not an error.
func LoadEnvFile() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Bootstrap loads .env and the environment, validates the configuration and
// installs the default logger for component.
func Bootstrap(component string) (*config.Config, *log.Logger, error) {
	envErr := LoadEnvFile()
	cfg := config.Load()
	logger := log.Setup(cfg.LogLevel, cfg.LogFormat).WithComponent(component)
	if envErr != nil {
		logger.Warn("Ignoring unreadable .env file", log.FieldError, envErr)
	}
	if err := cfg.Validate(); err != nil {
		return nil, logger, err
	}
	return cfg, logger, nil
}

// OpenBackend builds the stores selected by cfg.
func OpenBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
}

// ExportDestinations returns the file and sheets destinations. Without a
// configured spreadsheet, cloud sync appends to an in-process sheet.
func ExportDestinations(ctx context.Context, cfg *config.Config) (map[string]jobs.Destination, error) {
	dests := map[string]jobs.Destination{
		jobs.DestinationFile: jobs.FileDestination{Dir: cfg.ExportDir},
	}
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	rows, err := backend.CreateSheets(ctx, bcfg)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = memory.New(cfg.GoogleSheetName)
	}
	dests[jobs.DestinationSheets] = jobs.SheetsDestination{Rows: rows}
	return dests, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM. The signal is logged.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigs)
		select {
		case sig := <-sigs:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Exit logs err and terminates the process.
func Exit(logger *log.Logger, msg string, err error) {
	logger.Error(msg, log.FieldError, err)
	os.Exit(1)
}
