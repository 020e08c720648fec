package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/loganmanery/vaultkeeper/internal/cli"
	"github.com/loganmanery/vaultkeeper/internal/common"
	"github.com/loganmanery/vaultkeeper/internal/config"
	"github.com/loganmanery/vaultkeeper/internal/crypto"
	"github.com/loganmanery/vaultkeeper/internal/logging"
	"github.com/loganmanery/vaultkeeper/internal/storage"
	"github.com/loganmanery/vaultkeeper/pkg/manager"
)

// exitUsage is returned for unusable flags or configuration, matching the flag package
const exitUsage = 2

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return exitUsage
	}

	log, closeLog, err := openLog(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		return exitUsage
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.DBPath, storage.Defaults{
		CredentialDisplayDuration: int(cfg.CredentialDisplayDuration.Seconds()),
		IdleSessionTimeout:        int(cfg.IdleSessionTimeout.Seconds()),
	})
	if err != nil {
		log.Error(ctx, "failed to open vault", "path", cfg.DBPath, "error", err)
		fmt.Fprintf(os.Stderr, "Error opening vault: %v\n", err)
		return common.StorageUnavailable.Code()
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "failed to close vault", "error", err)
		}
	}()

	pm := manager.NewPasswordManager(store, crypto.NewEngine(), manager.WithLogger(log))
	if err := pm.Open(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing vault: %v\n", err)
		return pm.Status().Code()
	}

	app := cli.NewApp(pm, cli.NewConsole(os.Stdin, os.Stdout), log)
	status := app.Run(ctx)
	log.Info(ctx, "exiting", "status", status.String(), "code", status.Code())
	return status.Code()
}

// openLog writes structured logs to the configured file so they never mix
// with the interactive console
func openLog(cfg *config.Config) (logging.Logger, func(), error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	if cfg.LogPath == "" {
		return logging.NewTextLogger(io.Discard, level), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0700); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, err
	}
	return logging.NewTextLogger(f, level), func() { _ = f.Close() }, nil
}
