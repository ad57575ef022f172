package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/yuanying/epub-reader/internal/config"
	"github.com/yuanying/epub-reader/internal/library"
	"github.com/yuanying/epub-reader/internal/logger"
	"github.com/yuanying/epub-reader/internal/store"
)

func newRootCmd() *cobra.Command {
	flags := &config.Flags{}
	cmd := &cobra.Command{
		Use:   "epubreader",
		Short: "Read EPUB books in the terminal and sync reading progress",
		Long: `epubreader keeps a local collection of EPUB books, reads them page by
page or as a continuous scroll, and remembers where you stopped.

Reading positions can be synchronized across devices through a sync
server, which the same binary can host with "epubreader serve".`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&flags.DataDir, "data-dir", "", "Directory holding the collection (env EPUBREADER_DATA_DIR)")
	cmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error (env EPUBREADER_LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&flags.LogFormat, "log-format", "", "Log format: text or json (env EPUBREADER_LOG_FORMAT)")

	cmd.AddCommand(
		newImportCmd(flags),
		newListCmd(flags),
		newRemoveCmd(flags),
		newCoverCmd(flags),
		newTocCmd(flags),
		newReadCmd(flags),
		newSettingsCmd(flags),
		newSyncCmd(flags),
		newRegisterCmd(flags),
		newServeCmd(flags),
		newWatchCmd(flags),
	)
	return cmd
}

// env holds what every command needs: the resolved configuration and a
// logger writing to the command's stderr.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
}

func loadEnv(cmd *cobra.Command, flags *config.Flags) (*env, error) {
	cfg, err := config.Load(*flags)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	l := logger.New(logger.Config{
		Writer: cmd.ErrOrStderr(),
		Format: cfg.LogFormat,
		Level:  logger.ParseLevel(cfg.LogLevel),
	})
	return &env{cfg: cfg, logger: l}, nil
}

// app is an env with the collection open.
type app struct {
	*env
	store *store.Store
	lib   *library.Library
}

func openApp(cmd *cobra.Command, flags *config.Flags) (*app, error) {
	e, err := loadEnv(cmd, flags)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(e.cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	s, err := store.Open(e.cfg.StorePath(), e.logger)
	if err != nil {
		return nil, err
	}
	return &app{env: e, store: s, lib: library.New(s, e.logger)}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", "error", err)
	}
}
