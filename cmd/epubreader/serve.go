package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yuanying/epub-reader/internal/config"
	"github.com/yuanying/epub-reader/internal/syncserver"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(flags *config.Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reading position sync server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cmd, flags)
			if err != nil {
				return err
			}
			cfg := e.cfg.Server
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return fmt.Errorf("failed to create database directory: %w", err)
			}
			db, err := syncserver.OpenDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			srv := &http.Server{
				Addr: cfg.Addr,
				Handler: syncserver.NewServer(db, syncserver.Config{
					RequestsPerSecond: cfg.RequestsPerSecond,
					Burst:             cfg.Burst,
				}, e.logger),
				ReadTimeout:  cfg.ReadTimeout,
				WriteTimeout: cfg.WriteTimeout,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() {
				e.logger.Info("sync server listening", "addr", cfg.Addr, "db", cfg.DBPath)
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			e.logger.Info("shutting down sync server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&flags.ServerAddr, "addr", "", "Listen address (env EPUBREADER_SERVER_ADDR, default :8080)")
	cmd.Flags().StringVar(&flags.ServerDB, "db", "", "SQLite database path (env EPUBREADER_SERVER_DB, default <data-dir>/sync.db)")
	return cmd
}
