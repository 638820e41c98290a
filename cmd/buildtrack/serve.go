package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"buildtrack/internal/config"
	"buildtrack/internal/server"
	"buildtrack/internal/storage/sqlite"
	"buildtrack/internal/util"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and dashboard",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "HTTP listen address (default :8080, or :$PORT)")
	serveCmd.Flags().String("static", "", "directory with the built dashboard")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.static_dir", serveCmd.Flags().Lookup("static"))
}

// listenAddr honours PORT when no address was configured explicitly.
func listenAddr(cmd *cobra.Command, cfg *config.Config) string {
	if cmd.Flags().Changed("addr") || viper.InConfig("server.addr") {
		return cfg.Server.Addr
	}
	if port := util.EnvOrDefault("PORT", ""); port != "" {
		return ":" + port
	}
	return cfg.Server.Addr
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Info("buildtrack " + version)

	store, err := sqlite.Open(cfg.Server.DBPath, logger)
	if err != nil {
		logger.Error("unable to open database", slog.String("error", err.Error()))
		return err
	}
	defer store.Close()

	srv := server.New(store, cfg, logger)
	defer srv.Close()

	if viper.ConfigFileUsed() != "" {
		config.Watch(viper.GetViper(), logger, srv.Controllers().Reconfigure)
	}

	httpServer := &http.Server{
		Addr:    listenAddr(cmd, cfg),
		Handler: srv.Engine(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
	return nil
}
