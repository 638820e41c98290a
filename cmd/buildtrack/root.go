package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"buildtrack/internal/apperr"
	"buildtrack/internal/config"
	"buildtrack/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "buildtrack",
	Short: "Construction scheduling backend with a Gantt timeline",
	Long: `buildtrack serves projects, tasks, milestones and weather alerts over HTTP
and drives the interactive Gantt timeline: zoomable day/week/month views,
drag-and-drop rescheduling with validation, marker collision layout and
undo/redo of every schedule change.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $XDG_CONFIG_HOME/buildtrack/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "path to sqlite database file")
	rootCmd.PersistentFlags().String("log-level", "", "log level: DEBUG, INFO, WARN or ERROR")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("server.db_path", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(serveCmd, seedCmd, exportCmd)
}

func initConfig() {
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("BUILDTRACK")
	// BUILDTRACK_SERVER_ADDR overrides server.addr
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing config file is fine; defaults and env still apply.
	_ = viper.ReadInConfig()
}

// loadConfig reads the effective config and builds the logger it asks for.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug("config loaded", slog.String("file", used))
	}
	return cfg, logger, nil
}

// Execute runs the root command and returns the process exit status.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return exitCode(err)
}

// exitCode maps failures to stable exit statuses: 2 for bad configuration
// or input, 3 when a referenced entity does not exist, 1 otherwise.
func exitCode(err error) int {
	switch {
	case errors.Is(err, config.ErrInvalid):
		return 2
	case apperr.Is(err, apperr.ProjectNotFound), apperr.Is(err, apperr.TaskNotFound):
		return 3
	case apperr.Is(err, apperr.InvalidInput), apperr.Is(err, apperr.InvalidViewMode), apperr.Is(err, apperr.InvalidDate):
		return 2
	default:
		return 1
	}
}
