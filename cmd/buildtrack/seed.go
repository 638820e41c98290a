package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"buildtrack/internal/seed"
	"buildtrack/internal/storage/sqlite"
)

var seedCmd = &cobra.Command{
	Use:   "seed FILE",
	Short: "Import a project with tasks, milestones and weather from YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	file, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer file.Close()

	fixture, err := seed.Parse(file)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	store, err := sqlite.Open(cfg.Server.DBPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := seed.Import(context.Background(), store, fixture)
	if err != nil {
		return err
	}
	logger.Info("fixture imported",
		slog.Int64("project_id", res.Project.ID),
		slog.Int("tasks", res.Tasks),
		slog.Int("milestones", res.Milestones),
		slog.Int("weather", res.Weather))
	fmt.Fprintf(cmd.OutOrStdout(), "Created project %d %q with %d tasks\n", res.Project.ID, res.Project.Name, res.Tasks)
	return nil
}
