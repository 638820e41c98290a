package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"buildtrack/internal/apperr"
	"buildtrack/internal/date"
	"buildtrack/internal/gantt"
	"buildtrack/internal/render"
	"buildtrack/internal/storage/sqlite"
)

var (
	flagProject int64
	flagFormat  string
	flagView    string
	flagStart   string
	flagEnd     string
	flagOut     string
	flagNoColor bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render a project's Gantt chart as SVG or terminal text",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().Int64Var(&flagProject, "project", 0, "project id (required)")
	exportCmd.Flags().StringVar(&flagFormat, "format", "text", "output format: svg or text")
	exportCmd.Flags().StringVar(&flagView, "view", "", "view mode: days, weeks or months")
	exportCmd.Flags().StringVar(&flagStart, "start", "", "first day of the range (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&flagEnd, "end", "", "last day of the range (YYYY-MM-DD)")
	exportCmd.Flags().StringVarP(&flagOut, "output", "o", "", "write to file instead of stdout")
	exportCmd.Flags().BoolVar(&flagNoColor, "no-color", false, "disable color in text output")
	_ = exportCmd.MarkFlagRequired("project")
	exportCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return apperr.Wrap(apperr.InvalidInput, err, fmt.Sprintf("export: %v", err))
	})
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	view := flagView
	if view == "" {
		view = cfg.Timeline.DefaultView
	}
	mode, err := gantt.ParseViewMode(view)
	if err != nil {
		return err
	}
	rng, err := exportRange(flagStart, flagEnd)
	if err != nil {
		return err
	}

	store, err := sqlite.Open(cfg.Server.DBPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctrl := gantt.NewController(flagProject, gantt.Deps{
		Tasks:       store,
		Updater:     store,
		Markers:     store,
		Preferences: store,
		Rules:       gantt.DefaultRules(),
	}, cfg, logger)
	defer ctrl.Close()
	if err := ctrl.Refresh(context.Background()); err != nil {
		return err
	}
	v := ctrl.Export(gantt.ExportOptions{Mode: mode, Range: rng})

	out := cmd.OutOrStdout()
	if flagOut != "" {
		f, err := os.Create(flagOut)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	switch flagFormat {
	case "svg":
		return render.SVG(out, v, render.DefaultSVGOptions())
	case "text":
		if flagNoColor || os.Getenv("NO_COLOR") != "" || flagOut != "" {
			render.DisableColor()
		}
		return render.Text(out, v, render.DefaultTextOptions())
	default:
		return apperr.Newf(apperr.InvalidInput, "unknown format %q: want svg or text", flagFormat)
	}
}

// exportRange parses an optional explicit range; both ends or neither.
func exportRange(start, end string) (*gantt.Range, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, apperr.New(apperr.InvalidInput, "--start and --end must be given together")
	}
	from, err := date.Parse(start)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidDate, err, err.Error())
	}
	to, err := date.Parse(end)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidDate, err, err.Error())
	}
	r, err := gantt.NewRange(from, to)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
