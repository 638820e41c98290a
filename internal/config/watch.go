package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch reloads the config whenever the file viper read changes and hands
// valid results to apply. Invalid edits are logged and ignored.
func Watch(v *viper.Viper, logger *slog.Logger, apply func(*Config)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		cfg, err := LoadFrom(v)
		if err != nil {
			logger.Warn("ignoring invalid config change", slog.String("file", e.Name), slog.String("error", err.Error()))
			return
		}
		logger.Info("config reloaded", slog.String("file", e.Name))
		apply(cfg)
	})
	v.WatchConfig()
}
