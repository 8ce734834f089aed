package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/TFMV/fswatcher/internal/fswatch"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// callbackConfig declares an extra callback in the config file:
//
//	callbacks:
//	  - events: [create, moved_to]
//	    pattern: "*.csv"
//	    exec: "/usr/local/bin/ingest {}"
type callbackConfig struct {
	Events  []string `mapstructure:"events"`
	Pattern string   `mapstructure:"pattern"`
	Exec    string   `mapstructure:"exec"`
	Format  string   `mapstructure:"format"`
}

type config struct {
	Root         string
	Patterns     []string
	Daemon       bool
	Recursive    bool
	PidFile      string
	Verbose      bool
	Silent       bool
	Backend      string
	MaxWatches   int
	MaxCallbacks int

	Events    fswatch.EventMask
	Exec      string
	Format    string
	Callbacks []callbackConfig
}

// loadConfig merges flags, environment and config file. Paths are made
// absolute here, before the process may change directory.
func loadConfig(root string, patterns []string) (*config, error) {
	cfg := &config{
		Patterns:     append(viper.GetStringSlice("patterns"), patterns...),
		Daemon:       viper.GetBool("daemon"),
		Recursive:    viper.GetBool("recursive"),
		PidFile:      viper.GetString("pid"),
		Verbose:      viper.GetBool("verbose"),
		Silent:       viper.GetBool("silent"),
		Backend:      viper.GetString("backend"),
		MaxWatches:   viper.GetInt("max-watches"),
		MaxCallbacks: viper.GetInt("max-callbacks"),
		Exec:         viper.GetString("exec"),
		Format:       viper.GetString("format"),
	}

	var err error
	if cfg.Root, err = absPath(root); err != nil {
		return nil, err
	}
	if cfg.PidFile, err = absPath(cfg.PidFile); err != nil {
		return nil, err
	}
	if _, err := fswatch.NewMatcher(cfg.Patterns); err != nil {
		return nil, err
	}

	if cfg.Events, err = fswatch.ParseEvents(viper.GetStringSlice("events")); err != nil {
		return nil, fmt.Errorf("invalid events value: %w", err)
	}

	if err := viper.UnmarshalKey("callbacks", &cfg.Callbacks); err != nil {
		return nil, fmt.Errorf("invalid callbacks config: %w", err)
	}
	for i, cb := range cfg.Callbacks {
		if cb.Exec == "" && cb.Format == "" {
			return nil, fmt.Errorf("callbacks[%d]: one of exec or format is required", i)
		}
		if _, err := fswatch.ParseEvents(cb.Events); err != nil {
			return nil, fmt.Errorf("callbacks[%d]: %w", i, err)
		}
	}
	return cfg, nil
}

// registerCallbacks installs the built-in created/deleted/modified callbacks
// followed by any exec/format callbacks from flags and config. A callback
// that cannot be registered is logged and skipped.
func registerCallbacks(ctx context.Context, engine *fswatch.Engine, cfg *config, logger *zap.Logger, out io.Writer) {
	builtin := []struct {
		mask  fswatch.EventMask
		label string
	}{
		{fswatch.EventCreate, "File created"},
		{fswatch.EventDelete, "File deleted"},
		{fswatch.EventModify, "File modified"},
	}
	for _, b := range builtin {
		h := fswatch.PrintHandler(out, b.label)
		if cfg.Daemon {
			h = fswatch.LogHandler(logger, b.label)
		}
		engine.Register(b.mask, "", h)
	}

	declared := []callbackConfig{}
	if cfg.Exec != "" || cfg.Format != "" {
		declared = append(declared, callbackConfig{Exec: cfg.Exec, Format: cfg.Format})
	}
	declared = append(declared, cfg.Callbacks...)

	for i, cb := range declared {
		mask := cfg.Events
		if i > 0 || (cfg.Exec == "" && cfg.Format == "") {
			// Validated in loadConfig.
			mask, _ = fswatch.ParseEvents(cb.Events)
		}
		// One entry per event kind so {event} expands to the kind that fired.
		for _, kind := range fswatch.SplitMask(mask) {
			label := fswatch.EventLabel(kind)
			if cb.Exec != "" {
				engine.Register(kind, cb.Pattern, fswatch.ExecHandler(ctx, logger, out, cb.Exec, label))
			}
			if cb.Format != "" {
				engine.Register(kind, cb.Pattern, fswatch.FormatHandler(out, cb.Format, label))
			}
		}
	}
}
