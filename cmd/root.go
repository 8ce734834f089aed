package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/TFMV/fswatcher/internal/daemon"
	"github.com/TFMV/fswatcher/internal/fswatch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	cfgFile string
	version = "0.1.0"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fswatcher [options] PATH_TO_WATCH [PATTERN...]",
	Short: "Watch a directory tree and run callbacks on file changes",
	Long: `fswatcher monitors a directory for file creation, deletion, modification,
renames and attribute changes, and dispatches matching events to callbacks.
Optional PATTERN arguments are shell globs; only matching file names are reported.

Examples:
  fswatcher /home/user/docs             # Watch all files in docs
  fswatcher -r /var/log "*.log"         # Watch log files recursively
  fswatcher -d -p /tmp/fw.pid /etc      # Watch /etc as a daemon
  fswatcher -r --events=create --exec="echo new: {}" /srv/inbox`,
	Version:       version,
	Args:          requireWatchPath,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatcher(cmd, args[0], args[1:])
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.fswatcher.yaml)")

	// Flags
	rootCmd.Flags().BoolP("daemon", "d", false, "Run as a daemon")
	rootCmd.Flags().BoolP("recursive", "r", false, "Watch directories recursively")
	rootCmd.Flags().StringP("pid", "p", daemon.DefaultPidFile, "PID file location (daemon mode only)")
	rootCmd.Flags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.Flags().Bool("silent", false, "Disable all output except errors")
	rootCmd.Flags().String("backend", fswatch.DefaultBackend, "Notification backend (inotify|fsnotify)")
	rootCmd.Flags().Int("max-watches", fswatch.DefaultMaxWatches, "Maximum number of watched directories")
	rootCmd.Flags().Int("max-callbacks", fswatch.DefaultMaxCallbacks, "Maximum number of callbacks")
	rootCmd.Flags().StringSlice("events", []string{}, "Events for --exec/--format (create, modify, delete, rename, moved_from, moved_to, attrib)")
	rootCmd.Flags().String("exec", "", "Command to execute when an event occurs")
	rootCmd.Flags().String("format", "", "Format string printed when an event occurs")

	// Bind flags to viper
	for _, name := range []string{
		"daemon", "recursive", "pid", "verbose", "silent", "backend",
		"max-watches", "max-callbacks", "events", "exec", "format",
	} {
		viper.BindPFlag(name, rootCmd.Flags().Lookup(name))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			// Search config in home directory with name ".fswatcher" (without extension).
			viper.AddConfigPath(home)
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName(".fswatcher")
	}

	viper.SetEnvPrefix("fswatcher")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func requireWatchPath(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("no watch path specified")
	}
	return nil
}

func runWatcher(cmd *cobra.Command, root string, patterns []string) error {
	cfg, err := loadConfig(root, patterns)
	if err != nil {
		return err
	}

	if cfg.Daemon {
		parent, err := daemon.Daemonize()
		if err != nil {
			return fmt.Errorf("failed to daemonize: %w", err)
		}
		if parent {
			return nil
		}
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Daemon {
		logger.Named(fswatch.NoticeLogger).Info("daemon started", zap.Int("pid", os.Getpid()))
		if err := daemon.WritePidFile(cfg.PidFile); err != nil {
			logger.Error("failed to write PID file", zap.String("path", cfg.PidFile), zap.Error(err))
			return err
		}
		defer func() {
			if err := daemon.RemovePidFile(cfg.PidFile); err != nil {
				logger.Error("failed to remove PID file", zap.String("path", cfg.PidFile), zap.Error(err))
			}
		}()
	}

	signals := daemon.InstallShutdownHandlers(logger.Named(fswatch.NoticeLogger))
	defer signals.Stop()

	// The channel is opened only after daemonizing.
	channel, err := fswatch.OpenChannel(cfg.Backend)
	if err != nil {
		logger.Error("failed to initialize notification channel", zap.String("backend", cfg.Backend), zap.Error(err))
		return err
	}

	engine, err := fswatch.New(channel, fswatch.Options{
		Recursive:    cfg.Recursive,
		Patterns:     cfg.Patterns,
		MaxWatches:   cfg.MaxWatches,
		MaxCallbacks: cfg.MaxCallbacks,
		Logger:       logger,
	})
	if err != nil {
		channel.Close()
		return err
	}

	ctx := cmd.Context()
	registerCallbacks(ctx, engine, cfg, logger, cmd.OutOrStdout())

	if len(cfg.Patterns) > 0 && !cfg.Daemon {
		fmt.Fprintln(cmd.OutOrStdout(), "Filtering for patterns:")
		for _, p := range cfg.Patterns {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", p)
		}
	}

	if err := engine.Start(cfg.Root); err != nil {
		engine.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return signals.Run(gctx) })
	g.Go(func() error { return engine.Run(gctx) })

	err = g.Wait()
	var sigErr *daemon.SignalError
	if errors.As(err, &sigErr) {
		return nil
	}
	return err
}

func newLogger(cfg *config) (*zap.Logger, error) {
	level := fswatch.LogLevelInfo
	if cfg.Verbose {
		level = fswatch.LogLevelDebug
	} else if cfg.Silent {
		level = fswatch.LogLevelError
	}
	if cfg.Daemon {
		return fswatch.NewSyslogLogger("fswatcher", level)
	}
	return fswatch.NewLogger(level), nil
}

// absPath resolves p against the working directory, which changes to / once
// the process is detached.
func absPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	return abs, nil
}
