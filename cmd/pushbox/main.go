package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pushbox/pushbox/internal/config"
	"github.com/pushbox/pushbox/internal/journal"
	"github.com/pushbox/pushbox/internal/project"
	"github.com/pushbox/pushbox/internal/sync"
	"github.com/pushbox/pushbox/internal/utils"
	"github.com/pushbox/pushbox/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "pushbox",
	Short:   "Push a local project directory to a remote host over SSH",
	Version: version.Detailed(),
	Args:    cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// create & validate config
		cfg := configFromViper()
		if err := cfg.Validate(); err != nil {
			return err
		}

		// all good now, hand the terminal to the push
		cmd.SilenceUsage = true
		return runPush(cmd.Context(), cfg, viper.GetBool("no_scan"))
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("source", "s", ".", "Local source directory to push")
	rootCmd.Flags().StringP("target", "t", "", "Remote destination, host or user@host")
	rootCmd.Flags().IntP("port", "p", config.DefaultPort, "SSH port on the target")
	rootCmd.Flags().StringP("remote-dir", "r", "", "Absolute destination directory on the target")
	rootCmd.Flags().StringSliceP("exclude", "x", nil, "Exclusion pattern, repeatable")
	rootCmd.Flags().String("source-mode", "", "Push the source dir's contents or the dir itself: contents, directory")
	rootCmd.Flags().BoolP("dry-run", "n", false, "Report what would transfer without transferring")
	rootCmd.Flags().Bool("mirror", false, "Delete remote files that no longer exist locally")
	rootCmd.Flags().StringP("identity", "i", "", "SSH private key file")
	rootCmd.Flags().Bool("no-scan", false, "Skip the preflight source scan")
	rootCmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigName, "Config file")
}

func main() {
	setupLogger(slog.LevelInfo, nil)

	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var exitErr *sync.ExitError
		switch {
		case errors.As(err, &exitErr):
			// rsync ran and failed, its exit code is ours
			os.Exit(exitErr.Code)
		case errors.Is(err, context.Canceled):
			os.Exit(130)
		default:
			// nothing was pushed, abort before any network action
			os.Exit(2)
		}
	}
}

// setupLogger installs the tint stdout handler, and a text handler into
// logSink when one is given. The sink write path adds its own timestamps.
func setupLogger(level slog.Level, logSink io.Writer) {
	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})

	if logSink == nil {
		slog.SetDefault(slog.New(stdoutHandler))
		return
	}

	fileHandler := slog.NewTextHandler(logSink, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{} // the line stamper adds the time
			}
			return a
		},
	})
	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler)))
}

// loadConfig layers the config sources for this invocation: config file,
// then PUSHBOX_* environment, then explicit flags.
func loadConfig(cmd *cobra.Command) error {
	// a project .env may carry PUSHBOX_* variables
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Debug("dotenv", "error", err)
	}

	if f := cmd.Flag("config"); f != nil && f.Changed {
		viper.SetConfigFile(f.Value.String())
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(".pushbox")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	// Bind flags to viper. Subcommands carry only a subset of the root
	// flags, so missing ones are skipped.
	bind := func(key, flagName string) {
		if f := cmd.Flags().Lookup(flagName); f != nil {
			viper.BindPFlag(key, f)
		}
	}
	bind("source_dir", "source")
	bind("target_host", "target")
	bind("target_port", "port")
	bind("target_dir", "remote-dir")
	bind("exclude", "exclude")
	bind("source_mode", "source-mode")
	bind("dry_run", "dry-run")
	bind("mirror", "mirror")
	bind("identity_file", "identity")
	bind("no_scan", "no-scan")
	bind("log_level", "log-level")

	viper.SetEnvPrefix("PUSHBOX")
	viper.AutomaticEnv()

	return nil
}

func configFromViper() *config.Config {
	return &config.Config{
		Path:         viper.ConfigFileUsed(),
		SourceDir:    viper.GetString("source_dir"),
		TargetHost:   viper.GetString("target_host"),
		TargetPort:   viper.GetInt("target_port"),
		TargetDir:    viper.GetString("target_dir"),
		Exclude:      viper.GetStringSlice("exclude"),
		SourceMode:   config.SourceMode(viper.GetString("source_mode")),
		Mirror:       viper.GetBool("mirror"),
		DryRun:       viper.GetBool("dry_run"),
		IdentityFile: viper.GetString("identity_file"),
		SSHOptions:   viper.GetStringSlice("ssh_options"),
		LogLevel:     viper.GetString("log_level"),
		LogFile:      viper.GetString("log_file"),
	}
}

func runPush(ctx context.Context, cfg *config.Config, skipScan bool) error {
	proj, err := project.New(cfg.SourceDir)
	if err != nil {
		return err
	}
	if err := proj.Setup(); err != nil {
		return err
	}

	// Fresh run log for this push; the journal keeps history across runs.
	logPath := cfg.LogFile
	if logPath == "" {
		logPath = proj.LogFilePath
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	stamper := utils.NewLineStamper(logFile)
	defer stamper.Close()
	setupLogger(cfg.Level(), stamper)

	jrnl := journal.NewJournal(proj.JournalPath)
	if err := jrnl.Open(); err != nil {
		slog.Warn("journal unavailable, this run will not be recorded", "error", err)
		jrnl = nil
	} else {
		defer jrnl.Close()
	}

	runner := sync.NewRunner(cfg, proj, jrnl).SetLogSink(stamper)
	result, err := runner.Run(ctx, sync.RunOpts{SkipScan: skipScan})
	if err != nil {
		return err
	}

	printSummary(cfg, result)
	return nil
}

func printSummary(cfg *config.Config, result *sync.Result) {
	sent := humanize.Bytes(uint64(result.Stats.BytesSent))
	dur := result.Duration.Round(10 * time.Millisecond)

	if cfg.DryRun {
		fmt.Printf("%s %d of %d files would transfer to %s (%s)\n",
			cyan.Render("DRY-RUN"),
			result.Stats.FilesTransferred, result.Stats.FilesTotal,
			cfg.Remote(), dur)
		return
	}
	fmt.Printf("%s %d files to %s (%s sent, %s)\n",
		green.Render("PUSHED"),
		result.Stats.FilesTransferred, cfg.Remote(), sent, dur)
}
