// Command diarize labels the speakers of a local recording, using either a
// saved recognizer result or the live speech recognition service.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skypro1111/transcript-diarizer/internal/config"
	"github.com/skypro1111/transcript-diarizer/internal/logging"
)

// globalOptions are shared by every subcommand
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string

	logger    *slog.Logger
	logCloser io.Closer
	config    *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "diarize",
		Short:         "Heuristic speaker diarization for transcribed recordings",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logCloser != nil {
				opts.logCloser.Close()
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to configuration file (defaults are used when empty)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newFeaturesCmd(opts))

	return root
}

// setup loads configuration and builds the logger. Logs go to stderr so
// stdout carries only command output.
func (o *globalOptions) setup(cmd *cobra.Command) error {
	var cfg *config.Config
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
		if err := config.LoadDotEnv(); err != nil {
			return err
		}
		cfg.ApplyEnv()
	}

	logCfg := config.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: o.logFormat,
		Output: "stderr",
	}
	if o.logLevel != "" {
		logCfg.Level = o.logLevel
	}
	if err := logCfg.Validate(); err != nil {
		return fmt.Errorf("invalid logging flags: %w", err)
	}

	o.config = cfg
	o.logger, o.logCloser = logging.New(logCfg)
	return nil
}
