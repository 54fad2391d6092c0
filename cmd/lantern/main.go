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

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/five82/lantern/internal/app"
	"github.com/five82/lantern/internal/config"
	"github.com/five82/lantern/internal/session"
)

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logFile    string
	formatID   string
	poll       time.Duration
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "lantern: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "lantern [location]",
		Short:         "View, filter and follow large log files",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runView(cmd, opts, args[0])
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.config/lantern/config.toml)")
	flags.StringVar(&opts.logFile, "log-file", "", "write diagnostics to this file")
	flags.StringVar(&opts.formatID, "format", "", "use this format id instead of detecting one")
	flags.DurationVar(&opts.poll, "poll", 0, "change poll interval (default from config, 1s)")

	root.AddCommand(newViewCmd(opts))
	root.AddCommand(newCatCmd(opts))
	root.AddCommand(newFollowCmd(opts))
	root.AddCommand(newDetectCmd(opts))
	root.AddCommand(newFormatsCmd(opts))
	root.AddCommand(newFieldsCmd(opts))
	return root
}

func newViewCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "view <location>",
		Short: "Open a log in the interactive viewer",
		Long: "Open a log in the interactive viewer.\n\n" +
			"location is a file path, - for stdin, an http(s):// URL or s3://bucket/key.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(cmd, opts, args[0])
		},
	}
}

func runView(cmd *cobra.Command, opts *globalOptions, location string) error {
	if !isTerminal(os.Stdout) {
		return errors.New("the viewer needs a terminal; use `lantern cat` for piped output")
	}
	if location == "-" {
		return errors.New("the viewer cannot read stdin; use `lantern cat -`")
	}
	return app.Run(cmd.Context(), app.Options{
		Location:     location,
		FormatID:     opts.formatID,
		ConfigPath:   opts.configPath,
		PollInterval: opts.poll,
	})
}

// load reads the configuration with flag overrides applied.
func (o *globalOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if o.poll > 0 {
		cfg.PollInterval = o.poll
	}
	if o.logFile != "" {
		cfg.LogFile = o.logFile
	}
	return cfg, nil
}

// open loads config and opens location as a session. Diagnostics go to the
// log file when one is configured, otherwise warnings go to stderr.
func (o *globalOptions) open(ctx context.Context, stderr io.Writer, location string) (*session.Session, config.Config, func(), error) {
	cfg, err := o.load()
	if err != nil {
		return nil, cfg, nil, err
	}
	logger, closeLog, err := app.NewLogger(cfg.LogFile, stderr)
	if err != nil {
		return nil, cfg, nil, err
	}
	slog.SetDefault(logger)
	sess, err := app.OpenSession(ctx, cfg, location, o.formatID, logger)
	if err != nil {
		closeLog()
		return nil, cfg, nil, err
	}
	return sess, cfg, func() {
		sess.Close()
		closeLog()
	}, nil
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
