package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/five82/lantern/internal/config"
	"github.com/five82/lantern/internal/format"
	"github.com/five82/lantern/internal/lineindex"
	"github.com/five82/lantern/internal/prefs"
	"github.com/five82/lantern/internal/session"
	"github.com/five82/lantern/internal/source"
	"github.com/five82/lantern/internal/state"
	"github.com/five82/lantern/internal/ui"
)

// Options configure the Lantern viewer.
type Options struct {
	Location     string
	FormatID     string        // empty detects the format
	ConfigPath   string        // empty uses default ~/.config/lantern/config.toml
	PrefsPath    string        // empty uses default ~/.config/lantern/prefs.toml
	PollInterval time.Duration // zero uses the configured interval
	Logger       *slog.Logger
}

// Run opens the location and runs the TUI until the context is cancelled or
// the user quits.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.PollInterval > 0 {
		cfg.PollInterval = opts.PollInterval
	}

	logger := opts.Logger
	if logger == nil {
		var closeLog func()
		logger, closeLog, err = NewLogger(cfg.LogFile, io.Discard)
		if err != nil {
			return err
		}
		defer closeLog()
	}

	userPrefs, _ := prefs.Load(opts.PrefsPath)
	userPrefs.Remember(opts.Location)
	if err := prefs.Save(opts.PrefsPath, userPrefs); err != nil {
		logger.Warn("save prefs failed", "error", err)
	}

	sess, err := OpenSession(ctx, cfg, opts.Location, opts.FormatID, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Watch(ctx); err != nil {
		return fmt.Errorf("watch source: %w", err)
	}

	return ui.Run(ui.Options{
		Context:   ctx,
		Session:   sess,
		PollTick:  cfg.PollInterval,
		Prefs:     userPrefs,
		PrefsPath: opts.PrefsPath,
	})
}

// NewRegistry builds the format registry described by cfg: the built-in
// catalogue unless disabled, then any formats from cfg.FormatsFile. Seeded
// formats replace built-ins with the same id.
func NewRegistry(cfg config.Config) (*format.Registry, error) {
	opt := format.WithPreviewLines(cfg.PreviewLines)
	registry := format.NewRegistry(opt)
	if cfg.BuiltinFormats {
		registry = format.NewDefaultRegistry(opt)
	}
	if cfg.FormatsFile == "" {
		return registry, nil
	}
	defs, err := format.LoadDefinitions(cfg.FormatsFile)
	if err != nil {
		return nil, fmt.Errorf("load formats: %w", err)
	}
	if err := registry.RegisterAll(defs); err != nil {
		return nil, fmt.Errorf("register formats: %w", err)
	}
	return registry, nil
}

// OpenSession resolves location to a source, indexes it and selects a
// format: formatID when given, otherwise the detected one.
func OpenSession(ctx context.Context, cfg config.Config, location, formatID string, logger *slog.Logger) (*session.Session, error) {
	registry, err := NewRegistry(cfg)
	if err != nil {
		return nil, err
	}
	src, err := source.Open(location, source.S3Config{
		Endpoint:  cfg.S3.Endpoint,
		Region:    cfg.S3.Region,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}

	sess := session.New(session.Options{
		Registry: registry,
		Store:    &state.Store{},
		Index: lineindex.Options{
			ChunkSize:     cfg.ChunkSize,
			CacheCapacity: cfg.CacheCapacity,
		},
		SampleLines:  cfg.SampleLines,
		PollInterval: cfg.PollInterval,
		WatchFiles:   cfg.WatchFiles,
		Logger:       logger,
	})
	if err := sess.Open(ctx, src); err != nil {
		sess.Close()
		return nil, fmt.Errorf("index %s: %w", src.Name(), err)
	}
	if formatID != "" {
		if err := sess.SetFormat(formatID); err != nil {
			sess.Close()
			return nil, err
		}
	}
	return sess, nil
}

// NewLogger returns a text logger writing everything to path, or warnings
// and errors to fallback when path is empty. The returned func closes the
// log file.
func NewLogger(path string, fallback io.Writer) (*slog.Logger, func(), error) {
	if path == "" {
		handler := slog.NewTextHandler(fallback, &slog.HandlerOptions{Level: slog.LevelWarn})
		return slog.New(handler), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { _ = f.Close() }, nil
}
