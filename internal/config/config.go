package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// S3 holds the connection settings for s3:// locations.
type S3 struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Config captures Lantern's runtime settings.
type Config struct {
	PollInterval   time.Duration
	CacheCapacity  int
	ChunkSize      int
	PreviewLines   int
	SampleLines    int
	FormatsFile    string
	BuiltinFormats bool
	WatchFiles     bool
	LogFile        string
	S3             S3
}

const (
	defaultConfigPath    = "~/.config/lantern/config.toml"
	defaultPollInterval  = time.Second
	defaultCacheCapacity = 2000
	defaultChunkSize     = 1 << 20
	defaultPreviewLines  = 50
	defaultSampleLines   = 1000
	defaultS3Region      = "us-east-1"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		PollInterval:   defaultPollInterval,
		CacheCapacity:  defaultCacheCapacity,
		ChunkSize:      defaultChunkSize,
		PreviewLines:   defaultPreviewLines,
		SampleLines:    defaultSampleLines,
		BuiltinFormats: true,
		WatchFiles:     true,
		S3:             S3{Region: defaultS3Region},
	}
}

type rawConfig struct {
	PollInterval   string `toml:"poll_interval"`
	CacheCapacity  int    `toml:"cache_capacity"`
	ChunkSize      int    `toml:"chunk_size"`
	PreviewLines   int    `toml:"preview_lines"`
	SampleLines    int    `toml:"sample_lines"`
	FormatsFile    string `toml:"formats_file"`
	BuiltinFormats *bool  `toml:"builtin_formats"`
	WatchFiles     *bool  `toml:"watch_files"`
	LogFile        string `toml:"log_file"`
	S3             struct {
		Endpoint  string `toml:"endpoint"`
		Region    string `toml:"region"`
		AccessKey string `toml:"access_key"`
		SecretKey string `toml:"secret_key"`
		UseSSL    *bool  `toml:"use_ssl"`
	} `toml:"s3"`
}

// Load reads the config file at path (default ~/.config/lantern/config.toml),
// falling back to defaults when it is missing, then applies a .env file from
// the working directory and LANTERN_* environment variables on top.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("open config: %w", err)
	default:
		defer file.Close()
		bytes, err := io.ReadAll(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		var raw rawConfig
		if err := toml.Unmarshal(bytes, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
		if err := cfg.apply(raw); err != nil {
			return Config{}, err
		}
	}

	_ = godotenv.Load()
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) apply(raw rawConfig) error {
	if v := strings.TrimSpace(raw.PollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("parse config: poll_interval %q is not a positive duration", v)
		}
		c.PollInterval = d
	}
	if raw.CacheCapacity > 0 {
		c.CacheCapacity = raw.CacheCapacity
	}
	if raw.ChunkSize > 0 {
		c.ChunkSize = raw.ChunkSize
	}
	if raw.PreviewLines > 0 {
		c.PreviewLines = raw.PreviewLines
	}
	if raw.SampleLines > 0 {
		c.SampleLines = raw.SampleLines
	}
	if v := strings.TrimSpace(raw.FormatsFile); v != "" {
		c.FormatsFile = mustExpand(v)
	}
	if raw.BuiltinFormats != nil {
		c.BuiltinFormats = *raw.BuiltinFormats
	}
	if raw.WatchFiles != nil {
		c.WatchFiles = *raw.WatchFiles
	}
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		c.LogFile = mustExpand(v)
	}
	c.S3.Endpoint = strings.TrimSpace(raw.S3.Endpoint)
	if v := strings.TrimSpace(raw.S3.Region); v != "" {
		c.S3.Region = v
	}
	c.S3.AccessKey = strings.TrimSpace(raw.S3.AccessKey)
	c.S3.SecretKey = strings.TrimSpace(raw.S3.SecretKey)
	if raw.S3.UseSSL != nil {
		c.S3.UseSSL = *raw.S3.UseSSL
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	env := func(key string) string { return strings.TrimSpace(getenv(key)) }

	if v := env("LANTERN_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("LANTERN_POLL_INTERVAL %q is not a positive duration", v)
		}
		c.PollInterval = d
	}
	if v := env("LANTERN_CACHE_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("LANTERN_CACHE_CAPACITY %q is not a positive integer", v)
		}
		c.CacheCapacity = n
	}
	if v := env("LANTERN_FORMATS_FILE"); v != "" {
		c.FormatsFile = mustExpand(v)
	}
	if v := env("LANTERN_LOG_FILE"); v != "" {
		c.LogFile = mustExpand(v)
	}
	c.S3.Endpoint = firstNonEmpty(env("LANTERN_S3_ENDPOINT"), c.S3.Endpoint)
	c.S3.Region = firstNonEmpty(env("LANTERN_S3_REGION"), c.S3.Region)
	c.S3.AccessKey = firstNonEmpty(env("LANTERN_S3_ACCESS_KEY"), c.S3.AccessKey, env("MINIO_ROOT_USER"))
	c.S3.SecretKey = firstNonEmpty(env("LANTERN_S3_SECRET_KEY"), c.S3.SecretKey, env("MINIO_ROOT_PASSWORD"))
	if v := env("LANTERN_S3_USE_SSL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LANTERN_S3_USE_SSL %q is not a boolean", v)
		}
		c.S3.UseSSL = b
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
