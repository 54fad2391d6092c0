// Package prefs handles Lantern user preferences persistence.
// Preferences are stored in ~/.config/lantern/prefs.toml.
package prefs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Prefs holds user preferences for Lantern.
type Prefs struct {
	Theme  string   `toml:"theme"`
	Follow bool     `toml:"follow"`
	Recent []string `toml:"recent"`
}

const (
	defaultPrefsPath = "~/.config/lantern/prefs.toml"
	defaultTheme     = "Dracula"

	// MaxRecent bounds the recent locations list.
	MaxRecent = 10
)

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

func defaults() Prefs {
	return Prefs{Theme: defaultTheme, Follow: true}
}

// Load reads preferences from the given path, falling back to defaults if missing.
func Load(path string) (Prefs, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return defaults(), nil
	}

	prefs := defaults()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return prefs, nil
		}
		return prefs, nil // Graceful degradation
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return prefs, nil // Graceful degradation
	}

	if err := toml.Unmarshal(bytes, &prefs); err != nil {
		return defaults(), nil // Graceful degradation
	}

	if strings.TrimSpace(prefs.Theme) == "" {
		prefs.Theme = defaultTheme
	}
	prefs.Recent = normalizeRecent(prefs.Recent)

	return prefs, nil
}

// Save writes preferences to the given path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	p.Recent = normalizeRecent(p.Recent)
	bytes, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := os.WriteFile(resolved, bytes, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}

	return nil
}

// Remember moves location to the front of the recent list.
func (p *Prefs) Remember(location string) {
	loc := strings.TrimSpace(location)
	if loc == "" || loc == "-" {
		return
	}
	p.Recent = normalizeRecent(append([]string{loc}, p.Recent...))
}

// normalizeRecent drops blanks and duplicates, keeping the first occurrence.
func normalizeRecent(in []string) []string {
	out := make([]string, 0, min(len(in), MaxRecent))
	for _, loc := range in {
		loc = strings.TrimSpace(loc)
		if loc == "" || slices.Contains(out, loc) {
			continue
		}
		out = append(out, loc)
		if len(out) == MaxRecent {
			break
		}
	}
	return out
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPrefsPath)
	}
	return expandPath(path)
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
