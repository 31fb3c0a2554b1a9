package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type StoreOptions struct {
	// ChunkTargetSize is the preferred chunk size in bytes. Edits re-chunk
	// toward this size; 4KB amortizes best for clustered small edits.
	ChunkTargetSize int `toml:"chunk-target-size"`

	// HugeFileThreshold is the size in bytes above which line scanning is
	// deferred: only anchor 0 is registered at open.
	HugeFileThreshold int64 `toml:"huge-file-threshold"`
}

type LineIndexOptions struct {
	// ScanCapLines and ScanCapBytes bound a single line-number query scan.
	// A query never scans more than max(ScanCapLines lines, ScanCapBytes bytes).
	ScanCapLines int   `toml:"scan-cap-lines"`
	ScanCapBytes int64 `toml:"scan-cap-bytes"`

	// EstimateLineLength is the assumed average line length in bytes used
	// for byte-offset estimation until real measurements exist.
	EstimateLineLength int64 `toml:"estimate-line-length"`
}

type ViewerOptions struct {
	TabWidth    int    `toml:"tab-width"`
	LineNumbers string `toml:"line-numbers"`
}

type Theme struct {
	Foreground           string `toml:"foreground"`
	Background           string `toml:"background"`
	StatuslineForeground string `toml:"statusline-foreground"`
	StatuslineBackground string `toml:"statusline-background"`
	LineNumberForeground string `toml:"line-number-foreground"`
	EstimateForeground   string `toml:"estimate-foreground"`
	SelectionForeground  string `toml:"selection-foreground"`
	SelectionBackground  string `toml:"selection-background"`
	OverlayForeground    string `toml:"overlay-foreground"`
}

type Config struct {
	Store     StoreOptions     `toml:"store"`
	LineIndex LineIndexOptions `toml:"line-index"`
	Viewer    ViewerOptions    `toml:"viewer"`
	Theme     Theme            `toml:"theme"`

	// Debug enables debug logging and makes internal invariant checks
	// fatal instead of logged-and-skipped.
	Debug bool `toml:"debug"`
}

func Default() Config {
	return Config{
		Store: StoreOptions{
			ChunkTargetSize:   4096,
			HugeFileThreshold: 8 << 20,
		},
		LineIndex: LineIndexOptions{
			ScanCapLines:       100,
			ScanCapBytes:       10 * 1024,
			EstimateLineLength: 100,
		},
		Viewer: ViewerOptions{
			TabWidth:    4,
			LineNumbers: "absolute",
		},
		Theme: Theme{
			Foreground:           "#B3B1AD",
			Background:           "#0A0E14",
			StatuslineForeground: "#B3B1AD",
			StatuslineBackground: "#0F1419",
			LineNumberForeground: "#3E4B59",
			EstimateForeground:   "#FFA759",
			SelectionForeground:  "#B3B1AD",
			SelectionBackground:  "#27425A",
			OverlayForeground:    "#5CCFE6",
		},
		Debug: false,
	}
}

// Load reads config.toml from the config directory, falling back to
// defaults for anything unset. A missing file is not an error.
func Load() (Config, error) {
	cfg := Default()

	dir, err := configDir()
	if err != nil {
		return cfg, nil
	}

	path := filepath.Join(dir, "config.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Default(), err
	}
	return cfg, nil
}

func configDir() (string, error) {
	if v := os.Getenv("BIGTEXT_CONFIG_HOME"); v != "" {
		return v, nil
	}
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "bigtext"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "bigtext"), nil
}
