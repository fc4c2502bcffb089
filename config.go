// config.go: configuration loading and the size/duration/path utilities
// the file manager and file writer build on.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package halcyon

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	yaml "github.com/goccy/go-yaml"
)

// Config holds everything a Logger instance needs to start: where to
// write, how big files may grow, how many to retain, and how the wire
// format should be shaped.
type Config struct {
	LogDir       string        `yaml:"log_dir"`
	FilePrefix   string        `yaml:"file_prefix"`
	MaxLogSizeMB int           `yaml:"max_log_size_mb"`
	MaxFiles     int           `yaml:"max_files"`
	FlushEvery   time.Duration `yaml:"flush_every"`

	// MaxLogSize is a human-friendly alternative to MaxLogSizeMB, parsed
	// with ParseSize ("100MB", "1GB", ...). When set, it takes precedence
	// over MaxLogSizeMB once LoadConfig resolves it.
	MaxLogSize string `yaml:"max_log_size"`

	// MaxFileAge evicts a rotated file once it is older than this,
	// parsed with ParseDuration ("7d", "2w", ...), independent of the
	// count-based MaxFiles retention. Zero disables age-based eviction.
	MaxFileAge    time.Duration `yaml:"-"`
	MaxFileAgeStr string        `yaml:"max_file_age"`

	// MinLevel is the lowest severity that reaches the sink. Levels below
	// it are dropped at the call site, before any buffer is touched.
	MinLevel Level `yaml:"-"`
	// MinLevelStr is MinLevel's YAML surface ("INFO", "DEBUG", ...).
	MinLevelStr string `yaml:"min_level"`

	AlsoLogToStderr bool `yaml:"also_log_to_stderr"`

	// Codec names the compression applied to rotated files: "none",
	// "lz4" (mapped to s2), or "zstd".
	Codec string `yaml:"codec"`

	// Checksum, when true, writes a ".sha256" sidecar next to every
	// rotated file.
	Checksum bool `yaml:"checksum"`

	RetryCount int           `yaml:"retry_count"`
	RetryDelay time.Duration `yaml:"retry_delay"`

	// ErrorCallback, if set, receives errors the logger cannot otherwise
	// surface (a dropped write, a failed rotation). It must not block.
	ErrorCallback func(operation string, err error) `yaml:"-"`
}

// DefaultConfig returns the configuration a Logger starts with absent
// any YAML override: MiB-denominated rotation at 100MB, ten retained
// files, a five-second flush interval, INFO and above, no compression.
func DefaultConfig() *Config {
	return &Config{
		LogDir:       "./log",
		FilePrefix:   "app",
		MaxLogSizeMB: 100,
		MaxFiles:     10,
		FlushEvery:   5 * time.Second,
		MinLevel:     LevelInfo,
		MinLevelStr:  "INFO",
		Codec:        "none",
		RetryCount:   3,
		RetryDelay:   10 * time.Millisecond,
	}
}

// LoadConfig reads a YAML file at path and merges it over DefaultConfig,
// with values present in the file taking precedence. A missing file is
// not an error; DefaultConfig is returned unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("halcyon: read config %s: %w", path, err)
	}

	var overlay Config
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return nil, fmt.Errorf("halcyon: parse config %s: %w", path, err)
	}

	if err := mergo.Merge(cfg, &overlay, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("halcyon: merge config %s: %w", path, err)
	}

	if cfg.MinLevelStr != "" {
		if lvl, ok := ParseLevel(cfg.MinLevelStr); ok {
			cfg.MinLevel = lvl
		}
	}

	if cfg.MaxLogSize != "" {
		bytes, err := ParseSize(cfg.MaxLogSize)
		if err != nil {
			return nil, fmt.Errorf("halcyon: max_log_size: %w", err)
		}
		cfg.MaxLogSizeMB = int(bytes / (1024 * 1024))
	}

	if cfg.MaxFileAgeStr != "" {
		age, err := ParseDuration(cfg.MaxFileAgeStr)
		if err != nil {
			return nil, fmt.Errorf("halcyon: max_file_age: %w", err)
		}
		cfg.MaxFileAge = age
	}

	return cfg, cfg.Validate()
}

// Validate clamps and checks fields in place, returning an error only
// for conditions a clamp cannot repair.
func (c *Config) Validate() error {
	if c.LogDir == "" {
		return fmt.Errorf("halcyon: log_dir must not be empty")
	}
	if err := ValidatePathLength(c.LogDir); err != nil {
		return fmt.Errorf("halcyon: %w", err)
	}

	if c.MaxLogSizeMB < 1 {
		c.MaxLogSizeMB = 1
	} else if c.MaxLogSizeMB > 4095 {
		c.MaxLogSizeMB = 4095
	}

	if c.MaxFileAge < 0 {
		c.MaxFileAge = 0
	}

	if c.MaxFiles < 1 {
		c.MaxFiles = 1
	}

	if c.FlushEvery <= 0 {
		c.FlushEvery = 5 * time.Second
	}

	switch c.Codec {
	case "", "none", "lz4", "zstd":
	default:
		return fmt.Errorf("halcyon: unknown codec %q", c.Codec)
	}

	c.FilePrefix = SanitizeFilename(c.FilePrefix)

	return nil
}

// ParseSize converts strings like "100MB", "1GB", or "512" (bytes) into
// a byte count. Case-insensitive, accepts both one- and two-letter
// suffixes.
func ParseSize(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	if val, err := strconv.ParseInt(s, 10, 64); err == nil {
		return val, nil
	}

	s = strings.ToUpper(s)

	var multiplier int64
	var numStr string

	switch {
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = s[:len(s)-2]
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = s[:len(s)-2]
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = s[:len(s)-2]
	case strings.HasSuffix(s, "TB"):
		multiplier = 1024 * 1024 * 1024 * 1024
		numStr = s[:len(s)-2]
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		numStr = s[:len(s)-1]
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		numStr = s[:len(s)-1]
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		numStr = s[:len(s)-1]
	case strings.HasSuffix(s, "T"):
		multiplier = 1024 * 1024 * 1024 * 1024
		numStr = s[:len(s)-1]
	default:
		return 0, fmt.Errorf("unknown size suffix in %q (supported: KB/K, MB/M, GB/G, TB/T)", s)
	}

	val, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size number in %q: %v", s, err)
	}

	result := val * multiplier
	if result < 0 {
		return 0, fmt.Errorf("size %q too large", s)
	}

	return result, nil
}

// ParseDuration converts strings like "7d", "2w", "1y", or any standard
// Go duration, into a time.Duration.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	s = strings.ToLower(s)

	var multiplier time.Duration
	var numStr string

	switch {
	case strings.HasSuffix(s, "d"):
		multiplier = 24 * time.Hour
		numStr = s[:len(s)-1]
	case strings.HasSuffix(s, "w"):
		multiplier = 7 * 24 * time.Hour
		numStr = s[:len(s)-1]
	case strings.HasSuffix(s, "y"):
		multiplier = 365 * 24 * time.Hour
		numStr = s[:len(s)-1]
	default:
		return 0, fmt.Errorf("unknown duration suffix in %q", s)
	}

	val, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration number in %q: %v", s, err)
	}

	return time.Duration(val) * multiplier, nil
}

// SanitizeFilename strips characters a target filesystem would reject.
func SanitizeFilename(filename string) string {
	if runtime.GOOS == "windows" {
		invalidChars := []string{"<", ">", ":", "\"", "|", "?", "*"}
		result := filename
		for _, char := range invalidChars {
			result = strings.ReplaceAll(result, char, "_")
		}

		var sanitized strings.Builder
		for _, r := range result {
			if r >= 32 {
				sanitized.WriteRune(r)
			} else {
				sanitized.WriteRune('_')
			}
		}
		return sanitized.String()
	}

	return strings.ReplaceAll(filename, "\x00", "_")
}

// ValidatePathLength rejects paths longer than the target OS supports.
func ValidatePathLength(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %v", err)
	}

	pathLen := len(absPath)

	switch runtime.GOOS {
	case "windows":
		if pathLen > 260 {
			return fmt.Errorf("path too long for Windows: %d characters (limit: 260)", pathLen)
		}
	default:
		if pathLen > 4096 {
			return fmt.Errorf("path too long: %d characters (limit: 4096)", pathLen)
		}
	}

	return nil
}

// GetDefaultFileMode returns the mode new log files are created with.
func GetDefaultFileMode() os.FileMode {
	return 0644
}

// RetryFileOperation runs operation up to retryCount times, sleeping
// retryDelay between attempts, to ride out transient filesystem errors
// (antivirus locks, overlay filesystem quirks, brief network hiccups).
func RetryFileOperation(operation func() error, retryCount int, retryDelay time.Duration) error {
	if retryCount <= 0 {
		retryCount = 3
	}
	if retryDelay <= 0 {
		retryDelay = 10 * time.Millisecond
	}

	var lastErr error
	for i := 0; i < retryCount; i++ {
		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if i < retryCount-1 {
			time.Sleep(retryDelay)
		}
	}

	return fmt.Errorf("operation failed after %d retries: %v", retryCount, lastErr)
}
