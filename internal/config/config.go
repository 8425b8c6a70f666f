// Package config loads and saves the daemon configuration file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"homepin/internal/fsutil"

	"go.yaml.in/yaml/v3"
)

const (
	maxConfigFileBytes int64 = 1 << 20 // 1MB
	configFilePerm           = 0o600
	configDirPerm            = 0o700

	minIconSize = 48
	maxIconSize = 1024

	// DefaultWebSocketAddr is loopback only; the daemon never listens on
	// external interfaces.
	DefaultWebSocketAddr = "127.0.0.1:7613"
	// DefaultLauncherCommand is the program written into desktop entries.
	DefaultLauncherCommand = "homepin-ctl"
)

// Icon masking modes.
const (
	MaskingAuto     = "auto"
	MaskingAdaptive = "adaptive"
	MaskingLegacy   = "legacy"
)

// Resource override keys.
const (
	ResourceAdaptive = "adaptive"
	ResourceLegacy   = "legacy"
)

var (
	userHomeDirFn          = os.UserHomeDir
	getenvFn               = os.Getenv
	windowsEnvTokenPattern = regexp.MustCompile(`%[A-Za-z_][A-Za-z0-9_]*%`)
	posixEnvTokenPattern   = regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*\}|\$[A-Za-z_][A-Za-z0-9_]*`)
	validLogLevels         = []string{"debug", "info", "warn", "error"}
	validLogFormats        = []string{"text", "json"}
	validMaskingModes      = []string{MaskingAuto, MaskingAdaptive, MaskingLegacy}
)

// Config is the homepin daemon configuration.
type Config struct {
	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`
	// SocketPath overrides the per-user IPC socket. Empty selects the default.
	SocketPath string `yaml:"socket_path,omitempty" json:"socket_path,omitempty"`
	// WebSocketAddr is the loopback listen address for /ws and /metrics.
	// Empty disables the WebSocket server.
	WebSocketAddr string `yaml:"websocket_addr" json:"websocket_addr"`
	// LauncherDir receives desktop entries. $VAR and %VAR% are expanded.
	LauncherDir     string `yaml:"launcher_dir" json:"launcher_dir"`
	LauncherCommand string `yaml:"launcher_command" json:"launcher_command"`
	IconSize        int    `yaml:"icon_size" json:"icon_size"`
	IconMasking     string `yaml:"icon_masking" json:"icon_masking"`
	// DryRun records pin requests in memory instead of writing entries.
	DryRun bool `yaml:"dry_run" json:"dry_run"`
	// Resources overrides the icon names used for the fallback variants,
	// keyed by ResourceAdaptive and ResourceLegacy.
	Resources map[string]string `yaml:"resources,omitempty" json:"resources,omitempty"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		LogLevel:        "info",
		LogFormat:       "text",
		WebSocketAddr:   DefaultWebSocketAddr,
		LauncherDir:     defaultLauncherDir(),
		LauncherCommand: DefaultLauncherCommand,
		IconSize:        256,
		IconMasking:     MaskingAuto,
	}
}

// DefaultPath returns the config file location:
// $XDG_CONFIG_HOME/homepin/config.yaml, %LOCALAPPDATA% on Windows.
func DefaultPath() string {
	var base string
	if runtime.GOOS == "windows" {
		base = strings.TrimSpace(getenvFn("LOCALAPPDATA"))
	} else {
		base = strings.TrimSpace(getenvFn("XDG_CONFIG_HOME"))
	}
	if base == "" {
		home, err := userHomeDirFn()
		if err != nil {
			slog.Warn("[WARN-CONFIG] using temp dir as config path fallback", "error", err)
			base = os.TempDir()
		} else {
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, "homepin", "config.yaml")
}

func defaultLauncherDir() string {
	base := strings.TrimSpace(getenvFn("XDG_DATA_HOME"))
	if base == "" {
		home, err := userHomeDirFn()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "applications")
}

// Load reads path. A missing or empty file yields DefaultConfig. Invalid
// field values are replaced by defaults with a warning; only unreadable or
// unparsable files are errors.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, errors.New("config path required")
	}

	raw, err := fsutil.ReadLimitedFile(path, maxConfigFileBytes)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		slog.Warn("[WARN-CONFIG] failed to parse config, using defaults", "path", path, "error", err)
		return DefaultConfig(), fmt.Errorf("load config: parse %s: %w", path, err)
	}
	applyDefaultsAndValidate(&cfg)
	return cfg, nil
}

// EnsureFile loads path and writes the result back when the file does not
// exist yet.
func EnsureFile(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		if _, err := Save(path, cfg); err != nil {
			return cfg, err
		}
		slog.Info("[DEBUG-CONFIG] wrote default config", "path", path)
	}
	return cfg, nil
}

// Save validates cfg and writes it atomically. The normalised config is
// returned.
func Save(path string, cfg Config) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return cfg, errors.New("config path required")
	}
	cfg = Clone(cfg)
	applyDefaultsAndValidate(&cfg)

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return cfg, fmt.Errorf("save config: marshal: %w", err)
	}
	if err := fsutil.AtomicWriteFile(path, raw, configFilePerm, configDirPerm); err != nil {
		return cfg, fmt.Errorf("save config: %w", err)
	}
	slog.Debug("[DEBUG-CONFIG] config saved", "path", path)
	return cfg, nil
}

// Clone returns a deep copy of src.
func Clone(src Config) Config {
	dst := src
	dst.Resources = maps.Clone(src.Resources)
	return dst
}

// AdaptiveMasking resolves IconMasking. In auto mode the answer is true
// when a desktop session is detected, since freedesktop launchers scale
// and mask square icons themselves.
func (c Config) AdaptiveMasking() bool {
	switch c.IconMasking {
	case MaskingAdaptive:
		return true
	case MaskingLegacy:
		return false
	default:
		return strings.TrimSpace(getenvFn("XDG_CURRENT_DESKTOP")) != ""
	}
}

func applyDefaultsAndValidate(cfg *Config) {
	defaults := DefaultConfig()

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if !slices.Contains(validLogLevels, cfg.LogLevel) {
		if cfg.LogLevel != "" {
			slog.Warn("[WARN-CONFIG] unknown log_level, using default", "configured", cfg.LogLevel, "default", defaults.LogLevel)
		}
		cfg.LogLevel = defaults.LogLevel
	}

	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	if !slices.Contains(validLogFormats, cfg.LogFormat) {
		if cfg.LogFormat != "" {
			slog.Warn("[WARN-CONFIG] unknown log_format, using default", "configured", cfg.LogFormat, "default", defaults.LogFormat)
		}
		cfg.LogFormat = defaults.LogFormat
	}

	cfg.SocketPath = strings.TrimSpace(cfg.SocketPath)
	validateWebSocketAddr(cfg)

	cfg.LauncherDir = expandPath(strings.TrimSpace(cfg.LauncherDir))
	if cfg.LauncherDir == "" {
		cfg.LauncherDir = defaults.LauncherDir
	} else if !filepath.IsAbs(cfg.LauncherDir) {
		slog.Warn("[WARN-CONFIG] launcher_dir must be absolute, using default", "configured", cfg.LauncherDir, "default", defaults.LauncherDir)
		cfg.LauncherDir = defaults.LauncherDir
	}

	cfg.LauncherCommand = strings.TrimSpace(cfg.LauncherCommand)
	if cfg.LauncherCommand == "" {
		cfg.LauncherCommand = defaults.LauncherCommand
	}

	if cfg.IconSize == 0 {
		cfg.IconSize = defaults.IconSize
	} else if cfg.IconSize < minIconSize || cfg.IconSize > maxIconSize {
		slog.Warn("[WARN-CONFIG] icon_size out of range, using default",
			"configured", cfg.IconSize, "min", minIconSize, "max", maxIconSize)
		cfg.IconSize = defaults.IconSize
	}

	cfg.IconMasking = strings.ToLower(strings.TrimSpace(cfg.IconMasking))
	if !slices.Contains(validMaskingModes, cfg.IconMasking) {
		if cfg.IconMasking != "" {
			slog.Warn("[WARN-CONFIG] unknown icon_masking, using auto", "configured", cfg.IconMasking)
		}
		cfg.IconMasking = MaskingAuto
	}

	sanitizeResources(cfg)
}

// validateWebSocketAddr keeps the listener on loopback with a valid port.
func validateWebSocketAddr(cfg *Config) {
	addr := strings.TrimSpace(cfg.WebSocketAddr)
	cfg.WebSocketAddr = addr
	if addr == "" {
		return
	}
	host, portText, err := net.SplitHostPort(addr)
	if err != nil {
		slog.Warn("[WARN-CONFIG] websocket_addr invalid, using default", "configured", addr, "error", err)
		cfg.WebSocketAddr = DefaultWebSocketAddr
		return
	}
	port, err := strconv.Atoi(portText)
	if err != nil || port < 0 || port > 65535 {
		slog.Warn("[WARN-CONFIG] websocket_addr port out of range (0-65535), using default", "configured", addr)
		cfg.WebSocketAddr = DefaultWebSocketAddr
		return
	}
	if !isLoopbackHost(host) {
		slog.Warn("[WARN-CONFIG] websocket_addr must be a loopback address, using default", "configured", addr)
		cfg.WebSocketAddr = DefaultWebSocketAddr
	}
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func sanitizeResources(cfg *Config) {
	if len(cfg.Resources) == 0 {
		cfg.Resources = nil
		return
	}
	clean := make(map[string]string, len(cfg.Resources))
	for key, value := range cfg.Resources {
		normalizedKey := strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if normalizedKey != ResourceAdaptive && normalizedKey != ResourceLegacy {
			slog.Warn("[WARN-CONFIG] unknown resources key dropped", "key", key)
			continue
		}
		if value == "" {
			continue
		}
		clean[normalizedKey] = value
	}
	if len(clean) == 0 {
		clean = nil
	}
	cfg.Resources = clean
}

// expandPath expands a leading ~ and environment tokens. Unset variables
// are left as written.
func expandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := userHomeDirFn(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	expanded := windowsEnvTokenPattern.ReplaceAllStringFunc(path, func(token string) string {
		if value, ok := os.LookupEnv(token[1 : len(token)-1]); ok {
			return value
		}
		return token
	})
	// '$' is a valid character in Windows paths.
	if runtime.GOOS == "windows" {
		return expanded
	}
	return posixEnvTokenPattern.ReplaceAllStringFunc(expanded, func(token string) string {
		key := strings.TrimPrefix(token, "$")
		key = strings.TrimPrefix(key, "{")
		key = strings.TrimSuffix(key, "}")
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
		return token
	})
}
