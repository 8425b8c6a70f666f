package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	t.Setenv("XDG_CURRENT_DESKTOP", "")
	origHome := userHomeDirFn
	userHomeDirFn = func() (string, error) { return home, nil }
	t.Cleanup(func() { userHomeDirFn = origHome })
	return home
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	home := isolateEnv(t)
	cfg := DefaultConfig()
	want := Config{
		LogLevel:        "info",
		LogFormat:       "text",
		WebSocketAddr:   DefaultWebSocketAddr,
		LauncherDir:     filepath.Join(home, "data", "applications"),
		LauncherCommand: DefaultLauncherCommand,
		IconSize:        256,
		IconMasking:     MaskingAuto,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("DefaultConfig mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultLauncherDirFallsBackToHome(t *testing.T) {
	home := isolateEnv(t)
	t.Setenv("XDG_DATA_HOME", "")
	if got, want := DefaultConfig().LauncherDir, filepath.Join(home, ".local", "share", "applications"); got != want {
		t.Fatalf("LauncherDir = %q, want %q", got, want)
	}
}

func TestDefaultPath(t *testing.T) {
	home := isolateEnv(t)
	if got, want := DefaultPath(), filepath.Join(home, ".config", "homepin", "config.yaml"); got != want && os.Getenv("LOCALAPPDATA") == "" {
		t.Fatalf("DefaultPath() = %q, want %q", got, want)
	}
	if !strings.HasSuffix(DefaultPath(), filepath.Join("homepin", "config.yaml")) {
		t.Fatalf("DefaultPath() = %q", DefaultPath())
	}
}

func TestLoadMissingAndEmpty(t *testing.T) {
	isolateEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load(missing) error = %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Fatalf("Load(missing) mismatch (-want +got):\n%s", diff)
	}

	cfg, err = Load(writeConfig(t, "  \n"))
	if err != nil {
		t.Fatalf("Load(empty) error = %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Fatalf("Load(empty) mismatch (-want +got):\n%s", diff)
	}

	if _, err := Load(""); err == nil {
		t.Fatal("Load(\"\") succeeded")
	}
}

func TestLoadParsesFields(t *testing.T) {
	home := isolateEnv(t)
	t.Setenv("HOMEPIN_TEST_DIR", filepath.Join(home, "launchers"))
	path := writeConfig(t, `
log_level: DEBUG
log_format: json
socket_path: /run/user/1000/homepin.sock
websocket_addr: "localhost:9000"
launcher_dir: $HOMEPIN_TEST_DIR
launcher_command: /usr/bin/homepin-ctl
icon_size: 128
icon_masking: legacy
dry_run: true
resources:
  Adaptive: " folder-pictures-symbolic "
  legacy: folder
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := Config{
		LogLevel:        "debug",
		LogFormat:       "json",
		SocketPath:      "/run/user/1000/homepin.sock",
		WebSocketAddr:   "localhost:9000",
		LauncherDir:     filepath.Join(home, "launchers"),
		LauncherCommand: "/usr/bin/homepin-ctl",
		IconSize:        128,
		IconMasking:     MaskingLegacy,
		DryRun:          true,
		Resources: map[string]string{
			ResourceAdaptive: "folder-pictures-symbolic",
			ResourceLegacy:   "folder",
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("Load mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadNormalisesInvalidValues(t *testing.T) {
	isolateEnv(t)
	defaults := DefaultConfig()
	tests := []struct {
		name  string
		body  string
		check func(t *testing.T, cfg Config)
	}{
		{
			name: "unknown log level",
			body: "log_level: loud\n",
			check: func(t *testing.T, cfg Config) {
				if cfg.LogLevel != "info" {
					t.Fatalf("LogLevel = %q", cfg.LogLevel)
				}
			},
		},
		{
			name: "public websocket addr",
			body: "websocket_addr: 0.0.0.0:7613\n",
			check: func(t *testing.T, cfg Config) {
				if cfg.WebSocketAddr != DefaultWebSocketAddr {
					t.Fatalf("WebSocketAddr = %q", cfg.WebSocketAddr)
				}
			},
		},
		{
			name: "websocket port out of range",
			body: "websocket_addr: 127.0.0.1:70000\n",
			check: func(t *testing.T, cfg Config) {
				if cfg.WebSocketAddr != DefaultWebSocketAddr {
					t.Fatalf("WebSocketAddr = %q", cfg.WebSocketAddr)
				}
			},
		},
		{
			name: "websocket disabled",
			body: "websocket_addr: \"\"\n",
			check: func(t *testing.T, cfg Config) {
				if cfg.WebSocketAddr != "" {
					t.Fatalf("WebSocketAddr = %q, want disabled", cfg.WebSocketAddr)
				}
			},
		},
		{
			name: "relative launcher dir",
			body: "launcher_dir: apps\n",
			check: func(t *testing.T, cfg Config) {
				if cfg.LauncherDir != defaults.LauncherDir {
					t.Fatalf("LauncherDir = %q", cfg.LauncherDir)
				}
			},
		},
		{
			name: "icon size too small",
			body: "icon_size: 8\n",
			check: func(t *testing.T, cfg Config) {
				if cfg.IconSize != 256 {
					t.Fatalf("IconSize = %d", cfg.IconSize)
				}
			},
		},
		{
			name: "unknown masking",
			body: "icon_masking: squircle\n",
			check: func(t *testing.T, cfg Config) {
				if cfg.IconMasking != MaskingAuto {
					t.Fatalf("IconMasking = %q", cfg.IconMasking)
				}
			},
		},
		{
			name: "unknown resource keys",
			body: "resources:\n  huge: x\n  legacy: \"\"\n",
			check: func(t *testing.T, cfg Config) {
				if cfg.Resources != nil {
					t.Fatalf("Resources = %v, want nil", cfg.Resources)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.body))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	isolateEnv(t)
	cfg, err := Load(writeConfig(t, "log_level: [unterminated\n"))
	if err == nil {
		t.Fatal("Load() succeeded on invalid YAML")
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Fatalf("Load() returned non-default config (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsOversizedFile(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, "log_level: info\n#"+strings.Repeat("x", int(maxConfigFileBytes))+"\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() succeeded on oversized file")
	}
}

func TestSaveAndReload(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	in := DefaultConfig()
	in.LogLevel = "WARN"
	in.DryRun = true
	in.Resources = map[string]string{"legacy": "folder"}

	saved, err := Save(path, in)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved.LogLevel != "warn" {
		t.Fatalf("saved LogLevel = %q, want normalised", saved.LogLevel)
	}
	if in.LogLevel != "WARN" {
		t.Fatal("Save() modified its argument")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(saved, loaded); diff != "" {
		t.Fatalf("reload mismatch (-want +got):\n%s", diff)
	}
	if _, err := Save(" ", in); err == nil {
		t.Fatal("Save() with empty path succeeded")
	}
}

func TestEnsureFileWritesDefaultsOnce(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "homepin", "config.yaml")

	cfg, err := EnsureFile(path)
	if err != nil {
		t.Fatalf("EnsureFile() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Fatalf("EnsureFile mismatch (-want +got):\n%s", diff)
	}

	if err := os.WriteFile(path, []byte("log_level: error\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err = EnsureFile(path)
	if err != nil {
		t.Fatalf("EnsureFile() second call error = %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Fatalf("EnsureFile overwrote existing file, LogLevel = %q", cfg.LogLevel)
	}
}

func TestCloneIsDeep(t *testing.T) {
	src := Config{Resources: map[string]string{"legacy": "folder"}}
	dst := Clone(src)
	dst.Resources["legacy"] = "other"
	if src.Resources["legacy"] != "folder" {
		t.Fatal("Clone shared the Resources map")
	}
}

func TestAdaptiveMasking(t *testing.T) {
	isolateEnv(t)
	tests := []struct {
		name    string
		mode    string
		desktop string
		want    bool
	}{
		{name: "adaptive", mode: MaskingAdaptive, want: true},
		{name: "legacy", mode: MaskingLegacy, desktop: "GNOME", want: false},
		{name: "auto with desktop", mode: MaskingAuto, desktop: "KDE", want: true},
		{name: "auto headless", mode: MaskingAuto, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("XDG_CURRENT_DESKTOP", tt.desktop)
			if got := (Config{IconMasking: tt.mode}).AdaptiveMasking(); got != tt.want {
				t.Fatalf("AdaptiveMasking() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home := isolateEnv(t)
	t.Setenv("HOMEPIN_X", "/opt/x")
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "~", want: home},
		{in: "~/apps", want: filepath.Join(home, "apps")},
		{in: "%HOMEPIN_X%/apps", want: "/opt/x/apps"},
		{in: "$HOMEPIN_X/apps", want: "/opt/x/apps"},
		{in: "${HOMEPIN_X}/apps", want: "/opt/x/apps"},
		{in: "$HOMEPIN_UNSET_VAR/apps", want: "$HOMEPIN_UNSET_VAR/apps"},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
