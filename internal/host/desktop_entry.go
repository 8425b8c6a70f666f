package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"path/filepath"
	"strings"

	"homepin/internal/fsutil"
	"homepin/internal/launch"
	"homepin/internal/shortcut"
)

const (
	entryFilePrefix = "homepin-"
	entryFileExt    = ".desktop"
	iconSubdir      = "icons"
	entryPerm       = 0o755 // launchers only trust executable entries
	iconPerm        = 0o644
	dirPerm         = 0o755
)

// DesktopEntryOptions configures a DesktopEntryHost.
type DesktopEntryOptions struct {
	// Dir receives the .desktop files, e.g. ~/.local/share/applications or
	// ~/Desktop.
	Dir string
	// Command is the executable launched by the entry. It receives
	// "open <uri>" as arguments.
	Command string
	// AdaptiveMasking reports whether the launcher masks icons itself.
	// Freedesktop launchers draw icons as-is, so this is normally false.
	AdaptiveMasking bool
}

// DesktopEntryHost pins shortcuts by writing freedesktop desktop entries.
type DesktopEntryHost struct {
	dir      string
	command  string
	adaptive bool
	// checkWritableFn is a test seam for permission probing.
	checkWritableFn func(dir string) error
}

// NewDesktopEntryHost returns a host writing into opts.Dir.
func NewDesktopEntryHost(opts DesktopEntryOptions) *DesktopEntryHost {
	return &DesktopEntryHost{
		dir:             filepath.Clean(opts.Dir),
		command:         opts.Command,
		adaptive:        opts.AdaptiveMasking,
		checkWritableFn: checkWritable,
	}
}

// Dir returns the directory receiving desktop entries.
func (h *DesktopEntryHost) Dir() string {
	return h.dir
}

// EntryPath returns the desktop entry path for a shortcut id.
func (h *DesktopEntryHost) EntryPath(id string) string {
	return filepath.Join(h.dir, entryFilePrefix+id+entryFileExt)
}

// IconPath returns the bitmap icon path for a shortcut id.
func (h *DesktopEntryHost) IconPath(id string) string {
	return filepath.Join(h.dir, iconSubdir, entryFilePrefix+id+".png")
}

// IsPinSupported reports whether the entry directory, or its closest
// existing ancestor when it does not exist yet, is writable. Nothing is
// created.
func (h *DesktopEntryHost) IsPinSupported() bool {
	if h.dir == "" || h.dir == "." || h.command == "" {
		return false
	}
	probe, err := fsutil.ClosestExistingDir(h.dir)
	if err != nil {
		slog.Debug("[DEBUG-HOST] launcher dir not usable", "dir", h.dir, "error", err)
		return false
	}
	if err := h.checkWritableFn(probe); err != nil {
		slog.Debug("[DEBUG-HOST] launcher dir not writable", "dir", probe, "error", err)
		return false
	}
	return true
}

func (h *DesktopEntryHost) SupportsAdaptiveIconMasking() bool {
	return h.adaptive
}

// RequestPin writes the icon (for bitmap icons) and the desktop entry. The
// context is not consulted: a started submission always runs to completion.
func (h *DesktopEntryHost) RequestPin(_ context.Context, d shortcut.Descriptor) error {
	if d.ID == "" {
		return errors.New("desktop entry: descriptor has no id")
	}
	iconValue, err := h.writeIcon(d)
	if err != nil {
		return err
	}
	entry := renderDesktopEntry(d, h.command, iconValue)
	if err := fsutil.AtomicWriteFile(h.EntryPath(d.ID), entry, entryPerm, dirPerm); err != nil {
		return fmt.Errorf("desktop entry: write entry: %w", err)
	}
	slog.Debug("[DEBUG-HOST] desktop entry written", "path", h.EntryPath(d.ID))
	return nil
}

func (h *DesktopEntryHost) writeIcon(d shortcut.Descriptor) (string, error) {
	switch d.Icon.Kind {
	case shortcut.IconAdaptiveBitmap:
		if d.Icon.Bitmap == nil {
			return "", errors.New("desktop entry: bitmap icon without pixels")
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, d.Icon.Bitmap); err != nil {
			return "", fmt.Errorf("desktop entry: encode icon: %w", err)
		}
		path := h.IconPath(d.ID)
		if err := fsutil.AtomicWriteFile(path, buf.Bytes(), iconPerm, dirPerm); err != nil {
			return "", fmt.Errorf("desktop entry: write icon: %w", err)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return path, nil
		}
		return abs, nil
	case shortcut.IconResource:
		return themeIconName(d.Icon.Resource), nil
	default:
		return "", fmt.Errorf("desktop entry: unsupported icon kind %v", d.Icon.Kind)
	}
}

func renderDesktopEntry(d shortcut.Descriptor, command string, icon string) []byte {
	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	writeKey(&b, "Type", "Application")
	writeKey(&b, "Version", "1.5")
	writeKey(&b, "Name", d.Label)
	writeKey(&b, "Icon", icon)
	writeKey(&b, "Exec", quoteExecArg(command)+" open "+quoteExecArg(d.Launch.URI()))
	writeKey(&b, "Terminal", "false")
	writeKey(&b, "Categories", "Graphics;Photography;")
	writeKey(&b, "X-Homepin-Id", d.ID)
	writeKey(&b, "X-Homepin-Page", d.Launch.Page)
	writeKey(&b, "X-Homepin-Filters", d.Launch.FiltersString)
	return []byte(b.String())
}

func writeKey(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(escapeValue(value))
	b.WriteByte('\n')
}

// escapeValue applies the desktop entry string escapes.
func escapeValue(value string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		"\n", `\n`,
		"\t", `\t`,
		"\r", `\r`,
	)
	return r.Replace(value)
}

// quoteExecArg quotes one Exec argument. Field codes start with %, so a
// literal % must be doubled.
func quoteExecArg(arg string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range arg {
		switch r {
		case '"', '`', '$', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return strings.ReplaceAll(b.String(), "%", "%%")
}

// unquoteExecArgs reverses the Exec quoting of an unescaped Exec value.
func unquoteExecArgs(exec string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		escaped bool
		started bool
	)
	exec = strings.ReplaceAll(exec, "%%", "%")
	for _, r := range exec {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case inQuote && r == '\\':
			escaped = true
		case r == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && r == ' ':
			if started || cur.Len() > 0 {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
		}
	}
	if inQuote || escaped {
		return nil, errors.New("desktop entry: unterminated quote in Exec")
	}
	if started || cur.Len() > 0 {
		args = append(args, cur.String())
	}
	return args, nil
}

// unescapeValue reverses escapeValue.
func unescapeValue(value string) string {
	var b strings.Builder
	escaped := false
	for _, r := range value {
		if !escaped {
			if r == '\\' {
				escaped = true
				continue
			}
			b.WriteRune(r)
			continue
		}
		escaped = false
		switch r {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DesktopEntry is a parsed entry written by DesktopEntryHost.
type DesktopEntry struct {
	ID     string
	Name   string
	Icon   string
	Exec   []string
	Launch launch.Action
}

// ReadDesktopEntry parses an entry written by RequestPin and decodes its
// launch payload.
func ReadDesktopEntry(path string) (DesktopEntry, error) {
	raw, err := fsutil.ReadLimitedFile(path, 64*1024)
	if err != nil {
		return DesktopEntry{}, err
	}
	values := map[string]string{}
	for line := range strings.SplitSeq(string(raw), "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok || strings.HasPrefix(line, "[") || strings.HasPrefix(line, "#") {
			continue
		}
		values[strings.TrimSpace(key)] = unescapeValue(value)
	}

	args, err := unquoteExecArgs(values["Exec"])
	if err != nil {
		return DesktopEntry{}, err
	}
	entry := DesktopEntry{
		ID:   values["X-Homepin-Id"],
		Name: values["Name"],
		Icon: values["Icon"],
		Exec: args,
	}
	if len(args) != 3 || args[1] != "open" {
		return entry, fmt.Errorf("desktop entry: unexpected Exec %q", values["Exec"])
	}
	action, err := launch.ParseURI(args[2])
	if err != nil {
		return entry, err
	}
	entry.Launch = action
	return entry, nil
}
