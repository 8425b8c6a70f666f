package host

import "homepin/internal/shortcut"

// Icon theme names used in desktop entries for the bundled fallback resources.
const (
	themeIconCollection     = "folder-pictures"
	themeIconCollectionFlat = "folder"
)

// ResourceTable resolves fallback icon variants to resource names. Empty
// fields fall back to the bundled collection glyphs.
type ResourceTable struct {
	Adaptive string
	Legacy   string
}

// Resolve implements shortcut.ResourceResolver.
func (t ResourceTable) Resolve(variant shortcut.IconVariant) string {
	if variant == shortcut.VariantAdaptive {
		if t.Adaptive != "" {
			return t.Adaptive
		}
		return shortcut.FallbackAdaptiveResource
	}
	if t.Legacy != "" {
		return t.Legacy
	}
	return shortcut.FallbackLegacyResource
}

// themeIconName maps a resource name to the Icon= value of a desktop entry.
// Names that are not bundled resources are assumed to be theme names or
// paths already.
func themeIconName(resource string) string {
	switch resource {
	case shortcut.FallbackAdaptiveResource:
		return themeIconCollection
	case shortcut.FallbackLegacyResource:
		return themeIconCollectionFlat
	default:
		return resource
	}
}
