package shortcut

import (
	"image"

	"homepin/internal/launch"
)

// DefaultIconSize is the edge length of cropped bitmap icons.
const DefaultIconSize = 256

// Fallback icon resources for shortcuts without a usable user image.
const (
	FallbackAdaptiveResource = "mipmap/ic_shortcut_collection"
	FallbackLegacyResource   = "drawable/ic_shortcut_collection"
)

// PinRequest asks for a shortcut opening the collection view for Filters.
type PinRequest struct {
	Label     string   `json:"label"`
	IconBytes []byte   `json:"iconBytes,omitempty"`
	Filters   []string `json:"filters"`
}

// Validate reports ErrMissingArguments when the label or filters are missing.
func (r PinRequest) Validate() error {
	if r.Label == "" || len(r.Filters) == 0 {
		return ErrMissingArguments
	}
	return nil
}

// IconKind tells which field of Icon is populated.
type IconKind int

const (
	// IconAdaptiveBitmap is a user image covering the full adaptive icon
	// surface (background and foreground combined).
	IconAdaptiveBitmap IconKind = iota + 1
	// IconResource is a bundled static resource.
	IconResource
)

func (k IconKind) String() string {
	switch k {
	case IconAdaptiveBitmap:
		return "adaptive-bitmap"
	case IconResource:
		return "resource"
	default:
		return "unknown"
	}
}

// Icon is either a bitmap or a named resource.
type Icon struct {
	Kind     IconKind
	Bitmap   *image.RGBA
	Resource string
}

// AdaptiveBitmapIcon wraps a square bitmap as a full-bleed adaptive icon.
func AdaptiveBitmapIcon(bitmap *image.RGBA) Icon {
	return Icon{Kind: IconAdaptiveBitmap, Bitmap: bitmap}
}

// ResourceIcon references a bundled icon resource by name.
func ResourceIcon(name string) Icon {
	return Icon{Kind: IconResource, Resource: name}
}

// IconVariant selects between the fallback resource flavours.
type IconVariant int

const (
	// VariantLegacy is a flat icon for hosts that do not mask adaptive icons.
	VariantLegacy IconVariant = iota
	// VariantAdaptive is a layered icon the host masks and shapes itself.
	VariantAdaptive
)

func (v IconVariant) String() string {
	if v == VariantAdaptive {
		return "adaptive"
	}
	return "legacy"
}

// Descriptor is a fully built shortcut, handed to the host once and then
// discarded.
type Descriptor struct {
	ID     string
	Label  string
	Icon   Icon
	Launch launch.Action
}
