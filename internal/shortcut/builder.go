// Package shortcut builds home screen shortcut descriptors from pin requests
// and submits them to the host's pinning facility.
package shortcut

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"homepin/internal/imageutil"
	"homepin/internal/launch"

	"github.com/google/uuid"
)

// Facility is the host's shortcut pinning service.
type Facility interface {
	// IsPinSupported reports whether interactive pin requests are possible.
	IsPinSupported() bool
	// RequestPin submits d. Acceptance of the placement prompt is up to the
	// host and the user; a nil error only means the request was submitted.
	RequestPin(ctx context.Context, d Descriptor) error
}

// Codec decodes encoded icon images.
type Codec interface {
	Decode(raw []byte) (image.Image, error)
}

// ResourceResolver maps a fallback icon variant to a resource name.
type ResourceResolver interface {
	Resolve(variant IconVariant) string
}

// Capabilities describes host features that change how icons are built.
type Capabilities interface {
	SupportsAdaptiveIconMasking() bool
}

// AdaptiveMasking is a fixed Capabilities answer.
type AdaptiveMasking bool

func (m AdaptiveMasking) SupportsAdaptiveIconMasking() bool { return bool(m) }

// DefaultResources resolves variants to the bundled collection glyphs.
type DefaultResources struct{}

func (DefaultResources) Resolve(variant IconVariant) string {
	if variant == VariantAdaptive {
		return FallbackAdaptiveResource
	}
	return FallbackLegacyResource
}

// Options tunes a Builder. Zero values select defaults.
type Options struct {
	Codec        Codec
	Resources    ResourceResolver
	Capabilities Capabilities
	// IconSize is the cropped bitmap edge length. 0 means DefaultIconSize.
	IconSize int
	// NewID generates descriptor ids. nil means random UUIDs.
	NewID func() string
}

// Builder answers canPin and pin. It holds no per-request state, so one
// Builder may serve any number of concurrent Pin calls.
type Builder struct {
	facility  Facility
	codec     Codec
	resources ResourceResolver
	caps      Capabilities
	iconSize  int
	newID     func() string
}

// NewBuilder returns a Builder submitting to facility.
func NewBuilder(facility Facility, opts Options) *Builder {
	b := &Builder{
		facility:  facility,
		codec:     opts.Codec,
		resources: opts.Resources,
		caps:      opts.Capabilities,
		iconSize:  opts.IconSize,
		newID:     opts.NewID,
	}
	if b.codec == nil {
		b.codec = imageutil.Codec{}
	}
	if b.resources == nil {
		b.resources = DefaultResources{}
	}
	if b.caps == nil {
		b.caps = AdaptiveMasking(false)
	}
	if b.iconSize <= 0 {
		b.iconSize = DefaultIconSize
	}
	if b.newID == nil {
		b.newID = uuid.NewString
	}
	return b
}

// CanPin reports whether the host currently accepts pin requests.
func (b *Builder) CanPin() bool {
	if b.facility == nil {
		return false
	}
	return b.facility.IsPinSupported()
}

// Pin validates req, builds a fresh descriptor and submits it to the host.
//
// Every call gets a new random id, even for identical requests: the host
// refuses to let shortcuts sharing an id differ in label or icon, so reusing
// one would clobber earlier shortcuts. Duplicate shortcuts are left to the
// user to manage.
func (b *Builder) Pin(ctx context.Context, req PinRequest) (Descriptor, error) {
	if err := req.Validate(); err != nil {
		return Descriptor{}, err
	}
	// Support can change at runtime (launcher switch), so it is not cached.
	if !b.CanPin() {
		return Descriptor{}, ErrPinningUnsupported
	}

	desc := Descriptor{
		ID:     b.newID(),
		Label:  req.Label,
		Icon:   b.buildIcon(req.IconBytes),
		Launch: launch.NewCollectionAction(req.Filters),
	}
	if err := b.facility.RequestPin(ctx, desc); err != nil {
		return Descriptor{}, fmt.Errorf("request pin shortcut %s: %w", desc.ID, err)
	}

	slog.Info("[DEBUG-PIN] pin request submitted",
		"id", desc.ID,
		"label", desc.Label,
		"filters", len(req.Filters),
		"icon", desc.Icon.Kind,
	)
	return desc, nil
}

// buildIcon prefers the user image and falls back to the bundled resource.
// Decode and crop failures are not errors.
func (b *Builder) buildIcon(raw []byte) Icon {
	if len(raw) > 0 {
		bitmap, err := b.decodeSquare(raw)
		if err == nil {
			return AdaptiveBitmapIcon(bitmap)
		}
		slog.Debug("[DEBUG-PIN] icon bytes unusable, using fallback resource",
			"bytes", len(raw),
			"error", err,
		)
	}

	variant := VariantLegacy
	if b.caps.SupportsAdaptiveIconMasking() {
		variant = VariantAdaptive
	}
	return ResourceIcon(b.resources.Resolve(variant))
}

func (b *Builder) decodeSquare(raw []byte) (*image.RGBA, error) {
	img, err := b.codec.Decode(raw)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, errors.New("codec returned no image")
	}
	return imageutil.CenterSquareCrop(img, b.iconSize)
}
