// Package host provides shortcut.Facility implementations: a freedesktop
// desktop entry writer for real launchers and an in-memory recorder.
package host

import (
	"context"
	"sync"
	"sync/atomic"

	"homepin/internal/shortcut"
)

// Recorder is an in-memory facility that keeps every submitted descriptor.
// It backs dry-run mode and tests.
type Recorder struct {
	supported atomic.Bool
	adaptive  bool

	mu        sync.Mutex
	submitted []shortcut.Descriptor
	// OnSubmit, if set, runs for every submission before it is recorded.
	// A non-nil error rejects the submission.
	OnSubmit func(shortcut.Descriptor) error
}

// NewRecorder returns a Recorder with the given support and masking answers.
func NewRecorder(supported, adaptiveMasking bool) *Recorder {
	r := &Recorder{adaptive: adaptiveMasking}
	r.supported.Store(supported)
	return r
}

// SetSupported changes the IsPinSupported answer.
func (r *Recorder) SetSupported(v bool) {
	r.supported.Store(v)
}

func (r *Recorder) IsPinSupported() bool {
	return r.supported.Load()
}

func (r *Recorder) SupportsAdaptiveIconMasking() bool {
	return r.adaptive
}

func (r *Recorder) RequestPin(_ context.Context, d shortcut.Descriptor) error {
	if r.OnSubmit != nil {
		if err := r.OnSubmit(d); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.submitted = append(r.submitted, d)
	r.mu.Unlock()
	return nil
}

// Submissions returns a copy of the recorded descriptors in submission order.
func (r *Recorder) Submissions() []shortcut.Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shortcut.Descriptor, len(r.submitted))
	copy(out, r.submitted)
	return out
}
