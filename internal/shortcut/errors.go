package shortcut

// Kind classifies the failures Pin reports to its caller.
type Kind int

const (
	// KindMissingArguments means the label or filters were absent or empty.
	KindMissingArguments Kind = iota + 1
	// KindPinningUnsupported means the host cannot pin shortcuts right now.
	KindPinningUnsupported
)

// Code returns the wire error code for k.
func (k Kind) Code() string {
	switch k {
	case KindMissingArguments:
		return "pin-args"
	case KindPinningUnsupported:
		return "pin-unsupported"
	default:
		return "pin-unknown"
	}
}

func (k Kind) String() string {
	switch k {
	case KindMissingArguments:
		return "MissingArguments"
	case KindPinningUnsupported:
		return "PinningUnsupported"
	default:
		return "Unknown"
	}
}

// Error is a caller-facing pin failure. Errors of this type are terminal and
// must not be retried.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Code returns the wire error code.
func (e *Error) Code() string {
	return e.Kind.Code()
}

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrMissingArguments = &Error{
		Kind:    KindMissingArguments,
		Message: "failed because of missing arguments",
	}
	ErrPinningUnsupported = &Error{
		Kind:    KindPinningUnsupported,
		Message: "failed because the launcher does not support pinning shortcuts",
	}
)
