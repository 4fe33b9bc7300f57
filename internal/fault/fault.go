// Package fault defines the error taxonomy shared by every service and
// client. A Fault travels over the wire as {"code": ..., "error": ...} so a
// business-rule failure raised inside one service keeps its kind when it
// surfaces in another.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for both HTTP status mapping and caller retry
// policy.
type Kind string

const (
	// KindValidation marks malformed or missing input. Never retried.
	KindValidation Kind = "validation"
	// KindState marks an operation invalid for the entity's current state.
	KindState Kind = "state"
	// KindAvailability marks an exhausted resource. Retry later.
	KindAvailability Kind = "availability"
	// KindConflict marks a business-rule uniqueness violation.
	KindConflict Kind = "conflict"
	// KindConnectivity marks a transport failure with no response at all.
	KindConnectivity Kind = "connectivity"
	// KindRequest marks a remote rejection carrying the remote's message.
	KindRequest Kind = "request"
)

// Fault is the single error type behind the taxonomy.
type Fault struct {
	Kind    Kind
	Message string
	// StatusCode is the HTTP status a request fault arrived with, or the
	// status a handler should answer with. Zero means "use the default for
	// the kind".
	StatusCode int
	cause      error
}

func (f *Fault) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s: %v", f.Message, f.cause)
	}
	return f.Message
}

func (f *Fault) Unwrap() error { return f.cause }

// Validation builds a caller's-fault input error.
func Validation(format string, args ...any) *Fault {
	return &Fault{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// State builds an invalid-for-current-state error.
func State(format string, args ...any) *Fault {
	return &Fault{Kind: KindState, Message: fmt.Sprintf(format, args...)}
}

// Availability builds a resource-exhausted error.
func Availability(format string, args ...any) *Fault {
	return &Fault{Kind: KindAvailability, Message: fmt.Sprintf(format, args...)}
}

// Conflict builds a uniqueness-violation error.
func Conflict(format string, args ...any) *Fault {
	return &Fault{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Connectivity wraps a transport error for which no response was obtained.
func Connectivity(cause error, format string, args ...any) *Fault {
	return &Fault{Kind: KindConnectivity, Message: fmt.Sprintf(format, args...), cause: cause}
}

// Request builds a remote-rejection error with the status it arrived with.
func Request(status int, format string, args ...any) *Fault {
	return &Fault{Kind: KindRequest, Message: fmt.Sprintf(format, args...), StatusCode: status}
}

// NotFound is a request fault for a missing entity.
func NotFound(format string, args ...any) *Fault {
	return Request(404, format, args...)
}

// As extracts a Fault from an error chain.
func As(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// IsKind reports whether err is a Fault of the given kind.
func IsKind(err error, kind Kind) bool {
	f, ok := As(err)
	return ok && f.Kind == kind
}

func knownKind(code string) bool {
	switch Kind(code) {
	case KindValidation, KindState, KindAvailability, KindConflict, KindConnectivity, KindRequest:
		return true
	}
	return false
}
