// Package errs defines the error taxonomy shared by the karma pipeline and
// the recommendation engine.
//
// Every failure carries one kind sentinel. Callers test kinds with errors.Is;
// a *Error wrapping another *Error matches both kinds.
package errs

import (
	"errors"
	"strings"
)

// Kind sentinels.
var (
	ErrInvalidArgument           = errors.New("invalid argument")
	ErrInvalidFormulaResult      = errors.New("invalid formula result")
	ErrExternalDataUnavailable   = errors.New("external data unavailable")
	ErrModelUnavailable          = errors.New("model unavailable")
	ErrRecommendationUnavailable = errors.New("recommendation unavailable")
)

var kindNames = map[error]string{ //nolint:gochecknoglobals // fixed lookup table
	ErrInvalidArgument:           "InvalidArgument",
	ErrInvalidFormulaResult:      "InvalidFormulaResult",
	ErrExternalDataUnavailable:   "ExternalDataUnavailable",
	ErrModelUnavailable:          "ModelUnavailable",
	ErrRecommendationUnavailable: "RecommendationUnavailable",
}

// Error is a classified failure.
type Error struct {
	Op    string // operation that failed, e.g. "karma.CalculateForUser"
	Kind  error  // one of the kind sentinels
	User  string // user the operation ran for, if any
	Stage string // formula stage, if any
	Err   error  // underlying cause
}

// New builds an *Error of the given kind.
func New(op string, kind, cause error) *Error {
	return &Error{Op: op, Kind: kind, Err: cause}
}

// WithUser returns a copy tagged with a user id.
func (e *Error) WithUser(user string) *Error {
	c := *e
	c.User = user
	return &c
}

// WithStage returns a copy tagged with a formula stage.
func (e *Error) WithStage(stage string) *Error {
	c := *e
	c.Stage = stage
	return &c
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("error")
	}
	if e.User != "" {
		b.WriteString(" user=")
		b.WriteString(e.User)
	}
	if e.Stage != "" {
		b.WriteString(" stage=")
		b.WriteString(e.Stage)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinel.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && e.Kind == target
}

// KindOf returns the outermost kind in err's chain, or nil.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for kind := range kindNames {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Name returns the wire name of err's outermost kind ("Internal" when unclassified).
func Name(err error) string {
	if n, ok := kindNames[KindOf(err)]; ok {
		return n
	}
	return "Internal"
}

// Retryable reports whether a retry may succeed: true when the chain holds
// ErrExternalDataUnavailable or ErrModelUnavailable.
func Retryable(err error) bool {
	return errors.Is(err, ErrExternalDataUnavailable) || errors.Is(err, ErrModelUnavailable)
}

// Cause returns the innermost classified error in the chain, which names the
// root failure when kinds are nested.
func Cause(err error) *Error {
	var last *Error
	for err != nil {
		if e, ok := err.(*Error); ok { //nolint:errorlint // walking the chain by hand
			last = e
		}
		err = errors.Unwrap(err)
	}
	return last
}
