package types

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the conversion core can report.
type Kind string

const (
	KindInvalidInput          Kind = "invalid_input"
	KindUnsupportedFormat     Kind = "unsupported_format"
	KindUnsupportedConversion Kind = "unsupported_conversion"
	KindInvalidSelection      Kind = "invalid_selection"
	KindCodecError            Kind = "codec_error"
	KindDependencyUnavailable Kind = "dependency_unavailable"
	KindInternalError         Kind = "internal_error"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrCodec) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

var (
	ErrInvalidInput          = &Error{Kind: KindInvalidInput}
	ErrUnsupportedFormat     = &Error{Kind: KindUnsupportedFormat}
	ErrUnsupportedConversion = &Error{Kind: KindUnsupportedConversion}
	ErrInvalidSelection      = &Error{Kind: KindInvalidSelection}
	ErrCodec                 = &Error{Kind: KindCodecError}
	ErrDependencyUnavailable = &Error{Kind: KindDependencyUnavailable}
	ErrInternal              = &Error{Kind: KindInternalError}
)

func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of a classified error, or KindInternalError for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternalError
}
