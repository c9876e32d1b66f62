package protocol

import "errors"

var (
	ErrUnknownEvent     = errors.New("protocol: unknown event")
	ErrUndersized       = errors.New("protocol: undersized message")
	ErrFieldRange       = errors.New("protocol: field value out of range")
	ErrFieldType        = errors.New("protocol: field type mismatch")
	ErrMissingField     = errors.New("protocol: missing field")
	ErrPermissionDenied = errors.New("protocol: permission denied")
	ErrHandlerAborted   = errors.New("protocol: handler aborted")
)

// ErrorKind classifies a protocol failure for diagnostics.
type ErrorKind string

const (
	KindUnknownEvent     ErrorKind = "unknown_event"
	KindUndersized       ErrorKind = "undersized"
	KindFieldRange       ErrorKind = "field_range"
	KindFieldType        ErrorKind = "field_type"
	KindMissingField     ErrorKind = "missing_field"
	KindPermissionDenied ErrorKind = "permission_denied"
	KindHandlerAborted   ErrorKind = "handler_aborted"
	KindOther            ErrorKind = "other"
)

// KindOf maps err onto the taxonomy. Unknown errors report KindOther.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrUnknownEvent):
		return KindUnknownEvent
	case errors.Is(err, ErrUndersized):
		return KindUndersized
	case errors.Is(err, ErrFieldRange):
		return KindFieldRange
	case errors.Is(err, ErrFieldType):
		return KindFieldType
	case errors.Is(err, ErrMissingField):
		return KindMissingField
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrHandlerAborted):
		return KindHandlerAborted
	default:
		return KindOther
	}
}
