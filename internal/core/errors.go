package core

import "errors"

// ErrorKind is the error taxonomy: a tag, not a Go type, so callers read the
// Kind field of a *ProcessingError rather than using a type switch.
type ErrorKind int

const (
	KindConfig ErrorKind = iota
	KindDB
	KindFtsCorruption
	KindIO
	KindDecode
	KindParse
	KindLangRejected
	KindCancelled
	KindQuery
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config_error"
	case KindDB:
		return "db_error"
	case KindFtsCorruption:
		return "fts_corruption"
	case KindIO:
		return "io_error"
	case KindDecode:
		return "decode_error"
	case KindParse:
		return "parse_error"
	case KindLangRejected:
		return "lang_rejected"
	case KindCancelled:
		return "cancelled"
	case KindQuery:
		return "query_error"
	default:
		return "unknown"
	}
}

// ErrorBehavior tells the caller how far a failure should propagate.
type ErrorBehavior int

const (
	// Continue means the error was handled at the point it occurred; the
	// caller does nothing further.
	Continue ErrorBehavior = iota
	// AbortFile means skip the rest of this one file/track; indexing continues.
	AbortFile
	// AbortAll means the controller must transition to failed.
	AbortAll
	// Warning means surface a non-fatal warning alongside an otherwise
	// successful result (used by the search service's FTS fallback).
	Warning
)

// ProcessingError is the structured error value threaded from workers back
// to the controller and from the search service back to its caller.
type ProcessingError struct {
	Kind     ErrorKind
	Behavior ErrorBehavior
	Message  string
	Err      error
	Context  map[string]interface{}
}

func (e *ProcessingError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ProcessingError) Unwrap() error { return e.Err }

func NewError(kind ErrorKind, behavior ErrorBehavior, msg string, cause error) *ProcessingError {
	return &ProcessingError{Kind: kind, Behavior: behavior, Message: msg, Err: cause}
}

// Sentinel errors usable with errors.Is when only the kind matters.
var (
	ErrFileUnreadable      = errors.New("file unreadable")
	ErrNoConfidentEncoding = errors.New("no confident encoding")
	ErrUnsupportedFormat   = errors.New("unsupported subtitle format")
	ErrMalformedCue        = errors.New("malformed cue")
	ErrLangRejected        = errors.New("track rejected: not english enough")
	ErrCancelled           = errors.New("operation cancelled")
	ErrFtsMismatch         = errors.New("fts row count mismatch")
	ErrInvalidState        = errors.New("invalid state transition")
)
