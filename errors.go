package yamlupdate

import (
	"errors"
	"strconv"
)

// Error kinds. Every error returned while resolving, walking, mutating or
// merging wraps exactly one of these; test with errors.Is.
var (
	// ErrParse reports malformed path syntax or a malformed document.
	ErrParse = errors.New("parse error")
	// ErrPathNotFound reports a missing key or a node of the wrong kind.
	ErrPathNotFound = errors.New("cannot get value")
	// ErrIndexOutOfRange reports a sequence index beyond its bounds.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrInvalidTerminal reports that the container of the last path
	// segment could not be addressed when the value was written.
	ErrInvalidTerminal = errors.New("invalid key or index")
	// ErrMissingKeyInTarget reports a merge key absent from the document
	// while adding is not allowed.
	ErrMissingKeyInTarget = errors.New("key not found in target")
	// ErrMissingIndexInTarget reports a merge sequence element absent from
	// the document while adding is not allowed.
	ErrMissingIndexInTarget = errors.New("index not found in target")
	// ErrTypeMismatch reports a mapping facing a sequence (or the reverse)
	// while overwriting is not allowed.
	ErrTypeMismatch = errors.New("type mismatch")
)

// PathError records the kind of failure and the path at which it happened.
type PathError struct {
	Kind error
	Path string
	Err  error
}

func (e *PathError) Error() string {
	msg := "yamlupdate: " + e.Kind.Error()
	if e.Path != "" {
		msg += " at " + strconv.Quote(e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PathError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func pathErr(kind error, path string, err error) error {
	return &PathError{Kind: kind, Path: path, Err: err}
}
