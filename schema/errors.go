package schema

import (
	"github.com/cockroachdb/errors"

	"github.com/cayleygraph/catalog/auth"
	"github.com/cayleygraph/catalog/types"
)

var (
	ErrNameConflict      = errors.New("name conflict")
	ErrInvalidName       = errors.New("invalid name")
	ErrTypeConflict      = errors.New("type conflict")
	ErrCyclicInheritance = errors.New("cyclic inheritance")
	ErrIllegalState      = errors.New("illegal state")
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")

	ErrConversion   = types.ErrConversion
	ErrAccessDenied = auth.ErrAccessDenied
)

// kindError carries the mark of an error to the standard errors.Is, which
// does not know about marks.
type kindError struct {
	error
	kind error
}

func (e *kindError) Unwrap() error        { return e.error }
func (e *kindError) Is(target error) bool { return target == e.kind }

// Mark attaches a kind to err. Both errors.Is of the standard library and
// the one of cockroachdb/errors recognize it.
func Mark(err error, kind error) error {
	if err == nil {
		return nil
	}
	return &kindError{error: errors.Mark(err, kind), kind: kind}
}

// markf returns a new error of the given kind.
func markf(kind error, format string, args ...interface{}) error {
	return Mark(errors.NewWithDepthf(1, format, args...), kind)
}

// wrapf attaches a kind to an error returned by a collaborator.
func wrapf(kind error, err error, format string, args ...interface{}) error {
	return Mark(errors.WrapWithDepthf(1, err, format, args...), kind)
}
