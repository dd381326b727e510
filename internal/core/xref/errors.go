package xref

import (
	"errors"
	"fmt"
)

var (
	ErrPrecondition    = errors.New("xref graph precondition violated")
	ErrUnknownAnchor   = errors.New("anchor does not belong to any node")
	ErrDuplicateAnchor = errors.New("anchor already registered on another node")
	ErrNodeNotInGraph  = errors.New("node is not part of the graph")
	ErrEmptyExternalID = errors.New("empty external id")
)

// PreconditionError is the panic value used when the graph was built
// inconsistently by the caller. It unwraps to ErrPrecondition.
type PreconditionError struct {
	Msg string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%v: %s", ErrPrecondition, e.Msg)
}

func (e *PreconditionError) Unwrap() error {
	return ErrPrecondition
}

func precondition(format string, args ...interface{}) {
	panic(&PreconditionError{Msg: fmt.Sprintf(format, args...)})
}
