package types

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by tree operations. Concrete errors wrap one of these;
// test with errors.Is.
var (
	ErrInvalidPosition    = errors.New("invalid position")
	ErrPathOverflow       = errors.New("path overflow")
	ErrCycle              = errors.New("cannot move node to its own descendant")
	ErrAlreadyInitialized = errors.New("record already initialized")
	ErrSelfReference      = errors.New("node cannot reference itself")
	ErrNotFound           = errors.New("node not found")
	ErrInvalidPath        = errors.New("invalid path")
	ErrInvalidConfig      = errors.New("invalid tree configuration")
	ErrCorrupt            = errors.New("tree invariant violated")
)

// OverflowError reports an ordinal that does not fit in one path step.
type OverflowError struct {
	Path    string // Path being built or incremented, if any
	Ordinal int64
	Max     int64
}

func (e *OverflowError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("path overflow from %q: ordinal %d exceeds %d", e.Path, e.Ordinal, e.Max)
	}
	return fmt.Sprintf("path overflow: ordinal %d exceeds %d", e.Ordinal, e.Max)
}

// Is makes errors.Is(err, ErrPathOverflow) match.
func (e *OverflowError) Is(target error) bool {
	return target == ErrPathOverflow
}
