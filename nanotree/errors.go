package nanotree

import "github.com/arthur-debert/nanotree/types"

// Error kinds returned by tree operations, re-exported from types so callers
// only need this package. Test with errors.Is.
var (
	ErrInvalidPosition    = types.ErrInvalidPosition
	ErrPathOverflow       = types.ErrPathOverflow
	ErrCycle              = types.ErrCycle
	ErrAlreadyInitialized = types.ErrAlreadyInitialized
	ErrSelfReference      = types.ErrSelfReference
	ErrNotFound           = types.ErrNotFound
	ErrInvalidPath        = types.ErrInvalidPath
	ErrInvalidConfig      = types.ErrInvalidConfig
	ErrCorrupt            = types.ErrCorrupt
)

// OverflowError carries the ordinal that did not fit in a path step.
type OverflowError = types.OverflowError
