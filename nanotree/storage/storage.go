// Package storage defines what the tree needs from a backing store.
//
// The contract is deliberately small: point lookups, ordered scans driven by
// query.Query, and four batch writes (insert, counter update, prefix
// rewrite, delete). Anything that can range scan by path and update by path
// prefix inside a transaction can host a tree.
package storage

import (
	"context"

	"github.com/arthur-debert/nanotree/nanotree/query"
	"github.com/arthur-debert/nanotree/types"
)

// Reader is the read side of a store. Point lookups that find nothing fail
// with an error wrapping types.ErrNotFound; scans that find nothing return
// an empty slice.
type Reader interface {
	SelectByID(id string) (*types.Record, error)
	SelectByPath(path string) (*types.Record, error)
	Select(q query.Query) ([]*types.Record, error)
	Count(q query.Query) (int, error)
}

// Writer is the write side, only available inside a transaction.
type Writer interface {
	// InsertRow stores rec, assigning rec.ID when empty
	InsertRow(rec *types.Record) error

	// UpdateCounter adds delta to the child count of the row at path
	UpdateCounter(path string, delta int) error

	// SetParentID updates the parent reference of the row at path
	SetParentID(path, parentID string) error

	// RewritePathPrefix replaces oldPrefix with newPrefix on every row in the
	// subtree at oldPrefix and sets depth to len(path)/depthDivisor. It
	// returns the number of rows rewritten.
	RewritePathPrefix(oldPrefix, newPrefix string, depthDivisor int) (int, error)

	// DeleteRows removes the rows matching q and returns how many went
	DeleteRows(q query.Query) (int, error)
}

// Tx is one atomic unit of work. Reads through a Tx see its own writes.
// After Commit or Rollback the Tx must not be used; Rollback after Commit
// is a no-op.
type Tx interface {
	Reader
	Writer
	Commit() error
	Rollback() error
}

// Backend is a store holding one tree.
type Backend interface {
	Reader

	// Begin starts a transaction. Writers are serialized: Begin blocks until
	// any other transaction on the same store finishes or ctx is done.
	Begin(ctx context.Context) (Tx, error)

	// Options returns the configuration the store was opened with
	Options() types.Options

	Close() error
}

// Metadata describes a persisted tree.
type Metadata struct {
	Version    string `json:"version"`
	Alphabet   string `json:"alphabet"`
	StepLength int    `json:"step_length"`
}

// FormatVersion is written by every backend that records metadata.
const FormatVersion = "1"

// MetadataFor returns the metadata a store opened with opts records.
func MetadataFor(opts types.Options) Metadata {
	return Metadata{
		Version:    FormatVersion,
		Alphabet:   opts.Alphabet,
		StepLength: opts.StepLength,
	}
}
