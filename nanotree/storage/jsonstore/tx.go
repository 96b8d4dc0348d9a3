package jsonstore

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/arthur-debert/nanotree/internal/validation"
	"github.com/arthur-debert/nanotree/nanotree/mpath"
	"github.com/arthur-debert/nanotree/nanotree/query"
	"github.com/arthur-debert/nanotree/nanotree/storage"
	"github.com/arthur-debert/nanotree/types"
)

var errTxDone = errors.New("jsonstore: transaction already finished")

// tx works on a private copy of the rows.
type tx struct {
	store   *Store
	records []*types.Record
	done    bool
}

var _ storage.Tx = (*tx)(nil)

func (t *tx) check() error {
	if t.done {
		return errTxDone
	}
	return nil
}

func (t *tx) SelectByID(id string) (*types.Record, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	return byID(t.records, id)
}

func (t *tx) SelectByPath(path string) (*types.Record, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	return byPath(t.records, path)
}

func (t *tx) Select(q query.Query) ([]*types.Record, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	return cloneAll(q.Run(t.records)), nil
}

func (t *tx) Count(q query.Query) (int, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	return count(t.records, q), nil
}

func (t *tx) find(path string) (*types.Record, error) {
	for _, r := range t.records {
		if r.Path == path {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: path %s", types.ErrNotFound, path)
}

// InsertRow implements storage.Writer. Paths and ids are unique.
func (t *tx) InsertRow(rec *types.Record) error {
	if err := t.check(); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	for _, field := range t.store.opts.OrderBy {
		raw, _ := rec.Get(field)
		if _, err := validation.NormalizeSimpleType(raw, field); err != nil {
			return err
		}
	}
	for _, r := range t.records {
		if r.Path == rec.Path {
			return fmt.Errorf("%w: path %s already taken by %s", types.ErrCorrupt, rec.Path, r.ID)
		}
		if r.ID == rec.ID {
			return fmt.Errorf("%w: duplicate id %s", types.ErrCorrupt, rec.ID)
		}
	}
	t.records = append(t.records, rec.Clone())
	return nil
}

// UpdateCounter implements storage.Writer.
func (t *tx) UpdateCounter(path string, delta int) error {
	if err := t.check(); err != nil {
		return err
	}
	r, err := t.find(path)
	if err != nil {
		return err
	}
	if r.NumChildren+delta < 0 {
		return fmt.Errorf("%w: child count of %s would drop below zero", types.ErrCorrupt, path)
	}
	r.NumChildren += delta
	return nil
}

// SetParentID implements storage.Writer.
func (t *tx) SetParentID(path, parentID string) error {
	if err := t.check(); err != nil {
		return err
	}
	r, err := t.find(path)
	if err != nil {
		return err
	}
	r.ParentID = parentID
	return nil
}

// RewritePathPrefix implements storage.Writer. The rewrite is rejected if
// it would give two rows the same path.
func (t *tx) RewritePathPrefix(oldPrefix, newPrefix string, depthDivisor int) (int, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	if oldPrefix == "" {
		return 0, fmt.Errorf("%w: empty prefix", types.ErrInvalidPath)
	}
	if depthDivisor <= 0 {
		return 0, fmt.Errorf("%w: depth divisor must be positive", types.ErrInvalidConfig)
	}

	taken := make(map[string]bool, len(t.records))
	var moved []*types.Record
	for _, r := range t.records {
		if mpath.InSubtree(oldPrefix, r.Path) {
			moved = append(moved, r)
		} else {
			taken[r.Path] = true
		}
	}
	for _, r := range moved {
		p := mpath.Rebase(r.Path, oldPrefix, newPrefix)
		if taken[p] {
			return 0, fmt.Errorf("%w: rewriting %s to %s collides at %s", types.ErrCorrupt, oldPrefix, newPrefix, p)
		}
		taken[p] = true
	}

	for _, r := range moved {
		r.Path = mpath.Rebase(r.Path, oldPrefix, newPrefix)
		r.Depth = len(r.Path) / depthDivisor
	}
	return len(moved), nil
}

// DeleteRows implements storage.Writer.
func (t *tx) DeleteRows(q query.Query) (int, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	kept := t.records[:0]
	removed := 0
	for _, r := range t.records {
		if q.Matches(r) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	t.records = kept
	return removed, nil
}

// Commit implements storage.Tx. On failure the committed state is left
// as it was and the transaction is finished.
func (t *tx) Commit() error {
	if err := t.check(); err != nil {
		return err
	}
	t.done = true
	defer t.store.finish()

	if err := t.store.publish(t.records); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Rollback implements storage.Tx.
func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.records = nil
	t.store.finish()
	return nil
}
