package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/arthur-debert/nanotree/internal/validation"
	"github.com/arthur-debert/nanotree/nanotree/query"
	"github.com/arthur-debert/nanotree/nanotree/storage"
	"github.com/arthur-debert/nanotree/types"
)

// tx implements storage.Tx on a database transaction.
type tx struct {
	reader
	tx *sql.Tx
}

var _ storage.Tx = (*tx)(nil)

// InsertRow implements storage.Writer.
func (t *tx) InsertRow(rec *types.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	data, err := storage.EncodeData(rec.Data)
	if err != nil {
		return err
	}

	o := t.opts
	columns := []string{o.IDField, o.PathField, o.DepthField, o.ParentIDField, o.NumChildrenField, o.DataField}
	values := []interface{}{rec.ID, rec.Path, rec.Depth, nullable(rec.ParentID), rec.NumChildren, string(data)}
	for _, field := range o.OrderBy {
		raw, _ := rec.Get(field)
		v, err := validation.NormalizeSimpleType(raw, field)
		if err != nil {
			return err
		}
		columns = append(columns, field)
		values = append(values, v)
	}

	sqlStr, args, err := t.sq.Insert(o.Table).Columns(columns...).Values(values...).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}
	if _, err := t.tx.Exec(sqlStr, args...); err != nil {
		return fmt.Errorf("failed to insert %s: %w", rec.Path, err)
	}
	return nil
}

// UpdateCounter implements storage.Writer.
func (t *tx) UpdateCounter(path string, delta int) error {
	col := t.opts.NumChildrenField
	update := t.sq.Update(t.opts.Table).
		Set(col, squirrel.Expr(col+" + ?", delta)).
		Where(squirrel.Eq{t.opts.PathField: path})
	return t.execOne(update, "update counter of "+path)
}

// SetParentID implements storage.Writer.
func (t *tx) SetParentID(path, parentID string) error {
	update := t.sq.Update(t.opts.Table).
		Set(t.opts.ParentIDField, nullable(parentID)).
		Where(squirrel.Eq{t.opts.PathField: path})
	return t.execOne(update, "set parent of "+path)
}

// RewritePathPrefix implements storage.Writer. SET expressions see the
// old row, so depth is derived from the old path length.
func (t *tx) RewritePathPrefix(oldPrefix, newPrefix string, depthDivisor int) (int, error) {
	if oldPrefix == "" {
		return 0, fmt.Errorf("%w: empty prefix", types.ErrInvalidPath)
	}
	if depthDivisor <= 0 {
		return 0, fmt.Errorf("%w: depth divisor must be positive", types.ErrInvalidConfig)
	}

	p := t.opts.PathField
	update := t.sq.Update(t.opts.Table).
		Set(p, squirrel.Expr(fmt.Sprintf("? || substr(%s, ?)", p), newPrefix, len(oldPrefix)+1)).
		Set(t.opts.DepthField, squirrel.Expr(fmt.Sprintf("(? + length(%s) - ?) / ?", p), len(newPrefix), len(oldPrefix), depthDivisor)).
		Where(query.Query{Prefix: oldPrefix}.Where(t.opts))
	return t.exec(update, "rewrite "+oldPrefix)
}

// DeleteRows implements storage.Writer.
func (t *tx) DeleteRows(q query.Query) (int, error) {
	return t.exec(t.sq.Delete(t.opts.Table).Where(q.Where(t.opts)), "delete "+q.String())
}

// Commit implements storage.Tx.
func (t *tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Rollback implements storage.Tx.
func (t *tx) Rollback() error {
	err := t.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back: %w", err)
	}
	return nil
}

func (t *tx) exec(stmt squirrel.Sqlizer, what string) (int, error) {
	sqlStr, args, err := stmt.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build %s: %w", what, err)
	}
	res, err := t.tx.Exec(sqlStr, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", what, err)
	}
	return int(n), nil
}

// execOne runs a point update that must hit exactly one row.
func (t *tx) execOne(stmt squirrel.Sqlizer, what string) error {
	n, err := t.exec(stmt, what)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", types.ErrNotFound, what)
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
