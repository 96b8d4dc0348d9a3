package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/arthur-debert/nanotree/nanotree/query"
	"github.com/arthur-debert/nanotree/nanotree/storage"
	"github.com/arthur-debert/nanotree/types"
)

// reader implements storage.Reader on a database or transaction.
type reader struct {
	r    runner
	opts types.Options
	sq   squirrel.StatementBuilderType
}

func (rd reader) selectColumns() []string {
	o := rd.opts
	return []string{o.IDField, o.PathField, o.DepthField, o.ParentIDField, o.NumChildrenField, o.DataField}
}

func (rd reader) base() squirrel.SelectBuilder {
	return rd.sq.Select(rd.selectColumns()...).From(rd.opts.Table)
}

// SelectByID implements storage.Reader.
func (rd reader) SelectByID(id string) (*types.Record, error) {
	return rd.selectOne(rd.base().Where(squirrel.Eq{rd.opts.IDField: id}), "id "+id)
}

// SelectByPath implements storage.Reader.
func (rd reader) SelectByPath(path string) (*types.Record, error) {
	return rd.selectOne(rd.base().Where(squirrel.Eq{rd.opts.PathField: path}), "path "+path)
}

func (rd reader) selectOne(sb squirrel.SelectBuilder, what string) (*types.Record, error) {
	sqlStr, args, err := sb.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rec, err := scanRecord(rd.r.QueryRow(sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrNotFound, what)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Select implements storage.Reader.
func (rd reader) Select(q query.Query) ([]*types.Record, error) {
	sqlStr, args, err := q.ApplyTo(rd.base(), rd.opts).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := rd.r.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q, err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return out, nil
}

// Count implements storage.Reader. Order and limit are ignored.
func (rd reader) Count(q query.Query) (int, error) {
	sqlStr, args, err := rd.sq.Select("COUNT(*)").From(rd.opts.Table).Where(q.Where(rd.opts)).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}
	var n int
	if err := rd.r.QueryRow(sqlStr, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", q, err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*types.Record, error) {
	var (
		rec      types.Record
		parentID sql.NullString
		data     sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.Path, &rec.Depth, &parentID, &rec.NumChildren, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	rec.ParentID = parentID.String

	payload, err := storage.DecodeData([]byte(data.String))
	if err != nil {
		return nil, fmt.Errorf("row %s: %w", rec.ID, err)
	}
	rec.Data = payload
	return &rec, nil
}
