package query

import (
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/arthur-debert/nanotree/types"
)

// Where translates the predicates into a squirrel condition over the
// columns named by opts. Prefix matching uses substr rather than LIKE, which
// is case insensitive in SQLite and treats '_' and '%' as wildcards.
func (q Query) Where(opts types.Options) squirrel.Sqlizer {
	if q.Empty {
		return squirrel.Expr("1=0")
	}

	path := opts.PathField
	where := squirrel.And{}

	if q.Path != "" {
		where = append(where, squirrel.Eq{path: q.Path})
	}
	if len(q.Paths) > 0 {
		where = append(where, squirrel.Eq{path: q.Paths})
	}
	if q.Depth > 0 {
		where = append(where, squirrel.Eq{opts.DepthField: q.Depth})
	}
	if q.Prefix != "" {
		where = append(where, squirrel.Expr(fmt.Sprintf("substr(%s, 1, ?) = ?", path), len(q.Prefix), q.Prefix))
	}
	if q.Exclude != "" {
		where = append(where, squirrel.NotEq{path: q.Exclude})
	}
	if q.From != "" {
		where = append(where, squirrel.GtOrEq{path: q.From})
	}
	if q.Through != "" {
		where = append(where, squirrel.LtOrEq{path: q.Through})
	}
	if q.After != "" {
		where = append(where, squirrel.Gt{path: q.After})
	}
	if q.Before != "" {
		where = append(where, squirrel.Lt{path: q.Before})
	}
	if q.Greater != nil {
		where = append(where, tupleGreater(q.Greater))
	}
	return where
}

// tupleGreater expands (f1, f2, ...) > (v1, v2, ...) into
// f1 > v1 OR (f1 = v1 AND f2 > v2) OR ...
// NULL sorts below every value, matching CompareValues.
func tupleGreater(t *Tuple) squirrel.Sqlizer {
	or := squirrel.Or{}
	for i, field := range t.Fields {
		and := squirrel.And{}
		for j := 0; j < i; j++ {
			and = append(and, squirrel.Eq{t.Fields[j]: valueAt(t.Values, j)})
		}
		v := valueAt(t.Values, i)
		if v == nil {
			and = append(and, squirrel.NotEq{field: nil})
		} else {
			and = append(and, squirrel.Gt{field: v})
		}
		or = append(or, and)
	}
	return or
}

func valueAt(values []interface{}, i int) interface{} {
	if i < len(values) {
		return values[i]
	}
	return nil
}

// ApplyTo adds the query's filter, ordering and limit to a SELECT.
func (q Query) ApplyTo(sb squirrel.SelectBuilder, opts types.Options) squirrel.SelectBuilder {
	sb = sb.Where(q.Where(opts))
	switch q.Order {
	case Ascending:
		sb = sb.OrderBy(opts.PathField + " ASC")
	case Descending:
		sb = sb.OrderBy(opts.PathField + " DESC")
	}
	if q.Limit > 0 {
		sb = sb.Limit(uint64(q.Limit))
	}
	return sb
}
