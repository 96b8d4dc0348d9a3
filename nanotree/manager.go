// Package nanotree keeps a tree in a flat store using materialized paths.
//
// Every row carries its full path from the root as a string of fixed width
// steps, so subtree and sibling questions become prefix and range scans.
// Mutations plan the rows they rewrite, then apply the plan in a single
// storage transaction.
package nanotree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/arthur-debert/nanotree/internal/validation"
	"github.com/arthur-debert/nanotree/nanotree/mpath"
	"github.com/arthur-debert/nanotree/nanotree/query"
	"github.com/arthur-debert/nanotree/nanotree/storage"
	"github.com/arthur-debert/nanotree/nanotree/storage/jsonstore"
	"github.com/arthur-debert/nanotree/nanotree/storage/sqlstore"
	"github.com/arthur-debert/nanotree/types"
)

// Manager is the entry point to one tree. It is safe for concurrent use as
// long as the backend is; mutations are serialized by the backend's
// transactions.
type Manager struct {
	backend storage.Backend
	opts    types.Options
	codec   *mpath.Codec
	planner *query.Planner
	logger  *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger mutations report to.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// New creates a Manager over an opened backend. The backend's options
// define the encoding and the sibling order.
func New(backend storage.Backend, options ...Option) (*Manager, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: nil backend", types.ErrInvalidConfig)
	}
	opts := backend.Options().WithDefaults()
	if err := validation.Validate(opts); err != nil {
		return nil, err
	}
	codec, err := mpath.FromOptions(opts)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		backend: backend,
		opts:    opts,
		codec:   codec,
		planner: query.NewPlanner(codec, opts),
		logger:  slog.Default(),
	}
	for _, opt := range options {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m, nil
}

// Open picks a backend from path: empty keeps the tree in memory, a .json
// file uses the JSON store, anything else is a SQLite database.
func Open(path string, opts types.Options, options ...Option) (*Manager, error) {
	var (
		backend storage.Backend
		err     error
	)
	switch {
	case path == "":
		backend, err = jsonstore.NewMemory(opts)
	case strings.EqualFold(filepath.Ext(path), ".json"):
		backend, err = jsonstore.Open(path, opts)
	default:
		backend, err = sqlstore.Open(path, opts)
	}
	if err != nil {
		return nil, err
	}

	m, err := New(backend, options...)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return m, nil
}

// Options returns the tree configuration.
func (m *Manager) Options() types.Options {
	return m.opts
}

// Codec returns the path codec.
func (m *Manager) Codec() *mpath.Codec {
	return m.codec
}

// Backend returns the underlying store.
func (m *Manager) Backend() storage.Backend {
	return m.backend
}

// Close closes the backend.
func (m *Manager) Close() error {
	return m.backend.Close()
}

// Node wraps a stored record. The record is copied.
func (m *Manager) Node(rec *types.Record) *Node {
	if rec == nil {
		return nil
	}
	return &Node{m: m, rec: rec.Clone()}
}

func (m *Manager) nodes(recs []*types.Record) []*Node {
	nodes := make([]*Node, len(recs))
	for i, r := range recs {
		nodes[i] = &Node{m: m, rec: r}
	}
	return nodes
}

// Get loads a node by id.
func (m *Manager) Get(id string) (*Node, error) {
	rec, err := m.backend.SelectByID(id)
	if err != nil {
		return nil, err
	}
	return &Node{m: m, rec: rec}, nil
}

// GetByPath loads a node by path.
func (m *Manager) GetByPath(path string) (*Node, error) {
	if err := m.codec.Validate(path); err != nil {
		return nil, err
	}
	rec, err := m.backend.SelectByPath(path)
	if err != nil {
		return nil, err
	}
	return &Node{m: m, rec: rec}, nil
}

// RootNodes returns the roots in order.
func (m *Manager) RootNodes() ([]*Node, error) {
	recs, err := m.backend.Select(m.planner.Roots())
	if err != nil {
		return nil, err
	}
	return m.nodes(recs), nil
}

// FirstRootNode returns the first root, or nil for an empty tree.
func (m *Manager) FirstRootNode() (*Node, error) {
	return m.selectNode(m.planner.FirstInLevel(""))
}

// LastRootNode returns the last root, or nil for an empty tree.
func (m *Manager) LastRootNode() (*Node, error) {
	return m.selectNode(m.planner.LastInLevel(""))
}

// All returns every node in path order, which is depth first order.
func (m *Manager) All() ([]*Node, error) {
	recs, err := m.backend.Select(m.planner.All())
	if err != nil {
		return nil, err
	}
	return m.nodes(recs), nil
}

func (m *Manager) selectNode(q query.Query) (*Node, error) {
	rec, err := selectOne(m.backend, q)
	if err != nil || rec == nil {
		return nil, err
	}
	return &Node{m: m, rec: rec}, nil
}

// selectOne returns the first row q matches, or nil.
func selectOne(r storage.Reader, q query.Query) (*types.Record, error) {
	q.Limit = 1
	recs, err := r.Select(q)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

// AddRoot stores rec as the new root. With ordering configured the root is
// placed by its orderBy values, otherwise after the last root. rec gets its
// id and path filled in.
func (m *Manager) AddRoot(ctx context.Context, rec *types.Record) (*Node, error) {
	if err := m.checkNew(rec, nil); err != nil {
		return nil, err
	}
	if rec.ParentID != "" {
		return nil, fmt.Errorf("%w: record already has parent %s", types.ErrAlreadyInitialized, rec.ParentID)
	}

	pos := types.LastSibling
	if m.opts.Sorted() {
		pos = types.SortedSibling
	}

	var created *types.Record
	err := m.withTx(ctx, "add_root", func(tx storage.Tx) (*query.Plan, error) {
		plan := &query.Plan{}
		row, err := m.newRow(rec)
		if err != nil {
			return nil, err
		}
		path, err := m.planSlot(tx, plan, "", pos, "", row.OrderTuple(m.opts.OrderBy), "")
		if err != nil {
			return nil, err
		}
		created = m.place(row, path, "")
		plan.Add(query.InsertOp{Record: created})
		return plan, nil
	})
	if err != nil {
		return nil, err
	}
	return m.adopt(rec, created), nil
}

// Delete removes the nodes and their subtrees in one transaction. Nodes
// inside the subtree of another node in the list are covered by it.
func (m *Manager) Delete(ctx context.Context, nodes ...*Node) error {
	if len(nodes) == 0 {
		return nil
	}
	return m.withTx(ctx, "delete", func(tx storage.Tx) (*query.Plan, error) {
		recs := make([]*types.Record, 0, len(nodes))
		for _, n := range nodes {
			if n == nil {
				continue
			}
			rec, err := tx.SelectByID(n.rec.ID)
			if err != nil {
				return nil, err
			}
			recs = append(recs, rec)
		}
		sort.Slice(recs, func(i, j int) bool { return recs[i].Path < recs[j].Path })

		plan := &query.Plan{}
		var removed []string
		for _, rec := range recs {
			if covered(removed, rec.Path) {
				continue
			}
			removed = append(removed, rec.Path)
			plan.Add(query.DeleteSubtreeOp{Prefix: rec.Path})
			if parent := m.codec.ParentPath(rec.Path); parent != "" {
				plan.Add(query.AdjustChildrenOp{Path: parent, Delta: -1})
			}
		}
		return plan, nil
	})
}

func covered(roots []string, path string) bool {
	for _, r := range roots {
		if mpath.InSubtree(r, path) {
			return true
		}
	}
	return false
}

// Check audits the whole tree. It returns nil when every structural
// invariant holds, otherwise the violations joined, each wrapping
// ErrCorrupt.
func (m *Manager) Check() error {
	recs, err := m.backend.Select(m.planner.All())
	if err != nil {
		return err
	}

	var errs []error
	fail := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]interface{}{types.ErrCorrupt}, args...)...))
	}

	byPath := make(map[string]*types.Record, len(recs))
	ids := make(map[string]bool, len(recs))
	children := make(map[string]int)
	for _, r := range recs {
		if ids[r.ID] {
			fail("duplicate id %s", r.ID)
		}
		ids[r.ID] = true
		if _, dup := byPath[r.Path]; dup {
			fail("duplicate path %s", r.Path)
		}
		byPath[r.Path] = r
		children[m.codec.ParentPath(r.Path)]++
	}

	last := make(map[string]*types.Record)
	for _, r := range recs {
		if err := m.codec.Validate(r.Path); err != nil {
			fail("row %s: %v", r.ID, err)
			continue
		}
		if depth := m.codec.Depth(r.Path); r.Depth != depth {
			fail("row %s at %s has depth %d, want %d", r.ID, r.Path, r.Depth, depth)
		}
		if n := children[r.Path]; r.NumChildren != n {
			fail("row %s at %s counts %d children, has %d", r.ID, r.Path, r.NumChildren, n)
		}

		parentPath := m.codec.ParentPath(r.Path)
		if parentPath == "" {
			if r.ParentID != "" {
				fail("root %s at %s references parent %s", r.ID, r.Path, r.ParentID)
			}
		} else if parent, ok := byPath[parentPath]; !ok {
			fail("row %s at %s has no row at parent path %s", r.ID, r.Path, parentPath)
		} else if parent.ID != r.ParentID {
			fail("row %s at %s references parent %s, parent path holds %s", r.ID, r.Path, r.ParentID, parent.ID)
		}

		// Rows come in path order, so the previous row seen for a level is
		// the previous sibling
		if prev := last[parentPath]; prev != nil && m.opts.Sorted() {
			if query.CompareTuple(prev.OrderTuple(m.opts.OrderBy), r.OrderTuple(m.opts.OrderBy)) > 0 {
				fail("rows %s and %s are out of order", prev.Path, r.Path)
			}
		}
		last[parentPath] = r
	}
	return errors.Join(errs...)
}

// checkNew rejects records that are already stored, or that are the
// anchor itself.
func (m *Manager) checkNew(rec *types.Record, anchor *types.Record) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", types.ErrNotFound)
	}
	if anchor != nil && (rec == anchor || (rec.ID != "" && rec.ID == anchor.ID)) {
		return fmt.Errorf("%w: %s", types.ErrSelfReference, anchor.ID)
	}
	if rec.ID != "" || rec.Path != "" {
		return fmt.Errorf("%w: record %s is already stored at %q", types.ErrAlreadyInitialized, rec.ID, rec.Path)
	}
	return nil
}

// newRow copies rec for insertion, normalizing its orderBy values so the
// stored values compare the same way in every backend.
func (m *Manager) newRow(rec *types.Record) (*types.Record, error) {
	row := rec.Clone()
	for _, field := range m.opts.OrderBy {
		raw, _ := row.Get(field)
		v, err := validation.NormalizeSimpleType(raw, field)
		if err != nil {
			return nil, err
		}
		row.Set(field, v)
	}
	return row, nil
}

// place fills in the structural fields of a new row.
func (m *Manager) place(row *types.Record, path, parentID string) *types.Record {
	row.Path = path
	row.Depth = m.codec.Depth(path)
	row.ParentID = parentID
	row.NumChildren = 0
	return row
}

// adopt copies the stored state of created back onto the caller's record
// and wraps it.
func (m *Manager) adopt(rec, created *types.Record) *Node {
	rec.ID = created.ID
	rec.Path = created.Path
	rec.Depth = created.Depth
	rec.ParentID = created.ParentID
	rec.NumChildren = created.NumChildren
	return &Node{m: m, rec: created.Clone()}
}

// withTx runs one mutation: plan reads the transaction and returns the ops
// to apply, which are executed and committed. Any failure rolls back.
func (m *Manager) withTx(ctx context.Context, mutation string, plan func(tx storage.Tx) (*query.Plan, error)) (err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		mutationTotal.WithLabelValues(mutation, result).Inc()
		mutationDuration.WithLabelValues(mutation).Observe(time.Since(start).Seconds())
	}()

	tx, err := m.backend.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin %s: %w", mutation, err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	p, err := plan(tx)
	if err == nil {
		planOps.WithLabelValues(mutation).Observe(float64(p.Len()))
		err = m.execute(ctx, tx, p)
	}
	if err == nil {
		err = tx.Commit()
	}
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			m.logger.Error("rollback failed", "mutation", mutation, "error", rbErr)
		}
		m.logger.Warn("mutation rolled back", "mutation", mutation, "error", err)
		return err
	}

	m.logger.Info("mutation committed",
		"mutation", mutation,
		"ops", p.Len(),
		"duration", time.Since(start))
	return nil
}

// execute applies a plan in order.
func (m *Manager) execute(ctx context.Context, tx storage.Tx, plan *query.Plan) error {
	for _, op := range plan.Ops() {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, err := m.apply(tx, op)
		if err != nil {
			return fmt.Errorf("failed to apply %s: %w", op, err)
		}
		opRowsTotal.WithLabelValues(op.Kind()).Add(float64(rows))
		m.logger.Debug("applied op", "op", op.Kind(), "detail", op.String(), "rows", rows)
	}
	return nil
}

func (m *Manager) apply(tx storage.Tx, op query.Op) (int, error) {
	switch o := op.(type) {
	case query.InsertOp:
		return 1, tx.InsertRow(o.Record)
	case query.AdjustChildrenOp:
		return 1, tx.UpdateCounter(o.Path, o.Delta)
	case query.SetParentOp:
		return 1, tx.SetParentID(o.Path, o.ParentID)
	case query.RewritePrefixOp:
		return tx.RewritePathPrefix(o.Old, o.New, m.codec.StepLength())
	case query.DeleteSubtreeOp:
		return tx.DeleteRows(m.planner.Subtree(o.Prefix))
	default:
		return 0, fmt.Errorf("unknown op %T", op)
	}
}
