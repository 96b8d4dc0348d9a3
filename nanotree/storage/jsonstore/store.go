// Package jsonstore hosts a tree in a JSON file, or purely in memory.
//
// The whole tree is loaded into memory. A transaction works on a private
// copy of the rows and publishes it on commit by writing a temporary file
// and renaming it over the original, so a failed commit leaves both the
// file and the in-memory state untouched. A gofrs/flock lock file
// serializes writers across processes for the duration of a transaction.
package jsonstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/arthur-debert/nanotree/internal/validation"
	"github.com/arthur-debert/nanotree/nanotree/query"
	"github.com/arthur-debert/nanotree/nanotree/storage"
	"github.com/arthur-debert/nanotree/types"
)

// Constants for file locking
const (
	lockTimeout    = 3 * time.Second
	lockMaxRetries = 3
	lockRetryDelay = 100 * time.Millisecond
)

// Store implements storage.Backend.
type Store struct {
	filePath string
	opts     types.Options

	lockManager *storage.LockManager
	writer      chan struct{}

	fs          FileSystem
	lockFactory FileLockFactory
	fileLock    FileLock

	// records is the committed state, guarded by lockManager
	records []*types.Record
}

var _ storage.Backend = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithFileSystem sets a custom FileSystem implementation
func WithFileSystem(fs FileSystem) Option {
	return func(s *Store) {
		s.fs = fs
	}
}

// WithFileLockFactory sets a custom FileLockFactory implementation
func WithFileLockFactory(factory FileLockFactory) Option {
	return func(s *Store) {
		s.lockFactory = factory
	}
}

// Open loads the tree stored at filePath, which need not exist yet.
func Open(filePath string, opts types.Options, options ...Option) (*Store, error) {
	if filePath == "" {
		return nil, fmt.Errorf("jsonstore: empty file path")
	}
	s, err := newStore(filePath, opts, options...)
	if err != nil {
		return nil, err
	}

	if s.fs == nil {
		s.fs = OSFileSystem{}
	}
	if s.lockFactory == nil {
		s.lockFactory = FlockFactory{}
	}
	s.fileLock = s.lockFactory.New(filePath + ".lock")

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	if err := s.acquireLock(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = s.releaseLock() }()

	records, err := s.load()
	if err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	s.records = records
	return s, nil
}

// NewMemory creates a store that lives only in memory.
func NewMemory(opts types.Options) (*Store, error) {
	return newStore("", opts)
}

func newStore(filePath string, opts types.Options, options ...Option) (*Store, error) {
	opts = opts.WithDefaults()
	if err := validation.Validate(opts); err != nil {
		return nil, err
	}
	s := &Store{
		filePath:    filePath,
		opts:        opts,
		lockManager: storage.NewLockManager(),
		writer:      make(chan struct{}, 1),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *Store) persistent() bool {
	return s.filePath != ""
}

// acquireLock attempts to acquire an exclusive file lock with retry logic
func (s *Store) acquireLock(ctx context.Context) error {
	for i := 0; i < lockMaxRetries; i++ {
		locked, err := s.fileLock.TryLockContext(ctx, lockRetryDelay)
		if err != nil {
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		if locked {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
	return fmt.Errorf("failed to acquire lock after %d attempts", lockMaxRetries)
}

func (s *Store) releaseLock() error {
	return s.fileLock.Unlock()
}

// fileData is the on-disk layout. Rows use the configured field names.
type fileData struct {
	Metadata storage.Metadata         `json:"metadata"`
	Rows     []map[string]interface{} `json:"rows"`
}

// load reads the JSON file. Caller must hold the file lock.
func (s *Store) load() ([]*types.Record, error) {
	if _, err := s.fs.Stat(s.filePath); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	raw, err := s.fs.ReadFile(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	var data fileData
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON: %v", types.ErrCorrupt, err)
	}

	want := storage.MetadataFor(s.opts)
	if data.Metadata.Alphabet != "" &&
		(data.Metadata.Alphabet != want.Alphabet || data.Metadata.StepLength != want.StepLength) {
		return nil, fmt.Errorf("%w: %s was written with alphabet %q and step length %d",
			types.ErrInvalidConfig, s.filePath, data.Metadata.Alphabet, data.Metadata.StepLength)
	}

	records := make([]*types.Record, 0, len(data.Rows))
	for i, row := range data.Rows {
		rec, err := s.rowToRecord(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// save writes records to the JSON file atomically. Caller must hold the
// file lock.
func (s *Store) save(records []*types.Record) error {
	data := fileData{
		Metadata: storage.MetadataFor(s.opts),
		Rows:     make([]map[string]interface{}, 0, len(records)),
	}
	ordered := query.Query{Order: query.Ascending}.Run(records)
	for _, rec := range ordered {
		data.Rows = append(data.Rows, s.recordToRow(rec))
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	// Write to file atomically (write to temp file, then rename)
	tmpFile := s.filePath + ".tmp"
	if err := s.fs.WriteFile(tmpFile, raw, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := s.fs.Rename(tmpFile, s.filePath); err != nil {
		_ = s.fs.Remove(tmpFile)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

func (s *Store) recordToRow(rec *types.Record) map[string]interface{} {
	o := s.opts
	row := map[string]interface{}{
		o.IDField:          rec.ID,
		o.PathField:        rec.Path,
		o.DepthField:       rec.Depth,
		o.NumChildrenField: rec.NumChildren,
		o.DataField:        rec.Data,
	}
	if rec.ParentID != "" {
		row[o.ParentIDField] = rec.ParentID
	} else {
		row[o.ParentIDField] = nil
	}
	return row
}

func (s *Store) rowToRecord(row map[string]interface{}) (*types.Record, error) {
	o := s.opts
	rec := &types.Record{Data: make(map[string]interface{})}

	var ok bool
	if rec.ID, ok = row[o.IDField].(string); !ok || rec.ID == "" {
		return nil, fmt.Errorf("%w: missing %s", types.ErrCorrupt, o.IDField)
	}
	if rec.Path, ok = row[o.PathField].(string); !ok || rec.Path == "" {
		return nil, fmt.Errorf("%w: missing %s", types.ErrCorrupt, o.PathField)
	}
	if v, present := row[o.ParentIDField]; present && v != nil {
		if rec.ParentID, ok = v.(string); !ok {
			return nil, fmt.Errorf("%w: %s is not a string", types.ErrCorrupt, o.ParentIDField)
		}
	}

	var err error
	if rec.Depth, err = intField(row, o.DepthField); err != nil {
		return nil, err
	}
	if rec.NumChildren, err = intField(row, o.NumChildrenField); err != nil {
		return nil, err
	}

	if v, present := row[o.DataField]; present && v != nil {
		data, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: %s is not an object", types.ErrCorrupt, o.DataField)
		}
		storage.NormalizeNumbers(data)
		rec.Data = data
	}
	return rec, nil
}

func intField(row map[string]interface{}, field string) (int, error) {
	n, ok := row[field].(json.Number)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not a number", types.ErrCorrupt, field)
	}
	i, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", types.ErrCorrupt, field, err)
	}
	return int(i), nil
}

// Options implements storage.Backend.
func (s *Store) Options() types.Options {
	return s.opts
}

// Begin implements storage.Backend. It waits for other transactions of
// this store, then, for file backed stores, takes the file lock and reloads
// the file so changes by other processes are seen.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case s.writer <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	t := &tx{store: s}

	if s.persistent() {
		lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
		defer cancel()
		if err := s.acquireLock(lockCtx); err != nil {
			<-s.writer
			return nil, err
		}
		records, err := s.load()
		if err != nil {
			_ = s.releaseLock()
			<-s.writer
			return nil, fmt.Errorf("failed to load data: %w", err)
		}
		_ = s.lockManager.Execute(storage.WriteOperation, func() error {
			s.records = records
			return nil
		})
	}

	_ = s.lockManager.Execute(storage.ReadOperation, func() error {
		t.records = cloneAll(s.records)
		return nil
	})
	return t, nil
}

// publish makes records the committed state, saving them first when the
// store is file backed.
func (s *Store) publish(records []*types.Record) error {
	if s.persistent() {
		if err := s.save(records); err != nil {
			return err
		}
	}
	return s.lockManager.Execute(storage.WriteOperation, func() error {
		s.records = records
		return nil
	})
}

// finish releases what Begin acquired.
func (s *Store) finish() {
	if s.persistent() {
		_ = s.releaseLock()
	}
	<-s.writer
}

// SelectByID implements storage.Reader.
func (s *Store) SelectByID(id string) (*types.Record, error) {
	return storage.ExecuteWithResult(s.lockManager, storage.ReadOperation, func() (*types.Record, error) {
		return byID(s.records, id)
	})
}

// SelectByPath implements storage.Reader.
func (s *Store) SelectByPath(path string) (*types.Record, error) {
	return storage.ExecuteWithResult(s.lockManager, storage.ReadOperation, func() (*types.Record, error) {
		return byPath(s.records, path)
	})
}

// Select implements storage.Reader.
func (s *Store) Select(q query.Query) ([]*types.Record, error) {
	return storage.ExecuteWithResult(s.lockManager, storage.ReadOperation, func() ([]*types.Record, error) {
		return cloneAll(q.Run(s.records)), nil
	})
}

// Count implements storage.Reader.
func (s *Store) Count(q query.Query) (int, error) {
	return storage.ExecuteWithResult(s.lockManager, storage.ReadOperation, func() (int, error) {
		return count(s.records, q), nil
	})
}

// Close releases any resources. Data is saved on every commit.
func (s *Store) Close() error {
	if s.persistent() {
		_ = s.fs.Remove(s.filePath + ".lock")
	}
	return nil
}

func byID(records []*types.Record, id string) (*types.Record, error) {
	for _, r := range records {
		if r.ID == id {
			return r.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: id %s", types.ErrNotFound, id)
}

func byPath(records []*types.Record, path string) (*types.Record, error) {
	for _, r := range records {
		if r.Path == path {
			return r.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: path %s", types.ErrNotFound, path)
}

func count(records []*types.Record, q query.Query) int {
	q.Order, q.Limit = query.Unordered, 0
	return len(q.Run(records))
}

func cloneAll(records []*types.Record) []*types.Record {
	out := make([]*types.Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
