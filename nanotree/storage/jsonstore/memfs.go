package jsonstore

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FSOp names a FileSystem call that MemFS can be told to break.
type FSOp string

const (
	OpStat   FSOp = "stat"
	OpRead   FSOp = "read"
	OpWrite  FSOp = "write"
	OpRename FSOp = "rename"
	OpRemove FSOp = "remove"
)

// MemFS keeps tree files in memory so tests can inspect what a commit
// wrote and break a commit at the write or the rename of its temp file.
type MemFS struct {
	mu     sync.Mutex
	files  map[string][]byte
	calls  map[FSOp]int
	faults map[FSOp]fault
}

type fault struct {
	skip int
	err  error
}

// NewMemFS creates an empty in-memory file system.
func NewMemFS() *MemFS {
	return &MemFS{
		files:  make(map[string][]byte),
		calls:  make(map[FSOp]int),
		faults: make(map[FSOp]fault),
	}
}

// Fail makes op return err once it has succeeded skip more times, and on
// every call after that. A nil err heals op.
func (m *MemFS) Fail(op FSOp, skip int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.faults, op)
		return
	}
	m.faults[op] = fault{skip: skip, err: err}
}

// FailCommits breaks every following commit at the rename that would
// replace the tree file.
func (m *MemFS) FailCommits(err error) {
	m.Fail(OpRename, 0, err)
}

// Calls reports how many times op was attempted, failures included.
func (m *MemFS) Calls(op FSOp) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Contents returns a copy of the file at name.
func (m *MemFS) Contents(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	return append([]byte(nil), data...), ok
}

// Exists reports whether name is present.
func (m *MemFS) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[name]
	return ok
}

// enter counts a call and returns the injected error, if any. Caller must
// hold mu.
func (m *MemFS) enter(op FSOp) error {
	m.calls[op]++
	f, ok := m.faults[op]
	if !ok {
		return nil
	}
	if f.skip > 0 {
		f.skip--
		m.faults[op] = f
		return nil
	}
	return f.err
}

func (m *MemFS) Stat(name string) (fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpStat); err != nil {
		return nil, err
	}
	data, ok := m.files[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return memFileInfo{name: filepath.Base(name), size: int64(len(data))}, nil
}

func (m *MemFS) ReadFile(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpRead); err != nil {
		return nil, err
	}
	data, ok := m.files[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return append([]byte(nil), data...), nil
}

func (m *MemFS) WriteFile(name string, data []byte, _ fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpWrite); err != nil {
		return err
	}
	m.files[name] = append([]byte(nil), data...)
	return nil
}

func (m *MemFS) Rename(oldpath, newpath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpRename); err != nil {
		return err
	}
	data, ok := m.files[oldpath]
	if !ok {
		return os.ErrNotExist
	}
	m.files[newpath] = data
	delete(m.files, oldpath)
	return nil
}

func (m *MemFS) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpRemove); err != nil {
		return err
	}
	if _, ok := m.files[name]; !ok {
		return os.ErrNotExist
	}
	delete(m.files, name)
	return nil
}

type memFileInfo struct {
	name string
	size int64
}

func (fi memFileInfo) Name() string       { return fi.name }
func (fi memFileInfo) Size() int64        { return fi.size }
func (fi memFileInfo) Mode() fs.FileMode  { return 0644 }
func (fi memFileInfo) ModTime() time.Time { return time.Time{} }
func (fi memFileInfo) IsDir() bool        { return false }
func (fi memFileInfo) Sys() interface{}   { return nil }
