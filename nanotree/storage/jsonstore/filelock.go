package jsonstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// FileLock is a cross-process exclusive lock.
type FileLock interface {
	// TryLockContext retries every retryInterval until the lock is taken
	// or ctx is done
	TryLockContext(ctx context.Context, retryInterval time.Duration) (bool, error)
	Unlock() error
}

// FileLockFactory creates FileLock instances
type FileLockFactory interface {
	New(path string) FileLock
}

// FlockFactory creates locks backed by github.com/gofrs/flock.
type FlockFactory struct{}

// New implements FileLockFactory.
func (FlockFactory) New(path string) FileLock {
	return flock.New(path)
}

// MockFileLock is an in-process FileLock for tests.
type MockFileLock struct {
	mu       sync.Mutex
	locked   bool
	LockErr  error
	Attempts int
}

// TryLockContext implements FileLock. A held lock reports false rather
// than waiting.
func (m *MockFileLock) TryLockContext(ctx context.Context, retryInterval time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Attempts++
	if m.LockErr != nil {
		return false, m.LockErr
	}
	if m.locked {
		return false, nil
	}
	m.locked = true
	return true, nil
}

// Unlock implements FileLock.
func (m *MockFileLock) Unlock() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.locked {
		return errors.New("mock lock not held")
	}
	m.locked = false
	return nil
}

// IsLocked reports whether the lock is held.
func (m *MockFileLock) IsLocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked
}

// MockFileLockFactory hands out one MockFileLock per path.
type MockFileLockFactory struct {
	mu    sync.Mutex
	locks map[string]*MockFileLock
}

// NewMockFileLockFactory creates a new mock factory
func NewMockFileLockFactory() *MockFileLockFactory {
	return &MockFileLockFactory{locks: make(map[string]*MockFileLock)}
}

// New implements FileLockFactory.
func (f *MockFileLockFactory) New(path string) FileLock {
	return f.Lock(path)
}

// Lock returns the mock lock for path, creating it on first use.
func (f *MockFileLockFactory) Lock(path string) *MockFileLock {
	f.mu.Lock()
	defer f.mu.Unlock()

	if lock, exists := f.locks[path]; exists {
		return lock
	}
	lock := &MockFileLock{}
	f.locks[path] = lock
	return lock
}
