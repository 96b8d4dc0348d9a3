package storage

import (
	"sync"
)

// OperationType defines whether an operation is read or write.
type OperationType int

const (
	// ReadOperation may run concurrently with other reads.
	ReadOperation OperationType = iota

	// WriteOperation is exclusive.
	WriteOperation
)

// LockManager centralizes in-process locking for a store. Reads share the
// lock; writes, including whole transactions, hold it exclusively.
type LockManager struct {
	mu *sync.RWMutex
}

// NewLockManager creates a new lock manager instance.
func NewLockManager() *LockManager {
	return &LockManager{
		mu: &sync.RWMutex{},
	}
}

// Execute runs fn holding the lock for opType.
//
// Example:
//
//	err := lm.Execute(ReadOperation, func() error {
//	    // Safe to read data here
//	    return nil
//	})
func (lm *LockManager) Execute(opType OperationType, fn func() error) error {
	release := lm.Acquire(opType)
	defer release()
	return fn()
}

// Acquire takes the lock for opType and returns the function releasing it.
// Transactions use it to hold the write lock from Begin to Commit or
// Rollback. The release function is safe to call more than once.
func (lm *LockManager) Acquire(opType OperationType) (release func()) {
	var once sync.Once
	switch opType {
	case WriteOperation:
		lm.mu.Lock()
		return func() { once.Do(lm.mu.Unlock) }
	default:
		lm.mu.RLock()
		return func() { once.Do(lm.mu.RUnlock) }
	}
}

// ExecuteWithResult is Execute for functions returning a value.
func ExecuteWithResult[T any](lm *LockManager, opType OperationType, fn func() (T, error)) (T, error) {
	release := lm.Acquire(opType)
	defer release()
	return fn()
}
