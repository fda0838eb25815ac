package lockmgr

import "context"

// ILockManager defines the interface for a lock provider.
type ILockManager interface {
	// AcquireLock blocks until the lock for the given key is held or ctx is done.
	// Return a function releasing the lock, and an error if ctx ended first.
	// Calling release more than once has no effect.
	AcquireLock(ctx context.Context, key string) (release func(), err error)

	// TryAcquireLock acquires the lock for the given key if it is free.
	// Return the release function and whether the lock was acquired.
	TryAcquireLock(key string) (release func(), ok bool)
}
