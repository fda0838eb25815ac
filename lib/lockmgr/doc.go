// Package lockmgr implements per-key locks for the goroutines of one process.
//
// A key is locked by at most one holder at a time. Locks of different keys are
// independent, and a key that is neither held nor waited for takes no memory.
// Waiting for a lock honors context cancellation.
//
// Usage Example:
//
//	locks := lockmgr.NewLockManager()
//
//	release, err := locks.AcquireLock(ctx, "app")
//	if err != nil {
//	    return err // ctx ended while waiting
//	}
//	defer release()
//
// Thread Safety:
//
//	All methods are safe for concurrent use. The release function may be
//	called from any goroutine, but only once has an effect.
package lockmgr
