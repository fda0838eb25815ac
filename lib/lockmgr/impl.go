package lockmgr

import (
	"context"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// keyLock is the lock of one key. refs counts holders and waiters, the entry
// is removed from the map when it drops to zero.
type keyLock struct {
	sem  chan struct{}
	refs int
}

type lockMgrImpl struct {
	locks *xsync.MapOf[string, *keyLock]
}

// NewLockManager creates a lock manager for the keys of one process.
func NewLockManager() ILockManager {
	return &lockMgrImpl{
		locks: xsync.NewMapOf[string, *keyLock](),
	}
}

func (lm *lockMgrImpl) AcquireLock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := lm.ref(key)
	select {
	case l.sem <- struct{}{}:
		return lm.releaser(key, l), nil
	case <-ctx.Done():
		lm.unref(key)
		return nil, ctx.Err()
	}
}

func (lm *lockMgrImpl) TryAcquireLock(key string) (func(), bool) {
	l := lm.ref(key)
	select {
	case l.sem <- struct{}{}:
		return lm.releaser(key, l), true
	default:
		lm.unref(key)
		return nil, false
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (lm *lockMgrImpl) ref(key string) *keyLock {
	l, _ := lm.locks.Compute(key, func(old *keyLock, loaded bool) (*keyLock, bool) {
		if !loaded {
			old = &keyLock{sem: make(chan struct{}, 1)}
		}
		old.refs++
		return old, false
	})
	return l
}

func (lm *lockMgrImpl) unref(key string) {
	lm.locks.Compute(key, func(old *keyLock, loaded bool) (*keyLock, bool) {
		if !loaded {
			return nil, true
		}
		old.refs--
		return old, old.refs == 0
	})
}

func (lm *lockMgrImpl) releaser(key string, l *keyLock) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			lm.unref(key)
		})
	}
}

// size returns the number of keys that are held or waited for
func (lm *lockMgrImpl) size() int {
	return lm.locks.Size()
}
