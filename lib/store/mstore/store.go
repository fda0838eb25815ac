package mstore

import (
	"bytes"
	"sort"
	"sync/atomic"

	"github.com/ValentinKolb/confcache/lib/store"
	"github.com/puzpuzpuz/xsync/v3"
)

type storeImpl struct {
	data   *xsync.MapOf[string, []byte]
	closed atomic.Bool
}

// NewMemoryStore creates an empty in-memory store. Values are copied on Set and
// Get, so callers may reuse their buffers.
func NewMemoryStore() store.IStore {
	return &storeImpl{data: xsync.NewMapOf[string, []byte]()}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(key string, value []byte) error {
	if err := s.check(key); err != nil {
		return err
	}
	s.data.Store(key, bytes.Clone(value))
	return nil
}

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	if err := s.check(key); err != nil {
		return nil, false, err
	}
	v, ok := s.data.Load(key)
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *storeImpl) Has(key string) (bool, error) {
	if err := s.check(key); err != nil {
		return false, err
	}
	_, ok := s.data.Load(key)
	return ok, nil
}

func (s *storeImpl) Delete(key string) error {
	if err := s.check(key); err != nil {
		return err
	}
	s.data.Delete(key)
	return nil
}

func (s *storeImpl) Keys() ([]string, error) {
	if s.closed.Load() {
		return nil, store.NewError(store.RetCClosed, "store is closed")
	}
	keys := make([]string, 0, s.data.Size())
	s.data.Range(func(k string, _ []byte) bool {
		keys = append(keys, k)
		return true
	})
	sort.Strings(keys)
	return keys, nil
}

func (s *storeImpl) GetInfo() (store.Info, error) {
	if s.closed.Load() {
		return store.Info{}, store.NewError(store.RetCClosed, "store is closed")
	}
	info := store.Info{Impl: store.ImplMemory}
	s.data.Range(func(_ string, v []byte) bool {
		info.Entries++
		info.SizeBytes += int64(len(v))
		return true
	})
	return info, nil
}

func (s *storeImpl) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return store.NewError(store.RetCClosed, "store is closed")
	}
	s.data.Clear()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *storeImpl) check(key string) error {
	if s.closed.Load() {
		return store.NewError(store.RetCClosed, "store is closed")
	}
	return store.ValidateKey(key)
}
