package lstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/ValentinKolb/confcache/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("store")

// tempPrefix marks staged values. Valid keys never start with it.
const tempPrefix = ".tmp-"

type storeImpl struct {
	dir    string
	closed atomic.Bool
}

// NewLocalStore creates a store keeping one file per key in dir. The directory
// is created if missing, and values left staged by an interrupted Set are
// removed.
func NewLocalStore(dir string) (store.IStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("cannot create store directory: %v", err))
	}
	s := &storeImpl{dir: dir}
	s.removeStaged()
	return s, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(key string, value []byte) error {
	if err := s.check(key); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return internal("stage", key, err)
	}
	// the staged file is removed unless it was renamed
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return internal("write", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return internal("sync", key, err)
	}
	if err := tmp.Close(); err != nil {
		return internal("close", key, err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return internal("publish", key, err)
	}
	s.syncDir()
	return nil
}

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	if err := s.check(key); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, internal("read", key, err)
	}
	return data, true, nil
}

func (s *storeImpl) Has(key string) (bool, error) {
	if err := s.check(key); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, internal("stat", key, err)
	}
	return true, nil
}

func (s *storeImpl) Delete(key string) error {
	if err := s.check(key); err != nil {
		return err
	}
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return internal("delete", key, err)
	}
	return nil
}

func (s *storeImpl) Keys() ([]string, error) {
	if s.closed.Load() {
		return nil, closedError()
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("cannot list store directory: %v", err))
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && store.ValidateKey(e.Name()) == nil {
			keys = append(keys, e.Name())
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *storeImpl) GetInfo() (store.Info, error) {
	keys, err := s.Keys()
	if err != nil {
		return store.Info{}, err
	}
	info := store.Info{Impl: store.ImplLocal, Entries: len(keys), Location: s.dir}
	for _, k := range keys {
		if fi, err := os.Stat(s.path(k)); err == nil {
			info.SizeBytes += fi.Size()
		}
	}
	return info, nil
}

func (s *storeImpl) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return closedError()
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *storeImpl) check(key string) error {
	if s.closed.Load() {
		return closedError()
	}
	return store.ValidateKey(key)
}

func (s *storeImpl) path(key string) string {
	return filepath.Join(s.dir, key)
}

// syncDir makes the rename durable. Failures are logged only, the value is
// visible either way.
func (s *storeImpl) syncDir() {
	d, err := os.Open(s.dir)
	if err != nil {
		return
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		log.Debugf("sync of %s failed: %v", s.dir, err)
	}
}

func (s *storeImpl) removeStaged() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), tempPrefix) {
			if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
				log.Infof("removed staged value %s", e.Name())
			}
		}
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func internal(op, key string, err error) error {
	return store.NewError(store.RetCInternalError, fmt.Sprintf("%s %q: %v", op, key, err))
}

func closedError() error {
	return store.NewError(store.RetCClosed, "store is closed")
}
