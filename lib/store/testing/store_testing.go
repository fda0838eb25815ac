package testing

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/confcache/lib/store"
)

// StoreFactory is a function that creates a new, empty instance of an IStore implementation
type StoreFactory func(t testing.TB) store.IStore

// RunStoreTests runs the conformance test suite for an IStore implementation.
func RunStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory(t))
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory(t))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory(t))
		})

		t.Run("Keys", func(t *testing.T) {
			testKeys(t, factory(t))
		})

		t.Run("InvalidKeys", func(t *testing.T) {
			testInvalidKeys(t, factory(t))
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory(t))
		})

		t.Run("Close", func(t *testing.T) {
			testClose(t, factory(t))
		})

		t.Run("AtomicSet", func(t *testing.T) {
			testAtomicSet(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// requireCode fails the test unless err is a *store.Error with the given code.
func requireCode(t testing.TB, err error, code store.RetCode) {
	t.Helper()
	storeErr, ok := err.(*store.Error)
	if !ok {
		t.Fatalf("Expected *store.Error with code %s, got %v", code, err)
	}
	if storeErr.Code != code {
		t.Fatalf("Expected code %s, got %s (%s)", code, storeErr.Code, storeErr.Msg)
	}
}

func mustSet(t testing.TB, s store.IStore, key string, value []byte) {
	t.Helper()
	if err := s.Set(key, value); err != nil {
		t.Fatalf("Set(%s) failed: %v", key, err)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, s store.IStore) {
	defer s.Close()

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	mustSet(t, s, testKey, testValue1)

	result, exists, err := s.Get(testKey)
	if err != nil || !exists {
		t.Fatalf("Expected key %s to exist after Set (err %v)", testKey, err)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	mustSet(t, s, testKey, testValue2)
	result, _, _ = s.Get(testKey)
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	_, exists, err = s.Get("nonexistent-key")
	if err != nil || exists {
		t.Errorf("Expected nonexistent key to return exists=false, got %v (err %v)", exists, err)
	}

	// the returned value must be a copy
	result[0] = 'X'
	again, _, _ := s.Get(testKey)
	if !bytes.Equal(again, testValue2) {
		t.Errorf("Modifying a returned value changed the stored value: %s", again)
	}

	// so must the stored one
	buf := []byte("buffer")
	mustSet(t, s, "buf", buf)
	buf[0] = 'X'
	stored, _, _ := s.Get("buf")
	if !bytes.Equal(stored, []byte("buffer")) {
		t.Errorf("Modifying the input buffer changed the stored value: %s", stored)
	}

	mustSet(t, s, "empty", nil)
	empty, exists, _ := s.Get("empty")
	if !exists || len(empty) != 0 {
		t.Errorf("Expected an existing empty value, got %v (exists %v)", empty, exists)
	}
}

func testHas(t *testing.T, s store.IStore) {
	defer s.Close()

	if has, err := s.Has("k"); err != nil || has {
		t.Errorf("Expected Has to return false for a missing key, got %v (err %v)", has, err)
	}
	mustSet(t, s, "k", []byte("v"))
	if has, err := s.Has("k"); err != nil || !has {
		t.Errorf("Expected Has to return true after Set, got %v (err %v)", has, err)
	}
}

func testDelete(t *testing.T, s store.IStore) {
	defer s.Close()

	mustSet(t, s, "k", []byte("v"))
	if err := s.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, exists, _ := s.Get("k"); exists {
		t.Errorf("Expected key to be gone after Delete")
	}
	if err := s.Delete("k"); err != nil {
		t.Errorf("Deleting a missing key must not fail, got %v", err)
	}
}

func testKeys(t *testing.T, s store.IStore) {
	defer s.Close()

	keys, err := s.Keys()
	if err != nil || len(keys) != 0 {
		t.Fatalf("Expected no keys in a new store, got %v (err %v)", keys, err)
	}

	for _, k := range []string{"c", "a.entry", "b-1", "B_2"} {
		mustSet(t, s, k, []byte(k))
	}
	mustSet(t, s, "a.entry", []byte("again"))

	keys, err = s.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	expected := []string{"B_2", "a.entry", "b-1", "c"}
	if fmt.Sprint(keys) != fmt.Sprint(expected) {
		t.Errorf("Expected keys %v, got %v", expected, keys)
	}
}

func testInvalidKeys(t *testing.T, s store.IStore) {
	defer s.Close()

	for _, key := range []string{"", "../escape", "a/b", ".hidden", "-dash", "white space"} {
		requireCode(t, s.Set(key, []byte("v")), store.RetCInvalidKey)
		_, _, err := s.Get(key)
		requireCode(t, err, store.RetCInvalidKey)
	}
}

func testInfo(t *testing.T, s store.IStore) {
	defer s.Close()

	mustSet(t, s, "a", make([]byte, 10))
	mustSet(t, s, "b", make([]byte, 5))

	info, err := s.GetInfo()
	if err != nil {
		t.Fatalf("GetInfo failed: %v", err)
	}
	if info.Entries != 2 {
		t.Errorf("Expected 2 entries, got %d", info.Entries)
	}
	if info.SizeBytes != 15 {
		t.Errorf("Expected 15 bytes, got %d", info.SizeBytes)
	}
	if info.Impl == "" {
		t.Errorf("Expected the implementation to be named")
	}
}

func testClose(t *testing.T, s store.IStore) {
	mustSet(t, s, "k", []byte("v"))
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	requireCode(t, s.Set("k", []byte("v")), store.RetCClosed)
	_, _, err := s.Get("k")
	requireCode(t, err, store.RetCClosed)
	_, err = s.Keys()
	requireCode(t, err, store.RetCClosed)
	requireCode(t, s.Close(), store.RetCClosed)
}

// testAtomicSet checks that readers racing with writers only ever observe one
// of the complete values.
func testAtomicSet(t *testing.T, s store.IStore) {
	defer s.Close()

	const (
		writers = 4
		rounds  = 50
		size    = 64 << 10
	)
	values := make([][]byte, writers)
	for i := range values {
		values[i] = bytes.Repeat([]byte{byte('a' + i)}, size)
	}
	mustSet(t, s, "shared", values[0])

	var wg sync.WaitGroup
	done := make(chan struct{})
	errs := make(chan error, writers+1)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(v []byte) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				if err := s.Set("shared", v); err != nil {
					errs <- err
					return
				}
			}
		}(values[i])
	}

	var readers sync.WaitGroup
	readers.Add(1)
	go func() {
		defer readers.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			got, exists, err := s.Get("shared")
			if err != nil || !exists {
				errs <- fmt.Errorf("read failed: exists=%v err=%v", exists, err)
				return
			}
			if len(got) != size || !bytes.Equal(got, bytes.Repeat(got[:1], size)) {
				errs <- fmt.Errorf("observed a torn value of %d bytes", len(got))
				return
			}
		}
	}()

	wg.Wait()
	close(done)
	readers.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
