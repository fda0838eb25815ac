package lstore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/confcache/lib/store"
	"github.com/ValentinKolb/confcache/lib/store/lstore"
	storetesting "github.com/ValentinKolb/confcache/lib/store/testing"
)

func newStore(t testing.TB) store.IStore {
	s, err := lstore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	return s
}

func TestLocalStore(t *testing.T) {
	storetesting.RunStoreTests(t, "LocalStore", newStore)
}

func BenchmarkLocalStore(b *testing.B) {
	storetesting.RunStoreBenchmarks(b, "LocalStore", newStore)
}

func TestStagedValuesAreRemoved(t *testing.T) {
	dir := t.TempDir()
	staged := filepath.Join(dir, ".tmp-123")
	if err := os.WriteFile(staged, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := lstore.NewLocalStore(dir)
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(staged); !os.IsNotExist(err) {
		t.Errorf("Expected staged value to be removed, stat returned %v", err)
	}
	keys, _ := s.Keys()
	if len(keys) != 0 {
		t.Errorf("Expected no keys, got %v", keys)
	}
}

func TestValuesSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := lstore.NewLocalStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set("k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	reopened, err := lstore.NewLocalStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	v, exists, err := reopened.Get("k")
	if err != nil || !exists || string(v) != "v" {
		t.Errorf("Expected value v after reopen, got %q (exists %v, err %v)", v, exists, err)
	}
	info, _ := reopened.GetInfo()
	if info.Location != dir {
		t.Errorf("Expected location %s, got %s", dir, info.Location)
	}
}
