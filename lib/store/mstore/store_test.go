package mstore_test

import (
	"testing"

	"github.com/ValentinKolb/confcache/lib/store"
	"github.com/ValentinKolb/confcache/lib/store/mstore"
	storetesting "github.com/ValentinKolb/confcache/lib/store/testing"
)

func newStore(testing.TB) store.IStore {
	return mstore.NewMemoryStore()
}

func TestMemoryStore(t *testing.T) {
	storetesting.RunStoreTests(t, "MemoryStore", newStore)
}

func BenchmarkMemoryStore(b *testing.B) {
	storetesting.RunStoreBenchmarks(b, "MemoryStore", newStore)
}
