package testing

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/ValentinKolb/confcache/lib/store"
)

// RunStoreBenchmarks runs all benchmarks for an IStore implementation
func RunStoreBenchmarks(b *testing.B, name string, factory StoreFactory) {
	b.Run(name, func(b *testing.B) {
		for _, size := range []int{1 << 10, 64 << 10, 1 << 20} {
			b.Run(fmt.Sprintf("Set/%dKiB", size>>10), func(b *testing.B) {
				benchmarkSet(b, factory(b), size)
			})
			b.Run(fmt.Sprintf("Get/%dKiB", size>>10), func(b *testing.B) {
				benchmarkGet(b, factory(b), size)
			})
		}

		b.Run("Has", func(b *testing.B) {
			benchmarkHas(b, factory(b))
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func benchmarkSet(b *testing.B, s store.IStore, size int) {
	defer s.Close()

	value := make([]byte, size)
	rand.Read(value)
	b.SetBytes(int64(size))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Set(fmt.Sprintf("key-%d", i%100), value); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkGet(b *testing.B, s store.IStore, size int) {
	defer s.Close()

	value := make([]byte, size)
	rand.Read(value)
	for i := 0; i < 100; i++ {
		if err := s.Set(fmt.Sprintf("key-%d", i), value); err != nil {
			b.Fatal(err)
		}
	}
	b.SetBytes(int64(size))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := s.Get(fmt.Sprintf("key-%d", i%100)); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkHas(b *testing.B, s store.IStore) {
	defer s.Close()

	if err := s.Set("present", []byte("v")); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := "present"
		if i%2 == 1 {
			key = "absent"
		}
		if _, err := s.Has(key); err != nil {
			b.Fatal(err)
		}
	}
}
