// Package testing provides standardised tests and benchmarks for store
// implementations that satisfy the store.IStore interface.
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(t testing.TB) store.IStore {
//		return NewMyStore()
//	}
//
//	// Running the standard test suite
//	storetesting.RunStoreTests(t, "MyStore", factory)
//
//	// Running performance benchmarks
//	storetesting.RunStoreBenchmarks(b, "MyStore", factory)
package testing
