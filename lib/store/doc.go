// Package store provides the storage medium of the configuration cache: a flat
// key to blob interface with unified error handling.
//
// Key Components:
//
//   - IStore Interface: The core abstraction. Set publishes a complete value
//     atomically, so readers never observe a torn entry. All implementations share
//     this interface, so the cache can switch backends without code changes.
//
//   - Error System: A structured error reporting mechanism using typed return
//     codes (RetCode) and descriptive messages.
//
// Implementations:
//
//	- Local Store (lstore): one file per key in a directory. Values are staged
//	  in a temporary file and published with a rename.
//	  Available in the "github.com/ValentinKolb/confcache/lib/store/lstore" package.
//
//	- Memory Store (mstore): a lock-free map, for tests and single-process use.
//	  Available in the "github.com/ValentinKolb/confcache/lib/store/mstore" package.
//
// The conformance suite in lib/store/testing runs against every implementation.
package store
