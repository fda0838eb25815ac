// Package lstore implements a local, file based store on the store.IStore
// interface. Every key is one file in the store directory.
//
// Implementation Details:
//
//   - Atomic Publication: Set writes the value to a temporary file in the same
//     directory, syncs it and renames it over the key. Renames within a directory
//     are atomic, so a reader sees the old or the new value but never a partial one.
//     Temporary files left over by a crash are removed when the store is opened.
//
//   - Keys: keys are validated with store.ValidateKey, so they are plain file
//     names and cannot escape the directory.
//
// Thread Safety:
//
//	All operations are thread-safe. Concurrent Sets of the same key are resolved
//	by the file system: the last rename wins.
//
// Usage Example:
//
//	s, err := lstore.NewLocalStore(".confcache")
//	err = s.Set("project-app", entry)
//	value, exists, err := s.Get("project-app")
package lstore
