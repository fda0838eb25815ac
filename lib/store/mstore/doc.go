// Package mstore implements an in-memory store on the store.IStore interface,
// backed by a lock-free xsync.MapOf. Data is not persisted between process
// restarts. Storing a fresh copy of the value is a single map operation, so
// Set is atomic.
package mstore
