// Package cmd implements the command-line interface of confcache. It stores
// configured build models in the configuration cache and restores them.
//
// The package is organized into several subpackages:
//
//   - entries: Commands working on cache entries (save, load, inspect, list, drop, perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every setting is available as a flag and as a CONFCACHE_ environment
// variable (e.g. CONFCACHE_STORE_DIR), which may also be set in .env or
// .env.local. See confcache -help for a list of all commands.
package cmd
