package common

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/ValentinKolb/confcache/lib/cache"
	"github.com/ValentinKolb/confcache/lib/graph"
	"github.com/ValentinKolb/confcache/lib/store"
)

// --------------------------------------------------------------------------
// helper functions to build the cache options (for the cli)
// --------------------------------------------------------------------------

// CacheOptions converts the Config to cache.Options. Services and the problem
// sink are left to the caller.
func (c *Config) CacheOptions() (cache.Options, error) {
	compression, err := cache.ParseCompression(c.Compression)
	if err != nil {
		return cache.Options{}, err
	}
	policy, err := graph.ParseUnsupportedPolicy(c.Unsupported)
	if err != nil {
		return cache.Options{}, err
	}

	opts := cache.DefaultOptions()
	opts.Compression = compression
	opts.Graph.Unsupported = policy
	opts.Graph.MaxDepth = c.MaxDepth
	opts.PublishWithProblems = c.PublishWithProblems
	opts.Workers = c.Workers
	return opts, nil
}

// --------------------------------------------------------------------------
// cache configuration struct
// --------------------------------------------------------------------------

// Config holds all configuration parameters of the confcache cli.
type Config struct {
	// Store is the store implementation, see store.ImplLocal and store.ImplMemory
	Store store.Implementation
	// StoreDir is the directory of the local store
	StoreDir string

	// Encoding parameters
	Compression         string
	Unsupported         string
	MaxDepth            int
	PublishWithProblems bool
	Workers             int

	// BaseDir is the directory relative paths of build files are resolved against
	BaseDir string

	// Logging configuration
	LogLevel string
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Store:       store.ImplLocal,
		StoreDir:    ".confcache",
		Compression: cache.CompressionLZ4.String(),
		Unsupported: graph.UnsupportedPlaceholder.String(),
		MaxDepth:    graph.DefaultMaxDepth,
		Workers:     runtime.GOMAXPROCS(0),
		BaseDir:     ".",
		LogLevel:    "info",
	}
}

// Validate checks every field that is parsed later on.
func (c *Config) Validate() error {
	switch c.Store {
	case store.ImplLocal:
		if c.StoreDir == "" {
			return fmt.Errorf("the %s store needs a store directory", c.Store)
		}
	case store.ImplMemory:
	default:
		return fmt.Errorf("invalid store %q. must be one of %s, %s", c.Store, store.ImplLocal, store.ImplMemory)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max depth must not be negative, got %d", c.MaxDepth)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	_, err := c.CacheOptions()
	return err
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Store")
	addField("Implementation", string(c.Store))
	if c.Store == store.ImplLocal {
		addField("Directory", c.StoreDir)
	}

	addSection("Encoding")
	addField("Compression", c.Compression)
	addField("Unsupported Types", c.Unsupported)
	addField("Max Depth", strconv.Itoa(c.MaxDepth))
	addField("Publish With Problems", strconv.FormatBool(c.PublishWithProblems))
	addField("Workers", strconv.Itoa(c.Workers))

	addSection("Build Files")
	addField("Base Directory", c.BaseDir)

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
