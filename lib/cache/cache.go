package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/ValentinKolb/confcache/lib/graph"
	"github.com/ValentinKolb/confcache/lib/lockmgr"
	"github.com/ValentinKolb/confcache/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/errgroup"
)

var log = logger.GetLogger("cache")

var (
	hits           = metrics.NewCounter(`confcache_cache_lookups_total{result="hit"}`)
	misses         = metrics.NewCounter(`confcache_cache_lookups_total{result="miss"}`)
	saves          = metrics.NewCounter(`confcache_cache_saves_total`)
	rejected       = metrics.NewCounter(`confcache_cache_rejected_total`)
	bytesStored    = metrics.NewCounter(`confcache_cache_bytes_total{op="save"}`)
	bytesLoaded    = metrics.NewCounter(`confcache_cache_bytes_total{op="load"}`)
	encodeDuration = metrics.NewHistogram(`confcache_cache_duration_seconds{op="encode"}`)
	decodeDuration = metrics.NewHistogram(`confcache_cache_duration_seconds{op="decode"}`)
)

var (
	// ErrMiss is returned by Load when no usable entry exists. The cause of the
	// miss (corrupt, incompatible, problems) is wrapped as well.
	ErrMiss = errors.New("cache miss")
	// ErrProblems is the cause of a rejected save or a miss on an entry whose
	// pass reported problems.
	ErrProblems = errors.New("pass reported problems")
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configure a Cache.
type Options struct {
	// Compression applied to new entries.
	Compression Compression
	// Graph are the options of every encode and decode pass. The construction
	// services needed by the codecs go into Graph.Services.
	Graph *graph.Options
	// PublishWithProblems publishes entries although their encode pass reported
	// problems, and loads entries whose decode pass reports problems.
	PublishWithProblems bool
	// Workers bounds the concurrency of SaveAll and LoadAll. Zero means
	// GOMAXPROCS.
	Workers int
}

// DefaultOptions returns lz4 compression, default graph options and no
// tolerance for problems.
func DefaultOptions() Options {
	return Options{
		Compression: CompressionLZ4,
		Graph:       graph.DefaultOptions(),
	}
}

// --------------------------------------------------------------------------
// Cache
// --------------------------------------------------------------------------

// Cache stores object graphs in a store.IStore. Every key holds one entry,
// which is the graph stream of one root wrapped with a digest.
//
// Thread-safety: all methods are safe for concurrent use. Each Save and Load
// runs its own encode or decode pass.
type Cache struct {
	store store.IStore
	reg   *graph.Registry
	opts  Options
	sizes SizeHistogram
	// locks serialize writes and drops of one key
	locks lockmgr.ILockManager
}

// New creates a cache on s encoding with reg.
func New(s store.IStore, reg *graph.Registry, opts Options) *Cache {
	if opts.Graph == nil {
		opts.Graph = graph.DefaultOptions()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Cache{store: s, reg: reg, opts: opts, locks: lockmgr.NewLockManager()}
}

// Save encodes root and publishes it under key. Nothing is published if the
// pass fails, or if it reported problems and PublishWithProblems is not set.
// The stats of the pass are returned in every case.
func (c *Cache) Save(ctx context.Context, key string, root any) (graph.Stats, error) {
	if err := store.ValidateKey(key); err != nil {
		return graph.Stats{}, err
	}

	opts, problems := c.passOptions()
	start := time.Now()
	stream, stats, err := graph.NewEncoder(c.reg, opts).EncodeBytes(ctx, root)
	encodeDuration.UpdateDuration(start)
	if err != nil {
		return stats, fmt.Errorf("cannot encode %s: %w", key, err)
	}
	if stats.Problems > 0 && !c.opts.PublishWithProblems {
		rejected.Inc()
		return stats, fmt.Errorf("%s not published: %w: %s", key, ErrProblems, summarize(problems))
	}

	entry, h, err := sealEntry(stream, c.opts.Compression)
	if err != nil {
		return stats, fmt.Errorf("cannot seal %s: %w", key, err)
	}
	release, err := c.locks.AcquireLock(ctx, key)
	if err != nil {
		return stats, err
	}
	err = c.store.Set(key, entry)
	release()
	if err != nil {
		return stats, fmt.Errorf("cannot store %s: %w", key, err)
	}

	saves.Inc()
	bytesStored.Add(len(entry))
	c.sizes.Add(int64(len(entry)))
	log.Debugf("saved %s (%s, %s)", key, h, stats)
	return stats, nil
}

// Load decodes the entry under key. A missing, corrupt or incompatible entry,
// or one whose pass reported problems, is a miss: the returned error wraps
// ErrMiss and the cause, and the unusable entry is dropped.
func (c *Cache) Load(ctx context.Context, key string) (any, graph.Stats, error) {
	if err := store.ValidateKey(key); err != nil {
		return nil, graph.Stats{}, err
	}
	entry, exists, err := c.store.Get(key)
	if err != nil {
		return nil, graph.Stats{}, fmt.Errorf("cannot read %s: %w", key, err)
	}
	if !exists {
		misses.Inc()
		return nil, graph.Stats{}, fmt.Errorf("%w: no entry for %s", ErrMiss, key)
	}

	stream, _, err := openEntry(entry)
	if err != nil {
		return nil, graph.Stats{}, c.miss(key, entry, err)
	}

	opts, problems := c.passOptions()
	start := time.Now()
	root, stats, err := graph.NewDecoder(c.reg, opts).DecodeBytes(ctx, stream)
	decodeDuration.UpdateDuration(start)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, stats, err
		}
		return nil, stats, c.miss(key, entry, err)
	}
	if stats.Problems > 0 && !c.opts.PublishWithProblems {
		return nil, stats, c.miss(key, entry, fmt.Errorf("%w: %s", ErrProblems, summarize(problems)))
	}

	hits.Inc()
	bytesLoaded.Add(len(entry))
	return root, stats, nil
}

// SaveAll saves independent roots concurrently, at most Options.Workers at a
// time. The first failure cancels the remaining saves.
func (c *Cache) SaveAll(ctx context.Context, roots map[string]any) (map[string]graph.Stats, error) {
	var (
		mu    sync.Mutex
		stats = make(map[string]graph.Stats, len(roots))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)
	for key, root := range roots {
		g.Go(func() error {
			s, err := c.Save(gctx, key, root)
			mu.Lock()
			stats[key] = s
			mu.Unlock()
			return err
		})
	}
	return stats, g.Wait()
}

// LoadAll loads the given keys concurrently. Misses are left out of the result
// and logged; any other failure aborts the remaining loads.
func (c *Cache) LoadAll(ctx context.Context, keys []string) (map[string]any, error) {
	var (
		mu    sync.Mutex
		roots = make(map[string]any, len(keys))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)
	for _, key := range keys {
		g.Go(func() error {
			root, _, err := c.Load(gctx, key)
			if errors.Is(err, ErrMiss) {
				log.Infof("%v", err)
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			roots[key] = root
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return roots, nil
}

// Header returns the entry header stored under key without decoding it.
func (c *Cache) Header(key string) (EntryHeader, error) {
	entry, exists, err := c.store.Get(key)
	if err != nil {
		return EntryHeader{}, fmt.Errorf("cannot read %s: %w", key, err)
	}
	if !exists {
		return EntryHeader{}, fmt.Errorf("%w: no entry for %s", ErrMiss, key)
	}
	return parseEntryHeader(entry)
}

// Inspect verifies the entry under key and calls fn for every frame of its
// stream. The graph is decoded, so the construction services must be set.
func (c *Cache) Inspect(ctx context.Context, key string, fn func(graph.FrameInfo)) (EntryHeader, graph.Stats, error) {
	entry, exists, err := c.store.Get(key)
	if err != nil {
		return EntryHeader{}, graph.Stats{}, fmt.Errorf("cannot read %s: %w", key, err)
	}
	if !exists {
		return EntryHeader{}, graph.Stats{}, fmt.Errorf("%w: no entry for %s", ErrMiss, key)
	}
	stream, h, err := openEntry(entry)
	if err != nil {
		return h, graph.Stats{}, err
	}
	opts, _ := c.passOptions()
	stats, err := graph.Inspect(ctx, c.reg, opts, bytes.NewReader(stream), fn)
	return h, stats, err
}

// Drop removes the entry under key. It waits for a save of the same key to
// finish.
func (c *Cache) Drop(key string) error {
	release, err := c.locks.AcquireLock(context.Background(), key)
	if err != nil {
		return err
	}
	defer release()
	return c.store.Delete(key)
}

// Keys returns the keys of all entries.
func (c *Cache) Keys() ([]string, error) {
	return c.store.Keys()
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Sizes returns the sizes of the entries saved by this cache.
func (c *Cache) Sizes() *SizeHistogram {
	return &c.sizes
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// passOptions returns the options of one pass. Problems go to a list owned by
// the pass and to the configured sink.
func (c *Cache) passOptions() (*graph.Options, *graph.ProblemList) {
	opts := *c.opts.Graph
	list := &graph.ProblemList{}
	sink := c.opts.Graph.Problems
	opts.Problems = graph.ProblemFunc(func(p graph.Problem) {
		list.Report(p)
		if sink != nil {
			sink.Report(p)
		}
	})
	return &opts, list
}

// miss drops the unusable entry and returns the miss error. An entry saved
// since it was read is kept.
func (c *Cache) miss(key string, entry []byte, cause error) error {
	misses.Inc()
	miss := fmt.Errorf("%w: %s: %w", ErrMiss, key, cause)

	release, err := c.locks.AcquireLock(context.Background(), key)
	if err != nil {
		return miss
	}
	defer release()

	current, exists, err := c.store.Get(key)
	switch {
	case err != nil:
		log.Warningf("cannot drop unusable entry %s: %v", key, err)
	case !exists || !bytes.Equal(current, entry):
		log.Debugf("unusable entry %s was replaced in the meantime", key)
	default:
		if err := c.store.Delete(key); err != nil {
			log.Warningf("cannot drop unusable entry %s: %v", key, err)
		} else {
			log.Infof("dropped unusable entry %s: %v", key, cause)
		}
	}
	return miss
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func summarize(l *graph.ProblemList) string {
	ps := l.Problems()
	switch len(ps) {
	case 0:
		return "no details"
	case 1:
		return ps[0].String()
	default:
		return fmt.Sprintf("%s (and %d more)", ps[0], len(ps)-1)
	}
}
