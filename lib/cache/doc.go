// Package cache implements the configuration cache: object graphs encoded by
// the graph engine and published to a store.IStore, one entry per key.
//
// An entry wraps the graph stream with a header holding the compression (none,
// lz4 or zstd), the stream length and its BLAKE3 digest. Load verifies all of
// them before decoding; an entry that cannot be used is treated as a miss and
// dropped, so the caller recomputes and saves it again:
//
//	c := cache.New(s, reg, opts)
//	root, _, err := c.Load(ctx, key)
//	if errors.Is(err, cache.ErrMiss) {
//		root = compute()
//		_, err = c.Save(ctx, key, root)
//	}
//
// Passes that report problems (values without codec) are neither published nor
// accepted on load unless Options.PublishWithProblems is set.
package cache
