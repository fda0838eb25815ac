package cache

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/ValentinKolb/confcache/lib/store/mstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	stream := bytes.Repeat([]byte("configuration cache "), 200)
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			entry, h, err := sealEntry(stream, c)
			require.NoError(t, err)
			assert.Equal(t, c, h.Compression)
			assert.Equal(t, len(entry), h.Stored)
			if c != CompressionNone {
				assert.Less(t, len(entry), len(stream))
			}

			out, parsed, err := openEntry(entry)
			require.NoError(t, err)
			assert.Equal(t, stream, out)
			assert.Equal(t, h, parsed)
		})
	}
}

func TestCorruptSizeIsRejectedBeforeAllocation(t *testing.T) {
	stream := bytes.Repeat([]byte("configuration cache "), 200)
	sizes := []uint32{0xF0000000, MaxStreamSize, 1 << 24}

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		for _, size := range sizes {
			t.Run(fmt.Sprintf("%s/%d", c, size), func(t *testing.T) {
				entry, _, err := sealEntry(stream, c)
				require.NoError(t, err)
				binary.BigEndian.PutUint32(entry[10:14], size)

				var before, after runtime.MemStats
				runtime.ReadMemStats(&before)
				_, _, err = openEntry(entry)
				runtime.ReadMemStats(&after)

				assert.ErrorIs(t, err, ErrCorrupt)
				assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(8<<20), "allocated for a corrupt size")
			})
		}
	}
}

func TestParseCompression(t *testing.T) {
	for in, want := range map[string]Compression{"": CompressionNone, "none": CompressionNone, "LZ4": CompressionLZ4, "zstd": CompressionZstd} {
		got, err := ParseCompression(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseCompression("gzip")
	assert.Error(t, err)
}

func TestSizeHistogram(t *testing.T) {
	var h SizeHistogram
	assert.Zero(t, h.Percentile(50))

	for i := 0; i < 9; i++ {
		h.Add(100)
	}
	h.Add(2 << 20)

	assert.EqualValues(t, 10, h.Count())
	assert.EqualValues(t, 9*100+2<<20, h.Total())
	assert.Equal(t, int64(128), h.Percentile(50))
	assert.Equal(t, int64((1<<20+4<<20)/2), h.Percentile(100))

	h.Reset()
	assert.Zero(t, h.Count())
	assert.Zero(t, h.Mean())
}

func TestMissKeepsReplacedEntry(t *testing.T) {
	s := mstore.NewMemoryStore()
	c := New(s, nil, DefaultOptions())

	require.NoError(t, s.Set("app", []byte("fresh")))
	err := c.miss("app", []byte("stale"), ErrCorrupt)
	assert.ErrorIs(t, err, ErrMiss)
	assert.ErrorIs(t, err, ErrCorrupt)

	value, exists, err := s.Get("app")
	require.NoError(t, err)
	require.True(t, exists, "an entry saved after the read must survive")
	assert.Equal(t, []byte("fresh"), value)

	_ = c.miss("app", []byte("fresh"), ErrCorrupt)
	has, err := s.Has("app")
	require.NoError(t, err)
	assert.False(t, has, "the entry that was read is dropped")
}

func TestDropWaitsForKeyLock(t *testing.T) {
	s := mstore.NewMemoryStore()
	c := New(s, nil, DefaultOptions())
	require.NoError(t, s.Set("app", []byte("entry")))

	release, err := c.locks.AcquireLock(context.Background(), "app")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Drop("app") }()

	select {
	case <-done:
		t.Fatal("drop did not wait for the lock")
	case <-time.After(50 * time.Millisecond):
	}
	has, err := s.Has("app")
	require.NoError(t, err)
	assert.True(t, has)

	release()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("drop did not finish after the lock was released")
	}
	has, err = s.Has("app")
	require.NoError(t, err)
	assert.False(t, has)
}
