package cache

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"
)

// Entry layout (big endian):
//
//	magic       8 bytes  "CCENTRY\x00"
//	version     1 byte
//	compression 1 byte
//	size        4 bytes  length of the uncompressed stream
//	digest     32 bytes  BLAKE3 of the uncompressed stream
//	body        rest     the (compressed) graph stream
const (
	entryVersion    uint8 = 1
	entryHeaderSize       = 8 + 1 + 1 + 4 + 32

	// MaxStreamSize is the largest graph stream an entry holds.
	MaxStreamSize = 1 << 30
)

var entryMagic = []byte("CCENTRY\x00")

// ErrCorrupt is the cause of a miss on an entry that failed verification.
var ErrCorrupt = errors.New("corrupt cache entry")

// EntryHeader describes a stored entry.
type EntryHeader struct {
	Version     uint8
	Compression Compression
	Size        int
	Digest      [32]byte
	// Stored is the length of the entry in the store.
	Stored int
}

func (h EntryHeader) String() string {
	return fmt.Sprintf("v%d %s %d->%d bytes blake3:%s", h.Version, h.Compression, h.Size, h.Stored,
		hex.EncodeToString(h.Digest[:8]))
}

// sealEntry wraps a graph stream into an entry.
func sealEntry(stream []byte, c Compression) ([]byte, EntryHeader, error) {
	if len(stream) > MaxStreamSize {
		return nil, EntryHeader{}, fmt.Errorf("stream of %d bytes exceeds the entry size limit", len(stream))
	}
	body, applied, err := compress(stream, c)
	if err != nil {
		return nil, EntryHeader{}, err
	}
	h := EntryHeader{
		Version:     entryVersion,
		Compression: applied,
		Size:        len(stream),
		Digest:      blake3.Sum256(stream),
		Stored:      entryHeaderSize + len(body),
	}

	out := make([]byte, 0, h.Stored)
	out = append(out, entryMagic...)
	out = append(out, h.Version, byte(h.Compression))
	out = binary.BigEndian.AppendUint32(out, uint32(h.Size))
	out = append(out, h.Digest[:]...)
	out = append(out, body...)
	return out, h, nil
}

// parseEntryHeader reads the header of an entry without verifying the body.
func parseEntryHeader(entry []byte) (EntryHeader, error) {
	if len(entry) < entryHeaderSize {
		return EntryHeader{}, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(entry))
	}
	if !bytes.Equal(entry[:8], entryMagic) {
		return EntryHeader{}, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	h := EntryHeader{
		Version:     entry[8],
		Compression: Compression(entry[9]),
		Size:        int(binary.BigEndian.Uint32(entry[10:14])),
		Stored:      len(entry),
	}
	copy(h.Digest[:], entry[14:entryHeaderSize])
	if h.Version != entryVersion {
		return h, fmt.Errorf("%w: entry version %d, expected %d", ErrCorrupt, h.Version, entryVersion)
	}
	if h.Size > MaxStreamSize {
		return h, fmt.Errorf("%w: size %d exceeds the limit of %d bytes", ErrCorrupt, h.Size, MaxStreamSize)
	}
	return h, nil
}

// openEntry verifies an entry and returns the graph stream it holds. The size
// field is checked against the body before anything is allocated for it.
func openEntry(entry []byte) ([]byte, EntryHeader, error) {
	h, err := parseEntryHeader(entry)
	if err != nil {
		return nil, h, err
	}
	stream, err := decompress(entry[entryHeaderSize:], h.Compression, h.Size)
	if err != nil {
		return nil, h, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if blake3.Sum256(stream) != h.Digest {
		return nil, h, fmt.Errorf("%w: digest mismatch", ErrCorrupt)
	}
	return stream, h, nil
}
