package graph

import "fmt"

// --------------------------------------------------------------------------
// Stream layout
// --------------------------------------------------------------------------

/*
	stream  := header frame
	header  := magic[8] version:uint16(BE) fingerprint[32]
	frame   := kind:uint8 body
	  Null        -> (no body)
	  Ref         -> ordinal:uvarint
	  Object      -> tag:uvarint ordinal:uvarint length:uint32(BE) payload[length]
	  Value       -> tag:uvarint length:uint32(BE) payload[length]
	  Unsupported -> typeName:string

	Object frames carry values with reference identity and are assigned the next
	ordinal, Value frames carry values without identity. A payload contains the
	codec's primitives and nested frames.
*/

const (
	// FormatVersion is bumped whenever the stream layout changes.
	FormatVersion uint16 = 1

	magic      = "CCGRAPH\x00"
	headerSize = len(magic) + 2 + 32

	// lengthSize is the size of the payload length prefix.
	lengthSize = 4
)

// FrameKind is the first byte of every frame.
type FrameKind uint8

const (
	FrameNull FrameKind = iota
	FrameRef
	FrameObject
	FrameValue
	FrameUnsupported
)

func (k FrameKind) String() string {
	switch k {
	case FrameNull:
		return "null"
	case FrameRef:
		return "ref"
	case FrameObject:
		return "object"
	case FrameValue:
		return "value"
	case FrameUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Header is the decoded stream header.
type Header struct {
	Version     uint16
	Fingerprint [32]byte
}

func appendHeader(buf []byte, fingerprint [32]byte) []byte {
	buf = append(buf, magic...)
	buf = append(buf, byte(FormatVersion>>8), byte(FormatVersion))
	return append(buf, fingerprint[:]...)
}

// checkHeader validates a header against the reading registry. No frame is
// read when the header does not match.
func checkHeader(h Header, fingerprint [32]byte) error {
	if h.Version != FormatVersion {
		return &Error{
			Code:    CodeFormatVersionMismatch,
			Ordinal: -1,
			Offset:  int64(len(magic)),
			Err:     fmt.Errorf("stream has format version %d, engine reads %d", h.Version, FormatVersion),
		}
	}
	if h.Fingerprint != fingerprint {
		return &Error{
			Code:    CodeFormatVersionMismatch,
			Ordinal: -1,
			Offset:  int64(len(magic) + 2),
			Err:     fmt.Errorf("stream was written with codec table %x, engine has %x", h.Fingerprint[:8], fingerprint[:8]),
		}
	}
	return nil
}
