package graph

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// maxBlobSize bounds strings and byte slices read from a stream, so a corrupt
// size prefix cannot trigger a huge allocation.
const maxBlobSize = 1 << 30

// --------------------------------------------------------------------------
// Staging writer
// --------------------------------------------------------------------------

// stagingWriter appends the encoded stream to an in-memory buffer. Nothing is
// handed to the sink before the whole pass succeeded.
type stagingWriter struct {
	buf []byte
}

func (b *stagingWriter) offset() int64 {
	return int64(len(b.buf))
}

func (b *stagingWriter) writeUint8(v uint8) {
	b.buf = append(b.buf, v)
}

func (b *stagingWriter) writeUvarint(v uint64) {
	b.buf = binary.AppendUvarint(b.buf, v)
}

func (b *stagingWriter) writeVarint(v int64) {
	b.buf = binary.AppendVarint(b.buf, v)
}

func (b *stagingWriter) writeFloat(v float64) {
	b.buf = binary.BigEndian.AppendUint64(b.buf, math.Float64bits(v))
}

func (b *stagingWriter) writeString(v string) {
	b.writeUvarint(uint64(len(v)))
	b.buf = append(b.buf, v...)
}

func (b *stagingWriter) writeBytes(v []byte) {
	b.writeUvarint(uint64(len(v)))
	b.buf = append(b.buf, v...)
}

// beginLength reserves a length prefix and returns its position.
func (b *stagingWriter) beginLength() int {
	pos := len(b.buf)
	b.buf = append(b.buf, 0, 0, 0, 0)
	return pos
}

// endLength backpatches the prefix reserved at pos with the number of bytes
// written since.
func (b *stagingWriter) endLength(pos int) error {
	n := len(b.buf) - pos - lengthSize
	if n > math.MaxUint32 {
		return Failf("frame payload of %d bytes exceeds the maximum frame size", n)
	}
	binary.BigEndian.PutUint32(b.buf[pos:], uint32(n))
	return nil
}

// reset drops the staged output.
func (b *stagingWriter) reset() {
	b.buf = nil
}

// --------------------------------------------------------------------------
// Bounded reader
// --------------------------------------------------------------------------

// boundedReader reads primitives from a source, tracks the absolute offset and
// enforces the payload limits of the frames currently open.
type boundedReader struct {
	src    io.ByteReader
	raw    io.Reader
	off    int64
	limits []int64
}

func newBoundedReader(r interface {
	io.Reader
	io.ByteReader
}) *boundedReader {
	return &boundedReader{src: r, raw: r}
}

func (s *boundedReader) offset() int64 {
	return s.off
}

// remaining returns the bytes left in the innermost frame, or -1 if no frame is
// open.
func (s *boundedReader) remaining() int64 {
	if len(s.limits) == 0 {
		return -1
	}
	return s.limits[len(s.limits)-1] - s.off
}

func (s *boundedReader) need(n int64) error {
	if rem := s.remaining(); rem >= 0 && n > rem {
		return &Error{
			Code:    CodeCodecFailure,
			Ordinal: -1,
			Offset:  s.off,
			Err:     fmt.Errorf("read of %d bytes crosses the end of the frame (%d left)", n, rem),
		}
	}
	return nil
}

// ReadByte implements io.ByteReader so binary.ReadUvarint can be used directly.
func (s *boundedReader) ReadByte() (byte, error) {
	if err := s.need(1); err != nil {
		return 0, err
	}
	c, err := s.src.ReadByte()
	if err != nil {
		return 0, s.ioError(err)
	}
	s.off++
	return c, nil
}

func (s *boundedReader) readUint8() (uint8, error) {
	return s.ReadByte()
}

func (s *boundedReader) readUvarint() (uint64, error) {
	start := s.off
	v, err := binary.ReadUvarint(s)
	if err != nil {
		return 0, s.varintError(err, start)
	}
	return v, nil
}

func (s *boundedReader) readVarint() (int64, error) {
	start := s.off
	v, err := binary.ReadVarint(s)
	if err != nil {
		return 0, s.varintError(err, start)
	}
	return v, nil
}

func (s *boundedReader) readFloat() (float64, error) {
	b, err := s.readFull(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

func (s *boundedReader) readUint16() (uint16, error) {
	b, err := s.readFull(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (s *boundedReader) readUint32() (uint32, error) {
	b, err := s.readFull(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (s *boundedReader) readString() (string, error) {
	b, err := s.readBlob()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *boundedReader) readBytes() ([]byte, error) {
	return s.readBlob()
}

func (s *boundedReader) readBlob() ([]byte, error) {
	start := s.off
	n, err := s.readUvarint()
	if err != nil {
		return nil, err
	}
	if n > maxBlobSize {
		return nil, &Error{Code: CodeCodecFailure, Ordinal: -1, Offset: start,
			Err: fmt.Errorf("blob size %d exceeds limit", n)}
	}
	return s.readFull(int64(n))
}

func (s *boundedReader) readFull(n int64) ([]byte, error) {
	if err := s.need(n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	read, err := io.ReadFull(s.raw, b)
	s.off += int64(read)
	if err != nil {
		return nil, s.ioError(err)
	}
	return b, nil
}

// pushLimit opens a frame payload of n bytes starting at the current offset.
func (s *boundedReader) pushLimit(n uint32) error {
	if err := s.need(int64(n)); err != nil {
		return err
	}
	s.limits = append(s.limits, s.off+int64(n))
	return nil
}

// popLimit closes the innermost frame. The payload must be consumed exactly.
func (s *boundedReader) popLimit() error {
	end := s.limits[len(s.limits)-1]
	s.limits = s.limits[:len(s.limits)-1]
	if s.off != end {
		return &Error{
			Code:    CodeCodecFailure,
			Ordinal: -1,
			Offset:  s.off,
			Err:     fmt.Errorf("%d unread bytes at end of frame", end-s.off),
		}
	}
	return nil
}

// discard skips n bytes, used when walking frames without decoding them.
func (s *boundedReader) discard(n int64) error {
	if err := s.need(n); err != nil {
		return err
	}
	read, err := io.CopyN(io.Discard, s.raw, n)
	s.off += read
	if err != nil {
		return s.ioError(err)
	}
	return nil
}

// atEOF reports whether the source is exhausted.
func (s *boundedReader) atEOF() (bool, error) {
	_, err := s.src.ReadByte()
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	if err != nil {
		return false, s.ioError(err)
	}
	return false, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *boundedReader) ioError(err error) error {
	var ge *Error
	if errors.As(err, &ge) {
		return err
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &Error{
			Code:    CodeUnexpectedEndOfStream,
			Ordinal: -1,
			Offset:  s.off,
			Err:     io.ErrUnexpectedEOF,
		}
	}
	return &Error{Code: CodeIO, Ordinal: -1, Offset: s.off, Err: err}
}

func (s *boundedReader) varintError(err error, start int64) error {
	var ge *Error
	if errors.As(err, &ge) {
		return err
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return s.ioError(err)
	}
	return &Error{Code: CodeCodecFailure, Ordinal: -1, Offset: start, Err: err}
}
