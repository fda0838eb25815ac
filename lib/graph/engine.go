package graph

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("graph")

var (
	encodePasses     = metrics.NewCounter(`confcache_graph_passes_total{op="encode"}`)
	decodePasses     = metrics.NewCounter(`confcache_graph_passes_total{op="decode"}`)
	encodeFailures   = metrics.NewCounter(`confcache_graph_failures_total{op="encode"}`)
	decodeFailures   = metrics.NewCounter(`confcache_graph_failures_total{op="decode"}`)
	framesWritten    = metrics.NewCounter(`confcache_graph_frames_total{op="encode"}`)
	framesRead       = metrics.NewCounter(`confcache_graph_frames_total{op="decode"}`)
	problemsReported = metrics.NewCounter(`confcache_graph_problems_total`)
)

// --------------------------------------------------------------------------
// Stats
// --------------------------------------------------------------------------

// Stats describe one encode or decode pass.
type Stats struct {
	Frames         int
	Objects        int
	BackReferences int
	Nulls          int
	Problems       int
	Bytes          int64
	Duration       time.Duration
}

func (s Stats) String() string {
	return fmt.Sprintf("frames=%d objects=%d refs=%d nulls=%d problems=%d bytes=%d duration=%s",
		s.Frames, s.Objects, s.BackReferences, s.Nulls, s.Problems, s.Bytes, s.Duration)
}

// FrameInfo describes one frame read by a decoder, see Options.Trace.
type FrameInfo struct {
	Kind    FrameKind
	Tag     Tag
	Type    string
	Ordinal int64
	Offset  int64
	Length  uint32
	Depth   int
}

// --------------------------------------------------------------------------
// Encoder
// --------------------------------------------------------------------------

// Encoder writes object graphs. One Encoder may run any number of passes
// concurrently; every pass gets its own WriteContext and reference table.
type Encoder struct {
	reg  *Registry
	opts *Options
}

// NewEncoder creates an encoder. opts may be nil.
func NewEncoder(reg *Registry, opts *Options) *Encoder {
	return &Encoder{reg: reg, opts: orDefault(opts)}
}

// Encode writes root to sink. The stream is staged in memory and handed to the
// sink with a single Write once the whole pass succeeded; on failure or
// cancellation the sink is never written to.
func (e *Encoder) Encode(ctx context.Context, sink io.Writer, root any) (Stats, error) {
	buf, stats, err := e.EncodeBytes(ctx, root)
	if err != nil {
		return stats, err
	}
	if _, err := sink.Write(buf); err != nil {
		encodeFailures.Inc()
		return stats, &Error{Code: CodeIO, Ordinal: -1, Offset: -1, Err: err}
	}
	return stats, nil
}

// EncodeBytes encodes root and returns the complete stream.
func (e *Encoder) EncodeBytes(ctx context.Context, root any) ([]byte, Stats, error) {
	start := time.Now()
	encodePasses.Inc()

	w := newWriteContext(ctx, e.reg, e.opts)
	w.out.buf = appendHeader(make([]byte, 0, 4096), e.reg.Fingerprint())

	err := w.Write(root)
	if err == nil {
		err = ctx.Err()
	}
	w.stats.Duration = time.Since(start)
	framesWritten.Add(w.stats.Frames)
	if err != nil {
		w.out.reset()
		encodeFailures.Inc()
		Logger.Debugf("encode of %s failed after %d frames: %v", TypeName(root), w.stats.Frames, err)
		return nil, w.stats, err
	}

	w.stats.Bytes = w.out.offset()
	Logger.Debugf("encoded %s: %s", TypeName(root), w.stats)
	return w.out.buf, w.stats, nil
}

// --------------------------------------------------------------------------
// Decoder
// --------------------------------------------------------------------------

// Decoder reads object graphs written by an Encoder with an identical tag table.
// Passes on one Decoder may run concurrently.
type Decoder struct {
	reg  *Registry
	opts *Options
}

// NewDecoder creates a decoder. opts may be nil.
func NewDecoder(reg *Registry, opts *Options) *Decoder {
	return &Decoder{reg: reg, opts: orDefault(opts)}
}

// Decode reads one stream from src. The header is validated before any frame
// is decoded. Either the whole graph is reconstructed or nil is returned.
func (d *Decoder) Decode(ctx context.Context, src io.Reader) (any, Stats, error) {
	start := time.Now()
	decodePasses.Inc()

	in := newBoundedReader(byteReader(src))
	r := newReadContext(ctx, d.reg, d.opts, in)

	root, err := d.decode(r)
	r.stats.Duration = time.Since(start)
	r.stats.Bytes = in.offset()
	framesRead.Add(r.stats.Frames)
	if err != nil {
		decodeFailures.Inc()
		Logger.Debugf("decode failed after %d frames: %v", r.stats.Frames, err)
		return nil, r.stats, err
	}
	Logger.Debugf("decoded %s: %s", TypeName(root), r.stats)
	return root, r.stats, nil
}

// DecodeBytes decodes a complete stream held in memory.
func (d *Decoder) DecodeBytes(ctx context.Context, data []byte) (any, Stats, error) {
	return d.Decode(ctx, bytes.NewReader(data))
}

func (d *Decoder) decode(r *ReadContext) (any, error) {
	h, err := readHeader(r.in)
	if err != nil {
		return nil, err
	}
	if err := checkHeader(h, d.reg.Fingerprint()); err != nil {
		return nil, err
	}

	root, err := r.Read()
	if err != nil {
		return nil, err
	}
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}

	eof, err := r.in.atEOF()
	if err != nil {
		return nil, err
	}
	if !eof {
		return nil, &Error{Code: CodeCodecFailure, Ordinal: -1, Offset: r.in.offset(), Err: fmt.Errorf("trailing bytes after the root frame")}
	}
	return root, nil
}

// --------------------------------------------------------------------------
// Header
// --------------------------------------------------------------------------

// ReadHeader reads and returns the header of a stream without decoding any
// frame.
func ReadHeader(src io.Reader) (Header, error) {
	return readHeader(newBoundedReader(byteReader(src)))
}

func readHeader(in *boundedReader) (Header, error) {
	var h Header
	m, err := in.readFull(int64(len(magic)))
	if err != nil {
		return h, err
	}
	if string(m) != magic {
		return h, &Error{Code: CodeFormatVersionMismatch, Ordinal: -1, Offset: 0, Err: fmt.Errorf("not a graph stream (magic %q)", m)}
	}
	if h.Version, err = in.readUint16(); err != nil {
		return h, err
	}
	fp, err := in.readFull(int64(len(h.Fingerprint)))
	if err != nil {
		return h, err
	}
	copy(h.Fingerprint[:], fp)
	return h, nil
}

// --------------------------------------------------------------------------
// Inspect
// --------------------------------------------------------------------------

// Inspect decodes the stream read from src and calls fn for every frame in
// stream order. The decoded graph is discarded. opts may be nil; its Trace is
// replaced by fn.
func Inspect(ctx context.Context, reg *Registry, opts *Options, src io.Reader, fn func(FrameInfo)) (Stats, error) {
	o := *orDefault(opts)
	o.Trace = fn
	_, stats, err := NewDecoder(reg, &o).Decode(ctx, src)
	return stats, err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func byteReader(src io.Reader) interface {
	io.Reader
	io.ByteReader
} {
	if br, ok := src.(interface {
		io.Reader
		io.ByteReader
	}); ok {
		return br
	}
	return bufio.NewReader(src)
}
