package hdb

import (
	"io"
	"sync"

	"github.com/hdbnative/hdb/internal/protocol"
)

// LobHandle is the read-path handle for a BLOB/CLOB/NCLOB column value: a
// server locator plus however much of the LOB has been pulled so far. It
// implements io.Reader, fetching further chunks from the server on demand
// as the caller drains what's buffered. For character LOBs the CESU-8 wire
// bytes are translated to UTF-8 by a transform.Reader sitting in front of
// the chunk source, so a chunk boundary cutting a multi-byte character (or
// a surrogate pair) in half is handled by the transform package rather
// than by hand.
type LobHandle struct {
	mu sync.Mutex

	session   *Session
	locatorID uint64
	isCharLob bool

	totalLength int64
	accLength   int64
	complete    bool

	raw    []byte    // wire bytes (CESU-8 or binary) not yet consumed by reader
	reader io.Reader // built lazily: transform-wrapped for char LOBs, raw pass-through otherwise
}

// Len returns the LOB's total declared byte length on the wire (CESU-8
// length for character LOBs, raw length for binary).
func (h *LobHandle) Len() int64 { return h.totalLength }

// feedRaw folds one freshly arrived chunk of wire bytes into h, making them
// available to the chunk source that backs h.reader.
func (h *LobHandle) feedRaw(chunk []byte, last bool) {
	h.accLength += int64(len(chunk))
	h.raw = append(h.raw, chunk...)
	if last {
		h.complete = true
	}
}

// lobChunkSource is the raw io.Reader a LobHandle's decode reader pulls
// from: it drains buffered wire bytes and, once exhausted, issues a
// ReadLob round-trip for more.
type lobChunkSource struct{ h *LobHandle }

func (s *lobChunkSource) Read(p []byte) (int, error) {
	h := s.h
	for len(h.raw) == 0 {
		if h.complete {
			return 0, io.EOF
		}
		if h.session == nil {
			return 0, &LobStreamingError{Msg: "LOB handle has no owning session to fetch further chunks"}
		}
		if err := h.fetchNextChunk(); err != nil {
			return 0, err
		}
	}
	n := copy(p, h.raw)
	h.raw = h.raw[n:]
	return n, nil
}

// Read implements io.Reader, pulling additional chunks from the server as
// needed via ReadLob.
func (h *LobHandle) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.reader == nil {
		src := &lobChunkSource{h: h}
		if h.isCharLob {
			h.reader = protocol.NewDecodeReader(src)
		} else {
			h.reader = src
		}
	}
	return h.reader.Read(p)
}

func (h *LobHandle) fetchNextChunk() error {
	readLen := h.session.lobReadLength
	req := &protocol.ReadLobRequest{LocatorID: h.locatorID, Offset: h.accLength + 1, Length: int32(readLen)}
	var reply protocol.ReadLobReply
	_, _, err := h.session.roundTrip(&protocol.Request{MessageType: protocol.MtReadLob, Parts: []protocol.PartEncoder{req}},
		func(dec *protocol.Decoder, ph *protocol.PartHeader, numArg int) {
			if ph.Kind == protocol.PkReadLobReply {
				reply.DecodeBufLen(dec, ph)
			}
		})
	if err != nil {
		return err
	}
	if reply.LocatorID != h.locatorID {
		return &LobStreamingError{Msg: "server returned a chunk for a different LOB locator"}
	}
	h.feedRaw(reply.Data, reply.Options.IsLast())
	h.session.Metrics.LobChunks.Inc()
	return nil
}

// LobWriter is the write-path handle for streaming a BLOB/CLOB/NCLOB
// parameter value: PreparedStatement.ExecuteRow opens one per LOBSTREAM
// value once the server has handed back a locator id. For character LOBs,
// UTF-8 text written to it passes through a transform.Writer that encodes
// to CESU-8 before it ever reaches the wire-chunking logic below, so an
// incomplete trailing UTF-8 sequence from one Write is held by the
// transform package rather than by hand.
type LobWriter struct {
	session   *Session
	locatorID uint64
	isCharLob bool

	enc io.WriteCloser // lazily built CESU-8 encoding writer, char LOBs only

	pending    []byte // CESU-8 (or, for binary LOBs, raw) bytes awaiting a flush
	flushedAny bool
	closed     bool
}

func newLobWriter(s *Session, locatorID uint64, isCharLob bool) *LobWriter {
	return &LobWriter{session: s, locatorID: locatorID, isCharLob: isCharLob}
}

// lobChunkSink receives the CESU-8 bytes a LobWriter's encoding writer
// produces and feeds them into the pending-chunk buffer.
type lobChunkSink struct{ w *LobWriter }

func (s *lobChunkSink) Write(p []byte) (int, error) {
	s.w.pending = append(s.w.pending, p...)
	return len(p), s.w.flush(false)
}

// Write buffers p and flushes whole chunks of at most lob-write-length
// bytes as they accumulate.
func (w *LobWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, &UsageError{Msg: "write to a closed LobWriter"}
	}
	if !w.isCharLob {
		w.pending = append(w.pending, p...)
		return len(p), w.flush(false)
	}
	if w.enc == nil {
		w.enc = protocol.NewEncodeWriter(&lobChunkSink{w: w})
	}
	return w.enc.Write(p)
}

func (w *LobWriter) flush(last bool) error {
	writeLen := w.session.lobWriteLength
	for len(w.pending) >= writeLen || (last && len(w.pending) > 0) {
		chunk := w.pending
		isLast := last
		if !last && len(chunk) >= writeLen {
			cut := writeLen
			if w.isCharLob {
				if safe, _ := protocol.SplitOffTail(chunk[:writeLen]); safe > 0 {
					cut = safe
				}
			}
			chunk = w.pending[:cut]
			isLast = false
		}
		if err := w.sendChunk(chunk, isLast); err != nil {
			return err
		}
		w.pending = w.pending[len(chunk):]
		if last && len(w.pending) == 0 {
			break
		}
	}
	if last && len(w.pending) == 0 && !w.flushedAny {
		return w.sendChunk(nil, true)
	}
	return nil
}

func (w *LobWriter) sendChunk(data []byte, last bool) error {
	var opts protocol.LobOptions
	if last {
		opts |= protocol.LoLastData
	}
	if data != nil {
		opts |= protocol.LoDataIncluded
	}
	req := &protocol.WriteLobRequest{LocatorID: w.locatorID, Options: opts, Data: data}
	_, _, err := w.session.roundTrip(&protocol.Request{MessageType: protocol.MtWriteLob, Parts: []protocol.PartEncoder{req}},
		func(*protocol.Decoder, *protocol.PartHeader, int) {})
	if err != nil {
		return err
	}
	w.flushedAny = true
	w.session.Metrics.LobChunks.Inc()
	return nil
}

// Close flushes any remaining buffered bytes with the last-data flag set.
func (w *LobWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.enc != nil {
		if err := w.enc.Close(); err != nil {
			return err
		}
	}
	return w.flush(true)
}
