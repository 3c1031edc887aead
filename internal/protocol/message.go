package protocol

import (
	"bufio"
	"fmt"
)

// SegmentKind identifies whether a segment carries a client request, a
// normal server reply, or an error reply.
type SegmentKind int8

const (
	SkRequest SegmentKind = 1
	SkReply   SegmentKind = 2
	SkError   SegmentKind = 5
)

// MessageType identifies the request kind carried by a request segment.
type MessageType int8

const (
	MtNil             MessageType = 0
	MtExecuteDirect   MessageType = 2
	MtPrepare         MessageType = 3
	MtXAStart         MessageType = 5
	MtXAJoin          MessageType = 6
	MtExecute         MessageType = 13
	MtWriteLob        MessageType = 16
	MtReadLob         MessageType = 17
	MtAuthenticate    MessageType = 65
	MtConnect         MessageType = 66
	MtCommit          MessageType = 67
	MtRollback        MessageType = 68
	MtCloseResultset  MessageType = 69
	MtDropStatementID MessageType = 70
	MtFetchNext       MessageType = 71
	MtDisconnect      MessageType = 77
	MtDBConnectInfo   MessageType = 82
	MtXAPrepare       MessageType = 85
	MtXACommit        MessageType = 86
	MtXARollback      MessageType = 87
	MtXARecover       MessageType = 88
)

// FunctionCode classifies a reply's effect, distinguishing DDL (no
// meaningful affected-row count) from DML/select.
type FunctionCode int16

const (
	FcNil    FunctionCode = 0
	FcDDL    FunctionCode = 1
	FcInsert FunctionCode = 2
	FcUpdate FunctionCode = 3
	FcDelete FunctionCode = 4
	FcSelect FunctionCode = 5
	FcCommit FunctionCode = 15
	FcRollback FunctionCode = 16
)

const (
	messageHeaderSize = 32
	segmentHeaderSize = 24
)

// MessageHeader is the 32-byte header common to every message.
type MessageHeader struct {
	SessionID     int64
	PacketSeq     int32
	VarPartLength uint32
	VarPartSize   uint32
	NoOfSegs      int16
}

func (mh *MessageHeader) encode(enc *Encoder) {
	enc.Int64(mh.SessionID)
	enc.Int32(mh.PacketSeq)
	enc.Uint32(mh.VarPartLength)
	enc.Uint32(mh.VarPartSize)
	enc.Int16(1) // exactly one segment per message
	enc.Int16(0) // reserved
	enc.Zeroes(10 - 2)
}

func decodeMessageHeader(dec *Decoder) (*MessageHeader, error) {
	mh := &MessageHeader{}
	mh.SessionID = dec.Int64()
	mh.PacketSeq = dec.Int32()
	mh.VarPartLength = dec.Uint32()
	mh.VarPartSize = dec.Uint32()
	mh.NoOfSegs = dec.Int16()
	dec.Skip(2) // reserved padding pair
	dec.Skip(10 - 2)
	if err := dec.Error(); err != nil {
		return nil, err
	}
	if mh.NoOfSegs != 1 {
		return nil, fmt.Errorf("protocol: expected exactly one segment, got %d", mh.NoOfSegs)
	}
	return mh, nil
}

// SegmentHeader is the 24-byte header preceding a segment's parts.
type SegmentHeader struct {
	SegLength      int32
	SegOffset      int32
	NoOfParts      int16
	SegKind        SegmentKind
	MessageType    MessageType  // request only
	CommitFlag     bool         // request only
	ReplyType      FunctionCode // reply only
}

func (sh *SegmentHeader) encodeRequest(enc *Encoder) {
	enc.Int32(sh.SegLength)
	enc.Int32(sh.SegOffset)
	enc.Int16(sh.NoOfParts)
	enc.Int16(1) // segment number, always 1
	enc.Int8(int8(SkRequest))
	enc.Int8(int8(sh.MessageType))
	enc.Int8(boolByte(sh.CommitFlag))
	enc.Int8(0) // command options
	enc.Zeroes(8)
}

func boolByte(b bool) int8 {
	if b {
		return 1
	}
	return 0
}

func decodeSegmentHeader(dec *Decoder) (*SegmentHeader, error) {
	sh := &SegmentHeader{}
	sh.SegLength = dec.Int32()
	sh.SegOffset = dec.Int32()
	sh.NoOfParts = dec.Int16()
	dec.Skip(2) // segment number
	sh.SegKind = SegmentKind(dec.Int8())
	switch sh.SegKind {
	case SkReply:
		dec.Skip(1) // reserved
		sh.ReplyType = FunctionCode(dec.Int16())
		dec.Skip(8)
	case SkError:
		dec.Skip(11)
	case SkRequest:
		return nil, fmt.Errorf("protocol: reply segment has request kind")
	default:
		return nil, fmt.Errorf("protocol: unknown segment kind %d", sh.SegKind)
	}
	return sh, dec.Error()
}

// Request is a fully assembled outbound message: one segment, N writable
// parts.
type Request struct {
	MessageType MessageType
	Commit      bool
	Parts       []PartEncoder
}

// WriteRequest serializes req as a complete message (header + segment
// header + parts, each padded to an 8-byte boundary) to wr.
func WriteRequest(wr *bufio.Writer, sessionID int64, packetSeq int32, req *Request) error {
	enc := NewEncoder(wr)

	partSizes := make([]int, len(req.Parts))
	varPartLength := 0
	for i, p := range req.Parts {
		size := p.Size()
		partSizes[i] = size
		total := partHeaderSize + size
		pad := PadLen(size)
		if i == len(req.Parts)-1 {
			total += pad // trailing padding always emitted on the final part
		} else {
			total += pad
		}
		varPartLength += total
	}

	mh := &MessageHeader{
		SessionID:     sessionID,
		PacketSeq:     packetSeq,
		VarPartLength: uint32(varPartLength),
		VarPartSize:   uint32(varPartLength),
		NoOfSegs:      1,
	}
	mh.encode(enc)

	sh := &SegmentHeader{
		SegLength:   int32(segmentHeaderSize + varPartLength),
		SegOffset:   0,
		NoOfParts:   int16(len(req.Parts)),
		MessageType: req.MessageType,
		CommitFlag:  req.Commit,
	}
	sh.encodeRequest(enc)

	for i, p := range req.Parts {
		ph := &PartHeader{Kind: p.Kind()}
		ph.encode(enc, p.NumArg(), partSizes[i], partSizes[i])
		if err := p.Encode(enc); err != nil {
			return err
		}
		enc.Zeroes(PadLen(partSizes[i]))
	}

	if err := enc.Error(); err != nil {
		return err
	}
	return wr.Flush()
}

// RequestHeader is a parsed inbound request's header, symmetric to Reply.
// The real driver never reads requests (it only ever sends them); this
// exists for test harnesses playing the server side of the protocol over
// an in-memory net.Pipe.
type RequestHeader struct {
	SessionID   int64
	PacketSeq   int32
	MessageType MessageType
	Commit      bool
}

func decodeRequestSegmentHeader(dec *Decoder) (*SegmentHeader, error) {
	sh := &SegmentHeader{}
	sh.SegLength = dec.Int32()
	sh.SegOffset = dec.Int32()
	sh.NoOfParts = dec.Int16()
	dec.Skip(2) // segment number
	kind := SegmentKind(dec.Int8())
	if kind != SkRequest {
		return nil, fmt.Errorf("protocol: expected request segment, got kind %d", kind)
	}
	sh.SegKind = kind
	sh.MessageType = MessageType(dec.Int8())
	sh.CommitFlag = dec.Int8() != 0
	dec.Skip(1) // command options
	dec.Skip(8)
	return sh, dec.Error()
}

// ReadRequest parses one complete request message from rd, dispatching each
// part to partFn exactly like ReadReply does for replies.
func ReadRequest(rd *bufio.Reader, partFn func(dec *Decoder, ph *PartHeader)) (*RequestHeader, error) {
	dec := NewDecoder(rd)

	mh, err := decodeMessageHeader(dec)
	if err != nil {
		return nil, err
	}
	sh, err := decodeRequestSegmentHeader(dec)
	if err != nil {
		return nil, err
	}

	for i := 0; i < int(sh.NoOfParts); i++ {
		ph := decodePartHeader(dec)
		if err := dec.Error(); err != nil {
			return nil, err
		}
		dec.ResetCnt()
		partFn(dec, ph)
		consumed := dec.Cnt()
		if err := dec.Error(); err != nil {
			return nil, err
		}
		if consumed < int(ph.BufferLength) {
			dec.Skip(int(ph.BufferLength) - consumed)
		}
		dec.Skip(PadLen(int(ph.BufferLength)))
	}
	if err := dec.Error(); err != nil {
		return nil, err
	}
	return &RequestHeader{SessionID: mh.SessionID, PacketSeq: mh.PacketSeq, MessageType: sh.MessageType, Commit: sh.CommitFlag}, nil
}

// WriteReply serializes a reply message: header, a reply- or error-kind
// segment header, and parts — the server-side symmetric counterpart of
// WriteRequest, used by fake-responder test harnesses.
func WriteReply(wr *bufio.Writer, sessionID int64, packetSeq int32, functionCode FunctionCode, isError bool, parts []PartEncoder) error {
	enc := NewEncoder(wr)

	partSizes := make([]int, len(parts))
	varPartLength := 0
	for i, p := range parts {
		size := p.Size()
		partSizes[i] = size
		varPartLength += partHeaderSize + size + PadLen(size)
	}

	mh := &MessageHeader{
		SessionID:     sessionID,
		PacketSeq:     packetSeq,
		VarPartLength: uint32(varPartLength),
		VarPartSize:   uint32(varPartLength),
		NoOfSegs:      1,
	}
	mh.encode(enc)

	kind := SkReply
	if isError {
		kind = SkError
	}
	enc.Int32(int32(segmentHeaderSize + varPartLength))
	enc.Int32(0)
	enc.Int16(int16(len(parts)))
	enc.Int16(1) // segment number
	enc.Int8(int8(kind))
	enc.Int8(1) // reserved
	enc.Int16(int16(functionCode))
	enc.Zeroes(8)

	for i, p := range parts {
		ph := &PartHeader{Kind: p.Kind()}
		ph.encode(enc, p.NumArg(), partSizes[i], partSizes[i])
		if err := p.Encode(enc); err != nil {
			return err
		}
		enc.Zeroes(PadLen(partSizes[i]))
	}

	if err := enc.Error(); err != nil {
		return err
	}
	return wr.Flush()
}

// Reply is a parsed inbound message.
type Reply struct {
	SessionID   int64
	FunctionCode FunctionCode
	IsError     bool
	Parts       []*rawPart
}

// rawPart holds an undecoded part's header plus a cursor into the shared
// decoder; callers decode the parts they expect and skip the rest.
type rawPart struct {
	Header *PartHeader
}

// ReadReply parses one complete message from rd. The caller supplies partFn
// which is invoked once per part header; partFn is responsible for calling
// back into dec to consume exactly ph.BufferLength (possibly fewer, the
// framer makes up the difference) bytes of payload before returning.
func ReadReply(rd *bufio.Reader, partFn func(dec *Decoder, ph *PartHeader)) (*Reply, error) {
	dec := NewDecoder(rd)

	mh, err := decodeMessageHeader(dec)
	if err != nil {
		return nil, err
	}
	sh, err := decodeSegmentHeader(dec)
	if err != nil {
		return nil, err
	}

	reply := &Reply{SessionID: mh.SessionID, FunctionCode: sh.ReplyType, IsError: sh.SegKind == SkError}

	readBytes := 0
	for i := 0; i < int(sh.NoOfParts); i++ {
		ph := decodePartHeader(dec)
		if err := dec.Error(); err != nil {
			return nil, err
		}
		readBytes += partHeaderSize

		dec.ResetCnt()
		partFn(dec, ph)
		consumed := dec.Cnt()
		if err := dec.Error(); err != nil {
			return nil, err
		}
		if consumed < int(ph.BufferLength) {
			dec.Skip(int(ph.BufferLength) - consumed)
		}
		readBytes += int(ph.BufferLength)

		// trailing-space policy: always consume padding, for every part
		// including the last one of the segment (§4.3/§9: "soft consume"
		// variants collapse into unconditional consume).
		pad := PadLen(int(ph.BufferLength))
		dec.Skip(pad)
		readBytes += pad

		reply.Parts = append(reply.Parts, &rawPart{Header: ph})
	}

	if err := dec.Error(); err != nil {
		return nil, err
	}
	if uint32(readBytes) != mh.VarPartLength {
		// server-reported length and what we actually consumed disagree;
		// resync by consuming (or erroring on) the remainder.
		if uint32(readBytes) < mh.VarPartLength {
			dec.Skip(int(mh.VarPartLength) - readBytes)
		} else {
			return nil, fmt.Errorf("protocol: reply parts span %d bytes, header declares %d", readBytes, mh.VarPartLength)
		}
	}
	return reply, dec.Error()
}
