package protocol

import "fmt"

// LobOptions is the option byte shared by ReadLobRequest/Reply and
// WriteLobRequest/Reply.
type LobOptions int8

const (
	loNullIndicator LobOptions = 0x01
	loDataIncluded  LobOptions = 0x02
	loLastData      LobOptions = 0x04

	// LoDataIncluded and LoLastData are exported so callers building a
	// WriteLobRequest's Options can compose them without reaching into
	// package internals.
	LoDataIncluded = loDataIncluded
	LoLastData     = loLastData
)

func (o LobOptions) IsNull() bool { return o&loNullIndicator != 0 }
func (o LobOptions) IsLast() bool { return o&loLastData != 0 }

// ReadLobRequest asks the server for the next chunk of a LOB by locator id.
type ReadLobRequest struct {
	LocatorID uint64
	Offset    int64 // 1-based, per the wire convention
	Length    int32
}

func (*ReadLobRequest) Kind() PartKind { return PkReadLobRequest }
func (r *ReadLobRequest) String() string {
	return fmt.Sprintf("read lob request locator=%d offset=%d length=%d", r.LocatorID, r.Offset, r.Length)
}
func (*ReadLobRequest) NumArg() int { return 1 }
func (*ReadLobRequest) Size() int   { return 8 + 8 + 4 }
func (r *ReadLobRequest) Encode(enc *Encoder) error {
	enc.Uint64(r.LocatorID)
	enc.Int64(r.Offset)
	enc.Int32(r.Length)
	return enc.Error()
}

// ReadLobReply carries one chunk of LOB data plus the flags signalling
// whether the locator is now exhausted.
type ReadLobReply struct {
	LocatorID uint64
	Options   LobOptions
	Data      []byte
}

func (*ReadLobReply) Kind() PartKind { return PkReadLobReply }
func (r *ReadLobReply) String() string {
	return fmt.Sprintf("read lob reply locator=%d bytes=%d last=%t", r.LocatorID, len(r.Data), r.Options.IsLast())
}
func (r *ReadLobReply) DecodeBufLen(dec *Decoder, ph *PartHeader) error {
	r.LocatorID = dec.Uint64()
	r.Options = LobOptions(dec.Int8())
	chunkLen := int(ph.BufferLength) - 8 - 1
	if chunkLen > 0 {
		r.Data = make([]byte, chunkLen)
		dec.Bytes(r.Data)
	}
	return dec.Error()
}

// WriteLobRequest pushes one chunk of outbound LOB data by locator id.
type WriteLobRequest struct {
	LocatorID uint64
	Options   LobOptions
	Data      []byte
}

func (*WriteLobRequest) Kind() PartKind { return PkWriteLobRequest }
func (r *WriteLobRequest) String() string {
	return fmt.Sprintf("write lob request locator=%d bytes=%d last=%t", r.LocatorID, len(r.Data), r.Options.IsLast())
}
func (*WriteLobRequest) NumArg() int { return 1 }
func (r *WriteLobRequest) Size() int { return 8 + 1 + len(r.Data) }
func (r *WriteLobRequest) Encode(enc *Encoder) error {
	enc.Uint64(r.LocatorID)
	enc.Int8(int8(r.Options))
	enc.Bytes(r.Data)
	return enc.Error()
}

// WriteLobReply lists the locator ids the server still expects further
// chunks for (an empty list means the write stream for that locator is
// done).
type WriteLobReply struct {
	LocatorIDs []uint64
}

func (*WriteLobReply) Kind() PartKind { return PkWriteLobReply }
func (r *WriteLobReply) String() string {
	return fmt.Sprintf("write lob reply (%d locators)", len(r.LocatorIDs))
}
func (r *WriteLobReply) DecodeNumArg(dec *Decoder, ph *PartHeader, numArg int) error {
	r.LocatorIDs = make([]uint64, numArg)
	for i := range r.LocatorIDs {
		r.LocatorIDs[i] = dec.Uint64()
	}
	return dec.Error()
}
