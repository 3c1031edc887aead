package protocol

import "fmt"

// PartKind identifies the payload carried by a Part. The set is a closed
// tagged union: parts of a kind the reading caller does not handle are
// skipped without being logged (forward compatibility), and kinds without
// a PartEncoder can never be emitted.
type PartKind int8

const (
	PkCommand             PartKind = 3
	PkResultset           PartKind = 5
	PkError               PartKind = 6
	PkStatementID         PartKind = 10
	PkTransactionFlags    PartKind = 11
	PkRowsAffected        PartKind = 12
	PkResultsetID         PartKind = 13
	PkTopologyInformation PartKind = 15
	PkTableLocation       PartKind = 16
	PkReadLobRequest      PartKind = 17
	PkReadLobReply        PartKind = 18
	PkClientContext       PartKind = 25
	PkCommandInfo         PartKind = 27
	PkClientID            PartKind = 35
	PkWriteLobRequest     PartKind = 37
	PkClientInfo          PartKind = 38
	PkWriteLobReply       PartKind = 39
	PkParameters          PartKind = 32
	PkAuthentication      PartKind = 33
	PkSessionContext      PartKind = 34
	PkStatementContext    PartKind = 9
	PkParameterMetadata   PartKind = 47
	PkResultMetadata      PartKind = 48
	PkFetchSize           PartKind = 49
	PkFindLobRequest      PartKind = 56
	PkFindLobReply        PartKind = 57
	PkOutputParameters    PartKind = 59
	PkConnectOptions      PartKind = 42
	PkDBConnectInfo       PartKind = 82
	PkXATransactionInfo   PartKind = 83
)

func (pk PartKind) String() string {
	switch pk {
	case PkCommand:
		return "Command"
	case PkResultset:
		return "ResultSet"
	case PkError:
		return "Error"
	case PkStatementID:
		return "StatementID"
	case PkTransactionFlags:
		return "TransactionFlags"
	case PkRowsAffected:
		return "RowsAffected"
	case PkResultsetID:
		return "ResultsetID"
	case PkTopologyInformation:
		return "TopologyInformation"
	case PkReadLobRequest:
		return "ReadLobRequest"
	case PkReadLobReply:
		return "ReadLobReply"
	case PkClientContext:
		return "ClientContext"
	case PkClientID:
		return "ClientID"
	case PkWriteLobRequest:
		return "WriteLobRequest"
	case PkClientInfo:
		return "ClientInfo"
	case PkWriteLobReply:
		return "WriteLobReply"
	case PkParameters:
		return "Parameters"
	case PkAuthentication:
		return "Authentication"
	case PkParameterMetadata:
		return "ParameterMetadata"
	case PkResultMetadata:
		return "ResultMetadata"
	case PkFetchSize:
		return "FetchSize"
	case PkOutputParameters:
		return "OutputParameters"
	case PkConnectOptions:
		return "ConnectOptions"
	case PkDBConnectInfo:
		return "DBConnectInfo"
	default:
		return fmt.Sprintf("PartKind(%d)", int8(pk))
	}
}

// PartAttributes is the single attribute byte of a part header: a bitmask
// of server-reported flags (last packet, result set closed, and so on).
type PartAttributes int8

const (
	paLastPacket           PartAttributes = 0x01
	paNoMoreRows           PartAttributes = 0x08 // fetch exhausted, last block
	paResultsetClosed      PartAttributes = 0x10 // server already closed the cursor
	paRowNotFound          PartAttributes = 0x20
	paUncommited           PartAttributes = 0x02
)

// LastPacket reports whether this is the final part of the last segment.
func (a PartAttributes) LastPacket() bool { return a&paLastPacket != 0 }

// LastBlock reports whether the fetch loop has exhausted the cursor.
func (a PartAttributes) LastBlock() bool { return a&paNoMoreRows != 0 }

// ResultsetClosed reports whether the server has already closed the result
// set; if set the client must not send CloseResultSet.
func (a PartAttributes) ResultsetClosed() bool { return a&paResultsetClosed != 0 }

// PartHeader is the 16-byte fixed header preceding every part payload.
type PartHeader struct {
	Kind         PartKind
	Attrs        PartAttributes
	argCount     int16
	argCountBig  int32
	BufferLength int32
	BufferSize   int32
}

const partHeaderSize = 16

// NumArg returns the argument count of the part, resolving the large-count
// escape (argCount < 0 means the real count is in the 4-byte field).
func (ph *PartHeader) NumArg() int {
	if ph.argCount < 0 {
		return int(ph.argCountBig)
	}
	return int(ph.argCount)
}

func setNumArg(ph *PartHeader, n int) {
	if n > 0x7FFF {
		ph.argCount = -1
		ph.argCountBig = int32(n)
	} else {
		ph.argCount = int16(n)
		ph.argCountBig = 0
	}
}

func decodePartHeader(dec *Decoder) *PartHeader {
	ph := &PartHeader{}
	ph.Kind = PartKind(dec.Int8())
	ph.Attrs = PartAttributes(dec.Int8())
	ph.argCount = dec.Int16()
	ph.argCountBig = dec.Int32()
	ph.BufferLength = dec.Int32()
	ph.BufferSize = dec.Int32()
	return ph
}

func (ph *PartHeader) encode(enc *Encoder, numArg, bufferLength, bufferSize int) {
	setNumArg(ph, numArg)
	enc.Int8(int8(ph.Kind))
	enc.Int8(0) // attributes are server-to-client only
	enc.Int16(ph.argCount)
	enc.Int32(ph.argCountBig)
	enc.Int32(int32(bufferLength))
	enc.Int32(int32(bufferSize))
}

// Part is implemented by every payload type the driver can read from or
// write to a Part. Parsing and emitting are deliberately asymmetric: a
// server-only reply part need not implement Writer, and vice versa.
type Part interface {
	fmt.Stringer
	Kind() PartKind
}

// PartDecoder is implemented by parts whose payload is read via the part
// header's argument count.
type PartDecoder interface {
	Part
	DecodeNumArg(dec *Decoder, ph *PartHeader, numArg int) error
}

// PartBufDecoder is implemented by parts that decode based on raw buffer
// length rather than an argument count (fixed single-value parts).
type PartBufDecoder interface {
	Part
	DecodeBufLen(dec *Decoder, ph *PartHeader) error
}

// PartEncoder is implemented by every part the driver can send.
type PartEncoder interface {
	Part
	NumArg() int
	Size() int
	Encode(enc *Encoder) error
}

// registry names a subset of the PartKind constants above (StatementContext,
// TableLocation, CommandInfo, SessionContext, the FindLob kinds and
// XATransactionInfo are not in it). Known reports membership; no read path
// calls it. Decoding always dispatches via the caller's own expected-part
// switch (see Session.roundTrip), matching the "parts that cannot be used
// generically" comment in go-hdb's parts.go.
var registry = map[PartKind]string{
	PkCommand:             "Command",
	PkResultset:           "ResultSet",
	PkError:               "Error",
	PkStatementID:         "StatementID",
	PkTransactionFlags:    "TransactionFlags",
	PkRowsAffected:        "RowsAffected",
	PkResultsetID:         "ResultsetID",
	PkTopologyInformation: "TopologyInformation",
	PkReadLobRequest:      "ReadLobRequest",
	PkReadLobReply:        "ReadLobReply",
	PkClientContext:       "ClientContext",
	PkClientID:            "ClientID",
	PkWriteLobRequest:     "WriteLobRequest",
	PkClientInfo:          "ClientInfo",
	PkWriteLobReply:       "WriteLobReply",
	PkParameters:          "Parameters",
	PkAuthentication:      "Authentication",
	PkParameterMetadata:   "ParameterMetadata",
	PkResultMetadata:      "ResultMetadata",
	PkFetchSize:           "FetchSize",
	PkOutputParameters:    "OutputParameters",
	PkConnectOptions:      "ConnectOptions",
	PkDBConnectInfo:       "DBConnectInfo",
}

// Known reports whether kind is a member of the closed tagged union.
func Known(kind PartKind) bool {
	_, ok := registry[kind]
	return ok
}
