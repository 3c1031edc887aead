package hdb

import (
	"fmt"

	"github.com/hdbnative/hdb/internal/protocol"
)

// maxXAIDPartLength is the wire limit on each of a Xid's two opaque
// identifiers, per the X/Open XA specification.
const maxXAIDPartLength = 64

// Xid is a distributed-transaction identifier as defined by the X/Open XA
// specification. Only its wire encoding is implemented here: no
// distributed-transaction coordinator internals (recovery scanning,
// two-phase commit orchestration) are in scope.
type Xid struct {
	FormatID            int32
	GlobalTransactionID []byte
	BranchQualifier     []byte
}

// Validate checks the id-length limits the wire format imposes.
func (x Xid) Validate() error {
	if len(x.GlobalTransactionID) == 0 || len(x.GlobalTransactionID) > maxXAIDPartLength {
		return &UsageError{Msg: fmt.Sprintf("XA global transaction id must be 1-%d bytes", maxXAIDPartLength)}
	}
	if len(x.BranchQualifier) > maxXAIDPartLength {
		return &UsageError{Msg: fmt.Sprintf("XA branch qualifier must be at most %d bytes", maxXAIDPartLength)}
	}
	return nil
}

// xaTransactionInfo is the Xid part shared by every XA request type.
type xaTransactionInfo struct{ Xid }

func (*xaTransactionInfo) Kind() protocol.PartKind { return protocol.PkXATransactionInfo }
func (x *xaTransactionInfo) String() string {
	return fmt.Sprintf("xa transaction info format=%d gtrid=%d bytes bqual=%d bytes", x.FormatID, len(x.GlobalTransactionID), len(x.BranchQualifier))
}
func (*xaTransactionInfo) NumArg() int { return 1 }
func (x *xaTransactionInfo) Size() int {
	return 4 + 1 + 1 + len(x.GlobalTransactionID) + len(x.BranchQualifier)
}
func (x *xaTransactionInfo) Encode(enc *protocol.Encoder) error {
	enc.Int32(x.FormatID)
	enc.Byte(byte(len(x.GlobalTransactionID)))
	enc.Byte(byte(len(x.BranchQualifier)))
	enc.Bytes(x.GlobalTransactionID)
	enc.Bytes(x.BranchQualifier)
	return enc.Error()
}

func (s *Session) xaRoundTrip(mt protocol.MessageType, xid Xid) error {
	if err := xid.Validate(); err != nil {
		return err
	}
	_, _, err := s.roundTrip(&protocol.Request{
		MessageType: mt,
		Parts:       []protocol.PartEncoder{&xaTransactionInfo{xid}},
	}, func(*protocol.Decoder, *protocol.PartHeader, int) {})
	return err
}

// XAStart begins a distributed transaction branch identified by xid.
func (s *Session) XAStart(xid Xid) error { return s.xaRoundTrip(protocol.MtXAStart, xid) }

// XAPrepare votes to commit the branch identified by xid.
func (s *Session) XAPrepare(xid Xid) error { return s.xaRoundTrip(protocol.MtXAPrepare, xid) }

// XACommit commits the branch identified by xid.
func (s *Session) XACommit(xid Xid) error { return s.xaRoundTrip(protocol.MtXACommit, xid) }

// XARollback rolls back the branch identified by xid.
func (s *Session) XARollback(xid Xid) error { return s.xaRoundTrip(protocol.MtXARollback, xid) }

// XARecover asks the server about the in-doubt state of the branch
// identified by xid, as part of XA recovery after a coordinator restart.
func (s *Session) XARecover(xid Xid) error { return s.xaRoundTrip(protocol.MtXARecover, xid) }
