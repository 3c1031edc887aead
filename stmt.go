package hdb

import (
	"fmt"
	"io"

	"github.com/hdbnative/hdb/internal/protocol"
)

// PreparedStatement owns a server-side statement id for its whole
// lifetime: Prepare allocates it, every Execute/ExecuteBatch references it,
// and Close releases it with a DropStatementID request. A PreparedStatement is not safe
// for concurrent use by multiple goroutines, matching Session's exclusive
// round-trip model.
type PreparedStatement struct {
	session *Session

	statementID protocol.StatementID
	paramFields []*protocol.FieldDescriptor // in/in-out fields, bind order
	resultFields []*protocol.FieldDescriptor // nil if the statement produces no result set
	functionCode protocol.FunctionCode

	batch  [][]HdbValue
	closed bool
}

// Prepare sends sql to the server and returns a PreparedStatement caching
// its parameter and (if any) result metadata.
func (s *Session) Prepare(sql string) (*PreparedStatement, error) {
	ps := &PreparedStatement{session: s}

	reply, _, err := s.roundTrip(&protocol.Request{MessageType: protocol.MtPrepare, Parts: []protocol.PartEncoder{protocol.Command(sql)}},
		func(dec *protocol.Decoder, ph *protocol.PartHeader, numArg int) {
			switch ph.Kind {
			case protocol.PkStatementID:
				var id protocol.StatementID
				id.DecodeBufLen(dec, ph)
				ps.statementID = id
			case protocol.PkParameterMetadata:
				var md protocol.ParameterMetadata
				md.DecodeNumArg(dec, ph, numArg)
				ps.paramFields = md.Fields
			case protocol.PkResultMetadata:
				var md protocol.ResultMetadata
				md.DecodeNumArg(dec, ph, numArg)
				ps.resultFields = md.Fields
			case protocol.PkTransactionFlags, protocol.PkStatementContext, protocol.PkTableLocation:
				dec.Skip(int(ph.BufferLength))
			}
		})
	if err != nil {
		return nil, err
	}
	if ps.statementID == 0 {
		return nil, &ImplError{Msg: "prepare reply carried no statement id"}
	}
	ps.functionCode = reply.FunctionCode
	return ps, nil
}

// NumParams returns the number of in/in-out bind parameters.
func (ps *PreparedStatement) NumParams() int { return len(ps.paramFields) }

// HasResultSet reports whether executing this statement produces rows.
func (ps *PreparedStatement) HasResultSet() bool { return len(ps.resultFields) > 0 }

// AddBatch appends one row of bind values to the pending batch. LOB write
// streaming is not available on the batch path (see ExecuteRow); a value
// with a non-nil LobStream is rejected here.
func (ps *PreparedStatement) AddBatch(values []HdbValue) error {
	if ps.closed {
		return &UsageError{Msg: "AddBatch on a closed statement"}
	}
	if len(values) != len(ps.paramFields) {
		return &UsageError{Msg: fmt.Sprintf("expected %d parameters, got %d", len(ps.paramFields), len(values))}
	}
	for _, v := range values {
		if v.LobStream != nil {
			return &UsageError{Msg: "batched execute does not support LOB write streaming; use ExecuteRow"}
		}
	}
	ps.batch = append(ps.batch, values)
	return nil
}

// ExecuteBatch serializes every row added via AddBatch into one Parameters
// part and runs a single Execute round-trip, returning one ExecResult per
// row in submission order.
func (ps *PreparedStatement) ExecuteBatch() ([]ExecResult, error) {
	if ps.closed {
		return nil, &UsageError{Msg: "ExecuteBatch on a closed statement"}
	}
	if len(ps.batch) == 0 {
		if len(ps.paramFields) > 0 {
			return nil, &UsageError{Msg: "batch is empty but the statement expects input parameters"}
		}
		return nil, &UsageError{Msg: "ExecuteBatch called with an empty batch"}
	}

	rows := ps.batch
	ps.batch = nil

	part := &paramsPart{fields: ps.paramFields, rows: rows}
	_, execResults, err := ps.session.roundTrip(&protocol.Request{
		MessageType: protocol.MtExecute,
		Commit:      ps.session.autoCommit,
		Parts:       []protocol.PartEncoder{protocol.StatementID(ps.statementID), part},
	}, func(dec *protocol.Decoder, ph *protocol.PartHeader, numArg int) {
		switch ph.Kind {
		case protocol.PkTransactionFlags:
			dec.Skip(int(ph.BufferLength))
		}
	})
	if err != nil {
		if ere, ok := err.(*ExecutionResultsError); ok {
			return ere.Results, err
		}
		return nil, err
	}
	return toExecResults(execResults), nil
}

// ExecuteRow executes a single row, supporting LOB write streaming: any
// value whose LobStream is set is sent as a streaming placeholder, and
// once the server hands back a locator id the reader is drained chunk by
// chunk through a LobWriter.
func (ps *PreparedStatement) ExecuteRow(values []HdbValue) (*HdbReturnValue, error) {
	if ps.closed {
		return nil, &UsageError{Msg: "ExecuteRow on a closed statement"}
	}
	if len(values) != len(ps.paramFields) {
		return nil, &UsageError{Msg: fmt.Sprintf("expected %d parameters, got %d", len(ps.paramFields), len(values))}
	}

	type pending struct {
		reader    io.Reader
		fieldIdx  int
		isCharLob bool
	}
	var streams []pending
	for i, v := range values {
		if v.LobStream != nil {
			if v.LobStreamType != KindNull && (v.LobStreamType == KindBlob) == ps.paramFields[i].TypeCode.IsCharLob() {
				return nil, &UsageError{Msg: fmt.Sprintf("LOB parameter %d: stream kind does not match the parameter's LOB type", i)}
			}
			streams = append(streams, pending{reader: v.LobStream, fieldIdx: i, isCharLob: ps.paramFields[i].TypeCode.IsCharLob()})
		}
	}

	part := &paramsPart{fields: ps.paramFields, rows: [][]HdbValue{values}}
	var writeLobReply protocol.WriteLobReply
	var resultset *protocol.Resultset
	var outParams *protocol.OutputParameters
	var resultsetID protocol.ResultsetID
	var lastBlock, closedByServer bool

	reply, execResults, err := ps.session.roundTrip(&protocol.Request{
		MessageType: protocol.MtExecute,
		Commit:      ps.session.autoCommit,
		Parts:       []protocol.PartEncoder{protocol.StatementID(ps.statementID), part},
	}, func(dec *protocol.Decoder, ph *protocol.PartHeader, numArg int) {
		switch ph.Kind {
		case protocol.PkWriteLobReply:
			writeLobReply.DecodeNumArg(dec, ph, numArg)
		case protocol.PkResultsetID:
			var id protocol.ResultsetID
			id.DecodeBufLen(dec, ph)
			resultsetID = id
		case protocol.PkResultset:
			rs := &protocol.Resultset{Fields: ps.resultFields}
			rs.DecodeRows(dec, numArg, decodeFieldValue)
			resultset = rs
			lastBlock = ph.Attrs.LastBlock()
			closedByServer = ph.Attrs.ResultsetClosed()
		case protocol.PkOutputParameters:
			op := &protocol.OutputParameters{Fields: outputFields(ps.paramFields)}
			op.DecodeValues(dec, decodeFieldValue)
			outParams = op
		case protocol.PkTransactionFlags, protocol.PkStatementContext:
			dec.Skip(int(ph.BufferLength))
		}
	})
	if err != nil {
		return nil, err
	}

	if len(streams) > 0 {
		if len(streams) != len(writeLobReply.LocatorIDs) {
			return nil, &UsageError{Msg: fmt.Sprintf("expected %d LOB locators from the server, got %d", len(streams), len(writeLobReply.LocatorIDs))}
		}
		for i, p := range streams {
			w := newLobWriter(ps.session, writeLobReply.LocatorIDs[i], p.isCharLob)
			if _, err := io.Copy(w, p.reader); err != nil {
				return nil, &LobStreamingError{Msg: fmt.Sprintf("streaming LOB parameter %d: %s", p.fieldIdx, err)}
			}
			if err := w.Close(); err != nil {
				return nil, err
			}
		}
	}

	return buildReturnValue(ps.session, reply.FunctionCode, execResults, resultset, outParams, resultsetID, lastBlock, closedByServer), nil
}

func outputFields(paramFields []*protocol.FieldDescriptor) []*protocol.FieldDescriptor {
	var out []*protocol.FieldDescriptor
	for _, fd := range paramFields {
		if fd.Mode.Out() {
			out = append(out, fd)
		}
	}
	return out
}

// Close releases the statement's server-side resources. Safe to call more
// than once.
func (ps *PreparedStatement) Close() error {
	if ps.closed {
		return nil
	}
	ps.closed = true
	_, _, err := ps.session.roundTrip(&protocol.Request{
		MessageType: protocol.MtDropStatementID,
		Parts:       []protocol.PartEncoder{protocol.StatementID(ps.statementID)},
	}, func(*protocol.Decoder, *protocol.PartHeader, int) {})
	return err
}

// paramsPart is the Parameters part's PartEncoder, handling the
// field-level CESU-8/LOB-aware encoding that protocol.Parameters itself
// deliberately leaves to its caller.
type paramsPart struct {
	fields []*protocol.FieldDescriptor
	rows   [][]HdbValue
}

func (*paramsPart) Kind() protocol.PartKind { return protocol.PkParameters }
func (p *paramsPart) String() string        { return fmt.Sprintf("parameters (%d rows)", len(p.rows)) }
func (p *paramsPart) NumArg() int           { return len(p.rows) }

func (p *paramsPart) Size() int {
	n := 0
	for _, row := range p.rows {
		for i, v := range row {
			n += sizeFieldValue(p.fields[i], v)
		}
	}
	return n
}

func (p *paramsPart) Encode(enc *protocol.Encoder) error {
	for _, row := range p.rows {
		for i, v := range row {
			if err := encodeFieldValue(enc, p.fields[i], v); err != nil {
				return &SerializationError{Err: err}
			}
		}
	}
	return enc.Error()
}
