package hdb

import (
	"io"

	"github.com/hdbnative/hdb/internal/protocol"
)

// ResultSet is a lazily-fetched stream of rows from a Select. Rows already
// delivered by the server are buffered; NextRow pulls further chunks with
// a Fetch round-trip only once the buffer is drained.
type ResultSet struct {
	session *Session

	resultsetID protocol.ResultsetID
	fields      []*protocol.FieldDescriptor

	rows    []protocol.Row
	pos     int
	lastBlock bool
	closed  bool
	closedByServer bool
}

func newResultSet(s *Session, resultsetID protocol.ResultsetID, fields []*protocol.FieldDescriptor, rs *protocol.Resultset, lastBlock, closedByServer bool) *ResultSet {
	set := &ResultSet{
		session:        s,
		resultsetID:    resultsetID,
		fields:         fields,
		lastBlock:      lastBlock,
		closedByServer: closedByServer,
	}
	if rs != nil {
		set.rows = rs.Rows
	}
	attachLobSessions(s, fields, set.rows)
	return set
}

func attachLobSessions(s *Session, fields []*protocol.FieldDescriptor, rows []protocol.Row) {
	for _, row := range rows {
		for i, fd := range fields {
			if !fd.TypeCode.IsLob() {
				continue
			}
			if v, ok := row[i].(HdbValue); ok && v.Lob != nil {
				v.Lob.session = s
			}
		}
	}
}

// Fields returns the result set's column descriptors.
func (rs *ResultSet) Fields() []*protocol.FieldDescriptor { return rs.fields }

// NextRow returns the next row, fetching more from the server as needed.
// It returns (nil, nil) at end of stream.
func (rs *ResultSet) NextRow() (protocol.Row, error) {
	if rs.pos < len(rs.rows) {
		row := rs.rows[rs.pos]
		rs.pos++
		return row, nil
	}
	if rs.lastBlock {
		return nil, rs.Close()
	}
	if err := rs.fetchNext(); err != nil {
		return nil, err
	}
	return rs.NextRow()
}

func (rs *ResultSet) fetchNext() error {
	fetchSize := rs.session.fetchSize
	var fresh protocol.Resultset
	fresh.Fields = rs.fields
	lastBlock := false
	closedByServer := false

	_, _, err := rs.session.roundTrip(&protocol.Request{
		MessageType: protocol.MtFetchNext,
		Parts: []protocol.PartEncoder{
			protocol.ResultsetID(rs.resultsetID),
			protocol.FetchSize(fetchSize),
		},
	}, func(dec *protocol.Decoder, ph *protocol.PartHeader, numArg int) {
		if ph.Kind == protocol.PkResultset {
			fresh.DecodeRows(dec, numArg, decodeFieldValue)
			lastBlock = ph.Attrs.LastBlock()
			closedByServer = ph.Attrs.ResultsetClosed()
		}
	})
	if err != nil {
		return err
	}

	attachLobSessions(rs.session, rs.fields, fresh.Rows)
	rs.rows = fresh.Rows
	rs.pos = 0
	rs.lastBlock = lastBlock
	rs.closedByServer = closedByServer
	return nil
}

// Close closes the cursor. If the server already closed it (the
// "resultset-closed" attribute), this is a no-op: sending CloseResultSet
// against an already-closed cursor is a protocol error.
func (rs *ResultSet) Close() error {
	if rs.closed {
		return nil
	}
	rs.closed = true
	if rs.closedByServer {
		return nil
	}
	_, _, err := rs.session.roundTrip(&protocol.Request{
		MessageType: protocol.MtCloseResultset,
		Parts:       []protocol.PartEncoder{protocol.ResultsetID(rs.resultsetID)},
	}, func(*protocol.Decoder, *protocol.PartHeader, int) {})
	return err
}

// HdbReturnValue is the sum type returned by a direct execute: exactly one
// of ResultSet, AffectedRows (non-negative), or OutputParameterValues is
// meaningful, distinguished by Kind.
type HdbReturnValue struct {
	Kind ReturnKind

	AffectedRows int64
	ResultSet    *ResultSet
	OutputParameterValues []interface{}
}

// ReturnKind distinguishes the variants of HdbReturnValue.
type ReturnKind int8

const (
	ReturnSuccess ReturnKind = iota // DDL or otherwise row-count-free statement
	ReturnAffectedRows
	ReturnResultSet
	ReturnOutputParameters
)

func buildReturnValue(s *Session, fc protocol.FunctionCode, execResults []protocol.ExecResult, rs *protocol.Resultset, outParams *protocol.OutputParameters, resultsetID protocol.ResultsetID, lastBlock, closedByServer bool) *HdbReturnValue {
	switch {
	case outParams != nil:
		return &HdbReturnValue{Kind: ReturnOutputParameters, OutputParameterValues: outParams.Values}
	case rs != nil:
		return &HdbReturnValue{Kind: ReturnResultSet, ResultSet: newResultSet(s, resultsetID, rs.Fields, rs, lastBlock, closedByServer)}
	case execResults != nil:
		total := int64(0)
		for _, r := range execResults {
			if r.RowsAffected >= 0 {
				total += r.RowsAffected
			}
		}
		return &HdbReturnValue{Kind: ReturnAffectedRows, AffectedRows: total}
	case fc == protocol.FcDDL:
		return &HdbReturnValue{Kind: ReturnSuccess}
	default:
		return &HdbReturnValue{Kind: ReturnSuccess}
	}
}

// ExecuteDirect runs sql without preparing it first: no parameter binding,
// a single round-trip, and (depending on the statement) a ResultSet,
// an affected-row count, or nothing.
func (s *Session) ExecuteDirect(sql string) (*HdbReturnValue, error) {
	var resultset *protocol.Resultset
	var resultFields []*protocol.FieldDescriptor
	var resultsetID protocol.ResultsetID
	var lastBlock, closedByServer bool

	reply, execResults, err := s.roundTrip(&protocol.Request{
		MessageType: protocol.MtExecuteDirect,
		Commit:      s.autoCommit,
		Parts:       []protocol.PartEncoder{protocol.Command(sql)},
	}, func(dec *protocol.Decoder, ph *protocol.PartHeader, numArg int) {
		switch ph.Kind {
		case protocol.PkResultMetadata:
			var md protocol.ResultMetadata
			md.DecodeNumArg(dec, ph, numArg)
			resultFields = md.Fields
		case protocol.PkResultsetID:
			var id protocol.ResultsetID
			id.DecodeBufLen(dec, ph)
			resultsetID = id
		case protocol.PkResultset:
			rs := &protocol.Resultset{Fields: resultFields}
			rs.DecodeRows(dec, numArg, decodeFieldValue)
			resultset = rs
			lastBlock = ph.Attrs.LastBlock()
			closedByServer = ph.Attrs.ResultsetClosed()
		case protocol.PkTransactionFlags, protocol.PkStatementContext:
			dec.Skip(int(ph.BufferLength))
		}
	})
	if err != nil {
		return nil, err
	}

	if resultset != nil {
		return &HdbReturnValue{Kind: ReturnResultSet, ResultSet: newResultSet(s, resultsetID, resultFields, resultset, lastBlock, closedByServer)}, nil
	}
	return buildReturnValue(s, reply.FunctionCode, execResults, nil, nil, 0, false, false), nil
}

var _ io.Reader = (*LobHandle)(nil)
