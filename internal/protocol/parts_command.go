package protocol

import "fmt"

// Command is the CESU-8 encoded SQL text of an ExecuteDirect or Prepare
// request.
type Command string

func (Command) Kind() PartKind      { return PkCommand }
func (c Command) String() string    { return string(c) }
func (Command) NumArg() int         { return 1 }
func (c Command) Size() int         { return StringSize(string(c)) }
func (c Command) Encode(enc *Encoder) error {
	enc.Bytes(EncodeString(string(c)))
	return enc.Error()
}

// StatementID identifies a prepared statement across its lifetime: Prepare
// returns one, Execute/DropStatementID reference it back.
type StatementID uint64

func (StatementID) Kind() PartKind   { return PkStatementID }
func (id StatementID) String() string { return fmt.Sprintf("statement id %d", uint64(id)) }
func (StatementID) NumArg() int      { return 1 }
func (StatementID) Size() int        { return 8 }
func (id StatementID) Encode(enc *Encoder) error {
	enc.Uint64(uint64(id))
	return enc.Error()
}
func (id *StatementID) DecodeBufLen(dec *Decoder, ph *PartHeader) error {
	*id = StatementID(dec.Uint64())
	return dec.Error()
}

// ResultsetID identifies an open cursor for the fetch loop.
type ResultsetID uint64

func (ResultsetID) Kind() PartKind    { return PkResultsetID }
func (id ResultsetID) String() string { return fmt.Sprintf("resultset id %d", uint64(id)) }
func (ResultsetID) NumArg() int       { return 1 }
func (ResultsetID) Size() int         { return 8 }
func (id ResultsetID) Encode(enc *Encoder) error {
	enc.Uint64(uint64(id))
	return enc.Error()
}
func (id *ResultsetID) DecodeBufLen(dec *Decoder, ph *PartHeader) error {
	*id = ResultsetID(dec.Uint64())
	return dec.Error()
}

// FetchSize is the number of rows the client requests per FetchNext
// round-trip.
type FetchSize int32

func (FetchSize) Kind() PartKind   { return PkFetchSize }
func (f FetchSize) String() string { return fmt.Sprintf("fetch size %d", int32(f)) }
func (FetchSize) NumArg() int      { return 1 }
func (FetchSize) Size() int        { return 4 }
func (f FetchSize) Encode(enc *Encoder) error {
	enc.Int32(int32(f))
	return enc.Error()
}

// TransactionFlags reports whether the last statement started or ended an
// implicit transaction, and whether the connection is currently committed.
type TransactionFlags struct {
	fields map[int8]interface{}
}

const (
	tfRolledBack         int8 = 0
	tfCommitted          int8 = 1
	tfNewIsolationLevel  int8 = 2
	tfDDLCommitmodeChanged int8 = 3
	tfWriteTXStarted     int8 = 4
	tfNoWriteTXStarted   int8 = 5
	tfSessionclosingTX   int8 = 6
)

func (*TransactionFlags) Kind() PartKind { return PkTransactionFlags }
func (t *TransactionFlags) String() string {
	return fmt.Sprintf("transaction flags (%d fields)", len(t.fields))
}
func (t *TransactionFlags) DecodeNumArg(dec *Decoder, ph *PartHeader, numArg int) error {
	t.fields = decodeOptionPairs(dec, numArg)
	return dec.Error()
}

// SessionClosingTransactionError reports whether the server is forcing the
// session closed because an open write transaction cannot survive it
// (disconnect-without-commit on a transactional statement).
func (t *TransactionFlags) SessionClosingTransactionError() bool {
	v, ok := t.fields[tfSessionclosingTX]
	return ok && v.(bool)
}

// RowsAffected is the per-row affected-count list returned by a (possibly
// batched) DML execute. A value of -1 means "success, count unknown"
// (SuccessNoInfo); -2 marks a row that failed (correlated against the Error
// part by the caller).
type RowsAffected []int32

func (RowsAffected) Kind() PartKind { return PkRowsAffected }
func (r RowsAffected) String() string {
	return fmt.Sprintf("rows affected (%d rows)", len(r))
}
func (r *RowsAffected) DecodeNumArg(dec *Decoder, ph *PartHeader, numArg int) error {
	*r = make(RowsAffected, numArg)
	for i := range *r {
		(*r)[i] = dec.Int32()
	}
	return dec.Error()
}

// NumArg, Size and Encode are the server-side counterpart used by a
// fake-responder test harness; the real driver only ever decodes this part.
func (r RowsAffected) NumArg() int { return len(r) }
func (r RowsAffected) Size() int   { return 4 * len(r) }
func (r RowsAffected) Encode(enc *Encoder) error {
	for _, v := range r {
		enc.Int32(v)
	}
	return enc.Error()
}

// ExecResults converts the raw rows-affected codes into the classifier's
// ExecResult placeholders (failures get a zero-Code placeholder that
// ClassifyResult fills in from the accompanying Error part).
func (r RowsAffected) ExecResults() []ExecResult {
	const rowNotFound = -2
	out := make([]ExecResult, len(r))
	for i, v := range r {
		if v == rowNotFound {
			out[i] = ExecResult{Failure: &ServerError{}}
		} else {
			out[i] = ExecResult{RowsAffected: int64(v)}
		}
	}
	return out
}

// CommandInfo carries the originating line number and source text location
// for a failed statement within a script batch.
type CommandInfo struct {
	fields map[int8]interface{}
}

func (*CommandInfo) Kind() PartKind { return PkCommandInfo }
func (c *CommandInfo) String() string {
	return fmt.Sprintf("command info (%d fields)", len(c.fields))
}
func (c *CommandInfo) DecodeNumArg(dec *Decoder, ph *PartHeader, numArg int) error {
	c.fields = decodeOptionPairs(dec, numArg)
	return dec.Error()
}
