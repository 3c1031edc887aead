package hdb

import (
	"fmt"
	"io"
	"time"

	"github.com/hdbnative/hdb/internal/protocol"
)

// HdbValue is the sum type over every wire value kind this driver moves in
// or out of a statement. Exactly one field is meaningful per Kind; the
// rest are the type's zero value. Conversion to/from Go's own numeric,
// string and time types is left to the caller (SPEC_FULL.md non-goal: no
// SQL value type system).
type HdbValue struct {
	Kind ValueKind

	I64  int64   // Tinyint, Smallint, Integer, Bigint
	F64  float64 // Real, Double
	Str  string  // Char, Varchar, Nchar, Nvarchar, String, Nstring
	Bin  []byte  // Binary, Varbinary, Bstring, Decimal/Fixed8/12/16 raw bytes
	Bool bool    // Boolean
	Time time.Time // Longdate, Seconddate, Daydate, Secondtime

	// Lob is set for Blob/Clob/Nclob values read from a result set: a
	// server locator handle populated by the result-set engine. The write
	// path does not use it; it sends LobStream, or Bin/Str inline.
	Lob *LobHandle

	// LobStream is the write-path payload: present only while building a
	// request, replaced with a locator placeholder before the request is
	// serialized (see PreparedStatement.ExecuteRow).
	LobStream io.Reader
	// LobStreamType records whether LobStream feeds a character (KindClob,
	// KindNclob) or binary (KindBlob) LOB; ExecuteRow refuses a stream whose
	// kind does not match the parameter's declared LOB type. KindNull skips
	// the check.
	LobStreamType ValueKind
}

// ValueKind identifies which field of HdbValue is meaningful.
type ValueKind int8

const (
	KindNull ValueKind = iota
	KindTinyint
	KindSmallint
	KindInteger
	KindBigint
	KindDecimal
	KindReal
	KindDouble
	KindChar
	KindVarchar
	KindNchar
	KindNvarchar
	KindBinary
	KindVarbinary
	KindBoolean
	KindLongdate
	KindSeconddate
	KindDaydate
	KindSecondtime
	KindBlob
	KindClob
	KindNclob
	KindFixed8
	KindFixed12
	KindFixed16
)

// Null is the NULL value of no particular type; the wire encoder picks the
// correct null-code byte from the field descriptor's declared TypeCode.
var Null = HdbValue{Kind: KindNull}

func kindFromTypeCode(tc protocol.TypeCode) ValueKind {
	switch tc {
	case protocol.TcTinyint:
		return KindTinyint
	case protocol.TcSmallint:
		return KindSmallint
	case protocol.TcInteger:
		return KindInteger
	case protocol.TcBigint:
		return KindBigint
	case protocol.TcDecimal, protocol.TcFixed8, protocol.TcFixed12, protocol.TcFixed16:
		return KindDecimal
	case protocol.TcReal:
		return KindReal
	case protocol.TcDouble:
		return KindDouble
	case protocol.TcChar, protocol.TcVarchar, protocol.TcString:
		return KindVarchar
	case protocol.TcNchar, protocol.TcNvarchar, protocol.TcNstring:
		return KindNvarchar
	case protocol.TcBinary, protocol.TcVarbinary, protocol.TcBstring:
		return KindVarbinary
	case protocol.TcBoolean:
		return KindBoolean
	case protocol.TcLongdate:
		return KindLongdate
	case protocol.TcSeconddate:
		return KindSeconddate
	case protocol.TcDaydate:
		return KindDaydate
	case protocol.TcSecondtime:
		return KindSecondtime
	case protocol.TcBlob:
		return KindBlob
	case protocol.TcClob:
		return KindClob
	case protocol.TcNclob:
		return KindNclob
	default:
		return KindNull
	}
}

// ExecResult is the outcome of one row of a batched execute.
type ExecResult struct {
	RowsAffected int64 // -1 means "success, affected count unknown" (SuccessNoInfo)
	Failure      error
}

// Success reports whether this row succeeded.
func (r ExecResult) Success() bool { return r.Failure == nil }

func (r ExecResult) String() string {
	if r.Failure != nil {
		return fmt.Sprintf("failure: %s", r.Failure)
	}
	if r.RowsAffected < 0 {
		return "success (rowcount unknown)"
	}
	return fmt.Sprintf("success (%d rows)", r.RowsAffected)
}
