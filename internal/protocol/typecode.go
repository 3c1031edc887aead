package protocol

import "fmt"

// TypeCode identifies the wire type of a field or parameter. The null
// indicator for most types is the high bit of the code byte.
type TypeCode byte

const (
	TcTinyint     TypeCode = 0x01
	TcSmallint    TypeCode = 0x02
	TcInteger     TypeCode = 0x03
	TcBigint      TypeCode = 0x04
	TcDecimal     TypeCode = 0x05
	TcReal        TypeCode = 0x06
	TcDouble      TypeCode = 0x07
	TcChar        TypeCode = 0x08
	TcVarchar     TypeCode = 0x09
	TcNchar       TypeCode = 0x0A
	TcNvarchar    TypeCode = 0x0B
	TcBinary      TypeCode = 0x0C
	TcVarbinary   TypeCode = 0x0D
	TcClob        TypeCode = 0x19
	TcNclob       TypeCode = 0x1A
	TcBlob        TypeCode = 0x1B
	TcBoolean     TypeCode = 0x1C
	TcString      TypeCode = 0x1D
	TcNstring     TypeCode = 0x1E
	TcBstring     TypeCode = 0x21
	TcLongdate    TypeCode = 0x3D
	TcSeconddate  TypeCode = 0x3E
	TcDaydate     TypeCode = 0x3F
	TcSecondtime  TypeCode = 0x40
	TcFixed16     TypeCode = 0x4C
	TcFixed8      TypeCode = 0x51
	TcFixed12     TypeCode = 0x52

	// tcSecondtimeNull is the special null-value code for TcSecondtime: the
	// high-bit convention does not survive HANA's wire encoding for this
	// type (observed across server versions; see go-hdb typecode.go).
	tcSecondtimeNull TypeCode = 0xB0
)

// IsLob reports whether tc identifies a LOB-streamed type.
func (tc TypeCode) IsLob() bool {
	return tc == TcClob || tc == TcNclob || tc == TcBlob
}

// IsCharLob reports whether tc is a character (CESU-8) LOB, as opposed to a
// binary one; used to decide whether LOB chunk boundaries need CESU-8-safe
// splitting.
func (tc TypeCode) IsCharLob() bool { return tc == TcClob || tc == TcNclob }

// NullCode returns the wire code representing a NULL value for tc.
func (tc TypeCode) NullCode() TypeCode {
	if tc == TcSecondtime {
		return tcSecondtimeNull
	}
	return tc | 0x80
}

// IsNullCode reports whether code represents a NULL value of tc.
func (tc TypeCode) IsNullCode(code TypeCode) bool {
	return code == tc.NullCode()
}

func (tc TypeCode) String() string {
	switch tc {
	case TcTinyint:
		return "TINYINT"
	case TcSmallint:
		return "SMALLINT"
	case TcInteger:
		return "INTEGER"
	case TcBigint:
		return "BIGINT"
	case TcDecimal:
		return "DECIMAL"
	case TcReal:
		return "REAL"
	case TcDouble:
		return "DOUBLE"
	case TcChar, TcVarchar, TcString:
		return "VARCHAR"
	case TcNchar, TcNvarchar, TcNstring:
		return "NVARCHAR"
	case TcBinary, TcVarbinary, TcBstring:
		return "VARBINARY"
	case TcClob:
		return "CLOB"
	case TcNclob:
		return "NCLOB"
	case TcBlob:
		return "BLOB"
	case TcBoolean:
		return "BOOLEAN"
	case TcLongdate:
		return "LONGDATE"
	case TcSeconddate:
		return "SECONDDATE"
	case TcDaydate:
		return "DAYDATE"
	case TcSecondtime, tcSecondtimeNull:
		return "SECONDTIME"
	case TcFixed8, TcFixed12, TcFixed16:
		return "DECIMAL"
	default:
		return fmt.Sprintf("TypeCode(%#x)", byte(tc))
	}
}
