package hdb

import (
	"fmt"
	"math"
	"time"

	"github.com/hdbnative/hdb/internal/protocol"
)

// decodeFieldValue reads one field of a result row according to fd's
// declared wire type. It implements the field-level half of the result-set
// engine (C8) that protocol.Resultset.DecodeRows delegates to, since the
// decoded representation (HdbValue) lives in the root package.
func decodeFieldValue(dec *protocol.Decoder, fd *protocol.FieldDescriptor) (interface{}, error) {
	tc := fd.TypeCode
	code := protocol.TypeCode(dec.Byte())
	if tc.IsNullCode(code) {
		return Null, dec.Error()
	}

	switch tc {
	case protocol.TcTinyint:
		return HdbValue{Kind: KindTinyint, I64: int64(uint8(dec.Byte()))}, dec.Error()
	case protocol.TcSmallint:
		return HdbValue{Kind: KindSmallint, I64: int64(dec.Int16())}, dec.Error()
	case protocol.TcInteger:
		return HdbValue{Kind: KindInteger, I64: int64(dec.Int32())}, dec.Error()
	case protocol.TcBigint:
		return HdbValue{Kind: KindBigint, I64: dec.Int64()}, dec.Error()
	case protocol.TcReal:
		bits := dec.Uint32()
		return HdbValue{Kind: KindReal, F64: float64(math.Float32frombits(bits))}, dec.Error()
	case protocol.TcDouble:
		bits := dec.Uint64()
		return HdbValue{Kind: KindDouble, F64: math.Float64frombits(bits)}, dec.Error()
	case protocol.TcBoolean:
		return HdbValue{Kind: KindBoolean, Bool: dec.Byte() != 0}, dec.Error()
	case protocol.TcChar, protocol.TcVarchar, protocol.TcString:
		b := dec.VarBytes()
		return HdbValue{Kind: KindVarchar, Str: protocol.DecodeString(b)}, dec.Error()
	case protocol.TcNchar, protocol.TcNvarchar, protocol.TcNstring:
		b := dec.VarBytes()
		return HdbValue{Kind: KindNvarchar, Str: protocol.DecodeString(b)}, dec.Error()
	case protocol.TcBinary, protocol.TcVarbinary, protocol.TcBstring:
		b := dec.VarBytes()
		return HdbValue{Kind: KindVarbinary, Bin: b}, dec.Error()
	case protocol.TcFixed8, protocol.TcFixed12, protocol.TcFixed16, protocol.TcDecimal:
		n := fixedWidth(tc)
		b := make([]byte, n)
		dec.Bytes(b)
		return HdbValue{Kind: KindDecimal, Bin: b}, dec.Error()
	case protocol.TcLongdate:
		return HdbValue{Kind: KindLongdate, Time: decodeLongdate(dec.Int64())}, dec.Error()
	case protocol.TcSeconddate:
		return HdbValue{Kind: KindSeconddate, Time: decodeSeconddate(dec.Int64())}, dec.Error()
	case protocol.TcDaydate:
		return HdbValue{Kind: KindDaydate, Time: decodeDaydate(dec.Int32())}, dec.Error()
	case protocol.TcSecondtime:
		return HdbValue{Kind: KindSecondtime, Time: decodeSecondtime(dec.Int32())}, dec.Error()
	case protocol.TcClob, protocol.TcNclob, protocol.TcBlob:
		lob, err := decodeLobLocator(dec, tc)
		return HdbValue{Kind: kindFromTypeCode(tc), Lob: lob}, err
	default:
		return nil, fmt.Errorf("hdb: unsupported field type code %s", tc)
	}
}

func fixedWidth(tc protocol.TypeCode) int {
	switch tc {
	case protocol.TcFixed8:
		return 8
	case protocol.TcFixed12:
		return 12
	case protocol.TcFixed16:
		return 16
	default:
		return 16 // TcDecimal: server's legacy variable-scale decimal, widest fixed form
	}
}

// decodeLobLocator reads a LOB field's inline header: options byte,
// declared total byte length, locator id, and (if DataIncluded) the first
// chunk, which is fed into the LobHandle the same way subsequent ReadLob
// replies are.
func decodeLobLocator(dec *protocol.Decoder, tc protocol.TypeCode) (*LobHandle, error) {
	options := protocol.LobOptions(dec.Int8())
	dec.Skip(2) // reserved
	totalLength := dec.Int64()
	locatorID := dec.Uint64()
	chunkLength := dec.Int32()

	lob := &LobHandle{
		locatorID:   locatorID,
		totalLength: totalLength,
		isCharLob:   tc.IsCharLob(),
		complete:    options.IsLast(),
	}
	if chunkLength > 0 {
		chunk := make([]byte, chunkLength)
		dec.Bytes(chunk)
		if err := dec.Error(); err != nil {
			return nil, err
		}
		lob.feedRaw(chunk, options.IsLast())
	}
	return lob, dec.Error()
}

// encodeFieldValue writes one bound parameter value according to fd's
// declared wire type. v's Kind must be compatible with fd.TypeCode or
// KindNull.
func encodeFieldValue(enc *protocol.Encoder, fd *protocol.FieldDescriptor, v HdbValue) error {
	tc := fd.TypeCode
	if v.Kind == KindNull {
		enc.Int8(int8(tc.NullCode()))
		return enc.Error()
	}
	enc.Int8(int8(tc))

	switch tc {
	case protocol.TcTinyint:
		enc.Byte(byte(v.I64))
	case protocol.TcSmallint:
		enc.Int16(int16(v.I64))
	case protocol.TcInteger:
		enc.Int32(int32(v.I64))
	case protocol.TcBigint:
		enc.Int64(v.I64)
	case protocol.TcReal:
		enc.Uint32(math.Float32bits(float32(v.F64)))
	case protocol.TcDouble:
		enc.Uint64(math.Float64bits(v.F64))
	case protocol.TcBoolean:
		enc.Int8(boolToInt8(v.Bool))
	case protocol.TcChar, protocol.TcVarchar, protocol.TcString,
		protocol.TcNchar, protocol.TcNvarchar, protocol.TcNstring:
		enc.VarBytes(protocol.EncodeString(v.Str))
	case protocol.TcBinary, protocol.TcVarbinary, protocol.TcBstring:
		enc.VarBytes(v.Bin)
	case protocol.TcFixed8, protocol.TcFixed12, protocol.TcFixed16, protocol.TcDecimal:
		enc.Bytes(v.Bin)
	case protocol.TcLongdate:
		enc.Int64(encodeLongdate(v.Time))
	case protocol.TcSeconddate:
		enc.Int64(encodeSeconddate(v.Time))
	case protocol.TcDaydate:
		enc.Int32(encodeDaydate(v.Time))
	case protocol.TcSecondtime:
		enc.Int32(encodeSecondtime(v.Time))
	case protocol.TcClob, protocol.TcNclob, protocol.TcBlob:
		if v.LobStream != nil {
			enc.Int8(0) // options: neither DataIncluded nor LastData set -> "allocate a locator, stream follows"
			break
		}
		data := v.Bin
		if tc.IsCharLob() {
			data = protocol.EncodeString(v.Str)
		}
		enc.Int8(int8(protocol.LoDataIncluded | protocol.LoLastData))
		enc.Int32(int32(len(data)))
		enc.Bytes(data)
	default:
		return fmt.Errorf("hdb: unsupported parameter type code %s", tc)
	}
	return enc.Error()
}

// sizeFieldValue returns the on-wire size of v encoded against fd, without
// encoding it; used to compute a Parameters part's Size() ahead of Encode.
func sizeFieldValue(fd *protocol.FieldDescriptor, v HdbValue) int {
	if v.Kind == KindNull {
		return 1
	}
	tc := fd.TypeCode
	switch tc {
	case protocol.TcTinyint:
		return 2
	case protocol.TcSmallint:
		return 3
	case protocol.TcInteger:
		return 5
	case protocol.TcBigint:
		return 9
	case protocol.TcReal:
		return 5
	case protocol.TcDouble:
		return 9
	case protocol.TcBoolean:
		return 2
	case protocol.TcChar, protocol.TcVarchar, protocol.TcString,
		protocol.TcNchar, protocol.TcNvarchar, protocol.TcNstring:
		return 1 + protocol.VarBytesSize(protocol.StringSize(v.Str))
	case protocol.TcBinary, protocol.TcVarbinary, protocol.TcBstring:
		return 1 + protocol.VarBytesSize(len(v.Bin))
	case protocol.TcFixed8, protocol.TcFixed12, protocol.TcFixed16, protocol.TcDecimal:
		return 1 + fixedWidth(tc)
	case protocol.TcLongdate, protocol.TcSeconddate:
		return 9
	case protocol.TcDaydate, protocol.TcSecondtime:
		return 5
	case protocol.TcClob, protocol.TcNclob, protocol.TcBlob:
		if v.LobStream != nil {
			return 1 + 1 // typecode + streaming-placeholder options byte
		}
		n := len(v.Bin)
		if tc.IsCharLob() {
			n = protocol.StringSize(v.Str)
		}
		return 1 + 1 + 4 + n // typecode + options + length + inline bytes
	default:
		return 1
	}
}

func boolToInt8(b bool) int8 {
	if b {
		return 1
	}
	return 0
}

// The daydate/longdate/seconddate/secondtime epoch and scale constants
// below follow HANA's documented internal calendar representation: a
// Julian Day Number based day count, and fixed sub-day scales.
const (
	daydateEpochOffset      = 1721425 // JDN 1721426 (proleptic Gregorian 0001-01-01) minus wire daydate 1
	longdateTicksPerSecond  = 10000000
	secondtimeSecondsPerDay = 86400
)

func decodeDaydate(v int32) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return jdnToTime(int64(v) + daydateEpochOffset)
}

func encodeDaydate(t time.Time) int32 {
	if t.IsZero() {
		return 0
	}
	return int32(timeToJDN(t) - daydateEpochOffset)
}

func decodeSeconddate(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	days := v / secondtimeSecondsPerDay
	secs := v % secondtimeSecondsPerDay
	d := jdnToTime(days + daydateEpochOffset)
	return d.Add(time.Duration(secs) * time.Second).UTC()
}

func encodeSeconddate(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	days := timeToJDN(t) - daydateEpochOffset
	secs := t.Hour()*3600 + t.Minute()*60 + t.Second()
	return days*secondtimeSecondsPerDay + int64(secs)
}

func decodeLongdate(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	secs := v / longdateTicksPerSecond
	frac := v % longdateTicksPerSecond
	days := secs / secondtimeSecondsPerDay
	daySecs := secs % secondtimeSecondsPerDay
	d := jdnToTime(days + daydateEpochOffset)
	return d.Add(time.Duration(daySecs)*time.Second + time.Duration(frac)*100).UTC()
}

func encodeLongdate(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	days := timeToJDN(t) - daydateEpochOffset
	daySecs := int64(t.Hour()*3600 + t.Minute()*60 + t.Second())
	frac := int64(t.Nanosecond() / 100)
	return (days*secondtimeSecondsPerDay+daySecs)*longdateTicksPerSecond + frac
}

func decodeSecondtime(v int32) time.Time {
	secs := int(v)
	return time.Date(1, 1, 1, secs/3600, (secs/60)%60, secs%60, 0, time.UTC)
}

func encodeSecondtime(t time.Time) int32 {
	return int32(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// jdnToTime and timeToJDN convert between a Julian Day Number and a
// proleptic-Gregorian calendar date (the Fliegel & Van Flandern algorithm).
// Dates before the real Gregorian cutover (1582-10-15) will disagree with a
// historical Julian-calendar JDN by a small number of days; this driver
// always treats the calendar as proleptic Gregorian, matching time.Time.
func jdnToTime(jdn int64) time.Time {
	a := jdn + 32044
	b := (4*a + 3) / 146097
	c := a - (146097*b)/4
	d := (4*c + 3) / 1461
	e := c - (1461*d)/4
	m := (5*e + 2) / 153
	day := e - (153*m+2)/5 + 1
	month := m + 3 - 12*(m/10)
	year := 100*b + d - 4800 + m/10
	return time.Date(int(year), time.Month(month), int(day), 0, 0, 0, 0, time.UTC)
}

func timeToJDN(t time.Time) int64 {
	y, mo, d := t.Date()
	m := int64(mo)
	a := (14 - m) / 12
	y2 := int64(y) + 4800 - a
	m2 := m + 12*a - 3
	return int64(d) + (153*m2+2)/5 + 365*y2 + y2/4 - y2/100 + y2/400 - 32045
}
