// Package protocol implements the HANA wire protocol: byte codec, part
// registry, message framing and error triage.
package protocol

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Padding boundary for parts and the final message segment.
const padding = 8

// PadLen returns the number of padding bytes needed to round size up to the
// next multiple of 8.
func PadLen(size int) int {
	if r := size % padding; r != 0 {
		return padding - r
	}
	return 0
}

// Decoder reads little-endian primitives off a buffered stream and tracks a
// sticky error so callers can chain reads without checking each one.
type Decoder struct {
	rd  *bufio.Reader
	err error
	cnt int
}

// NewDecoder wraps rd in a Decoder.
func NewDecoder(rd *bufio.Reader) *Decoder { return &Decoder{rd: rd} }

// Error returns the first error encountered since the last ResetError.
func (d *Decoder) Error() error { return d.err }

// ResetError clears the sticky error.
func (d *Decoder) ResetError() { d.err = nil }

// Cnt returns the number of bytes consumed since the last ResetCnt.
func (d *Decoder) Cnt() int { return d.cnt }

// ResetCnt resets the byte counter.
func (d *Decoder) ResetCnt() { d.cnt = 0 }

func (d *Decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

// Bytes reads exactly len(b) bytes into b.
func (d *Decoder) Bytes(b []byte) {
	if d.err != nil {
		return
	}
	n, err := io.ReadFull(d.rd, b)
	d.cnt += n
	if err != nil {
		d.fail(err)
	}
}

// Skip discards n bytes.
func (d *Decoder) Skip(n int) {
	if n <= 0 || d.err != nil {
		return
	}
	m, err := io.CopyN(io.Discard, d.rd, int64(n))
	d.cnt += int(m)
	if err != nil {
		d.fail(err)
	}
}

// Byte reads one byte.
func (d *Decoder) Byte() byte {
	if d.err != nil {
		return 0
	}
	b, err := d.rd.ReadByte()
	if err != nil {
		d.fail(err)
		return 0
	}
	d.cnt++
	return b
}

func (d *Decoder) readN(n int) []byte {
	b := make([]byte, n)
	d.Bytes(b)
	return b
}

// Int8 reads a signed 8-bit integer.
func (d *Decoder) Int8() int8 { return int8(d.Byte()) }

// Uint16 reads a little-endian unsigned 16-bit integer.
func (d *Decoder) Uint16() uint16 {
	b := d.readN(2)
	if d.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// Int16 reads a little-endian signed 16-bit integer.
func (d *Decoder) Int16() int16 { return int16(d.Uint16()) }

// Uint32 reads a little-endian unsigned 32-bit integer.
func (d *Decoder) Uint32() uint32 {
	b := d.readN(4)
	if d.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// Int32 reads a little-endian signed 32-bit integer.
func (d *Decoder) Int32() int32 { return int32(d.Uint32()) }

// Uint32BigEndian reads a big-endian unsigned 32-bit integer (used only by
// the SCRAM-PBKDF2-SHA256 iteration count field).
func (d *Decoder) Uint32BigEndian() uint32 {
	b := d.readN(4)
	if d.err != nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

// Uint64 reads a little-endian unsigned 64-bit integer.
func (d *Decoder) Uint64() uint64 {
	b := d.readN(8)
	if d.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// Int64 reads a little-endian signed 64-bit integer.
func (d *Decoder) Int64() int64 { return int64(d.Uint64()) }

// VarBytes reads a length-prefixed byte string: a length indicator byte
// (<=245 one byte, 246-byte sentinel for a 2-byte length, 255 for a 4-byte
// length) followed by the payload. This matches the wire's variable-length
// encoding used for auth parameters and option values.
func (d *Decoder) VarBytes() []byte {
	ind := d.Byte()
	var size int
	switch {
	case d.err != nil:
		return nil
	case ind <= 245:
		size = int(ind)
	case ind == 246:
		size = int(d.Uint16())
	case ind == 255:
		size = int(d.Int32())
	default:
		d.fail(fmt.Errorf("protocol: invalid variable length indicator %d", ind))
		return nil
	}
	return d.readN(size)
}

// Encoder writes little-endian primitives to a buffered stream, tracking a
// sticky error symmetric to Decoder.
type Encoder struct {
	wr  *bufio.Writer
	err error
	cnt int
}

// NewEncoder wraps wr in an Encoder.
func NewEncoder(wr *bufio.Writer) *Encoder { return &Encoder{wr: wr} }

// Error returns the first error encountered.
func (e *Encoder) Error() error { return e.err }

// Cnt returns bytes written since the last ResetCnt.
func (e *Encoder) Cnt() int { return e.cnt }

// ResetCnt resets the byte counter.
func (e *Encoder) ResetCnt() { e.cnt = 0 }

func (e *Encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

// Bytes writes b verbatim.
func (e *Encoder) Bytes(b []byte) {
	if e.err != nil {
		return
	}
	n, err := e.wr.Write(b)
	e.cnt += n
	if err != nil {
		e.fail(err)
	}
}

// Zeroes writes n zero bytes (used for padding and reserved header fields).
func (e *Encoder) Zeroes(n int) {
	if n <= 0 {
		return
	}
	e.Bytes(make([]byte, n))
}

// Byte writes one byte.
func (e *Encoder) Byte(b byte) { e.Bytes([]byte{b}) }

// Int8 writes a signed 8-bit integer.
func (e *Encoder) Int8(v int8) { e.Byte(byte(v)) }

// Uint16 writes a little-endian unsigned 16-bit integer.
func (e *Encoder) Uint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.Bytes(b[:])
}

// Int16 writes a little-endian signed 16-bit integer.
func (e *Encoder) Int16(v int16) { e.Uint16(uint16(v)) }

// Uint32 writes a little-endian unsigned 32-bit integer.
func (e *Encoder) Uint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.Bytes(b[:])
}

// Int32 writes a little-endian signed 32-bit integer.
func (e *Encoder) Int32(v int32) { e.Uint32(uint32(v)) }

// Uint32BigEndian writes a big-endian unsigned 32-bit integer.
func (e *Encoder) Uint32BigEndian(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.Bytes(b[:])
}

// Uint64 writes a little-endian unsigned 64-bit integer.
func (e *Encoder) Uint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.Bytes(b[:])
}

// Int64 writes a little-endian signed 64-bit integer.
func (e *Encoder) Int64(v int64) { e.Uint64(uint64(v)) }

// VarBytesSize returns the on-wire size of a variable-length byte string of
// length n, including its length indicator.
func VarBytesSize(n int) int {
	switch {
	case n <= 245:
		return 1 + n
	case n <= 0xFFFF:
		return 3 + n
	default:
		return 5 + n
	}
}

// VarBytes writes a length-prefixed byte string.
func (e *Encoder) VarBytes(b []byte) {
	switch n := len(b); {
	case n <= 245:
		e.Byte(byte(n))
	case n <= 0xFFFF:
		e.Byte(246)
		e.Uint16(uint16(n))
	default:
		e.Byte(255)
		e.Int32(int32(n))
	}
	e.Bytes(b)
}
