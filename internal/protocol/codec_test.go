package protocol

import (
	"bufio"
	"bytes"
	"io"
	"testing"
)

func TestCodecRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	wr := bufio.NewWriter(&buf)
	enc := NewEncoder(wr)

	enc.Int8(-7)
	enc.Int16(-1234)
	enc.Int32(-123456789)
	enc.Int64(-1234567890123)
	enc.Uint32BigEndian(0x01020304)
	enc.VarBytes([]byte("short"))
	enc.VarBytes(bytes.Repeat([]byte{0xAB}, 300)) // forces the 2-byte length form
	if err := enc.Error(); err != nil {
		t.Fatalf("encode: %s", err)
	}
	if err := wr.Flush(); err != nil {
		t.Fatalf("flush: %s", err)
	}

	rd := bufio.NewReader(&buf)
	dec := NewDecoder(rd)

	if v := dec.Int8(); v != -7 {
		t.Fatalf("Int8 = %d, want -7", v)
	}
	if v := dec.Int16(); v != -1234 {
		t.Fatalf("Int16 = %d, want -1234", v)
	}
	if v := dec.Int32(); v != -123456789 {
		t.Fatalf("Int32 = %d, want -123456789", v)
	}
	if v := dec.Int64(); v != -1234567890123 {
		t.Fatalf("Int64 = %d, want -1234567890123", v)
	}
	if v := dec.Uint32BigEndian(); v != 0x01020304 {
		t.Fatalf("Uint32BigEndian = %#x, want 0x01020304", v)
	}
	if v := dec.VarBytes(); string(v) != "short" {
		t.Fatalf("VarBytes = %q, want %q", v, "short")
	}
	if v := dec.VarBytes(); !bytes.Equal(v, bytes.Repeat([]byte{0xAB}, 300)) {
		t.Fatalf("VarBytes long form mismatch, got %d bytes", len(v))
	}
	if err := dec.Error(); err != nil {
		t.Fatalf("decode: %s", err)
	}
}

func TestDecoderStickyError(t *testing.T) {
	rd := bufio.NewReader(bytes.NewReader([]byte{1, 2}))
	dec := NewDecoder(rd)

	dec.Int64() // needs 8 bytes, only 2 available: sets the sticky error
	if dec.Error() == nil {
		t.Fatal("expected a sticky error after reading past EOF")
	}
	before := dec.Error()
	dec.Int32() // must not overwrite, and must not consume further input
	if dec.Error() != before {
		t.Fatal("sticky error was overwritten by a later call")
	}
}

func TestEncoderStickyError(t *testing.T) {
	pr, pw := io.Pipe()
	pr.Close() // guarantees the next write fails
	enc := NewEncoder(bufio.NewWriter(pw))
	enc.Byte(1)
	enc.Bytes(make([]byte, 8192)) // exceeds bufio's default buffer, forcing a flush
	if enc.Error() == nil {
		t.Fatal("expected an error writing to a closed pipe")
	}
}

func TestPadLen(t *testing.T) {
	cases := map[int]int{0: 0, 1: 7, 7: 1, 8: 0, 9: 7, 16: 0}
	for size, want := range cases {
		if got := PadLen(size); got != want {
			t.Fatalf("PadLen(%d) = %d, want %d", size, got, want)
		}
	}
}

func TestVarBytesSize(t *testing.T) {
	cases := map[int]int{0: 1, 245: 246, 246: 249, 70000: 70005}
	for n, want := range cases {
		if got := VarBytesSize(n); got != want {
			t.Fatalf("VarBytesSize(%d) = %d, want %d", n, got, want)
		}
	}
}
