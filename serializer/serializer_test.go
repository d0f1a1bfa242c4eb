package serializer

import (
	"bytes"
	"testing"

	"github.com/davecgh/go-spew/spew"
)

func TestRoundTripPrimitives(t *testing.T) {
	w := NewWriter()
	w.WriteU8(0xAB)
	w.WriteBool(true)
	w.WriteU16(0x1234)
	w.WriteU32(0xDEADBEEF)
	w.WriteU64(0x0102030405060708)
	w.WriteVarBytes([]byte("hello world"))
	w.WriteShortBytes([]byte("tips"))
	w.WriteString("shadowd")

	r := NewReader(w.Bytes())

	if v, err := r.ReadU8(); err != nil || v != 0xAB {
		t.Fatalf("ReadU8 = %v, %v", v, err)
	}
	if v, err := r.ReadBool(); err != nil || v != true {
		t.Fatalf("ReadBool = %v, %v", v, err)
	}
	if v, err := r.ReadU16(); err != nil || v != 0x1234 {
		t.Fatalf("ReadU16 = %v, %v", v, err)
	}
	if v, err := r.ReadU32(); err != nil || v != 0xDEADBEEF {
		t.Fatalf("ReadU32 = %v, %v", v, err)
	}
	if v, err := r.ReadU64(); err != nil || v != 0x0102030405060708 {
		t.Fatalf("ReadU64 = %v, %v", v, err)
	}
	if b, err := r.ReadVarBytes(); err != nil || string(b) != "hello world" {
		t.Fatalf("ReadVarBytes = %s, %v", spew.Sdump(b), err)
	}
	if b, err := r.ReadShortBytes(); err != nil || string(b) != "tips" {
		t.Fatalf("ReadShortBytes = %s, %v", spew.Sdump(b), err)
	}
	if s, err := r.ReadString(); err != nil || s != "shadowd" {
		t.Fatalf("ReadString = %s, %v", s, err)
	}
	if r.Size() != 0 {
		t.Fatalf("expected no trailing bytes, got %d", r.Size())
	}
}

func TestReadEOF(t *testing.T) {
	r := NewReader([]byte{0x01})
	if _, err := r.ReadU32(); err == nil {
		t.Fatalf("expected EOF-style error reading u32 from 1 byte")
	}
}

func TestWriteBytesNotSharedWithReader(t *testing.T) {
	w := NewWriter()
	w.WriteBytes([]byte{1, 2, 3})
	original := append([]byte(nil), w.Bytes()...)

	r := NewReader(w.Bytes())
	b, err := r.ReadBytes(3)
	if err != nil {
		t.Fatal(err)
	}
	b[0] = 0xFF
	if !bytes.Equal(w.Bytes(), original) {
		t.Fatalf("mutating read bytes must not affect writer buffer")
	}
}
