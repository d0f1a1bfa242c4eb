package serializer

import "encoding/binary"

// Writer accumulates a canonical big-endian byte encoding.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the accumulated encoding.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// WriteU8 appends a single byte.
func (w *Writer) WriteU8(v uint8) {
	w.buf = append(w.buf, v)
}

// WriteBool appends a byte, 1 for true and 0 for false.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteU8(1)
	} else {
		w.WriteU8(0)
	}
}

// WriteU16 appends a big-endian uint16.
func (w *Writer) WriteU16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteU32 appends a big-endian uint32.
func (w *Writer) WriteU32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteU64 appends a big-endian uint64.
func (w *Writer) WriteU64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteBytes appends raw bytes with no length prefix. Use for fixed-size
// fields (hashes, keys, signatures) whose length is implicit in the format.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteVarBytes appends a u32 length prefix followed by the bytes. Used for
// packet bodies and other large variable-length blobs.
func (w *Writer) WriteVarBytes(b []byte) {
	w.WriteU32(uint32(len(b)))
	w.WriteBytes(b)
}

// WriteShortBytes appends a u16 length prefix followed by the bytes. Used
// for short variable-length fields; node tags use WriteString instead.
func (w *Writer) WriteShortBytes(b []byte) {
	w.WriteU16(uint16(len(b)))
	w.WriteBytes(b)
}

// WriteTinyBytes appends a u8 length prefix followed by the bytes. Used for
// the handshake's version string.
func (w *Writer) WriteTinyBytes(b []byte) {
	w.WriteU8(uint8(len(b)))
	w.WriteBytes(b)
}

// WriteString appends a tiny-length-prefixed UTF-8 string.
func (w *Writer) WriteString(s string) {
	w.WriteTinyBytes([]byte(s))
}

// WriteSerializer writes a nested Serializer inline, with no extra prefix.
func (w *Writer) WriteSerializer(s Serializer) {
	s.Write(w)
}
