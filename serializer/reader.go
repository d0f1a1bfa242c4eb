package serializer

import (
	"encoding/binary"

	"github.com/shadowdag/shadowd/errcode"
)

// Reader consumes a canonical big-endian encoding produced by Writer.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps b for sequential reads. b is not copied; callers must not
// mutate it while the Reader is in use.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Size returns the number of unread bytes remaining.
func (r *Reader) Size() int {
	return len(r.buf) - r.pos
}

func errEOF() error {
	return errcode.New(errcode.InvalidFrame, "unexpected end of buffer")
}

func errInvalidLength(what string) error {
	return errcode.New(errcode.InvalidFrame, "invalid length reading %s", what)
}

func (r *Reader) require(n int) error {
	if r.Size() < n {
		return errEOF()
	}
	return nil
}

// ReadU8 reads a single byte.
func (r *Reader) ReadU8() (uint8, error) {
	if err := r.require(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// ReadBool reads a single byte and interprets it as a boolean.
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadU8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// ReadU16 reads a big-endian uint16.
func (r *Reader) ReadU16() (uint16, error) {
	if err := r.require(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

// ReadU32 reads a big-endian uint32.
func (r *Reader) ReadU32() (uint32, error) {
	if err := r.require(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadU64 reads a big-endian uint64.
func (r *Reader) ReadU64() (uint64, error) {
	if err := r.require(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

// ReadBytes reads exactly n raw bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, errInvalidLength("fixed bytes")
	}
	if err := r.require(n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, r.buf[r.pos:r.pos+n])
	r.pos += n
	return b, nil
}

// ReadVarBytes reads a u32-length-prefixed blob.
func (r *Reader) ReadVarBytes() ([]byte, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	return r.ReadBytes(int(n))
}

// ReadShortBytes reads a u16-length-prefixed blob.
func (r *Reader) ReadShortBytes() ([]byte, error) {
	n, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	return r.ReadBytes(int(n))
}

// ReadTinyBytes reads a u8-length-prefixed blob.
func (r *Reader) ReadTinyBytes() ([]byte, error) {
	n, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	return r.ReadBytes(int(n))
}

// ReadString reads a tiny-length-prefixed UTF-8 string.
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadTinyBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
