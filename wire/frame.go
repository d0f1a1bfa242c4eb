package wire

import (
	"encoding/binary"
	"io"

	"github.com/shadowdag/shadowd/dagconfig"
	"github.com/shadowdag/shadowd/errcode"
	"github.com/shadowdag/shadowd/serializer"
)

// MaxFrameBody bounds a single frame's body so a malicious or buggy peer
// cannot force an unbounded allocation from a forged length prefix. A
// Block packet is the largest legitimate payload, so the bound tracks
// MaxBlockSize with headroom for the packet tag and length fields.
const MaxFrameBody = dagconfig.MaxBlockSize + 4096

// ReadFrame blocks until it has read one complete frame from r: a
// big-endian u32 body length, a u8 tag, and the tag's body, then decodes
// the body into its matching Payload.
func ReadFrame(r io.Reader) (Payload, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	bodyLen := binary.BigEndian.Uint32(lenBuf[:])
	if bodyLen == 0 {
		return nil, errcode.New(errcode.InvalidFrame, "frame body length is zero")
	}
	if bodyLen > MaxFrameBody {
		return nil, errcode.New(errcode.InvalidFrame, "frame body length %d exceeds maximum %d", bodyLen, MaxFrameBody)
	}

	var tagBuf [1]byte
	if _, err := io.ReadFull(r, tagBuf[:]); err != nil {
		return nil, err
	}
	tag := Tag(tagBuf[0])

	body := make([]byte, bodyLen-1)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	return decode(tag, body)
}

// WriteFrame serializes payload and writes it to w as one complete frame:
// a big-endian u32 body length (tag byte included), the tag byte, and the
// payload body.
func WriteFrame(w io.Writer, payload Payload) error {
	tag, err := tagFor(payload)
	if err != nil {
		return err
	}

	bw := serializer.NewWriter()
	payload.Write(bw)
	body := bw.Bytes()

	bodyLen := uint32(len(body) + 1)
	if bodyLen > MaxFrameBody {
		return errcode.New(errcode.InvalidFrame, "outgoing frame body length %d exceeds maximum %d", bodyLen, MaxFrameBody)
	}

	header := make([]byte, 5)
	binary.BigEndian.PutUint32(header[:4], bodyLen)
	header[4] = uint8(tag)

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}
