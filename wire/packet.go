// Package wire implements the node-to-node binary protocol (spec.md
// section 6): a length-prefixed frame carrying one tagged packet, reusing
// the serializer package's canonical encoding for every packet body.
package wire

import (
	"github.com/shadowdag/shadowd/blockdag"
	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/errcode"
	"github.com/shadowdag/shadowd/serializer"
)

// Tag identifies which packet a frame's body decodes as.
type Tag uint8

// Packet tags. These are load-bearing wire values and must never be
// renumbered.
const (
	TagHandshake    Tag = 0
	TagTransaction  Tag = 1
	TagBlock        Tag = 2
	TagRequestChain Tag = 3
	TagPing         Tag = 4
)

func (t Tag) String() string {
	switch t {
	case TagHandshake:
		return "Handshake"
	case TagTransaction:
		return "Transaction"
	case TagBlock:
		return "Block"
	case TagRequestChain:
		return "RequestChain"
	case TagPing:
		return "Ping"
	default:
		return "Unknown"
	}
}

// Handshake is the first packet exchanged on a new connection, in both
// directions, before any other packet is accepted.
type Handshake struct {
	Version      string
	LocalPort    uint16
	NodeTag      string
	BlockTopHash crypto.Hash
	BlockHeight  uint64
	NetworkID    [16]byte
}

func (h *Handshake) Write(w *serializer.Writer) {
	w.WriteString(h.Version)
	w.WriteU16(h.LocalPort)
	w.WriteString(h.NodeTag)
	w.WriteSerializer(h.BlockTopHash)
	w.WriteU64(h.BlockHeight)
	w.WriteBytes(h.NetworkID[:])
}

func (h *Handshake) Size() int {
	return 1 + len(h.Version) + 2 + 1 + len(h.NodeTag) + crypto.HashSize + 8 + 16
}

func readHandshake(r *serializer.Reader) (*Handshake, error) {
	version, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	localPort, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	nodeTag, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	topHash, err := crypto.ReadHash(r)
	if err != nil {
		return nil, err
	}
	height, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	networkID, err := r.ReadBytes(16)
	if err != nil {
		return nil, err
	}
	h := &Handshake{
		Version:      version,
		LocalPort:    localPort,
		NodeTag:      nodeTag,
		BlockTopHash: topHash,
		BlockHeight:  height,
	}
	copy(h.NetworkID[:], networkID)
	return h, nil
}

// TransactionPacket relays one transaction, newly seen or explicitly
// requested.
type TransactionPacket struct {
	Tx *blockdag.Transaction
}

func (p *TransactionPacket) Write(w *serializer.Writer) { w.WriteSerializer(p.Tx) }
func (p *TransactionPacket) Size() int                  { return p.Tx.Size() }

func readTransactionPacket(r *serializer.Reader) (*TransactionPacket, error) {
	tx, err := blockdag.ReadTransaction(r)
	if err != nil {
		return nil, err
	}
	return &TransactionPacket{Tx: tx}, nil
}

// BlockPacket relays one full block.
type BlockPacket struct {
	Block *blockdag.Block
}

func (p *BlockPacket) Write(w *serializer.Writer) { w.WriteSerializer(p.Block) }
func (p *BlockPacket) Size() int                  { return p.Block.Size() }

func readBlockPacket(r *serializer.Reader) (*BlockPacket, error) {
	block, err := blockdag.ReadBlock(r)
	if err != nil {
		return nil, err
	}
	return &BlockPacket{Block: block}, nil
}

// RequestChain asks the peer to return the n blocks at and above the
// supplied hashes, used both for common-ancestor probing and bounded
// catch-up (spec.md section 4.8).
type RequestChain struct {
	Hashes []crypto.Hash
}

func (p *RequestChain) Write(w *serializer.Writer) {
	w.WriteU16(uint16(len(p.Hashes)))
	for _, h := range p.Hashes {
		w.WriteSerializer(h)
	}
}

func (p *RequestChain) Size() int { return 2 + len(p.Hashes)*crypto.HashSize }

func readRequestChain(r *serializer.Reader) (*RequestChain, error) {
	n, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	hashes := make([]crypto.Hash, 0, n)
	for i := uint16(0); i < n; i++ {
		h, err := crypto.ReadHash(r)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return &RequestChain{Hashes: hashes}, nil
}

// Ping is exchanged periodically so each side can advertise its current
// chain tip and detect a stalled connection.
type Ping struct {
	BlockTopHash crypto.Hash
	BlockHeight  uint64
}

func (p *Ping) Write(w *serializer.Writer) {
	w.WriteSerializer(p.BlockTopHash)
	w.WriteU64(p.BlockHeight)
}

func (p *Ping) Size() int { return crypto.HashSize + 8 }

func readPing(r *serializer.Reader) (*Ping, error) {
	hash, err := crypto.ReadHash(r)
	if err != nil {
		return nil, err
	}
	height, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	return &Ping{BlockTopHash: hash, BlockHeight: height}, nil
}

// Payload is implemented by every packet body.
type Payload interface {
	Write(w *serializer.Writer)
	Size() int
}

// decode dispatches on tag and decodes body into the matching Payload.
func decode(tag Tag, body []byte) (Payload, error) {
	r := serializer.NewReader(body)
	switch tag {
	case TagHandshake:
		return readHandshake(r)
	case TagTransaction:
		return readTransactionPacket(r)
	case TagBlock:
		return readBlockPacket(r)
	case TagRequestChain:
		return readRequestChain(r)
	case TagPing:
		return readPing(r)
	default:
		return nil, errcode.New(errcode.InvalidTag, "unknown packet tag %d", tag)
	}
}

// tagFor returns the wire tag for a known Payload type.
func tagFor(p Payload) (Tag, error) {
	switch p.(type) {
	case *Handshake:
		return TagHandshake, nil
	case *TransactionPacket:
		return TagTransaction, nil
	case *BlockPacket:
		return TagBlock, nil
	case *RequestChain:
		return TagRequestChain, nil
	case *Ping:
		return TagPing, nil
	default:
		return 0, errcode.New(errcode.InvalidTag, "unregistered payload type %T", p)
	}
}
