package blockdag

import (
	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/dagconfig"
	"github.com/shadowdag/shadowd/errcode"
	"github.com/shadowdag/shadowd/serializer"
)

// HeaderVersion is the only header version this node understands. Unknown
// versions are rejected outright (spec.md section 4.1).
const HeaderVersion = 0

// Header is a block header: everything needed to verify proof of work and
// place the block in the DAG, without its transaction bodies.
type Header struct {
	Version      uint8
	Height       uint64
	TimestampMs  uint64
	Nonce        uint64
	ExtraNonce   [32]byte
	MinerKey     crypto.PublicKey
	Tips         []crypto.Hash
	TxHashes     []crypto.Hash
}

// Write implements serializer.Serializer.
func (h *Header) Write(w *serializer.Writer) {
	w.WriteU8(h.Version)
	w.WriteU64(h.Height)
	w.WriteU64(h.TimestampMs)
	w.WriteU64(h.Nonce)
	w.WriteBytes(h.ExtraNonce[:])
	w.WriteSerializer(h.MinerKey)
	w.WriteU16(uint16(len(h.Tips)))
	for _, tip := range h.Tips {
		w.WriteSerializer(tip)
	}
	w.WriteU32(uint32(len(h.TxHashes)))
	for _, txHash := range h.TxHashes {
		w.WriteSerializer(txHash)
	}
}

// Size implements serializer.Serializer.
func (h *Header) Size() int {
	return 1 + 8 + 8 + 8 + 32 + crypto.KeySize + 2 + len(h.Tips)*crypto.HashSize + 4 + len(h.TxHashes)*crypto.HashSize
}

// ReadHeader decodes a Header from its wire/storage encoding.
func ReadHeader(r *serializer.Reader) (*Header, error) {
	h := &Header{}
	version, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if version != HeaderVersion {
		return nil, errcode.New(errcode.InvalidTag, "unknown header version %d", version)
	}
	h.Version = version

	if h.Height, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if h.TimestampMs, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if h.Nonce, err = r.ReadU64(); err != nil {
		return nil, err
	}
	extraNonce, err := r.ReadBytes(32)
	if err != nil {
		return nil, err
	}
	copy(h.ExtraNonce[:], extraNonce)

	minerKey, err := crypto.ReadPublicKey(r)
	if err != nil {
		return nil, err
	}
	h.MinerKey = minerKey

	tipCount, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	tips := make([]crypto.Hash, 0, tipCount)
	for i := uint16(0); i < tipCount; i++ {
		tip, err := crypto.ReadHash(r)
		if err != nil {
			return nil, err
		}
		tips = append(tips, tip)
	}
	h.Tips = tips

	txCount, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	txHashes := make([]crypto.Hash, 0, txCount)
	for i := uint32(0); i < txCount; i++ {
		txHash, err := crypto.ReadHash(r)
		if err != nil {
			return nil, err
		}
		txHashes = append(txHashes, txHash)
	}
	h.TxHashes = txHashes

	return h, nil
}

// Hash computes the header's block hash, a collision-resistant hash over
// its canonical serialization.
func (h *Header) Hash() crypto.Hash {
	w := serializer.NewWriter()
	h.Write(w)
	return crypto.HashBytes(w.Bytes())
}

// PoWHash computes the header's proof-of-work hash. It happens to coincide
// with the block hash in this implementation (spec.md allows them to
// differ, but does not require it), computed separately so the two can
// diverge later without touching callers.
func (h *Header) PoWHash() crypto.Hash {
	return h.Hash()
}

// ValidateTips checks the structural shape of h.Tips against the protocol
// bound, independent of whether the tips actually exist in storage.
func (h *Header) ValidateTips() error {
	if len(h.Tips) == 0 || len(h.Tips) > dagconfig.TipsLimit {
		return errcode.New(errcode.InvalidTips, "tip count %d out of range [1,%d]", len(h.Tips), dagconfig.TipsLimit)
	}
	seen := make(map[crypto.Hash]struct{}, len(h.Tips))
	for _, tip := range h.Tips {
		if _, ok := seen[tip]; ok {
			return errcode.New(errcode.InvalidTips, "duplicate tip %s", tip)
		}
		seen[tip] = struct{}{}
	}
	return nil
}
