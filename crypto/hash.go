// Package crypto implements the primitives spec.md section 4.2 requires:
// Ed25519 signing, 32-byte hashing, and an additively homomorphic
// ciphertext for confidential balances.
package crypto

import (
	"encoding/hex"

	"github.com/shadowdag/shadowd/errcode"
	"github.com/shadowdag/shadowd/serializer"
	"golang.org/x/crypto/blake2b"
)

// HashSize is the width of a Hash in bytes.
const HashSize = 32

// Hash is a 32-byte opaque identifier used for block ids, transaction ids,
// and asset ids.
type Hash [HashSize]byte

// ZeroHash is the all-zero hash, used as the native asset id.
var ZeroHash Hash

// HashBytes computes the canonical blockchain hash of b.
func HashBytes(b []byte) Hash {
	sum := blake2b.Sum256(b)
	return Hash(sum)
}

// String renders the hash as lowercase hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns the hash's bytes.
func (h Hash) Bytes() []byte {
	return h[:]
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// Less orders hashes as big-endian integers; used to break ties between
// blocks with equal cumulative difficulty.
func (h Hash) Less(other Hash) bool {
	for i := 0; i < HashSize; i++ {
		if h[i] != other[i] {
			return h[i] < other[i]
		}
	}
	return false
}

// HashFromHex parses a hex-encoded hash.
func HashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, errcode.New(errcode.InvalidFrame, "invalid hash hex: %s", err)
	}
	if len(b) != HashSize {
		return Hash{}, errcode.New(errcode.InvalidFrame, "invalid hash length %d", len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// Write implements serializer.Serializer.
func (h Hash) Write(w *serializer.Writer) {
	w.WriteBytes(h[:])
}

// Size implements serializer.Serializer.
func (h Hash) Size() int {
	return HashSize
}

// ReadHash reads a fixed-width Hash from r.
func ReadHash(r *serializer.Reader) (Hash, error) {
	b, err := r.ReadBytes(HashSize)
	if err != nil {
		return Hash{}, err
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}
