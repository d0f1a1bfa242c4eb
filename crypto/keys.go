package crypto

import (
	stded25519 "crypto/ed25519"
	cryptorand "crypto/rand"

	"github.com/shadowdag/shadowd/errcode"
	"github.com/shadowdag/shadowd/serializer"
)

// KeySize is the width of an Ed25519 public key in bytes.
const KeySize = 32

// SignatureSize is the width of an Ed25519 signature in bytes.
const SignatureSize = 64

// PublicKey is a 32-byte Ed25519 verification key.
type PublicKey [KeySize]byte

// Signature is a 64-byte Ed25519 signature.
type Signature [SignatureSize]byte

// KeyPair holds an Ed25519 signing keypair.
type KeyPair struct {
	public  PublicKey
	private stded25519.PrivateKey
}

// GenerateKeyPair creates a new random keypair.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := stded25519.GenerateKey(cryptorand.Reader)
	if err != nil {
		return nil, err
	}
	var p PublicKey
	copy(p[:], pub)
	return &KeyPair{public: p, private: priv}, nil
}

// PublicKey returns the keypair's public key.
func (k *KeyPair) PublicKey() PublicKey {
	return k.public
}

// Sign signs data (typically a Hash) with the private key.
func (k *KeyPair) Sign(data []byte) Signature {
	sig := stded25519.Sign(k.private, data)
	var s Signature
	copy(s[:], sig)
	return s
}

// VerifySignature reports whether sig is a valid Ed25519 signature by pub
// over hash. It never returns an error; invalid input simply fails to
// verify.
func VerifySignature(pub PublicKey, hash Hash, sig Signature) bool {
	return stded25519.Verify(pub[:], hash[:], sig[:])
}

// Write implements serializer.Serializer.
func (p PublicKey) Write(w *serializer.Writer) {
	w.WriteBytes(p[:])
}

// Size implements serializer.Serializer.
func (p PublicKey) Size() int {
	return KeySize
}

// ReadPublicKey reads a fixed-width PublicKey from r.
func ReadPublicKey(r *serializer.Reader) (PublicKey, error) {
	b, err := r.ReadBytes(KeySize)
	if err != nil {
		return PublicKey{}, err
	}
	var p PublicKey
	copy(p[:], b)
	return p, nil
}

// Write implements serializer.Serializer.
func (s Signature) Write(w *serializer.Writer) {
	w.WriteBytes(s[:])
}

// Size implements serializer.Serializer.
func (s Signature) Size() int {
	return SignatureSize
}

// ReadSignature reads a fixed-width Signature from r.
func ReadSignature(r *serializer.Reader) (Signature, error) {
	b, err := r.ReadBytes(SignatureSize)
	if err != nil {
		return Signature{}, err
	}
	var s Signature
	copy(s[:], b)
	return s, nil
}

// MustHashFromHex is used in tests and genesis construction where the hex is
// a compile-time constant known to be valid.
func MustHashFromHex(s string) Hash {
	h, err := HashFromHex(s)
	if err != nil {
		panic(errcode.New(errcode.InvalidFrame, "invalid constant hash %q: %s", s, err))
	}
	return h
}
