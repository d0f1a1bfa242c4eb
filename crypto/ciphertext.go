package crypto

import (
	"encoding/binary"

	"github.com/oasisprotocol/curve25519-voi/primitives/ristretto255"
	"github.com/shadowdag/shadowd/errcode"
	"github.com/shadowdag/shadowd/serializer"
)

// CommitmentSize is the width of a compressed Pedersen commitment or
// decrypt handle.
const CommitmentSize = 32

// Ciphertext is an additively homomorphic ElGamal-style encryption of an
// amount: a Pedersen commitment to the value plus a decrypt handle tied to
// the recipient's public key. The core never decrypts it; it only adds,
// subtracts, and moves it between accounts.
type Ciphertext struct {
	commitment *ristretto255.Point
	handle     *ristretto255.Point
}

// CompressedCiphertext is the 64-byte wire/storage form of a Ciphertext.
type CompressedCiphertext struct {
	Commitment [CommitmentSize]byte
	Handle     [CommitmentSize]byte
}

// Zero returns the ciphertext encrypting the value 0 under any key: both
// the commitment and the handle are the group identity.
func Zero() *Ciphertext {
	return &Ciphertext{
		commitment: ristretto255.NewIdentityPoint(),
		handle:     ristretto255.NewIdentityPoint(),
	}
}

// Add homomorphically adds other into c in place and returns c.
func (c *Ciphertext) Add(other *Ciphertext) *Ciphertext {
	c.commitment.Add(c.commitment, other.commitment)
	c.handle.Add(c.handle, other.handle)
	return c
}

// Sub homomorphically subtracts other from c in place and returns c.
func (c *Ciphertext) Sub(other *Ciphertext) *Ciphertext {
	c.commitment.Subtract(c.commitment, other.commitment)
	c.handle.Subtract(c.handle, other.handle)
	return c
}

// Clone returns an independent copy of c.
func (c *Ciphertext) Clone() *Ciphertext {
	return &Ciphertext{
		commitment: ristretto255.NewIdentityPoint().Add(ristretto255.NewIdentityPoint(), c.commitment),
		handle:     ristretto255.NewIdentityPoint().Add(ristretto255.NewIdentityPoint(), c.handle),
	}
}

// Compress encodes c into its fixed 64-byte wire form.
func (c *Ciphertext) Compress() CompressedCiphertext {
	var cc CompressedCiphertext
	copy(cc.Commitment[:], c.commitment.Encode(nil))
	copy(cc.Handle[:], c.handle.Encode(nil))
	return cc
}

// Decompress decodes a CompressedCiphertext back into a usable Ciphertext.
func (cc CompressedCiphertext) Decompress() (*Ciphertext, error) {
	commitment := ristretto255.NewIdentityPoint()
	if err := commitment.Decode(cc.Commitment[:]); err != nil {
		return nil, errcode.New(errcode.InvalidFrame, "invalid commitment point: %s", err)
	}
	handle := ristretto255.NewIdentityPoint()
	if err := handle.Decode(cc.Handle[:]); err != nil {
		return nil, errcode.New(errcode.InvalidFrame, "invalid decrypt handle point: %s", err)
	}
	return &Ciphertext{commitment: commitment, handle: handle}, nil
}

// EncodePlainAmount lifts an unblinded plaintext amount (a fee or a block
// reward, neither of which the protocol hides) into the ciphertext space so
// it can be applied to an account's confidential balance with the same
// homomorphic Add/Sub a real encrypted Normal-transaction output uses. The
// commitment is amount*G with a zero blinding factor; the decrypt handle is
// the identity, matching blinding factor zero under any recipient key.
func EncodePlainAmount(amount uint64) *Ciphertext {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[:8], amount)
	scalar := ristretto255.NewScalar()
	if _, err := scalar.SetCanonicalBytes(buf[:]); err != nil {
		panic(errcode.New(errcode.InvalidFrame, "encode plain amount: %s", err))
	}
	commitment := ristretto255.NewIdentityPoint().ScalarBaseMult(scalar)
	return &Ciphertext{commitment: commitment, handle: ristretto255.NewIdentityPoint()}
}

// Write implements serializer.Serializer over the compressed form.
func (cc CompressedCiphertext) Write(w *serializer.Writer) {
	w.WriteBytes(cc.Commitment[:])
	w.WriteBytes(cc.Handle[:])
}

// Size implements serializer.Serializer.
func (cc CompressedCiphertext) Size() int {
	return 2 * CommitmentSize
}

// ReadCompressedCiphertext reads the fixed 64-byte compressed form from r.
func ReadCompressedCiphertext(r *serializer.Reader) (CompressedCiphertext, error) {
	var cc CompressedCiphertext
	commitment, err := r.ReadBytes(CommitmentSize)
	if err != nil {
		return cc, err
	}
	handle, err := r.ReadBytes(CommitmentSize)
	if err != nil {
		return cc, err
	}
	copy(cc.Commitment[:], commitment)
	copy(cc.Handle[:], handle)
	return cc, nil
}
