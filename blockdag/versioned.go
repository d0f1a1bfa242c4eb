package blockdag

import (
	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/serializer"
)

// VersionedBalance is one entry in a (account, asset) balance's
// singly-linked version chain, indexed by the topoheight it was written at.
// FinalBalance is the view shown to users; OutputBalance tracks amounts
// debited but not yet reflected in FinalBalance, so several transactions
// built against the same topoheight window cannot double-spend.
type VersionedBalance struct {
	FinalBalance      crypto.CompressedCiphertext
	OutputBalance     *crypto.CompressedCiphertext
	PreviousTopoheight *uint64
}

// HasPrevious reports whether this version points to an earlier one.
func (v *VersionedBalance) HasPrevious() bool {
	return v.PreviousTopoheight != nil
}

// Write implements serializer.Serializer.
func (v *VersionedBalance) Write(w *serializer.Writer) {
	w.WriteSerializer(v.FinalBalance)
	w.WriteBool(v.OutputBalance != nil)
	if v.OutputBalance != nil {
		w.WriteSerializer(*v.OutputBalance)
	}
	w.WriteBool(v.PreviousTopoheight != nil)
	if v.PreviousTopoheight != nil {
		w.WriteU64(*v.PreviousTopoheight)
	}
}

// Size implements serializer.Serializer.
func (v *VersionedBalance) Size() int {
	size := v.FinalBalance.Size() + 1
	if v.OutputBalance != nil {
		size += v.OutputBalance.Size()
	}
	size++
	if v.PreviousTopoheight != nil {
		size += 8
	}
	return size
}

// ReadVersionedBalance decodes a VersionedBalance from its storage encoding.
func ReadVersionedBalance(r *serializer.Reader) (*VersionedBalance, error) {
	v := &VersionedBalance{}
	final, err := crypto.ReadCompressedCiphertext(r)
	if err != nil {
		return nil, err
	}
	v.FinalBalance = final

	hasOutput, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	if hasOutput {
		output, err := crypto.ReadCompressedCiphertext(r)
		if err != nil {
			return nil, err
		}
		v.OutputBalance = &output
	}

	hasPrev, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	if hasPrev {
		prev, err := r.ReadU64()
		if err != nil {
			return nil, err
		}
		v.PreviousTopoheight = &prev
	}
	return v, nil
}

// VersionedNonce is one entry in an account's nonce version chain, with the
// same chaining discipline as VersionedBalance.
type VersionedNonce struct {
	Nonce              uint64
	PreviousTopoheight *uint64
}

// Write implements serializer.Serializer.
func (v *VersionedNonce) Write(w *serializer.Writer) {
	w.WriteU64(v.Nonce)
	w.WriteBool(v.PreviousTopoheight != nil)
	if v.PreviousTopoheight != nil {
		w.WriteU64(*v.PreviousTopoheight)
	}
}

// Size implements serializer.Serializer.
func (v *VersionedNonce) Size() int {
	size := 8 + 1
	if v.PreviousTopoheight != nil {
		size += 8
	}
	return size
}

// ReadVersionedNonce decodes a VersionedNonce from its storage encoding.
func ReadVersionedNonce(r *serializer.Reader) (*VersionedNonce, error) {
	v := &VersionedNonce{}
	nonce, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	v.Nonce = nonce

	hasPrev, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	if hasPrev {
		prev, err := r.ReadU64()
		if err != nil {
			return nil, err
		}
		v.PreviousTopoheight = &prev
	}
	return v, nil
}
