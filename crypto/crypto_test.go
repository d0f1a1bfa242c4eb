package crypto

import "testing"

func TestSignAndVerify(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	hash := HashBytes([]byte("transaction payload"))
	sig := kp.Sign(hash[:])

	if !VerifySignature(kp.PublicKey(), hash, sig) {
		t.Fatal("expected signature to verify")
	}

	other := HashBytes([]byte("different payload"))
	if VerifySignature(kp.PublicKey(), other, sig) {
		t.Fatal("signature must not verify over a different hash")
	}
}

func TestVerifySignatureNeverPanics(t *testing.T) {
	var pub PublicKey
	var sig Signature
	if VerifySignature(pub, Hash{}, sig) {
		t.Fatal("garbage signature must not verify")
	}
}

func TestCiphertextZeroAddSub(t *testing.T) {
	zero := Zero()
	compressed := zero.Compress()
	decoded, err := compressed.Decompress()
	if err != nil {
		t.Fatal(err)
	}

	sum := zero.Clone().Add(decoded)
	if sum.Compress() != Zero().Compress() {
		t.Fatal("zero + zero must still be zero")
	}

	diff := sum.Clone().Sub(decoded)
	if diff.Compress() != Zero().Compress() {
		t.Fatal("(zero+zero) - zero must be zero")
	}
}

func TestHashRoundTripHex(t *testing.T) {
	h := HashBytes([]byte("genesis"))
	parsed, err := HashFromHex(h.String())
	if err != nil {
		t.Fatal(err)
	}
	if parsed != h {
		t.Fatalf("hash hex round trip mismatch: %s != %s", parsed, h)
	}
}
