package wire

import (
	"bytes"
	"testing"

	"github.com/shadowdag/shadowd/blockdag"
	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/dagconfig"
)

func TestWriteReadFrameHandshake(t *testing.T) {
	var buf bytes.Buffer
	sent := &Handshake{
		Version:      "0.1.0",
		LocalPort:    2125,
		NodeTag:      "node-a",
		BlockTopHash: dagconfig.MainnetParams.GenesisHash,
		BlockHeight:  42,
		NetworkID:    dagconfig.NetworkID,
	}
	if err := WriteFrame(&buf, sent); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	gotHandshake, ok := got.(*Handshake)
	if !ok {
		t.Fatalf("expected *Handshake, got %T", got)
	}
	if gotHandshake.Version != sent.Version || gotHandshake.NodeTag != sent.NodeTag ||
		gotHandshake.LocalPort != sent.LocalPort || gotHandshake.BlockHeight != sent.BlockHeight ||
		gotHandshake.BlockTopHash != sent.BlockTopHash || gotHandshake.NetworkID != sent.NetworkID {
		t.Fatalf("round-trip mismatch: sent %+v got %+v", sent, gotHandshake)
	}
}

func TestWriteReadFramePing(t *testing.T) {
	var buf bytes.Buffer
	sent := &Ping{BlockTopHash: crypto.HashBytes([]byte("tip")), BlockHeight: 7}
	if err := WriteFrame(&buf, sent); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	gotPing, ok := got.(*Ping)
	if !ok {
		t.Fatalf("expected *Ping, got %T", got)
	}
	if *gotPing != *sent {
		t.Fatalf("round-trip mismatch: sent %+v got %+v", sent, gotPing)
	}
}

func TestWriteReadFrameRequestChain(t *testing.T) {
	var buf bytes.Buffer
	sent := &RequestChain{Hashes: []crypto.Hash{
		crypto.HashBytes([]byte("a")),
		crypto.HashBytes([]byte("b")),
	}}
	if err := WriteFrame(&buf, sent); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	gotReq, ok := got.(*RequestChain)
	if !ok {
		t.Fatalf("expected *RequestChain, got %T", got)
	}
	if len(gotReq.Hashes) != len(sent.Hashes) {
		t.Fatalf("expected %d hashes, got %d", len(sent.Hashes), len(gotReq.Hashes))
	}
	for i := range sent.Hashes {
		if gotReq.Hashes[i] != sent.Hashes[i] {
			t.Fatalf("hash %d mismatch", i)
		}
	}
}

func TestWriteReadFrameTransaction(t *testing.T) {
	pair, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	tx := &blockdag.Transaction{
		Nonce:  3,
		Data:   blockdag.TransactionData{Variant: blockdag.VariantBurn, Burn: blockdag.BurnData{Amount: 500}},
		Sender: pair.PublicKey(),
		Fee:    10,
	}
	tx.Sign(pair)

	var buf bytes.Buffer
	if err := WriteFrame(&buf, &TransactionPacket{Tx: tx}); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	gotPacket, ok := got.(*TransactionPacket)
	if !ok {
		t.Fatalf("expected *TransactionPacket, got %T", got)
	}
	if gotPacket.Tx.Hash() != tx.Hash() {
		t.Fatalf("round-tripped tx hash mismatch")
	}
	if !gotPacket.Tx.VerifySignature() {
		t.Fatal("round-tripped tx signature does not verify")
	}
}

func TestReadFrameRejectsOversizedBody(t *testing.T) {
	var buf bytes.Buffer
	header := make([]byte, 5)
	header[0] = 0x7F
	header[1] = 0xFF
	header[2] = 0xFF
	header[3] = 0xFF
	header[4] = byte(TagPing)
	buf.Write(header)

	if _, err := ReadFrame(&buf); err == nil {
		t.Fatal("expected rejection of an oversized frame body")
	}
}

func TestReadFrameRejectsUnknownTag(t *testing.T) {
	var buf bytes.Buffer
	body := []byte{0xFF, 1, 2, 3}
	header := make([]byte, 4)
	for i := range header {
		header[i] = 0
	}
	header[3] = byte(len(body))
	buf.Write(header)
	buf.Write(body)

	if _, err := ReadFrame(&buf); err == nil {
		t.Fatal("expected rejection of an unknown packet tag")
	}
}
