package peer

import (
	"net"
	"testing"
	"time"

	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/dagconfig"
	"github.com/shadowdag/shadowd/wire"
)

func newTestPeer(t *testing.T) (*Peer, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close() })
	p := New(server, "127.0.0.1:1", false)
	t.Cleanup(func() { p.Close() })
	return p, client
}

func TestRecordFailureCrossesMaxFailCount(t *testing.T) {
	p, _ := newTestPeer(t)
	for i := 0; i < MaxFailCount-1; i++ {
		if p.RecordFailure() {
			t.Fatalf("crossed MaxFailCount too early at failure %d", i+1)
		}
	}
	if !p.RecordFailure() {
		t.Fatal("expected MaxFailCount to be crossed")
	}
	p.ResetFailures()
	if p.FailCount() != 0 {
		t.Fatalf("expected fail count reset to 0, got %d", p.FailCount())
	}
}

func TestCompleteHandshakeRejectsWrongNetwork(t *testing.T) {
	p, _ := newTestPeer(t)
	h := &wire.Handshake{
		Version:     "0.1.0",
		NodeTag:     "other",
		BlockHeight: 5,
		NetworkID:   [16]byte{0xFF},
	}
	if err := p.CompleteHandshake(h); err == nil {
		t.Fatal("expected rejection of mismatched network id")
	}
	if p.HandshakeDone() {
		t.Fatal("handshake must not be marked done on rejection")
	}
}

func TestCompleteHandshakeRecordsState(t *testing.T) {
	p, _ := newTestPeer(t)
	tip := crypto.HashBytes([]byte("tip"))
	h := &wire.Handshake{
		Version:      "0.1.0",
		NodeTag:      "other",
		BlockTopHash: tip,
		BlockHeight:  5,
		NetworkID:    dagconfig.NetworkID,
	}
	if err := p.CompleteHandshake(h); err != nil {
		t.Fatal(err)
	}
	if !p.HandshakeDone() {
		t.Fatal("expected handshake marked done")
	}
	if p.TopHash() != tip {
		t.Fatalf("expected top hash %s, got %s", tip, p.TopHash())
	}
	if p.BlockHeight() != 5 {
		t.Fatalf("expected block height 5, got %d", p.BlockHeight())
	}
	if p.RemoteNodeTag() != "other" {
		t.Fatalf("expected remote node tag %q, got %q", "other", p.RemoteNodeTag())
	}
}

func TestMarkChainSyncRequestedRejectsDuplicate(t *testing.T) {
	p, _ := newTestPeer(t)
	now := time.Now()
	if p.MarkChainSyncRequested(now) {
		t.Fatal("first request should not be reported as already outstanding")
	}
	if !p.MarkChainSyncRequested(now) {
		t.Fatal("second request should be reported as already outstanding")
	}
	p.ClearChainSyncRequested()
	if p.MarkChainSyncRequested(now) {
		t.Fatal("request after clear should not be reported as already outstanding")
	}
}

func TestChainSyncTimedOut(t *testing.T) {
	p, _ := newTestPeer(t)
	now := time.Now()
	if p.ChainSyncTimedOut(now) {
		t.Fatal("no outstanding request should never be timed out")
	}
	p.MarkChainSyncRequested(now)
	if p.ChainSyncTimedOut(now) {
		t.Fatal("freshly requested sync should not be timed out")
	}
	later := now.Add(time.Duration(dagconfig.ChainSyncTimeoutSecs)*time.Second + time.Millisecond)
	if !p.ChainSyncTimedOut(later) {
		t.Fatal("expected timeout after ChainSyncTimeoutSecs elapsed")
	}
}

func TestTrackRequestRejectsDuplicate(t *testing.T) {
	p, _ := newTestPeer(t)
	hash := crypto.HashBytes([]byte("obj"))
	now := time.Now()
	if p.TrackRequest(hash, now) {
		t.Fatal("first track should not report a duplicate")
	}
	if !p.TrackRequest(hash, now) {
		t.Fatal("second track of the same hash should report a duplicate")
	}
	p.ResolveRequest(hash)
	if p.TrackRequest(hash, now) {
		t.Fatal("track after resolve should not report a duplicate")
	}
}

func TestExpireStaleRequests(t *testing.T) {
	p, _ := newTestPeer(t)
	hash := crypto.HashBytes([]byte("obj"))
	now := time.Now()
	p.TrackRequest(hash, now)

	if expired := p.ExpireStaleRequests(now); expired != 0 {
		t.Fatalf("expected no expirations immediately, got %d", expired)
	}

	limit := time.Duration(dagconfig.PeerTimeoutRequestObjectMillis) * time.Millisecond
	later := now.Add(limit + time.Millisecond)
	if expired := p.ExpireStaleRequests(later); expired != 1 {
		t.Fatalf("expected 1 expiration, got %d", expired)
	}
	if expired := p.ExpireStaleRequests(later); expired != 0 {
		t.Fatalf("expected no double expiration, got %d", expired)
	}
}

func TestSendReceiveRoundTrip(t *testing.T) {
	p, client := newTestPeer(t)

	sent := &wire.Ping{BlockTopHash: crypto.HashBytes([]byte("tip")), BlockHeight: 9}
	done := make(chan error, 1)
	go func() { done <- p.Send(sent) }()

	got, err := wire.ReadFrame(client)
	if err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	gotPing, ok := got.(*wire.Ping)
	if !ok {
		t.Fatalf("expected *wire.Ping, got %T", got)
	}
	if *gotPing != *sent {
		t.Fatalf("round-trip mismatch: sent %+v got %+v", sent, gotPing)
	}
}
