package connmgr

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/dagconfig"
	"github.com/shadowdag/shadowd/logs"
	"github.com/shadowdag/shadowd/peer"
	"github.com/shadowdag/shadowd/wire"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	backend := logs.NewBackend([]*logs.BackendWriter{logs.NewAllLevelsBackendWriter(os.Stderr)})
	params := dagconfig.TestnetParams
	var received []wire.Payload
	m := New(nil, &params, "test-node", backend.Logger("TEST"), func(p *peer.Peer, payload wire.Payload) {
		received = append(received, payload)
	})
	return m
}

func newLoopbackPeer(t *testing.T, address string) (*peer.Peer, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close() })
	p := peer.New(server, address, false)
	t.Cleanup(func() { p.Close() })
	return p, client
}

func TestAddPeerRejectsDuplicateAddress(t *testing.T) {
	m := newTestManager(t)
	p1, _ := newLoopbackPeer(t, "127.0.0.1:1")
	p2, _ := newLoopbackPeer(t, "127.0.0.1:1")

	if !m.addPeer(p1) {
		t.Fatal("expected first add to succeed")
	}
	if m.addPeer(p2) {
		t.Fatal("expected duplicate address to be rejected")
	}
	if m.Count() != 1 {
		t.Fatalf("expected 1 peer, got %d", m.Count())
	}

	m.removePeer(p1)
	if m.Count() != 0 {
		t.Fatalf("expected 0 peers after removal, got %d", m.Count())
	}
}

func TestAddPeerEnforcesMaxPeers(t *testing.T) {
	m := newTestManager(t)
	for i := 0; i < dagconfig.P2PDefaultMaxPeers; i++ {
		p, _ := newLoopbackPeer(t, addressFor(i))
		if !m.addPeer(p) {
			t.Fatalf("expected peer %d to be accepted", i)
		}
	}
	overflow, _ := newLoopbackPeer(t, addressFor(dagconfig.P2PDefaultMaxPeers))
	if m.addPeer(overflow) {
		t.Fatal("expected peer set full rejection")
	}
}

func addressFor(i int) string {
	return "127.0.0.1:" + string(rune('A'+i))
}

func TestRequestChainFromRejectsDuplicateOutstandingSync(t *testing.T) {
	m := newTestManager(t)
	p, client := newLoopbackPeer(t, "127.0.0.1:1")

	done := make(chan error, 1)
	go func() { done <- m.RequestChainFrom(p, []crypto.Hash{crypto.HashBytes([]byte("a"))}) }()
	if _, err := wire.ReadFrame(client); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	if err := m.RequestChainFrom(p, []crypto.Hash{crypto.HashBytes([]byte("b"))}); err == nil {
		t.Fatal("expected rejection of a second outstanding chain sync")
	}
}

func TestBroadcastSkipsFailedPeer(t *testing.T) {
	m := newTestManager(t)
	p, client := newLoopbackPeer(t, "127.0.0.1:1")
	if !m.addPeer(p) {
		t.Fatal("expected add to succeed")
	}
	client.Close()
	p.Close()

	done := make(chan struct{})
	go func() {
		m.Broadcast(&wire.Ping{BlockHeight: 1})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast did not return after a failed send")
	}
}
