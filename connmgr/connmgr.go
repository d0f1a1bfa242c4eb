// Package connmgr owns the node's peer set: dialing seed nodes, accepting
// inbound connections, running the handshake, and dropping peers that
// cross MaxFailCount (spec.md section 4.7).
package connmgr

import (
	"net"
	"sync"
	"time"

	"github.com/shadowdag/shadowd/blockdag"
	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/dagconfig"
	"github.com/shadowdag/shadowd/errcode"
	"github.com/shadowdag/shadowd/logs"
	"github.com/shadowdag/shadowd/peer"
	"github.com/shadowdag/shadowd/util/panics"
	"github.com/shadowdag/shadowd/wire"
)

// dialRetryDelay is how long the outbound loop waits before retrying a
// seed address after a failed dial.
const dialRetryDelay = 5 * time.Second

// Manager owns every connected peer and the listener accepting new ones.
type Manager struct {
	log     logs.Logger
	params  *dagconfig.Params
	nodeTag string
	spawn   func(func())

	dag *blockdag.DAG

	mtx   sync.RWMutex
	peers map[string]*peer.Peer

	onPacket func(p *peer.Peer, payload wire.Payload)
}

// New creates a Manager. onPacket is invoked for every frame received from
// any peer after its handshake completes, on that peer's own goroutine.
func New(dag *blockdag.DAG, params *dagconfig.Params, nodeTag string, log logs.Logger, onPacket func(p *peer.Peer, payload wire.Payload)) *Manager {
	return &Manager{
		log:      log,
		params:   params,
		nodeTag:  nodeTag,
		spawn:    panics.GoroutineWrapperFunc(log),
		dag:      dag,
		peers:    make(map[string]*peer.Peer),
		onPacket: onPacket,
	}
}

// Peers returns a snapshot of the currently connected peers.
func (m *Manager) Peers() []*peer.Peer {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	out := make([]*peer.Peer, 0, len(m.peers))
	for _, p := range m.peers {
		out = append(out, p)
	}
	return out
}

// Count returns the number of currently connected peers.
func (m *Manager) Count() int {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return len(m.peers)
}

func (m *Manager) addPeer(p *peer.Peer) bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if len(m.peers) >= dagconfig.P2PDefaultMaxPeers {
		return false
	}
	if _, exists := m.peers[p.Address]; exists {
		return false
	}
	m.peers[p.Address] = p
	return true
}

func (m *Manager) removePeer(p *peer.Peer) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	delete(m.peers, p.Address)
}

// Listen accepts inbound connections on bindAddress until the listener is
// closed.
func (m *Manager) Listen(bindAddress string) error {
	ln, err := net.Listen("tcp", bindAddress)
	if err != nil {
		return errcode.New(errcode.StorageIO, "listen on %s: %s", bindAddress, err)
	}
	m.spawn(func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				m.log.Warnf("accept failed, listener shutting down: %s", err)
				return
			}
			p := peer.New(conn, conn.RemoteAddr().String(), true)
			m.spawn(func() { m.serve(p) })
		}
	})
	return nil
}

// DialSeeds dials every seed address in params and keeps retrying dropped
// ones for as long as the Manager is running.
func (m *Manager) DialSeeds() {
	for _, addr := range m.params.SeedNodes {
		addr := addr
		m.spawn(func() { m.dialLoop(addr) })
	}
}

func (m *Manager) dialLoop(addr string) {
	for {
		if m.Count() >= dagconfig.P2PDefaultMaxPeers {
			time.Sleep(dialRetryDelay)
			continue
		}
		conn, err := net.DialTimeout("tcp", addr, dialRetryDelay)
		if err != nil {
			m.log.Debugf("dial %s failed: %s", addr, err)
			time.Sleep(dialRetryDelay)
			continue
		}
		p := peer.New(conn, addr, false)
		m.serve(p)
		time.Sleep(dialRetryDelay)
	}
}

// serve runs the handshake then the receive loop for p, removing it from
// the peer set on any error.
func (m *Manager) serve(p *peer.Peer) {
	defer func() {
		m.removePeer(p)
		p.Close()
	}()

	if err := m.handshake(p); err != nil {
		m.log.Warnf("handshake with %s failed: %s", p.Address, err)
		return
	}

	if !m.addPeer(p) {
		m.log.Debugf("rejecting %s: peer set full or already connected", p.Address)
		return
	}
	m.log.Infof("peer %s ready (tag=%q height=%d)", p.Address, p.RemoteNodeTag(), p.BlockHeight())

	for {
		payload, err := p.Receive()
		if err != nil {
			m.log.Debugf("peer %s disconnected: %s", p.Address, err)
			return
		}
		if ping, ok := payload.(*wire.Ping); ok {
			p.SetTopHash(ping.BlockTopHash)
			p.SetBlockHeight(ping.BlockHeight)
		}
		p.ResetFailures()
		m.onPacket(p, payload)
	}
}

func (m *Manager) handshake(p *peer.Peer) error {
	topHash := m.params.GenesisHash
	height := uint64(0)
	if m.dag != nil {
		tips, err := m.dag.Tips()
		if err == nil {
			for h := range tips {
				topHash = h
				break
			}
		}
		if top, err := m.dag.TopHeight(); err == nil {
			height = top
		}
	}

	local := &wire.Handshake{
		Version:      "shadowd/0.1.0",
		LocalPort:    0,
		NodeTag:      m.nodeTag,
		BlockTopHash: topHash,
		BlockHeight:  height,
		NetworkID:    dagconfig.NetworkID,
	}
	if err := p.Send(local); err != nil {
		return err
	}

	payload, err := p.Receive()
	if err != nil {
		return err
	}
	remote, ok := payload.(*wire.Handshake)
	if !ok {
		return errcode.New(errcode.InvalidFrame, "expected Handshake, got %T", payload)
	}
	return p.CompleteHandshake(remote)
}

// Broadcast sends payload to every connected peer, skipping (and logging)
// any peer whose send fails rather than aborting the whole broadcast.
func (m *Manager) Broadcast(payload wire.Payload) {
	for _, p := range m.Peers() {
		if err := p.Send(payload); err != nil {
			m.log.Debugf("broadcast to %s failed: %s", p.Address, err)
		}
	}
}

// RequestChainFrom sends a RequestChain listing hashes to p, tracking it
// as an outstanding chain sync so a second request isn't sent before this
// one resolves or times out.
func (m *Manager) RequestChainFrom(p *peer.Peer, hashes []crypto.Hash) error {
	if p.MarkChainSyncRequested(time.Now()) {
		return errcode.New(errcode.ObjectAlreadyRequested, "chain sync already outstanding with %s", p.Address)
	}
	return p.Send(&wire.RequestChain{Hashes: hashes})
}

// PingAll sends a Ping advertising the DAG's current tip to every peer, to
// be called on a P2PPingDelaySecs ticker by the caller.
func (m *Manager) PingAll() {
	if m.dag == nil {
		return
	}
	top, err := m.dag.TopHeight()
	if err != nil {
		return
	}
	tips, err := m.dag.Tips()
	if err != nil || len(tips) == 0 {
		return
	}
	var tip crypto.Hash
	for h := range tips {
		tip = h
		break
	}
	m.Broadcast(&wire.Ping{BlockTopHash: tip, BlockHeight: top})
}

// DropStalePeers expires timed-out pending object requests across every
// peer and disconnects any peer that crosses MaxFailCount.
func (m *Manager) DropStalePeers() {
	now := time.Now()
	for _, p := range m.Peers() {
		if p.ChainSyncTimedOut(now) {
			p.ClearChainSyncRequested()
			if p.RecordFailure() {
				m.log.Warnf("dropping %s: chain sync timed out and fail count exceeded", p.Address)
				p.Close()
				continue
			}
		}
		if expired := p.ExpireStaleRequests(now); expired > 0 {
			for i := 0; i < expired; i++ {
				if p.RecordFailure() {
					m.log.Warnf("dropping %s: too many expired object requests", p.Address)
					p.Close()
					break
				}
			}
		}
	}
}
