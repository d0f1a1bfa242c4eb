// Package peer models one connected P2P link: its negotiated handshake
// state, its advertised chain tip, and the bounded set of objects this
// node has asked it for but not yet received (spec.md section 4.7).
package peer

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/dagconfig"
	"github.com/shadowdag/shadowd/errcode"
	"github.com/shadowdag/shadowd/wire"
)

// MaxFailCount is how many consecutive request timeouts or protocol
// violations a peer tolerates before the connection manager drops it.
const MaxFailCount = 3

// Peer is one connected remote node.
type Peer struct {
	Conn    net.Conn
	Address string
	Inbound bool

	failCount      int32
	blockHeight    uint64
	chainRequested uint32
	lastChainSync  int64 // unix millis

	mtx             sync.RWMutex
	handshakeDone   bool
	remoteVersion   string
	remoteNodeTag   string
	topHash         crypto.Hash
	pendingRequests map[crypto.Hash]time.Time
}

// New wraps conn as a not-yet-handshaken Peer.
func New(conn net.Conn, address string, inbound bool) *Peer {
	return &Peer{
		Conn:            conn,
		Address:         address,
		Inbound:         inbound,
		pendingRequests: make(map[crypto.Hash]time.Time),
	}
}

// FailCount returns the peer's current consecutive-failure count.
func (p *Peer) FailCount() int32 {
	return atomic.LoadInt32(&p.failCount)
}

// RecordFailure increments the failure count and reports whether the peer
// has now crossed MaxFailCount and should be dropped.
func (p *Peer) RecordFailure() bool {
	return atomic.AddInt32(&p.failCount, 1) >= MaxFailCount
}

// ResetFailures clears the failure count after a successful exchange.
func (p *Peer) ResetFailures() {
	atomic.StoreInt32(&p.failCount, 0)
}

// BlockHeight returns the peer's last-advertised chain height.
func (p *Peer) BlockHeight() uint64 {
	return atomic.LoadUint64(&p.blockHeight)
}

// SetBlockHeight updates the peer's last-advertised chain height.
func (p *Peer) SetBlockHeight(height uint64) {
	atomic.StoreUint64(&p.blockHeight, height)
}

// MarkChainSyncRequested records that a RequestChain was just sent, and
// reports whether one was already outstanding.
func (p *Peer) MarkChainSyncRequested(now time.Time) bool {
	alreadyRequested := atomic.SwapUint32(&p.chainRequested, 1) == 1
	atomic.StoreInt64(&p.lastChainSync, now.UnixMilli())
	return alreadyRequested
}

// ClearChainSyncRequested marks the outstanding chain sync as resolved.
func (p *Peer) ClearChainSyncRequested() {
	atomic.StoreUint32(&p.chainRequested, 0)
}

// ChainSyncTimedOut reports whether an outstanding chain sync request has
// been pending longer than ChainSyncTimeoutSecs.
func (p *Peer) ChainSyncTimedOut(now time.Time) bool {
	if atomic.LoadUint32(&p.chainRequested) == 0 {
		return false
	}
	last := atomic.LoadInt64(&p.lastChainSync)
	return now.UnixMilli()-last > dagconfig.ChainSyncTimeoutSecs*1000
}

// CompleteHandshake records the remote side's Handshake packet. It fails
// if the peer's advertised network id doesn't match ours.
func (p *Peer) CompleteHandshake(h *wire.Handshake) error {
	if h.NetworkID != dagconfig.NetworkID {
		return errcode.New(errcode.NetworkIDMismatch, "peer %s advertised network id %x, expected %x", p.Address, h.NetworkID, dagconfig.NetworkID)
	}

	p.mtx.Lock()
	p.handshakeDone = true
	p.remoteVersion = h.Version
	p.remoteNodeTag = h.NodeTag
	p.topHash = h.BlockTopHash
	p.mtx.Unlock()

	p.SetBlockHeight(h.BlockHeight)
	return nil
}

// HandshakeDone reports whether CompleteHandshake has already run.
func (p *Peer) HandshakeDone() bool {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return p.handshakeDone
}

// TopHash returns the peer's last-advertised chain tip.
func (p *Peer) TopHash() crypto.Hash {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return p.topHash
}

// SetTopHash updates the peer's last-advertised chain tip, as reported by
// a Ping.
func (p *Peer) SetTopHash(hash crypto.Hash) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.topHash = hash
}

// RemoteNodeTag returns the user-agent-style tag the peer advertised.
func (p *Peer) RemoteNodeTag() string {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return p.remoteNodeTag
}

// TrackRequest records that hash was just requested from this peer, and
// reports whether it was already outstanding (in which case the caller
// must not send a duplicate request).
func (p *Peer) TrackRequest(hash crypto.Hash, now time.Time) bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if _, ok := p.pendingRequests[hash]; ok {
		return true
	}
	p.pendingRequests[hash] = now
	return false
}

// ResolveRequest clears an outstanding request once its object arrives.
func (p *Peer) ResolveRequest(hash crypto.Hash) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	delete(p.pendingRequests, hash)
}

// ExpireStaleRequests drops any outstanding request older than
// PeerTimeoutRequestObjectMillis and reports how many were dropped, so the
// caller can charge the peer's failure count accordingly.
func (p *Peer) ExpireStaleRequests(now time.Time) int {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	expired := 0
	limit := time.Duration(dagconfig.PeerTimeoutRequestObjectMillis) * time.Millisecond
	for hash, requestedAt := range p.pendingRequests {
		if now.Sub(requestedAt) > limit {
			delete(p.pendingRequests, hash)
			expired++
		}
	}
	return expired
}

// Send writes payload as one frame on the peer's connection.
func (p *Peer) Send(payload wire.Payload) error {
	return wire.WriteFrame(p.Conn, payload)
}

// Receive blocks for the next frame on the peer's connection.
func (p *Peer) Receive() (wire.Payload, error) {
	return wire.ReadFrame(p.Conn)
}

// Close closes the underlying connection.
func (p *Peer) Close() error {
	return p.Conn.Close()
}
