// Command shadowd runs the node daemon: storage, the BlockDAG engine, the
// transaction pool, the P2P peer set, and chain sync, wired together the
// way the teacher's top-level kaspad.go wires its own services.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"golang.org/x/sync/errgroup"

	"github.com/shadowdag/shadowd/blockdag"
	"github.com/shadowdag/shadowd/chainsync"
	"github.com/shadowdag/shadowd/connmgr"
	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/dagconfig"
	"github.com/shadowdag/shadowd/database"
	"github.com/shadowdag/shadowd/logger"
	"github.com/shadowdag/shadowd/logs"
	"github.com/shadowdag/shadowd/mempool"
	"github.com/shadowdag/shadowd/peer"
	"github.com/shadowdag/shadowd/util/panics"
	"github.com/shadowdag/shadowd/wire"
)

var nodeLog logs.Logger

// shadowd is a wrapper for every service the daemon runs.
type shadowd struct {
	cfg   *dagconfig.Config
	store *database.Store
	dag   *blockdag.DAG
	pool  *mempool.Pool
	conn  *connmgr.Manager
	sync  *chainsync.Syncer
	spawn func(func())
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.InitLogRotators(cfg.LogDir+"/shadowd.log", cfg.LogDir+"/shadowd_err.log")
	if err := logger.ParseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	nodeLog, _ = logger.Get(logger.SubsystemTags.NODE)

	node, err := newShadowd(cfg)
	if err != nil {
		nodeLog.Criticalf("failed to initialize: %s", err)
		os.Exit(1)
	}
	node.start()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	node.stop()
}

func loadConfig() (*dagconfig.Config, error) {
	cfg := &dagconfig.Config{}
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newShadowd builds every service but does not yet listen, dial, or start
// any background loop; call start for that.
func newShadowd(cfg *dagconfig.Config) (*shadowd, error) {
	storLog, _ := logger.Get(logger.SubsystemTags.STOR)
	store, err := database.Open(cfg.DataDir, storLog)
	if err != nil {
		return nil, err
	}

	bdagLog, _ := logger.Get(logger.SubsystemTags.BDAG)
	dag, err := blockdag.New(store, cfg.NetParams, bdagLog)
	if err != nil {
		return nil, err
	}

	txmpLog, _ := logger.Get(logger.SubsystemTags.TXMP)
	pool := mempool.New(txmpLog)

	node := &shadowd{
		cfg:   cfg,
		store: store,
		dag:   dag,
		pool:  pool,
		spawn: panics.GoroutineWrapperFunc(nodeLog),
	}

	cmgrLog, _ := logger.Get(logger.SubsystemTags.CMGR)
	node.conn = connmgr.New(dag, cfg.NetParams, "shadowd/0.1.0", cmgrLog, node.handlePacket)

	syncLog, _ := logger.Get(logger.SubsystemTags.SYNC)
	node.sync = chainsync.New(dag, node.conn, syncLog)

	return node, nil
}

// handlePacket routes one inbound packet from p into the relevant
// subsystem: new transactions reach the pool, new blocks are committed
// directly, and RequestChain is answered inline. Ping only needs the tip
// update connmgr's receive loop already applied before dispatching here.
func (s *shadowd) handlePacket(p *peer.Peer, payload wire.Payload) {
	switch msg := payload.(type) {
	case *wire.TransactionPacket:
		if err := s.pool.Add(msg.Tx, s.dag.Store()); err != nil {
			return
		}
		s.conn.Broadcast(msg)

	case *wire.BlockPacket:
		if err := s.dag.Commit(msg.Block); err != nil {
			return
		}
		s.pool.RemoveExecuted(txHashes(msg.Block))
		s.conn.Broadcast(msg)

	case *wire.RequestChain:
		s.replyRequestChain(p, msg)
	}
}

func txHashes(block *blockdag.Block) []crypto.Hash {
	hashes := make([]crypto.Hash, 0, len(block.Txs))
	for _, tx := range block.Txs {
		hashes = append(hashes, tx.Hash())
	}
	return hashes
}

// replyRequestChain answers a RequestChain with every block this node has
// above the peer's locator, newest first, bounded by
// ChainSyncRequestMaxBlocks.
func (s *shadowd) replyRequestChain(p *peer.Peer, req *wire.RequestChain) {
	known := make(map[crypto.Hash]struct{}, len(req.Hashes))
	for _, h := range req.Hashes {
		known[h] = struct{}{}
	}

	top, err := s.dag.TopTopoheight()
	if err != nil {
		return
	}
	sent := 0
	for i := uint64(0); i <= top && sent < dagconfig.ChainSyncRequestMaxBlocks; i++ {
		topoheight := top - i
		hash, err := s.dag.Store().GetHashAtTopoHeight(topoheight)
		if err != nil {
			return
		}
		if _, ok := known[hash]; ok {
			return
		}
		block, err := s.dag.Store().GetBlock(hash)
		if err != nil {
			return
		}
		if err := p.Send(&wire.BlockPacket{Block: block}); err != nil {
			return
		}
		sent++
	}
}

func (s *shadowd) start() {
	if err := s.conn.Listen(s.cfg.Listen); err != nil {
		nodeLog.Criticalf("failed to listen on %s: %s", s.cfg.Listen, err)
		panics.Exit(nodeLog, "listener failed")
	}
	if !s.cfg.NoSeed {
		s.conn.DialSeeds()
	}

	s.spawn(func() {
		ticker := time.NewTicker(dagconfig.P2PPingDelaySecs * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			s.conn.PingAll()
			s.conn.DropStalePeers()
			s.maybeSyncFromPeers()
		}
	})
}

// maybeSyncFromPeers dispatches the initial RequestChain to every peer
// currently ahead of us, concurrently: the chain-sync locator lookup and
// the outbound send are independent per peer, so there is no reason to
// serialize one slow/unresponsive peer behind another.
func (s *shadowd) maybeSyncFromPeers() {
	var g errgroup.Group
	for _, p := range s.conn.Peers() {
		p := p
		g.Go(func() error {
			should, err := s.sync.ShouldSync(p)
			if err != nil || !should {
				return nil
			}
			if err := s.sync.BeginSync(p); err != nil {
				nodeLog.Debugf("chain sync request to %s failed: %s", p.Address, err)
			}
			return nil
		})
	}
	g.Wait()
}

func (s *shadowd) stop() {
	nodeLog.Infof("shadowd shutting down")
	s.store.Close()
}
