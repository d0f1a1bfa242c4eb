// Package chainsync implements chain sync (spec.md section 4.8): pulling
// an alien chain from a peer advertising a higher tip into a sandboxed
// validator, then committing it to blockdag only if the whole run
// validates cleanly.
package chainsync

import (
	"time"

	"github.com/shadowdag/shadowd/blockdag"
	"github.com/shadowdag/shadowd/connmgr"
	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/dagconfig"
	"github.com/shadowdag/shadowd/errcode"
	"github.com/shadowdag/shadowd/logs"
	"github.com/shadowdag/shadowd/peer"
	"github.com/shadowdag/shadowd/wire"
)

// validatorEntry is one header the sandbox has accepted, together with the
// difficulty it was validated against. Cumulative difficulty is tracked as
// a placeholder during validation and only means something once the run
// commits and blockdag recomputes it for real.
type validatorEntry struct {
	header     *blockdag.Header
	difficulty uint64
}

// ChainValidator is the alien-chain sandbox described in spec.md section
// 4.8: it behaves as a blockdag.DifficultyProvider over the union of the
// main store and whatever headers this run has accepted so far, so PoW and
// tip-resolution checks see a consistent view without ever touching the
// live DAG.
type ChainValidator struct {
	store blockdag.DifficultyProvider

	order   []crypto.Hash
	entries map[crypto.Hash]*validatorEntry
}

// NewChainValidator creates an empty sandbox layered over store.
func NewChainValidator(store blockdag.DifficultyProvider) *ChainValidator {
	return &ChainValidator{
		store:   store,
		entries: make(map[crypto.Hash]*validatorEntry),
	}
}

// Order returns the hashes accepted so far, in insertion order.
func (v *ChainValidator) Order() []crypto.Hash {
	return v.order
}

func (v *ChainValidator) lookup(hash crypto.Hash) (*validatorEntry, bool) {
	e, ok := v.entries[hash]
	return e, ok
}

// GetHeightForBlockHash implements blockdag.DifficultyProvider.
func (v *ChainValidator) GetHeightForBlockHash(hash crypto.Hash) (uint64, error) {
	if e, ok := v.lookup(hash); ok {
		return e.header.Height, nil
	}
	return v.store.GetHeightForBlockHash(hash)
}

// GetTimestampForBlockHash implements blockdag.DifficultyProvider.
func (v *ChainValidator) GetTimestampForBlockHash(hash crypto.Hash) (uint64, error) {
	if e, ok := v.lookup(hash); ok {
		return e.header.TimestampMs, nil
	}
	return v.store.GetTimestampForBlockHash(hash)
}

// GetDifficultyForBlockHash implements blockdag.DifficultyProvider.
func (v *ChainValidator) GetDifficultyForBlockHash(hash crypto.Hash) (uint64, error) {
	if e, ok := v.lookup(hash); ok {
		return e.difficulty, nil
	}
	return v.store.GetDifficultyForBlockHash(hash)
}

// GetCumulativeDifficultyForBlockHash implements blockdag.DifficultyProvider.
// Sandboxed entries report a zero placeholder: the sandbox only needs
// difficulty and timestamp to validate PoW and derive the next expected
// difficulty, never the real cumulative ordering, which blockdag
// recomputes from scratch on commit.
func (v *ChainValidator) GetCumulativeDifficultyForBlockHash(hash crypto.Hash) (uint64, error) {
	if _, ok := v.lookup(hash); ok {
		return 0, nil
	}
	return v.store.GetCumulativeDifficultyForBlockHash(hash)
}

// GetBlockHeaderByHash implements blockdag.DifficultyProvider.
func (v *ChainValidator) GetBlockHeaderByHash(hash crypto.Hash) (*blockdag.Header, error) {
	if e, ok := v.lookup(hash); ok {
		return e.header, nil
	}
	return v.store.GetBlockHeaderByHash(hash)
}

func (v *ChainValidator) known(hash crypto.Hash) (bool, error) {
	if _, ok := v.lookup(hash); ok {
		return true, nil
	}
	_, err := v.store.GetHeightForBlockHash(hash)
	if err == nil {
		return true, nil
	}
	if errcode.Is(err, errcode.UnknownBlock) {
		return false, nil
	}
	return false, err
}

// Insert validates header against the sandboxed view (tips resolvable and
// unique, not already known, PoW valid against the expected difficulty)
// and, if it passes, records it and returns the difficulty it was
// validated against.
func (v *ChainValidator) Insert(header *blockdag.Header) (uint64, error) {
	hash := header.Hash()

	if already, err := v.known(hash); err != nil {
		return 0, err
	} else if already {
		return 0, errcode.New(errcode.AlreadyInChain, "header %s already known", hash)
	}

	if err := header.ValidateTips(); err != nil {
		return 0, err
	}
	for _, tip := range header.Tips {
		ok, err := v.known(tip)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, errcode.New(errcode.InvalidTips, "tip %s not resolvable in sandbox or store", tip)
		}
	}

	expected, err := blockdag.ExpectedDifficulty(v, header.Tips, header.TimestampMs)
	if err != nil {
		return 0, err
	}
	if !blockdag.CheckProofOfWork(header.PoWHash(), expected) {
		return 0, errcode.New(errcode.InvalidPoW, "header %s fails proof of work at difficulty %d", hash, expected)
	}

	v.entries[hash] = &validatorEntry{header: header, difficulty: expected}
	v.order = append(v.order, hash)
	return expected, nil
}

// fetcher is the subset of connmgr.Manager a Syncer needs, so tests can
// supply a fake.
type fetcher interface {
	RequestChainFrom(p *peer.Peer, hashes []crypto.Hash) error
}

// Syncer drives the chain-sync procedure against one peer at a time.
type Syncer struct {
	dag  *blockdag.DAG
	conn fetcher
	log  logs.Logger
}

// New creates a Syncer.
func New(dag *blockdag.DAG, conn *connmgr.Manager, log logs.Logger) *Syncer {
	return &Syncer{dag: dag, conn: conn, log: log}
}

// locatorHashes returns up to CHAIN_SYNC_REQUEST_MAX_BLOCKS of our own
// recent topoheight hashes, most recent first, as the basis for the
// peer's common-ancestor search.
func (s *Syncer) locatorHashes() ([]crypto.Hash, error) {
	top, err := s.dag.TopTopoheight()
	if err != nil {
		return nil, err
	}
	var hashes []crypto.Hash
	for i := uint64(0); i < dagconfig.ChainSyncRequestMaxBlocks; i++ {
		if top < i {
			break
		}
		hash, err := s.dag.Store().GetHashAtTopoHeight(top - i)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	return hashes, nil
}

// ShouldSync reports whether p's advertised height is above our top height.
// It applies no per-peer delay between syncs: ChainSyncDelaySecs is not
// consulted.
func (s *Syncer) ShouldSync(p *peer.Peer) (bool, error) {
	top, err := s.dag.TopHeight()
	if err != nil {
		return false, err
	}
	return p.BlockHeight() > top, nil
}

// BeginSync sends the initial RequestChain to p and returns; it reads no
// reply. Run consumes a reply (a sequence of Block packets) through its
// recv function.
func (s *Syncer) BeginSync(p *peer.Peer) error {
	hashes, err := s.locatorHashes()
	if err != nil {
		return err
	}
	return s.conn.RequestChainFrom(p, hashes)
}

// Run drives one full sync attempt against p using recv to pull packets:
// it keeps reading Block packets into a fresh ChainValidator until either
// the deadline elapses, recv signals it has nothing more to offer (nil,
// nil), or a header fails validation. A read error or a rejected header
// ends the attempt before anything is committed, and the sandbox is
// discarded. Otherwise every accepted block is committed to the live DAG
// in insertion order, one Commit at a time; a Commit error stops the loop
// and the blocks committed before it stay in the DAG.
func (s *Syncer) Run(p *peer.Peer, recv func(deadline time.Time) (*wire.BlockPacket, error)) error {
	validator := NewChainValidator(s.dag.Store())
	blocks := make(map[crypto.Hash]*blockdag.Block)

	deadline := time.Now().Add(dagconfig.ChainSyncTimeoutSecs * time.Second)
	for len(validator.Order()) < dagconfig.ChainSyncRequestMaxBlocks {
		packet, err := recv(deadline)
		if err != nil {
			p.RecordFailure()
			return err
		}
		if packet == nil {
			break
		}

		if _, err := validator.Insert(packet.Block.Header); err != nil {
			p.RecordFailure()
			return err
		}
		blocks[packet.Block.Hash()] = packet.Block
	}

	for _, hash := range validator.Order() {
		block, ok := blocks[hash]
		if !ok {
			p.RecordFailure()
			return errcode.New(errcode.UnknownBlock, "sandbox accepted header %s without a body", hash)
		}
		if err := s.dag.Commit(block); err != nil {
			p.RecordFailure()
			return err
		}
	}

	p.ResetFailures()
	p.ClearChainSyncRequested()
	s.log.Infof("synced %d blocks from %s", len(validator.Order()), p.Address)
	return nil
}
