// Package blockdag implements the BlockDAG engine (spec.md section 4.5):
// block validation, tip management, topological ordering, cumulative
// difficulty, and the rewind/commit state machine. It is the only component
// that mutates Storage.
package blockdag

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/dagconfig"
	"github.com/shadowdag/shadowd/errcode"
	"github.com/shadowdag/shadowd/logs"
)

// DAG is the chain-mutator task's handle onto the BlockDAG. One lock
// guards every commit and rewind; reads may proceed concurrently against
// the underlying Storage without taking it.
type DAG struct {
	mtx    sync.RWMutex
	store  Storage
	params *dagconfig.Params
	log    logs.Logger
}

// New creates a DAG over store, writing the genesis block if the store is
// empty.
func New(store Storage, params *dagconfig.Params, log logs.Logger) (*DAG, error) {
	d := &DAG{store: store, params: params, log: log}

	has, err := store.HasBlock(params.GenesisHash)
	if err != nil {
		return nil, err
	}
	if !has {
		if err := d.writeGenesis(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *DAG) writeGenesis() error {
	header := &Header{
		Version:     HeaderVersion,
		Height:      0,
		TimestampMs: d.params.GenesisTimestampMillis,
		MinerKey:    d.params.DevFeePublicKey,
		Tips:        nil,
	}
	// The genesis hash is a fixed network constant (dagconfig.Params), not
	// whatever header.Hash() recomputes from this particular encoding: every
	// consumer (idempotency check above, GenesisHash, Rewind's stop
	// condition) looks genesis up by params.GenesisHash.
	hash := d.params.GenesisHash

	if err := d.store.AddNewBlock(header, nil, d.params.GenesisDifficulty, hash); err != nil {
		return err
	}
	if err := d.store.SetCumulativeDifficultyForBlockHash(hash, d.params.GenesisDifficulty); err != nil {
		return err
	}
	if err := d.store.SetTopoHeightForBlock(hash, 0); err != nil {
		return err
	}
	if err := d.store.SetSupplyForBlockHash(hash, 0); err != nil {
		return err
	}
	if err := d.store.SetBlockReward(hash, 0); err != nil {
		return err
	}
	if err := d.store.StoreTips(map[crypto.Hash]struct{}{hash: {}}); err != nil {
		return err
	}
	if err := d.store.SetTopTopoheight(0); err != nil {
		return err
	}
	return d.store.SetTopHeight(0)
}

// GenesisHash returns the network's genesis block hash.
func (d *DAG) GenesisHash() crypto.Hash {
	return d.params.GenesisHash
}

// Store exposes the underlying Storage for read-only callers (C7/C8).
func (d *DAG) Store() Storage {
	return d.store
}

// Tips returns the current DAG tips.
func (d *DAG) Tips() (map[crypto.Hash]struct{}, error) {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	return d.store.GetTips()
}

// TopHeight returns the current top height.
func (d *DAG) TopHeight() (uint64, error) {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	return d.store.GetTopHeight()
}

// TopTopoheight returns the current top topoheight.
func (d *DAG) TopTopoheight() (uint64, error) {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	return d.store.GetTopTopoheight()
}

// isSideBlock reports whether a candidate block at height with cumulative
// difficulty cum would be the main-chain representative at that height, or
// a side block. The main-chain block at a height is the one with the
// highest cumulative difficulty among all blocks at that height, ties
// broken by the lower hash — the same rule ComputeTopologicalOrder uses.
func (d *DAG) isSideBlock(hash crypto.Hash, height uint64, cum uint64) (bool, error) {
	siblings, err := d.store.GetBlocksAtHeight(height)
	if err != nil {
		return false, err
	}
	for _, sibling := range siblings {
		if sibling == hash {
			continue
		}
		siblingCum, err := d.store.GetCumulativeDifficultyForBlockHash(sibling)
		if err != nil {
			return false, err
		}
		if siblingCum > cum || (siblingCum == cum && sibling.Less(hash)) {
			return true, nil
		}
	}
	return false, nil
}

// errRollback is a sentinel for an aborted commit. No code path returns it:
// Commit hands a mid-commit storage error back to its caller unchanged.
var errRollback = errors.New("blockdag: commit aborted")

// AssertRunning panics with the given reason if err is non-nil, mirroring
// the teacher's fatal-on-corrupt-state idiom for errors that should never
// occur outside of disk corruption.
func AssertRunning(log logs.Logger, err error, reason string) {
	if err != nil {
		log.Criticalf("%s: %s", reason, err)
		panic(errcode.New(errcode.StorageCorrupt, "%s: %s", reason, err))
	}
}
