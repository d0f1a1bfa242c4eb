package blockdag

import (
	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/dagconfig"
	"github.com/shadowdag/shadowd/errcode"
)

// Prune discards version history strictly below topoheight: it first severs
// every account's balance/nonce chain at topoheight (so each chain's
// surviving head never points below the new floor), then deletes every
// version record between the previous pruned floor and topoheight, and
// finally advances the stored pruned topoheight. It refuses to prune inside
// the MaxBlockRewind window below the current top, so Rewind never needs
// history pruning has already discarded.
func (d *DAG) Prune(topoheight uint64) error {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	top, err := d.store.GetTopTopoheight()
	if err != nil {
		return err
	}
	if topoheight == 0 || topoheight+dagconfig.MaxBlockRewind > top {
		return errcode.New(errcode.RewindBlocked, "cannot prune at topoheight %d: must stay %d below current top %d", topoheight, dagconfig.MaxBlockRewind, top)
	}

	prunedAt, hasPruned, err := d.store.GetPrunedTopoheight()
	if err != nil {
		return err
	}
	if hasPruned && topoheight <= prunedAt {
		return nil
	}

	assets := []crypto.Hash{crypto.ZeroHash}
	if err := d.store.CreateSnapshotBalancesAtTopoheight(assets, topoheight); err != nil {
		return err
	}
	if err := d.store.CreateSnapshotNoncesAtTopoheight(topoheight); err != nil {
		return err
	}

	start := uint64(0)
	if hasPruned {
		start = prunedAt + 1
	}
	for t := start; t < topoheight; t++ {
		for _, asset := range assets {
			if err := d.store.DeleteVersionedBalancesForAssetAtTopoheight(asset, t); err != nil {
				return err
			}
		}
		if err := d.store.DeleteVersionedNoncesAtTopoheight(t); err != nil {
			return err
		}
	}

	return d.store.SetPrunedTopoheight(topoheight)
}
