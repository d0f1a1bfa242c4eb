package blockdag

import (
	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/dagconfig"
	"github.com/shadowdag/shadowd/errcode"
)

// Rewind pops n topoheights off the top of the DAG in reverse order. For
// each popped topoheight it deletes the versioned balances/nonces produced
// there (restoring each account's head pointer to the prior version),
// unmarks the block's transaction executions, and deletes the
// topoheight<->hash indices. It then sets the tip set to the single block
// at the new top topoheight; other blocks left without a child are not
// restored as tips. It refuses to rewind past dagconfig.MaxBlockRewind
// below the current top.
func (d *DAG) Rewind(n uint64) error {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	if n > dagconfig.MaxBlockRewind {
		return errcode.New(errcode.RewindBlocked, "cannot rewind %d topoheights, maximum is %d", n, dagconfig.MaxBlockRewind)
	}

	top, err := d.store.GetTopTopoheight()
	if err != nil {
		return err
	}
	if n > top {
		return errcode.New(errcode.RewindBlocked, "cannot rewind %d topoheights below genesis", n)
	}

	for i := uint64(0); i < n; i++ {
		if err := d.rewindOne(top - i); err != nil {
			return err
		}
	}

	newTop := top - n
	if err := d.store.SetTopTopoheight(newTop); err != nil {
		return err
	}

	hash, err := d.store.GetHashAtTopoHeight(newTop)
	if err != nil {
		return err
	}
	header, err := d.store.GetBlockHeader(hash)
	if err != nil {
		return err
	}
	if err := d.store.SetTopHeight(header.Height); err != nil {
		return err
	}

	return d.store.StoreTips(map[crypto.Hash]struct{}{hash: {}})
}

// rewindOne removes the block at topoheight, undoing its effects.
func (d *DAG) rewindOne(topoheight uint64) error {
	hash, err := d.store.GetHashAtTopoHeight(topoheight)
	if err != nil {
		return err
	}
	if hash == d.params.GenesisHash {
		return errcode.New(errcode.RewindBlocked, "cannot rewind past genesis")
	}

	block, err := d.store.GetBlock(hash)
	if err != nil {
		return err
	}

	for _, tx := range block.Txs {
		executer, ok, err := d.store.GetBlockExecuterForTx(tx.Hash())
		if err != nil {
			return err
		}
		if ok && executer == hash {
			if err := d.store.RemoveTxExecuted(tx.Hash()); err != nil {
				return err
			}
		}
		if err := d.unwindAccountVersions(tx, topoheight); err != nil {
			return err
		}
	}

	// The dev fee is credited by Commit outside any transaction.
	if has, err := d.store.HasBalanceAtExactTopoheight(d.params.DevFeePublicKey, crypto.ZeroHash, topoheight); err != nil {
		return err
	} else if has {
		if err := d.restoreBalanceHead(d.params.DevFeePublicKey, crypto.ZeroHash, topoheight); err != nil {
			return err
		}
	}

	if _, err := d.store.DeleteBlockAtTopoheight(topoheight); err != nil {
		return err
	}
	return nil
}

// unwindAccountVersions deletes the version entries a transaction wrote at
// topoheight, restoring balance_head/nonce_head to the prior version in the
// chain.
func (d *DAG) unwindAccountVersions(tx *Transaction, topoheight uint64) error {
	asset := crypto.ZeroHash

	if has, err := d.store.HasBalanceAtExactTopoheight(tx.Sender, asset, topoheight); err != nil {
		return err
	} else if has {
		if err := d.restoreBalanceHead(tx.Sender, asset, topoheight); err != nil {
			return err
		}
	}

	if tx.Data.Variant == VariantNormal {
		for _, out := range tx.Data.Normal {
			if has, err := d.store.HasBalanceAtExactTopoheight(out.To, asset, topoheight); err != nil {
				return err
			} else if has {
				if err := d.restoreBalanceHead(out.To, asset, topoheight); err != nil {
					return err
				}
			}
		}
	}
	if tx.IsCoinbase() {
		if has, err := d.store.HasBalanceAtExactTopoheight(tx.Sender, asset, topoheight); err != nil {
			return err
		} else if has {
			if err := d.restoreBalanceHead(tx.Sender, asset, topoheight); err != nil {
				return err
			}
		}
	}

	if has, err := d.store.HasNonceAtExactTopoheight(tx.Sender, topoheight); err != nil {
		return err
	} else if has {
		if err := d.restoreNonceHead(tx.Sender, topoheight); err != nil {
			return err
		}
	}
	return nil
}

func (d *DAG) restoreBalanceHead(account crypto.PublicKey, asset crypto.Hash, topoheight uint64) error {
	version, err := d.store.GetBalanceAtExactTopoheight(account, asset, topoheight)
	if err != nil {
		return err
	}
	if err := d.store.DeleteBalanceAtTopoheight(account, asset, topoheight); err != nil {
		return err
	}
	if version.PreviousTopoheight == nil {
		return nil
	}
	prevVersion, err := d.store.GetBalanceAtExactTopoheight(account, asset, *version.PreviousTopoheight)
	if err != nil {
		return err
	}
	return d.store.SetBalanceAtTopoheight(account, asset, *version.PreviousTopoheight, prevVersion)
}

func (d *DAG) restoreNonceHead(account crypto.PublicKey, topoheight uint64) error {
	version, err := d.store.GetNonceAtExactTopoheight(account, topoheight)
	if err != nil {
		return err
	}
	if err := d.store.DeleteNonceAtTopoheight(account, topoheight); err != nil {
		return err
	}
	if version.PreviousTopoheight == nil {
		return nil
	}
	prevVersion, err := d.store.GetNonceAtExactTopoheight(account, *version.PreviousTopoheight)
	if err != nil {
		return err
	}
	return d.store.SetNonceAtTopoheight(account, *version.PreviousTopoheight, prevVersion)
}
