package blockdag

import (
	"time"

	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/errcode"
)

// Commit validates block against the current DAG state and, if it passes,
// writes it and every derived index in one logically atomic step: header,
// txs, reward, difficulty, cumulative difficulty, the extended topological
// order, applied transaction effects, the tips set, and the top
// height/topoheight/supply pointers.
//
// A validation failure is local to this block and returns an *errcode.Error
// the caller should charge against whichever peer supplied the block. Any
// other error indicates storage corruption and is fatal to the process
// (spec.md section 7).
func (d *DAG) Commit(block *Block) error {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	header := block.Header
	hash := header.Hash()

	if already, err := d.store.HasBlock(hash); err != nil {
		return err
	} else if already {
		return errcode.New(errcode.AlreadyInChain, "block %s already committed", hash)
	}

	if err := header.ValidateTips(); err != nil {
		return err
	}
	for _, tip := range header.Tips {
		has, err := d.store.HasBlock(tip)
		if err != nil {
			return err
		}
		if !has {
			return errcode.New(errcode.InvalidTips, "tip %s not found", tip)
		}
	}

	difficulty, err := ExpectedDifficulty(d.store, header.Tips, header.TimestampMs)
	if err != nil {
		return err
	}
	powHash := header.PoWHash()
	if !CheckProofOfWork(powHash, difficulty) {
		return errcode.New(errcode.InvalidPoW, "proof of work does not satisfy difficulty %d", difficulty)
	}

	cumDiff, err := ComputeCumulativeDifficulty(d.store, header.Tips, difficulty)
	if err != nil {
		return err
	}

	isSide, err := d.isSideBlock(hash, header.Height, cumDiff)
	if err != nil {
		return err
	}

	parentHash, _, err := bestParent(d.store, header.Tips)
	if err != nil {
		return err
	}
	parentSupply, err := d.store.GetSupplyForBlockHash(parentHash)
	if err != nil {
		return err
	}
	split := ComputeReward(parentSupply, isSide)

	if err := ValidateBlock(block, d.store, split.MinerReward, time.Now()); err != nil {
		return err
	}

	if err := d.store.AddNewBlock(header, block.Txs, difficulty, hash); err != nil {
		return err
	}
	if err := d.store.SetCumulativeDifficultyForBlockHash(hash, cumDiff); err != nil {
		return err
	}
	if err := d.store.SetSupplyForBlockHash(hash, parentSupply+split.Total); err != nil {
		return err
	}
	if err := d.store.SetBlockReward(hash, split.MinerReward); err != nil {
		return err
	}

	order, err := ComputeTopologicalOrder(d.store, header)
	if err != nil {
		return err
	}

	topTopoheight, err := d.store.GetTopTopoheight()
	if err != nil {
		return err
	}
	nextTopo := topTopoheight + 1
	var newBlockTopo uint64

	for _, orderedHash := range order {
		orderedBlock, err := d.store.GetBlock(orderedHash)
		if err != nil {
			return err
		}
		if err := d.applyBlockEffects(orderedBlock, nextTopo); err != nil {
			return err
		}
		if err := d.store.SetTopoHeightForBlock(orderedHash, nextTopo); err != nil {
			return err
		}
		if orderedHash == hash {
			newBlockTopo = nextTopo
		}
		nextTopo++
	}
	finalTopo := nextTopo - 1

	// The dev fee is minted alongside the miner's share (both folded into
	// split.Total and already reflected in the supply set above) but never
	// appears in the block's own coinbase transaction, so it is credited
	// directly here rather than through applyTransaction.
	if split.DevFee > 0 {
		if err := d.creditAccount(d.params.DevFeePublicKey, crypto.ZeroHash, split.DevFee, newBlockTopo); err != nil {
			return err
		}
	}

	if err := d.updateTips(header, hash); err != nil {
		return err
	}
	if err := d.store.SetTopTopoheight(finalTopo); err != nil {
		return err
	}
	top, err := d.store.GetTopHeight()
	if err != nil {
		return err
	}
	if header.Height > top {
		if err := d.store.SetTopHeight(header.Height); err != nil {
			return err
		}
	}

	d.log.Infof("committed block %s at height %d, topoheight %d (side=%v, reward=%d)", hash, header.Height, finalTopo, isSide, split.MinerReward)
	return nil
}

// updateTips recomputes the tip set after inserting newHash: newHash's
// parents are no longer tips (they now have a known child), and newHash
// itself is added as a tip.
func (d *DAG) updateTips(header *Header, hash crypto.Hash) error {
	tips, err := d.store.GetTips()
	if err != nil {
		return err
	}
	for _, tip := range header.Tips {
		delete(tips, tip)
	}
	tips[hash] = struct{}{}
	return d.store.StoreTips(tips)
}

// applyBlockEffects applies every not-yet-executed transaction in
// orderedBlock at the given topoheight: debits, credits, nonce bumps, and
// registration entries. Transactions already marked executed in an earlier
// block (because the DAG reordered around them) are left untouched here
// and reconciled by the topo-height bookkeeping above — each hash appears
// at exactly one topoheight by construction of ComputeTopologicalOrder.
func (d *DAG) applyBlockEffects(block *Block, topoheight uint64) error {
	blockHash := block.Hash()
	for _, tx := range block.Txs {
		alreadyExecuted, err := d.store.IsTxExecutedInAnyBlock(tx.Hash())
		if err != nil {
			return err
		}
		if alreadyExecuted {
			continue
		}
		if err := d.applyTransaction(tx, topoheight); err != nil {
			return err
		}
		if err := d.store.SetTxExecutedInBlock(tx.Hash(), blockHash); err != nil {
			return err
		}
		if err := d.store.AddBlockForTx(tx.Hash(), blockHash); err != nil {
			return err
		}
	}
	return nil
}

// applyTransaction mutates account state for one transaction's effects.
func (d *DAG) applyTransaction(tx *Transaction, topoheight uint64) error {
	asset := crypto.ZeroHash

	switch tx.Data.Variant {
	case VariantRegistration:
		version, err := d.store.GetNewVersionedNonce(tx.Sender, topoheight)
		if err != nil {
			return err
		}
		return d.store.SetNonceAtTopoheight(tx.Sender, topoheight, version)

	case VariantCoinbase:
		return d.creditAccount(tx.Sender, asset, tx.Data.Coinbase.Amount, topoheight)

	case VariantBurn:
		if err := d.debitSender(tx, topoheight, encodePlainAmount(tx.Data.Burn.Amount)); err != nil {
			return err
		}
		return d.bumpNonce(tx.Sender, topoheight)

	case VariantNormal:
		var total *crypto.Ciphertext
		for _, out := range tx.Data.Normal {
			amount, err := out.Amount.Decompress()
			if err != nil {
				return err
			}
			if total == nil {
				total = amount
			} else {
				total.Add(amount)
			}
			if err := d.creditCiphertext(out.To, asset, amount, topoheight); err != nil {
				return err
			}
		}
		if err := d.debitSender(tx, topoheight, total); err != nil {
			return err
		}
		return d.bumpNonce(tx.Sender, topoheight)

	case VariantSmartContract, VariantUploadSmartContract:
		// Contract execution is a Non-goal; only the fee-bearing nonce
		// bump applies.
		if err := d.debitSender(tx, topoheight, nil); err != nil {
			return err
		}
		return d.bumpNonce(tx.Sender, topoheight)
	}
	return errcode.New(errcode.InvalidFrame, "unhandled transaction variant %d", tx.Data.Variant)
}

func (d *DAG) bumpNonce(account crypto.PublicKey, topoheight uint64) error {
	version, err := d.store.GetNewVersionedNonce(account, topoheight)
	if err != nil {
		return err
	}
	version.Nonce++
	return d.store.SetNonceAtTopoheight(account, topoheight, version)
}

// debitSender subtracts fee plus, when present, an additional outgoing
// amount from the sender's final and output balances.
func (d *DAG) debitSender(tx *Transaction, topoheight uint64, outgoing *crypto.Ciphertext) error {
	asset := crypto.ZeroHash
	version, err := d.store.GetNewVersionedBalance(tx.Sender, asset, topoheight)
	if err != nil {
		return err
	}

	final, err := version.FinalBalance.Decompress()
	if err != nil {
		return err
	}
	fee := encodePlainAmount(tx.Fee)
	final.Sub(fee)
	if outgoing != nil {
		final.Sub(outgoing)
	}
	version.FinalBalance = final.Compress()

	var output *crypto.Ciphertext
	if version.OutputBalance != nil {
		output, err = version.OutputBalance.Decompress()
		if err != nil {
			return err
		}
	} else {
		output = crypto.Zero()
	}
	output.Sub(fee)
	if outgoing != nil {
		output.Sub(outgoing)
	}
	compressedOutput := output.Compress()
	version.OutputBalance = &compressedOutput

	return d.store.SetBalanceAtTopoheight(tx.Sender, asset, topoheight, version)
}

func (d *DAG) creditAccount(account crypto.PublicKey, asset crypto.Hash, amount uint64, topoheight uint64) error {
	return d.creditCiphertext(account, asset, encodePlainAmount(amount), topoheight)
}

func (d *DAG) creditCiphertext(account crypto.PublicKey, asset crypto.Hash, amount *crypto.Ciphertext, topoheight uint64) error {
	version, err := d.store.GetNewVersionedBalance(account, asset, topoheight)
	if err != nil {
		return err
	}
	final, err := version.FinalBalance.Decompress()
	if err != nil {
		return err
	}
	final.Add(amount)
	version.FinalBalance = final.Compress()
	return d.store.SetBalanceAtTopoheight(account, asset, topoheight, version)
}

// encodePlainAmount lifts a plaintext uint64 amount (a fee, or a coinbase
// reward, neither of which is ever encrypted) into a Ciphertext so it can
// be applied with the same homomorphic Add/Sub used for confidential
// Normal-transaction amounts.
func encodePlainAmount(amount uint64) *crypto.Ciphertext {
	return crypto.EncodePlainAmount(amount)
}
