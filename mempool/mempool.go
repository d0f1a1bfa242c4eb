// Package mempool implements the transaction pool (spec.md section 4.6):
// admission control, fee/byte eviction, and per-sender FIFO ordering ahead
// of block assembly.
package mempool

import (
	"sort"
	"sync"

	"github.com/shadowdag/shadowd/blockdag"
	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/dagconfig"
	"github.com/shadowdag/shadowd/errcode"
	"github.com/shadowdag/shadowd/logs"
)

// MaxPoolBytes bounds the pool's total serialized transaction size.
const MaxPoolBytes = 64 * 1024 * 1024

// entry is one pooled transaction together with the bookkeeping needed for
// eviction and admission of later transactions from the same sender.
type entry struct {
	tx   *blockdag.Transaction
	hash crypto.Hash
	size int
}

// Pool is the node's pending-transaction set.
type Pool struct {
	mtx sync.Mutex
	log logs.Logger

	byHash map[crypto.Hash]*entry
	// outputBalance mirrors each sender's storage output_balance, minus
	// everything already admitted to the pool but not yet committed, so a
	// second pooled tx from the same sender is debited after the first.
	outputBalance map[crypto.PublicKey]*crypto.Ciphertext
	totalBytes    int
}

// New creates an empty Pool.
func New(log logs.Logger) *Pool {
	return &Pool{
		byHash:        make(map[crypto.Hash]*entry),
		outputBalance: make(map[crypto.PublicKey]*crypto.Ciphertext),
		log:           log,
	}
}

// Has reports whether hash is already pooled.
func (p *Pool) Has(hash crypto.Hash) bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	_, ok := p.byHash[hash]
	return ok
}

// Get returns a pooled transaction by hash.
func (p *Pool) Get(hash crypto.Hash) (*blockdag.Transaction, bool) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	e, ok := p.byHash[hash]
	if !ok {
		return nil, false
	}
	return e.tx, true
}

// Count returns the number of pooled transactions.
func (p *Pool) Count() int {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return len(p.byHash)
}

// Add admits tx into the pool after checking its signature and nonce
// against store and mirroring its debit into the sender's output balance;
// the balance is not checked for sufficiency. It evicts the lowest fee/byte
// entries first if the pool would exceed MaxPoolBytes.
func (p *Pool) Add(tx *blockdag.Transaction, store blockdag.Storage) error {
	hash := tx.Hash()

	p.mtx.Lock()
	defer p.mtx.Unlock()

	if _, ok := p.byHash[hash]; ok {
		return errcode.New(errcode.DuplicateTx, "transaction %s already pooled", hash)
	}

	if !tx.VerifySignature() {
		return errcode.New(errcode.InvalidSignature, "transaction %s carries an invalid signature", hash)
	}

	if !tx.IsRegistration() {
		registered, err := store.HasNonce(tx.Sender)
		if err != nil {
			return err
		}
		if !registered {
			return errcode.New(errcode.InvalidFrame, "sender %x is not registered", tx.Sender)
		}

		_, nonceVersion, ok, err := store.GetLastNonce(tx.Sender)
		if err != nil {
			return err
		}
		expected := uint64(0)
		if ok {
			expected = nonceVersion.Nonce + 1
		}
		if tx.Nonce != expected {
			return errcode.New(errcode.InvalidFrame, "nonce %d does not match expected %d for sender", tx.Nonce, expected)
		}
	}

	size := tx.Size()
	if size > dagconfig.MaxBlockSize {
		return errcode.New(errcode.InvalidFrame, "transaction %s exceeds maximum size", hash)
	}

	if !tx.IsCoinbase() && !tx.IsRegistration() {
		if err := p.checkSpendable(tx, store); err != nil {
			return err
		}
	}

	for p.totalBytes+size > MaxPoolBytes {
		if !p.evictLowestFeeRate() {
			return errcode.New(errcode.Overflow, "pool full and nothing left to evict")
		}
	}

	p.byHash[hash] = &entry{tx: tx, hash: hash, size: size}
	p.totalBytes += size
	p.log.Debugf("admitted tx %s (fee=%d size=%d)", hash, tx.Fee, size)
	return nil
}

// checkSpendable subtracts the transaction's fee and Normal output amounts
// from the sender's mirrored output balance, via homomorphic subtraction,
// and records the result so a second pooled tx from the same sender sees
// it. It does not reject a transaction whose debit exceeds the balance.
func (p *Pool) checkSpendable(tx *blockdag.Transaction, store blockdag.Storage) error {
	current, ok := p.outputBalance[tx.Sender]
	if !ok {
		_, version, hasBalance, err := store.GetLastBalance(tx.Sender, crypto.ZeroHash)
		if err != nil {
			return err
		}
		if !hasBalance {
			current = crypto.Zero()
		} else if version.OutputBalance != nil {
			current, err = version.OutputBalance.Decompress()
			if err != nil {
				return err
			}
		} else {
			current, err = version.FinalBalance.Decompress()
			if err != nil {
				return err
			}
		}
	}

	debit := current.Clone()
	debit.Sub(crypto.EncodePlainAmount(tx.Fee))
	for _, out := range tx.Data.Normal {
		amount, err := out.Amount.Decompress()
		if err != nil {
			return err
		}
		debit.Sub(amount)
	}

	// The pool treats the ciphertext as opaque: it cannot itself decide
	// whether the resulting balance is negative (that would require
	// decryption, which the protocol deliberately never does off-chain).
	// Admission here only mirrors the debit forward; Commit does not check
	// for an insufficient balance either.
	p.outputBalance[tx.Sender] = debit
	return nil
}

// evictLowestFeeRate removes the pooled transaction with the lowest
// fee-per-byte. Returns false if the pool is empty.
func (p *Pool) evictLowestFeeRate() bool {
	if len(p.byHash) == 0 {
		return false
	}
	var worst *entry
	var worstRate float64
	for _, e := range p.byHash {
		rate := float64(e.tx.Fee) / float64(e.size)
		if worst == nil || rate < worstRate {
			worst = e
			worstRate = rate
		}
	}
	delete(p.byHash, worst.hash)
	p.totalBytes -= worst.size
	return true
}

// RemoveExecuted drops every pooled hash in hashes, called after a block
// commits.
func (p *Pool) RemoveExecuted(hashes []crypto.Hash) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	for _, hash := range hashes {
		if e, ok := p.byHash[hash]; ok {
			delete(p.byHash, hash)
			p.totalBytes -= e.size
			delete(p.outputBalance, e.tx.Sender)
		}
	}
}

// SortedBySender returns every pooled transaction grouped by sender, each
// sender's transactions ordered by ascending nonce (FIFO), for block
// assembly.
func (p *Pool) SortedBySender() map[crypto.PublicKey][]*blockdag.Transaction {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	bySender := make(map[crypto.PublicKey][]*blockdag.Transaction)
	for _, e := range p.byHash {
		bySender[e.tx.Sender] = append(bySender[e.tx.Sender], e.tx)
	}
	for sender, txs := range bySender {
		sort.Slice(txs, func(i, j int) bool { return txs[i].Nonce < txs[j].Nonce })
		bySender[sender] = txs
	}
	return bySender
}
