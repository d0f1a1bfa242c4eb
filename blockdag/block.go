package blockdag

import (
	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/errcode"
	"github.com/shadowdag/shadowd/serializer"
)

// Block is a header plus the full body of its referenced transactions, in
// header.TxHashes order. Transactions may be shared across blocks, so a
// Block only references them by hash-ordered slice; storage owns one
// canonical copy per transaction hash.
type Block struct {
	Header *Header
	Txs    []*Transaction
}

// Hash returns the block's identifying hash, which is its header's hash.
func (b *Block) Hash() crypto.Hash {
	return b.Header.Hash()
}

// Write implements serializer.Serializer: header followed by tx count and
// each full transaction, matching the wire Block packet layout (spec.md
// section 6).
func (b *Block) Write(w *serializer.Writer) {
	b.Header.Write(w)
	w.WriteU16(uint16(len(b.Txs)))
	for _, tx := range b.Txs {
		w.WriteSerializer(tx)
	}
}

// Size implements serializer.Serializer.
func (b *Block) Size() int {
	size := b.Header.Size() + 2
	for _, tx := range b.Txs {
		size += tx.Size()
	}
	return size
}

// ReadBlock decodes a Block from its wire/storage encoding.
func ReadBlock(r *serializer.Reader) (*Block, error) {
	header, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	txCount, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	txs := make([]*Transaction, 0, txCount)
	for i := uint16(0); i < txCount; i++ {
		tx, err := ReadTransaction(r)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	if int(txCount) != len(header.TxHashes) {
		return nil, errcode.New(errcode.InvalidFrame, "block carries %d txs but header lists %d", txCount, len(header.TxHashes))
	}
	return &Block{Header: header, Txs: txs}, nil
}

// Coinbase returns the block's coinbase transaction, if any.
func (b *Block) Coinbase() *Transaction {
	for _, tx := range b.Txs {
		if tx.IsCoinbase() {
			return tx
		}
	}
	return nil
}
