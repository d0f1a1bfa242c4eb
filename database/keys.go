// Package database implements blockdag.Storage over an opaque persistent
// ordered key/value engine (spec.md section 4.3), the way the teacher's
// dbaccess package layers typed records over a bucketed key space.
package database

import (
	"encoding/binary"

	"github.com/shadowdag/shadowd/crypto"
)

// bucket prefixes. Each is a single byte so key comparison inside a bucket
// stays a plain byte-slice compare in the underlying engine.
const (
	bucketBlock          = 0x01
	bucketTx             = 0x02
	bucketTopoByHash     = 0x03
	bucketHashByTopo     = 0x04
	bucketTips           = 0x05
	bucketHeightBlocks   = 0x06
	bucketBalance        = 0x07
	bucketBalanceHead    = 0x08
	bucketNonce          = 0x09
	bucketNonceHead      = 0x0a
	bucketSupply         = 0x0b
	bucketReward         = 0x0c
	bucketDifficulty     = 0x0d
	bucketCumulativeDiff = 0x0e
	bucketTxExecuted     = 0x0f
	bucketTxBlocks       = 0x10
	bucketMeta           = 0x11
)

// meta keys, stored under bucketMeta.
var (
	metaNetwork          = []byte("network")
	metaPrunedTopoheight = []byte("pruned_topoheight")
	metaTopTopoheight    = []byte("top_topoheight")
	metaTopHeight        = []byte("top_height")
)

func key(bucket byte, parts ...[]byte) []byte {
	size := 1
	for _, p := range parts {
		size += len(p)
	}
	k := make([]byte, 1, size)
	k[0] = bucket
	for _, p := range parts {
		k = append(k, p...)
	}
	return k
}

func u64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func blockKey(hash crypto.Hash) []byte          { return key(bucketBlock, hash[:]) }
func txKey(hash crypto.Hash) []byte             { return key(bucketTx, hash[:]) }
func topoByHashKey(hash crypto.Hash) []byte     { return key(bucketTopoByHash, hash[:]) }
func hashByTopoKey(topo uint64) []byte          { return key(bucketHashByTopo, u64Bytes(topo)) }
func heightBlocksKey(height uint64) []byte      { return key(bucketHeightBlocks, u64Bytes(height)) }
func supplyKey(hash crypto.Hash) []byte         { return key(bucketSupply, hash[:]) }
func rewardKey(hash crypto.Hash) []byte         { return key(bucketReward, hash[:]) }
func difficultyKey(hash crypto.Hash) []byte     { return key(bucketDifficulty, hash[:]) }
func cumulativeDiffKey(hash crypto.Hash) []byte { return key(bucketCumulativeDiff, hash[:]) }
func txExecutedKey(hash crypto.Hash) []byte     { return key(bucketTxExecuted, hash[:]) }
func txBlocksKey(hash crypto.Hash) []byte       { return key(bucketTxBlocks, hash[:]) }
func tipsKey() []byte                           { return key(bucketTips) }

func balanceHeadKey(account crypto.PublicKey, asset crypto.Hash) []byte {
	return key(bucketBalanceHead, account[:], asset[:])
}

func balanceKey(account crypto.PublicKey, asset crypto.Hash, topo uint64) []byte {
	return key(bucketBalance, account[:], asset[:], u64Bytes(topo))
}

func nonceHeadKey(account crypto.PublicKey) []byte {
	return key(bucketNonceHead, account[:])
}

func nonceKey(account crypto.PublicKey, topo uint64) []byte {
	return key(bucketNonce, account[:], u64Bytes(topo))
}

func metaKey(name []byte) []byte {
	return key(bucketMeta, name)
}
