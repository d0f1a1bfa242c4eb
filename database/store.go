package database

import (
	"github.com/shadowdag/shadowd/blockdag"
	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/errcode"
	"github.com/shadowdag/shadowd/logs"
	"github.com/shadowdag/shadowd/serializer"
	"github.com/syndtr/goleveldb/leveldb"
)

// Store is a blockdag.Storage implementation backed by a single goleveldb
// database, with typed records laid out over a byte-prefixed bucket space
// (see keys.go). goleveldb is treated as an opaque persistent ordered map;
// nothing outside this package reaches into its iterator or batch types.
type Store struct {
	db  *leveldb.DB
	log logs.Logger
}

// Open opens (creating if absent) a Store at dir.
func Open(dir string, log logs.Logger) (*Store, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, errcode.New(errcode.StorageIO, "open leveldb at %s: %s", dir, err)
	}
	return &Store{db: db, log: log}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(k []byte) ([]byte, bool, error) {
	v, err := s.db.Get(k, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errcode.New(errcode.StorageIO, "get: %s", err)
	}
	return v, true, nil
}

func (s *Store) put(k, v []byte) error {
	if err := s.db.Put(k, v, nil); err != nil {
		return errcode.New(errcode.StorageIO, "put: %s", err)
	}
	return nil
}

func (s *Store) delete(k []byte) error {
	if err := s.db.Delete(k, nil); err != nil {
		return errcode.New(errcode.StorageIO, "delete: %s", err)
	}
	return nil
}

func writeHashSet(set map[crypto.Hash]struct{}) []byte {
	w := serializer.NewWriter()
	w.WriteU32(uint32(len(set)))
	for h := range set {
		w.WriteSerializer(h)
	}
	return w.Bytes()
}

func readHashSet(b []byte) (map[crypto.Hash]struct{}, error) {
	r := serializer.NewReader(b)
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	set := make(map[crypto.Hash]struct{}, n)
	for i := uint32(0); i < n; i++ {
		h, err := crypto.ReadHash(r)
		if err != nil {
			return nil, err
		}
		set[h] = struct{}{}
	}
	return set, nil
}

func writeHashSlice(hashes []crypto.Hash) []byte {
	w := serializer.NewWriter()
	w.WriteU32(uint32(len(hashes)))
	for _, h := range hashes {
		w.WriteSerializer(h)
	}
	return w.Bytes()
}

func readHashSlice(b []byte) ([]crypto.Hash, error) {
	r := serializer.NewReader(b)
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	out := make([]crypto.Hash, 0, n)
	for i := uint32(0); i < n; i++ {
		h, err := crypto.ReadHash(r)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// --- DifficultyProvider ---

func (s *Store) GetHeightForBlockHash(hash crypto.Hash) (uint64, error) {
	h, err := s.GetBlockHeader(hash)
	if err != nil {
		return 0, err
	}
	return h.Height, nil
}

func (s *Store) GetTimestampForBlockHash(hash crypto.Hash) (uint64, error) {
	h, err := s.GetBlockHeader(hash)
	if err != nil {
		return 0, err
	}
	return h.TimestampMs, nil
}

func (s *Store) GetDifficultyForBlockHash(hash crypto.Hash) (uint64, error) {
	v, ok, err := s.get(difficultyKey(hash))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errcode.New(errcode.UnknownBlock, "no difficulty for block %s", hash)
	}
	return serializer.NewReader(v).ReadU64()
}

func (s *Store) GetCumulativeDifficultyForBlockHash(hash crypto.Hash) (uint64, error) {
	v, ok, err := s.get(cumulativeDiffKey(hash))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errcode.New(errcode.UnknownBlock, "no cumulative difficulty for block %s", hash)
	}
	return serializer.NewReader(v).ReadU64()
}

func (s *Store) GetBlockHeaderByHash(hash crypto.Hash) (*blockdag.Header, error) {
	return s.GetBlockHeader(hash)
}

// --- Blocks ---

func (s *Store) HasBlock(hash crypto.Hash) (bool, error) {
	_, ok, err := s.get(blockKey(hash))
	return ok, err
}

func (s *Store) GetBlockHeader(hash crypto.Hash) (*blockdag.Header, error) {
	v, ok, err := s.get(blockKey(hash))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errcode.New(errcode.UnknownBlock, "unknown block %s", hash)
	}
	return blockdag.ReadHeader(serializer.NewReader(v))
}

func (s *Store) GetBlock(hash crypto.Hash) (*blockdag.Block, error) {
	header, err := s.GetBlockHeader(hash)
	if err != nil {
		return nil, err
	}
	txs := make([]*blockdag.Transaction, 0, len(header.TxHashes))
	for _, txHash := range header.TxHashes {
		tx, err := s.GetTransaction(txHash)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return &blockdag.Block{Header: header, Txs: txs}, nil
}

func (s *Store) AddNewBlock(header *blockdag.Header, txs []*blockdag.Transaction, difficulty uint64, hash crypto.Hash) error {
	w := serializer.NewWriter()
	header.Write(w)
	if err := s.put(blockKey(hash), w.Bytes()); err != nil {
		return err
	}
	for _, tx := range txs {
		if err := s.AddTransaction(tx); err != nil {
			return err
		}
	}
	if err := s.SetDifficultyForBlockHash(hash, difficulty); err != nil {
		return err
	}
	return s.AddBlockHashAtHeight(hash, header.Height)
}

func (s *Store) DeleteBlockAtTopoheight(topoheight uint64) (*blockdag.Header, error) {
	hash, err := s.GetHashAtTopoHeight(topoheight)
	if err != nil {
		return nil, err
	}
	header, err := s.GetBlockHeader(hash)
	if err != nil {
		return nil, err
	}
	for _, k := range [][]byte{
		blockKey(hash), topoByHashKey(hash), hashByTopoKey(topoheight),
		supplyKey(hash), rewardKey(hash), difficultyKey(hash), cumulativeDiffKey(hash),
	} {
		if err := s.delete(k); err != nil {
			return nil, err
		}
	}
	return header, nil
}

func (s *Store) GetBlocksAtHeight(height uint64) ([]crypto.Hash, error) {
	v, ok, err := s.get(heightBlocksKey(height))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	set, err := readHashSet(v)
	if err != nil {
		return nil, err
	}
	out := make([]crypto.Hash, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	return out, nil
}

func (s *Store) AddBlockHashAtHeight(hash crypto.Hash, height uint64) error {
	existing, err := s.GetBlocksAtHeight(height)
	if err != nil {
		return err
	}
	set := make(map[crypto.Hash]struct{}, len(existing)+1)
	for _, h := range existing {
		set[h] = struct{}{}
	}
	set[hash] = struct{}{}
	return s.put(heightBlocksKey(height), writeHashSet(set))
}

func (s *Store) GetTopTopoheight() (uint64, error) {
	v, ok, err := s.get(metaKey(metaTopTopoheight))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return serializer.NewReader(v).ReadU64()
}

func (s *Store) SetTopTopoheight(topoheight uint64) error {
	return s.put(metaKey(metaTopTopoheight), u64Bytes(topoheight))
}

func (s *Store) GetTopHeight() (uint64, error) {
	v, ok, err := s.get(metaKey(metaTopHeight))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return serializer.NewReader(v).ReadU64()
}

func (s *Store) SetTopHeight(height uint64) error {
	return s.put(metaKey(metaTopHeight), u64Bytes(height))
}

// --- Ordering ---

func (s *Store) GetTopoHeightForHash(hash crypto.Hash) (uint64, bool, error) {
	v, ok, err := s.get(topoByHashKey(hash))
	if err != nil || !ok {
		return 0, ok, err
	}
	topo, err := serializer.NewReader(v).ReadU64()
	return topo, true, err
}

func (s *Store) GetHashAtTopoHeight(topoheight uint64) (crypto.Hash, error) {
	v, ok, err := s.get(hashByTopoKey(topoheight))
	if err != nil {
		return crypto.Hash{}, err
	}
	if !ok {
		return crypto.Hash{}, errcode.New(errcode.UnknownBlock, "no block at topoheight %d", topoheight)
	}
	return crypto.ReadHash(serializer.NewReader(v))
}

func (s *Store) IsBlockTopologicalOrdered(hash crypto.Hash) (bool, error) {
	_, ok, err := s.get(topoByHashKey(hash))
	return ok, err
}

func (s *Store) SetTopoHeightForBlock(hash crypto.Hash, topoheight uint64) error {
	if err := s.put(topoByHashKey(hash), u64Bytes(topoheight)); err != nil {
		return err
	}
	w := serializer.NewWriter()
	hash.Write(w)
	return s.put(hashByTopoKey(topoheight), w.Bytes())
}

// --- Tips ---

func (s *Store) GetTips() (map[crypto.Hash]struct{}, error) {
	v, ok, err := s.get(tipsKey())
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[crypto.Hash]struct{}{}, nil
	}
	return readHashSet(v)
}

func (s *Store) StoreTips(tips map[crypto.Hash]struct{}) error {
	return s.put(tipsKey(), writeHashSet(tips))
}

// --- Difficulty / supply / reward ---

func (s *Store) SetDifficultyForBlockHash(hash crypto.Hash, difficulty uint64) error {
	return s.put(difficultyKey(hash), u64Bytes(difficulty))
}

func (s *Store) SetCumulativeDifficultyForBlockHash(hash crypto.Hash, cumulative uint64) error {
	return s.put(cumulativeDiffKey(hash), u64Bytes(cumulative))
}

func (s *Store) GetSupplyForBlockHash(hash crypto.Hash) (uint64, error) {
	v, ok, err := s.get(supplyKey(hash))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errcode.New(errcode.UnknownBlock, "no supply recorded for block %s", hash)
	}
	return serializer.NewReader(v).ReadU64()
}

func (s *Store) SetSupplyForBlockHash(hash crypto.Hash, supply uint64) error {
	return s.put(supplyKey(hash), u64Bytes(supply))
}

func (s *Store) GetSupplyAtTopoHeight(topoheight uint64) (uint64, error) {
	hash, err := s.GetHashAtTopoHeight(topoheight)
	if err != nil {
		return 0, err
	}
	return s.GetSupplyForBlockHash(hash)
}

func (s *Store) GetBlockReward(hash crypto.Hash) (uint64, error) {
	v, ok, err := s.get(rewardKey(hash))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errcode.New(errcode.UnknownBlock, "no reward recorded for block %s", hash)
	}
	return serializer.NewReader(v).ReadU64()
}

func (s *Store) SetBlockReward(hash crypto.Hash, reward uint64) error {
	return s.put(rewardKey(hash), u64Bytes(reward))
}

// --- Transactions ---

func (s *Store) GetTransaction(hash crypto.Hash) (*blockdag.Transaction, error) {
	v, ok, err := s.get(txKey(hash))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errcode.New(errcode.UnknownTx, "unknown transaction %s", hash)
	}
	return blockdag.ReadTransaction(serializer.NewReader(v))
}

func (s *Store) HasTransaction(hash crypto.Hash) (bool, error) {
	_, ok, err := s.get(txKey(hash))
	return ok, err
}

func (s *Store) CountTransactions() (uint64, error) {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()
	var count uint64
	prefix := []byte{bucketTx}
	for iter.Seek(prefix); iter.Valid(); iter.Next() {
		k := iter.Key()
		if len(k) == 0 || k[0] != bucketTx {
			break
		}
		count++
	}
	if err := iter.Error(); err != nil {
		return 0, errcode.New(errcode.StorageIO, "count transactions: %s", err)
	}
	return count, nil
}

func (s *Store) DeleteTx(hash crypto.Hash) error {
	return s.delete(txKey(hash))
}

func (s *Store) AddTransaction(tx *blockdag.Transaction) error {
	w := serializer.NewWriter()
	tx.Write(w)
	return s.put(txKey(tx.Hash()), w.Bytes())
}

func (s *Store) SetTxExecutedInBlock(txHash, blockHash crypto.Hash) error {
	w := serializer.NewWriter()
	blockHash.Write(w)
	return s.put(txExecutedKey(txHash), w.Bytes())
}

func (s *Store) RemoveTxExecuted(txHash crypto.Hash) error {
	return s.delete(txExecutedKey(txHash))
}

func (s *Store) IsTxExecutedInBlock(txHash, blockHash crypto.Hash) (bool, error) {
	executer, ok, err := s.GetBlockExecuterForTx(txHash)
	if err != nil || !ok {
		return false, err
	}
	return executer == blockHash, nil
}

func (s *Store) IsTxExecutedInAnyBlock(txHash crypto.Hash) (bool, error) {
	_, ok, err := s.get(txExecutedKey(txHash))
	return ok, err
}

func (s *Store) GetBlockExecuterForTx(txHash crypto.Hash) (crypto.Hash, bool, error) {
	v, ok, err := s.get(txExecutedKey(txHash))
	if err != nil || !ok {
		return crypto.Hash{}, ok, err
	}
	h, err := crypto.ReadHash(serializer.NewReader(v))
	return h, true, err
}

func (s *Store) HasTxBlocks(txHash crypto.Hash) (bool, error) {
	_, ok, err := s.get(txBlocksKey(txHash))
	return ok, err
}

func (s *Store) HasBlockLinkedToTx(txHash, blockHash crypto.Hash) (bool, error) {
	blocks, err := s.GetBlocksForTx(txHash)
	if err != nil {
		return false, err
	}
	for _, b := range blocks {
		if b == blockHash {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) GetBlocksForTx(txHash crypto.Hash) ([]crypto.Hash, error) {
	v, ok, err := s.get(txBlocksKey(txHash))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return readHashSlice(v)
}

func (s *Store) AddBlockForTx(txHash, blockHash crypto.Hash) error {
	existing, err := s.GetBlocksForTx(txHash)
	if err != nil {
		return err
	}
	for _, b := range existing {
		if b == blockHash {
			return nil
		}
	}
	existing = append(existing, blockHash)
	return s.put(txBlocksKey(txHash), writeHashSlice(existing))
}

// --- Accounts: balances ---

func (s *Store) HasBalanceFor(account crypto.PublicKey, asset crypto.Hash) (bool, error) {
	_, ok, err := s.get(balanceHeadKey(account, asset))
	return ok, err
}

func (s *Store) HasBalanceAtExactTopoheight(account crypto.PublicKey, asset crypto.Hash, topoheight uint64) (bool, error) {
	_, ok, err := s.get(balanceKey(account, asset, topoheight))
	return ok, err
}

func (s *Store) GetBalanceAtExactTopoheight(account crypto.PublicKey, asset crypto.Hash, topoheight uint64) (*blockdag.VersionedBalance, error) {
	v, ok, err := s.get(balanceKey(account, asset, topoheight))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errcode.New(errcode.StorageNotFound, "no balance for account at topoheight %d", topoheight)
	}
	return blockdag.ReadVersionedBalance(serializer.NewReader(v))
}

func (s *Store) GetBalanceAtMaximumTopoheight(account crypto.PublicKey, asset crypto.Hash, maxTopoheight uint64) (uint64, *blockdag.VersionedBalance, bool, error) {
	topo, head, ok, err := s.GetLastBalance(account, asset)
	if err != nil || !ok {
		return 0, nil, false, err
	}
	for {
		if topo <= maxTopoheight {
			return topo, head, true, nil
		}
		if head.PreviousTopoheight == nil {
			return 0, nil, false, nil
		}
		topo = *head.PreviousTopoheight
		head, err = s.GetBalanceAtExactTopoheight(account, asset, topo)
		if err != nil {
			return 0, nil, false, err
		}
	}
}

func (s *Store) GetLastBalance(account crypto.PublicKey, asset crypto.Hash) (uint64, *blockdag.VersionedBalance, bool, error) {
	v, ok, err := s.get(balanceHeadKey(account, asset))
	if err != nil || !ok {
		return 0, nil, false, err
	}
	topo, err := serializer.NewReader(v).ReadU64()
	if err != nil {
		return 0, nil, false, err
	}
	version, err := s.GetBalanceAtExactTopoheight(account, asset, topo)
	if err != nil {
		return 0, nil, false, err
	}
	return topo, version, true, nil
}

func (s *Store) SetBalanceAtTopoheight(account crypto.PublicKey, asset crypto.Hash, topoheight uint64, version *blockdag.VersionedBalance) error {
	w := serializer.NewWriter()
	version.Write(w)
	if err := s.put(balanceKey(account, asset, topoheight), w.Bytes()); err != nil {
		return err
	}
	return s.put(balanceHeadKey(account, asset), u64Bytes(topoheight))
}

func (s *Store) GetNewVersionedBalance(account crypto.PublicKey, asset crypto.Hash, topoheight uint64) (*blockdag.VersionedBalance, error) {
	topo, last, ok, err := s.GetLastBalance(account, asset)
	if err != nil {
		return nil, err
	}
	if !ok {
		zero := crypto.Zero().Compress()
		return &blockdag.VersionedBalance{FinalBalance: zero}, nil
	}
	prev := topo
	return &blockdag.VersionedBalance{
		FinalBalance:       last.FinalBalance,
		PreviousTopoheight: &prev,
	}, nil
}

func (s *Store) DeleteBalanceAtTopoheight(account crypto.PublicKey, asset crypto.Hash, topoheight uint64) error {
	if err := s.delete(balanceKey(account, asset, topoheight)); err != nil {
		return err
	}
	// A head pointing at the deleted version is removed with it.
	v, ok, err := s.get(balanceHeadKey(account, asset))
	if err != nil || !ok {
		return err
	}
	head, err := serializer.NewReader(v).ReadU64()
	if err != nil || head != topoheight {
		return err
	}
	return s.delete(balanceHeadKey(account, asset))
}

// --- Accounts: nonces ---

func (s *Store) HasNonce(account crypto.PublicKey) (bool, error) {
	_, ok, err := s.get(nonceHeadKey(account))
	return ok, err
}

func (s *Store) HasNonceAtExactTopoheight(account crypto.PublicKey, topoheight uint64) (bool, error) {
	_, ok, err := s.get(nonceKey(account, topoheight))
	return ok, err
}

func (s *Store) GetNonceAtExactTopoheight(account crypto.PublicKey, topoheight uint64) (*blockdag.VersionedNonce, error) {
	v, ok, err := s.get(nonceKey(account, topoheight))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errcode.New(errcode.StorageNotFound, "no nonce for account at topoheight %d", topoheight)
	}
	return blockdag.ReadVersionedNonce(serializer.NewReader(v))
}

func (s *Store) GetNonceAtMaximumTopoheight(account crypto.PublicKey, maxTopoheight uint64) (uint64, *blockdag.VersionedNonce, bool, error) {
	topo, head, ok, err := s.GetLastNonce(account)
	if err != nil || !ok {
		return 0, nil, false, err
	}
	for {
		if topo <= maxTopoheight {
			return topo, head, true, nil
		}
		if head.PreviousTopoheight == nil {
			return 0, nil, false, nil
		}
		topo = *head.PreviousTopoheight
		head, err = s.GetNonceAtExactTopoheight(account, topo)
		if err != nil {
			return 0, nil, false, err
		}
	}
}

func (s *Store) GetLastNonce(account crypto.PublicKey) (uint64, *blockdag.VersionedNonce, bool, error) {
	v, ok, err := s.get(nonceHeadKey(account))
	if err != nil || !ok {
		return 0, nil, false, err
	}
	topo, err := serializer.NewReader(v).ReadU64()
	if err != nil {
		return 0, nil, false, err
	}
	version, err := s.GetNonceAtExactTopoheight(account, topo)
	if err != nil {
		return 0, nil, false, err
	}
	return topo, version, true, nil
}

func (s *Store) SetNonceAtTopoheight(account crypto.PublicKey, topoheight uint64, version *blockdag.VersionedNonce) error {
	w := serializer.NewWriter()
	version.Write(w)
	if err := s.put(nonceKey(account, topoheight), w.Bytes()); err != nil {
		return err
	}
	return s.put(nonceHeadKey(account), u64Bytes(topoheight))
}

func (s *Store) GetNewVersionedNonce(account crypto.PublicKey, topoheight uint64) (*blockdag.VersionedNonce, error) {
	topo, last, ok, err := s.GetLastNonce(account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &blockdag.VersionedNonce{Nonce: 0}, nil
	}
	prev := topo
	return &blockdag.VersionedNonce{Nonce: last.Nonce, PreviousTopoheight: &prev}, nil
}

func (s *Store) DeleteNonceAtTopoheight(account crypto.PublicKey, topoheight uint64) error {
	if err := s.delete(nonceKey(account, topoheight)); err != nil {
		return err
	}
	// A head pointing at the deleted version is removed with it.
	v, ok, err := s.get(nonceHeadKey(account))
	if err != nil || !ok {
		return err
	}
	head, err := serializer.NewReader(v).ReadU64()
	if err != nil || head != topoheight {
		return err
	}
	return s.delete(nonceHeadKey(account))
}

// --- Snapshots / pruning ---

func (s *Store) GetPrunedTopoheight() (uint64, bool, error) {
	v, ok, err := s.get(metaKey(metaPrunedTopoheight))
	if err != nil || !ok {
		return 0, ok, err
	}
	topo, err := serializer.NewReader(v).ReadU64()
	return topo, true, err
}

func (s *Store) SetPrunedTopoheight(topoheight uint64) error {
	return s.put(metaKey(metaPrunedTopoheight), u64Bytes(topoheight))
}

// CreateSnapshotBalancesAtTopoheight rewrites every affected (account,
// asset) version chain so that the version at or below topoheight becomes
// the new head's effective floor: any version whose previous_topoheight
// would point below topoheight has that pointer severed (set to nil),
// matching spec.md's "others have their previous_topoheight severed"
// directive. It walks the head chain for each asset, touching only the
// chains that currently extend below topoheight.
func (s *Store) CreateSnapshotBalancesAtTopoheight(assets []crypto.Hash, topoheight uint64) error {
	for _, asset := range assets {
		accounts, err := s.accountsWithBalanceHead(asset)
		if err != nil {
			return err
		}
		for _, account := range accounts {
			topo, version, ok, err := s.GetBalanceAtMaximumTopoheight(account, asset, topoheight)
			if err != nil {
				return err
			}
			if !ok || version.PreviousTopoheight == nil {
				continue
			}
			version.PreviousTopoheight = nil
			w := serializer.NewWriter()
			version.Write(w)
			if err := s.put(balanceKey(account, asset, topo), w.Bytes()); err != nil {
				return err
			}
		}
	}
	return nil
}

// accountsWithBalanceHead returns every account with a balance_head entry
// for asset, by scanning the balance_head bucket.
func (s *Store) accountsWithBalanceHead(asset crypto.Hash) ([]crypto.PublicKey, error) {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()
	var accounts []crypto.PublicKey
	for iter.Seek([]byte{bucketBalanceHead}); iter.Valid(); iter.Next() {
		k := iter.Key()
		if len(k) == 0 || k[0] != bucketBalanceHead {
			break
		}
		if len(k) != 1+32+32 {
			continue
		}
		gotAsset := k[1+32 : 1+32+32]
		if string(gotAsset) != string(asset[:]) {
			continue
		}
		var account crypto.PublicKey
		copy(account[:], k[1:1+32])
		accounts = append(accounts, account)
	}
	if err := iter.Error(); err != nil {
		return nil, errcode.New(errcode.StorageIO, "scan balance heads: %s", err)
	}
	return accounts, nil
}

// CreateSnapshotNoncesAtTopoheight mirrors CreateSnapshotBalancesAtTopoheight
// for nonce chains.
func (s *Store) CreateSnapshotNoncesAtTopoheight(topoheight uint64) error {
	accounts, err := s.accountsWithNonceHead()
	if err != nil {
		return err
	}
	for _, account := range accounts {
		topo, version, ok, err := s.GetNonceAtMaximumTopoheight(account, topoheight)
		if err != nil {
			return err
		}
		if !ok || version.PreviousTopoheight == nil {
			continue
		}
		version.PreviousTopoheight = nil
		w := serializer.NewWriter()
		version.Write(w)
		if err := s.put(nonceKey(account, topo), w.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// accountsWithNonceHead returns every account with a nonce_head entry, by
// scanning the nonce_head bucket.
func (s *Store) accountsWithNonceHead() ([]crypto.PublicKey, error) {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()
	var accounts []crypto.PublicKey
	for iter.Seek([]byte{bucketNonceHead}); iter.Valid(); iter.Next() {
		k := iter.Key()
		if len(k) == 0 || k[0] != bucketNonceHead {
			break
		}
		if len(k) != 1+32 {
			continue
		}
		var account crypto.PublicKey
		copy(account[:], k[1:1+32])
		accounts = append(accounts, account)
	}
	if err := iter.Error(); err != nil {
		return nil, errcode.New(errcode.StorageIO, "scan nonce heads: %s", err)
	}
	return accounts, nil
}

func (s *Store) DeleteVersionedBalancesForAssetAtTopoheight(asset crypto.Hash, topoheight uint64) error {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()
	prefix := []byte{bucketBalance}
	var toDelete [][]byte
	suffix := u64Bytes(topoheight)
	for iter.Seek(prefix); iter.Valid(); iter.Next() {
		k := iter.Key()
		if len(k) == 0 || k[0] != bucketBalance {
			break
		}
		if len(k) < 1+32+32+8 {
			continue
		}
		gotAsset := k[1+32 : 1+32+32]
		gotTopo := k[len(k)-8:]
		if string(gotAsset) == string(asset[:]) && string(gotTopo) == string(suffix) {
			kc := make([]byte, len(k))
			copy(kc, k)
			toDelete = append(toDelete, kc)
		}
	}
	if err := iter.Error(); err != nil {
		return errcode.New(errcode.StorageIO, "scan balances: %s", err)
	}
	for _, k := range toDelete {
		if err := s.delete(k); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) DeleteVersionedNoncesAtTopoheight(topoheight uint64) error {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()
	prefix := []byte{bucketNonce}
	var toDelete [][]byte
	suffix := u64Bytes(topoheight)
	for iter.Seek(prefix); iter.Valid(); iter.Next() {
		k := iter.Key()
		if len(k) == 0 || k[0] != bucketNonce {
			break
		}
		if len(k) < 1+32+8 {
			continue
		}
		gotTopo := k[len(k)-8:]
		if string(gotTopo) == string(suffix) {
			kc := make([]byte, len(k))
			copy(kc, k)
			toDelete = append(toDelete, kc)
		}
	}
	if err := iter.Error(); err != nil {
		return errcode.New(errcode.StorageIO, "scan nonces: %s", err)
	}
	for _, k := range toDelete {
		if err := s.delete(k); err != nil {
			return err
		}
	}
	return nil
}

var _ blockdag.Storage = (*Store)(nil)
