package blockdag

import "github.com/shadowdag/shadowd/crypto"

// DifficultyProvider is the minimal read capability needed to verify proof
// of work: height, timestamp, and difficulty lookups by block hash. It is
// deliberately small so a sandbox (the Chain Validator, see package
// chainsync) can implement it without touching the real Storage.
type DifficultyProvider interface {
	GetHeightForBlockHash(hash crypto.Hash) (uint64, error)
	GetTimestampForBlockHash(hash crypto.Hash) (uint64, error)
	GetDifficultyForBlockHash(hash crypto.Hash) (uint64, error)
	GetCumulativeDifficultyForBlockHash(hash crypto.Hash) (uint64, error)
	GetBlockHeaderByHash(hash crypto.Hash) (*Header, error)
}

// Storage is the full persistence capability C5 mutates. It embeds
// DifficultyProvider so any Storage also satisfies it.
type Storage interface {
	DifficultyProvider

	// Blocks
	HasBlock(hash crypto.Hash) (bool, error)
	GetBlockHeader(hash crypto.Hash) (*Header, error)
	GetBlock(hash crypto.Hash) (*Block, error)
	AddNewBlock(header *Header, txs []*Transaction, difficulty uint64, hash crypto.Hash) error
	DeleteBlockAtTopoheight(topoheight uint64) (*Header, error)
	GetBlocksAtHeight(height uint64) ([]crypto.Hash, error)
	AddBlockHashAtHeight(hash crypto.Hash, height uint64) error
	GetTopTopoheight() (uint64, error)
	SetTopTopoheight(topoheight uint64) error
	GetTopHeight() (uint64, error)
	SetTopHeight(height uint64) error

	// Ordering
	GetTopoHeightForHash(hash crypto.Hash) (uint64, bool, error)
	GetHashAtTopoHeight(topoheight uint64) (crypto.Hash, error)
	IsBlockTopologicalOrdered(hash crypto.Hash) (bool, error)
	SetTopoHeightForBlock(hash crypto.Hash, topoheight uint64) error

	// Tips
	GetTips() (map[crypto.Hash]struct{}, error)
	StoreTips(tips map[crypto.Hash]struct{}) error

	// Difficulty / supply / reward
	SetDifficultyForBlockHash(hash crypto.Hash, difficulty uint64) error
	SetCumulativeDifficultyForBlockHash(hash crypto.Hash, cumulative uint64) error
	GetSupplyForBlockHash(hash crypto.Hash) (uint64, error)
	SetSupplyForBlockHash(hash crypto.Hash, supply uint64) error
	GetSupplyAtTopoHeight(topoheight uint64) (uint64, error)
	GetBlockReward(hash crypto.Hash) (uint64, error)
	SetBlockReward(hash crypto.Hash, reward uint64) error

	// Transactions
	GetTransaction(hash crypto.Hash) (*Transaction, error)
	HasTransaction(hash crypto.Hash) (bool, error)
	CountTransactions() (uint64, error)
	DeleteTx(hash crypto.Hash) error
	AddTransaction(tx *Transaction) error
	SetTxExecutedInBlock(txHash, blockHash crypto.Hash) error
	RemoveTxExecuted(txHash crypto.Hash) error
	IsTxExecutedInBlock(txHash, blockHash crypto.Hash) (bool, error)
	IsTxExecutedInAnyBlock(txHash crypto.Hash) (bool, error)
	GetBlockExecuterForTx(txHash crypto.Hash) (crypto.Hash, bool, error)
	HasTxBlocks(txHash crypto.Hash) (bool, error)
	HasBlockLinkedToTx(txHash, blockHash crypto.Hash) (bool, error)
	GetBlocksForTx(txHash crypto.Hash) ([]crypto.Hash, error)
	AddBlockForTx(txHash, blockHash crypto.Hash) error

	// Accounts: balances
	HasBalanceFor(account crypto.PublicKey, asset crypto.Hash) (bool, error)
	HasBalanceAtExactTopoheight(account crypto.PublicKey, asset crypto.Hash, topoheight uint64) (bool, error)
	GetBalanceAtExactTopoheight(account crypto.PublicKey, asset crypto.Hash, topoheight uint64) (*VersionedBalance, error)
	GetBalanceAtMaximumTopoheight(account crypto.PublicKey, asset crypto.Hash, maxTopoheight uint64) (uint64, *VersionedBalance, bool, error)
	GetLastBalance(account crypto.PublicKey, asset crypto.Hash) (uint64, *VersionedBalance, bool, error)
	SetBalanceAtTopoheight(account crypto.PublicKey, asset crypto.Hash, topoheight uint64, version *VersionedBalance) error
	GetNewVersionedBalance(account crypto.PublicKey, asset crypto.Hash, topoheight uint64) (*VersionedBalance, error)
	DeleteBalanceAtTopoheight(account crypto.PublicKey, asset crypto.Hash, topoheight uint64) error

	// Accounts: nonces
	HasNonce(account crypto.PublicKey) (bool, error)
	HasNonceAtExactTopoheight(account crypto.PublicKey, topoheight uint64) (bool, error)
	GetNonceAtExactTopoheight(account crypto.PublicKey, topoheight uint64) (*VersionedNonce, error)
	GetNonceAtMaximumTopoheight(account crypto.PublicKey, maxTopoheight uint64) (uint64, *VersionedNonce, bool, error)
	GetLastNonce(account crypto.PublicKey) (uint64, *VersionedNonce, bool, error)
	SetNonceAtTopoheight(account crypto.PublicKey, topoheight uint64, version *VersionedNonce) error
	GetNewVersionedNonce(account crypto.PublicKey, topoheight uint64) (*VersionedNonce, error)
	DeleteNonceAtTopoheight(account crypto.PublicKey, topoheight uint64) error

	// Snapshots / pruning
	GetPrunedTopoheight() (uint64, bool, error)
	SetPrunedTopoheight(topoheight uint64) error
	CreateSnapshotBalancesAtTopoheight(assets []crypto.Hash, topoheight uint64) error
	CreateSnapshotNoncesAtTopoheight(topoheight uint64) error
	DeleteVersionedBalancesForAssetAtTopoheight(asset crypto.Hash, topoheight uint64) error
	DeleteVersionedNoncesAtTopoheight(topoheight uint64) error
}
