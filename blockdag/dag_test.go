package blockdag

import (
	"os"
	"testing"

	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/dagconfig"
	"github.com/shadowdag/shadowd/database"
	"github.com/shadowdag/shadowd/logs"
)

func newTestDAG(t *testing.T) (*DAG, *dagconfig.Params) {
	t.Helper()
	dir, err := os.MkdirTemp("", "shadowd-dag-test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	backend := logs.NewBackend([]*logs.BackendWriter{logs.NewAllLevelsBackendWriter(os.Stderr)})
	log := backend.Logger("TEST")

	store, err := database.Open(dir, log)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	params := dagconfig.TestnetParams
	params.GenesisTimestampMillis = 1000
	dag, err := New(store, &params, log)
	if err != nil {
		t.Fatal(err)
	}
	return dag, &params
}

// mineHeader increments header.Nonce until its PoW hash satisfies the
// difficulty the DAG would expect for it. TxHashes must already be set,
// since they participate in the header hash.
func mineHeader(t *testing.T, dag *DAG, header *Header) {
	t.Helper()
	expected, err := ExpectedDifficulty(dag.Store(), header.Tips, header.TimestampMs)
	if err != nil {
		t.Fatal(err)
	}
	for nonce := uint64(0); ; nonce++ {
		header.Nonce = nonce
		if CheckProofOfWork(header.PoWHash(), expected) {
			return
		}
		if nonce > 5_000_000 {
			t.Fatal("failed to mine block within nonce budget")
		}
	}
}

func coinbaseBlock(t *testing.T, dag *DAG, tips []crypto.Hash, height uint64, timestampMs uint64, miner crypto.PublicKey, reward uint64) *Block {
	t.Helper()
	coinbase := &Transaction{
		Data:   TransactionData{Variant: VariantCoinbase, Coinbase: CoinbaseData{Amount: reward}},
		Sender: miner,
	}
	header := &Header{
		Version:     HeaderVersion,
		Height:      height,
		TimestampMs: timestampMs,
		MinerKey:    miner,
		Tips:        tips,
		TxHashes:    []crypto.Hash{coinbase.Hash()},
	}
	mineHeader(t, dag, header)
	return &Block{Header: header, Txs: []*Transaction{coinbase}}
}

func TestGenesisOnly(t *testing.T) {
	dag, params := newTestDAG(t)

	topHeight, err := dag.TopHeight()
	if err != nil || topHeight != 0 {
		t.Fatalf("expected top height 0, got %d err=%v", topHeight, err)
	}
	topTopo, err := dag.TopTopoheight()
	if err != nil || topTopo != 0 {
		t.Fatalf("expected top topoheight 0, got %d err=%v", topTopo, err)
	}
	tips, err := dag.Tips()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := tips[params.GenesisHash]; !ok || len(tips) != 1 {
		t.Fatalf("expected tips={genesis}, got %v", tips)
	}

	supply, err := dag.Store().GetSupplyAtTopoHeight(0)
	if err != nil || supply != 0 {
		t.Fatalf("expected genesis supply 0, got %d err=%v", supply, err)
	}
}

func TestSingleBlockCommit(t *testing.T) {
	dag, params := newTestDAG(t)
	var miner crypto.PublicKey
	copy(miner[:], []byte("miner-0000000000000000000000000"))

	parentSupply, err := dag.Store().GetSupplyForBlockHash(params.GenesisHash)
	if err != nil {
		t.Fatal(err)
	}
	split := ComputeReward(parentSupply, false)

	block := coinbaseBlock(t, dag, []crypto.Hash{params.GenesisHash}, 1, params.GenesisTimestampMillis+dagconfig.BlockTimeMillis, miner, split.MinerReward)

	if err := dag.Commit(block); err != nil {
		t.Fatalf("commit failed: %s", err)
	}

	topHeight, err := dag.TopHeight()
	if err != nil || topHeight != 1 {
		t.Fatalf("expected top height 1, got %d err=%v", topHeight, err)
	}
	topTopo, err := dag.TopTopoheight()
	if err != nil || topTopo != 1 {
		t.Fatalf("expected top topoheight 1, got %d err=%v", topTopo, err)
	}

	tips, err := dag.Tips()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := tips[block.Hash()]; !ok || len(tips) != 1 {
		t.Fatalf("expected tips={block}, got %v", tips)
	}
}
