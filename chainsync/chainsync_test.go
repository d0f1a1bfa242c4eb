package chainsync

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/shadowdag/shadowd/blockdag"
	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/dagconfig"
	"github.com/shadowdag/shadowd/database"
	"github.com/shadowdag/shadowd/logs"
	"github.com/shadowdag/shadowd/peer"
	"github.com/shadowdag/shadowd/wire"
)

func newTestDAG(t *testing.T) (*blockdag.DAG, *dagconfig.Params) {
	t.Helper()
	dir, err := os.MkdirTemp("", "shadowd-chainsync-test")
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
	dag, err := blockdag.New(store, &params, log)
	if err != nil {
		t.Fatal(err)
	}
	return dag, &params
}

// mineHeader increments header.Nonce until its PoW hash satisfies the
// difficulty provider would expect for it.
func mineHeader(t *testing.T, provider blockdag.DifficultyProvider, header *blockdag.Header) {
	t.Helper()
	expected, err := blockdag.ExpectedDifficulty(provider, header.Tips, header.TimestampMs)
	if err != nil {
		t.Fatal(err)
	}
	for nonce := uint64(0); ; nonce++ {
		header.Nonce = nonce
		if blockdag.CheckProofOfWork(header.PoWHash(), expected) {
			return
		}
		if nonce > 5_000_000 {
			t.Fatal("failed to mine block within nonce budget")
		}
	}
}

func coinbaseBlock(t *testing.T, provider blockdag.DifficultyProvider, tips []crypto.Hash, height uint64, timestampMs uint64, miner crypto.PublicKey, reward uint64) *blockdag.Block {
	t.Helper()
	coinbase := &blockdag.Transaction{
		Data:   blockdag.TransactionData{Variant: blockdag.VariantCoinbase, Coinbase: blockdag.CoinbaseData{Amount: reward}},
		Sender: miner,
	}
	header := &blockdag.Header{
		Version:     blockdag.HeaderVersion,
		Height:      height,
		TimestampMs: timestampMs,
		MinerKey:    miner,
		Tips:        tips,
		TxHashes:    []crypto.Hash{coinbase.Hash()},
	}
	mineHeader(t, provider, header)
	return &blockdag.Block{Header: header, Txs: []*blockdag.Transaction{coinbase}}
}

func testMiner() crypto.PublicKey {
	var miner crypto.PublicKey
	copy(miner[:], []byte("miner-0000000000000000000000000"))
	return miner
}

func TestChainValidatorInsertRejectsUnknownTip(t *testing.T) {
	dag, _ := newTestDAG(t)
	v := NewChainValidator(dag.Store())

	header := &blockdag.Header{
		Version:     blockdag.HeaderVersion,
		Height:      1,
		TimestampMs: 2000,
		MinerKey:    testMiner(),
		Tips:        []crypto.Hash{crypto.HashBytes([]byte("not a real block"))},
		TxHashes:    []crypto.Hash{},
	}
	if _, err := v.Insert(header); err == nil {
		t.Fatal("expected rejection of a header with an unresolvable tip")
	}
}

func TestChainValidatorInsertAcceptsChainedHeaders(t *testing.T) {
	dag, params := newTestDAG(t)
	v := NewChainValidator(dag.Store())

	block1 := coinbaseBlock(t, v, []crypto.Hash{params.GenesisHash}, 1, params.GenesisTimestampMillis+dagconfig.BlockTimeMillis, testMiner(), 0)
	if _, err := v.Insert(block1.Header); err != nil {
		t.Fatalf("expected first header to validate: %s", err)
	}

	block2 := coinbaseBlock(t, v, []crypto.Hash{block1.Hash()}, 2, block1.Header.TimestampMs+dagconfig.BlockTimeMillis, testMiner(), 0)
	if _, err := v.Insert(block2.Header); err != nil {
		t.Fatalf("expected second header to validate against the sandboxed first: %s", err)
	}

	order := v.Order()
	if len(order) != 2 || order[0] != block1.Hash() || order[1] != block2.Hash() {
		t.Fatalf("unexpected insertion order: %v", order)
	}
}

func TestChainValidatorInsertRejectsAlreadyKnown(t *testing.T) {
	dag, params := newTestDAG(t)
	v := NewChainValidator(dag.Store())

	block1 := coinbaseBlock(t, v, []crypto.Hash{params.GenesisHash}, 1, params.GenesisTimestampMillis+dagconfig.BlockTimeMillis, testMiner(), 0)
	if _, err := v.Insert(block1.Header); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Insert(block1.Header); err == nil {
		t.Fatal("expected rejection of a header already accepted by the sandbox")
	}
}

func TestShouldSync(t *testing.T) {
	dag, _ := newTestDAG(t)
	backend := logs.NewBackend(nil)
	s := New(dag, nil, backend.Logger("TEST"))

	client, server := net.Pipe()
	defer client.Close()
	p := peer.New(server, "127.0.0.1:1", false)
	defer p.Close()

	should, err := s.ShouldSync(p)
	if err != nil {
		t.Fatal(err)
	}
	if should {
		t.Fatal("peer at height 0 should not trigger a sync against a genesis-only DAG")
	}

	p.SetBlockHeight(5)
	should, err = s.ShouldSync(p)
	if err != nil {
		t.Fatal(err)
	}
	if !should {
		t.Fatal("peer ahead of our tip should trigger a sync")
	}
}

type fakeFetcher struct {
	sentTo    *peer.Peer
	sentHashes []crypto.Hash
}

func (f *fakeFetcher) RequestChainFrom(p *peer.Peer, hashes []crypto.Hash) error {
	f.sentTo = p
	f.sentHashes = hashes
	return nil
}

func TestBeginSyncSendsLocator(t *testing.T) {
	dag, params := newTestDAG(t)
	backend := logs.NewBackend(nil)

	fetcher := &fakeFetcher{}
	s := &Syncer{dag: dag, conn: fetcher, log: backend.Logger("TEST")}

	client, server := net.Pipe()
	defer client.Close()
	p := peer.New(server, "127.0.0.1:1", false)
	defer p.Close()

	if err := s.BeginSync(p); err != nil {
		t.Fatal(err)
	}
	if fetcher.sentTo != p {
		t.Fatal("expected RequestChainFrom to be called with the given peer")
	}
	if len(fetcher.sentHashes) != 1 || fetcher.sentHashes[0] != params.GenesisHash {
		t.Fatalf("expected locator to contain only the genesis hash, got %v", fetcher.sentHashes)
	}
}

func TestSyncerRunCommitsAcceptedChain(t *testing.T) {
	dag, params := newTestDAG(t)
	backend := logs.NewBackend(nil)
	s := New(dag, nil, backend.Logger("TEST"))

	client, server := net.Pipe()
	defer client.Close()
	p := peer.New(server, "127.0.0.1:1", false)
	defer p.Close()

	validator := NewChainValidator(dag.Store())
	// Genesis supply is 0 and the block is alone at its height.
	reward := blockdag.ComputeReward(0, false).MinerReward
	block := coinbaseBlock(t, validator, []crypto.Hash{params.GenesisHash}, 1, params.GenesisTimestampMillis+dagconfig.BlockTimeMillis, testMiner(), reward)

	packets := []*wire.BlockPacket{{Block: block}}
	recv := func(deadline time.Time) (*wire.BlockPacket, error) {
		if len(packets) == 0 {
			return nil, nil
		}
		next := packets[0]
		packets = packets[1:]
		return next, nil
	}

	if err := s.Run(p, recv); err != nil {
		t.Fatalf("expected sync to succeed: %s", err)
	}

	topHeight, err := dag.TopHeight()
	if err != nil {
		t.Fatal(err)
	}
	if topHeight != 1 {
		t.Fatalf("expected top height 1 after sync, got %d", topHeight)
	}
	if p.FailCount() != 0 {
		t.Fatalf("expected no failures recorded on a clean sync, got %d", p.FailCount())
	}
}

func TestSyncerRunRecordsFailureOnInvalidHeader(t *testing.T) {
	dag, _ := newTestDAG(t)
	backend := logs.NewBackend(nil)
	s := New(dag, nil, backend.Logger("TEST"))

	client, server := net.Pipe()
	defer client.Close()
	p := peer.New(server, "127.0.0.1:1", false)
	defer p.Close()

	bogus := &blockdag.Header{
		Version:     blockdag.HeaderVersion,
		Height:      1,
		TimestampMs: 2000,
		MinerKey:    testMiner(),
		Tips:        []crypto.Hash{crypto.HashBytes([]byte("nonexistent"))},
		TxHashes:    []crypto.Hash{},
	}
	packets := []*wire.BlockPacket{{Block: &blockdag.Block{Header: bogus, Txs: nil}}}
	recv := func(deadline time.Time) (*wire.BlockPacket, error) {
		if len(packets) == 0 {
			return nil, nil
		}
		next := packets[0]
		packets = packets[1:]
		return next, nil
	}

	if err := s.Run(p, recv); err == nil {
		t.Fatal("expected sync to fail on an unresolvable tip")
	}
	if p.FailCount() != 1 {
		t.Fatalf("expected 1 recorded failure, got %d", p.FailCount())
	}
}
