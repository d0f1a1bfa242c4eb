package database

import (
	"os"
	"testing"

	"github.com/shadowdag/shadowd/blockdag"
	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/logs"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "shadowd-store-test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	backend := logs.NewAllLevelsBackendWriter(os.Stderr)
	b := logs.NewBackend([]*logs.BackendWriter{backend})
	store, err := Open(dir, b.Logger("TEST"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBlockRoundTrip(t *testing.T) {
	store := newTestStore(t)

	header := &blockdag.Header{
		Version:     blockdag.HeaderVersion,
		Height:      1,
		TimestampMs: 1000,
		Tips:        []crypto.Hash{crypto.HashBytes([]byte("genesis"))},
		TxHashes:    nil,
	}
	hash := header.Hash()

	if err := store.AddNewBlock(header, nil, 150000, hash); err != nil {
		t.Fatal(err)
	}

	has, err := store.HasBlock(hash)
	if err != nil || !has {
		t.Fatalf("expected block to exist, has=%v err=%v", has, err)
	}

	got, err := store.GetBlockHeader(hash)
	if err != nil {
		t.Fatal(err)
	}
	if got.Height != header.Height {
		t.Fatalf("height mismatch: %d != %d", got.Height, header.Height)
	}

	diff, err := store.GetDifficultyForBlockHash(hash)
	if err != nil {
		t.Fatal(err)
	}
	if diff != 150000 {
		t.Fatalf("expected difficulty 150000, got %d", diff)
	}
}

func TestTopoOrdering(t *testing.T) {
	store := newTestStore(t)
	hash := crypto.HashBytes([]byte("block-a"))

	if err := store.SetTopoHeightForBlock(hash, 5); err != nil {
		t.Fatal(err)
	}
	topo, ok, err := store.GetTopoHeightForHash(hash)
	if err != nil || !ok || topo != 5 {
		t.Fatalf("expected topo=5 ok=true, got topo=%d ok=%v err=%v", topo, ok, err)
	}
	got, err := store.GetHashAtTopoHeight(5)
	if err != nil || got != hash {
		t.Fatalf("expected reverse lookup to match, got %s err=%v", got, err)
	}
}

func TestBalanceVersionChain(t *testing.T) {
	store := newTestStore(t)
	var account crypto.PublicKey
	copy(account[:], []byte("test-account-000000000000000000"))
	asset := crypto.ZeroHash

	has, err := store.HasBalanceFor(account, asset)
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Fatal("expected no balance yet")
	}

	v0, err := store.GetNewVersionedBalance(account, asset, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v0.HasPrevious() {
		t.Fatal("first version must have no previous topoheight")
	}
	if err := store.SetBalanceAtTopoheight(account, asset, 0, v0); err != nil {
		t.Fatal(err)
	}

	v1, err := store.GetNewVersionedBalance(account, asset, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !v1.HasPrevious() || *v1.PreviousTopoheight != 0 {
		t.Fatal("second version must chain back to topoheight 0")
	}
	if err := store.SetBalanceAtTopoheight(account, asset, 1, v1); err != nil {
		t.Fatal(err)
	}

	topo, _, ok, err := store.GetLastBalance(account, asset)
	if err != nil || !ok || topo != 1 {
		t.Fatalf("expected head at topo 1, got topo=%d ok=%v err=%v", topo, ok, err)
	}

	maxTopo, _, ok, err := store.GetBalanceAtMaximumTopoheight(account, asset, 0)
	if err != nil || !ok || maxTopo != 0 {
		t.Fatalf("expected max-topoheight lookup to stop at 0, got %d ok=%v err=%v", maxTopo, ok, err)
	}
}
