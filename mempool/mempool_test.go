package mempool

import (
	"os"
	"testing"

	"github.com/shadowdag/shadowd/blockdag"
	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/database"
	"github.com/shadowdag/shadowd/logs"
)

func newTestStore(t *testing.T) *database.Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "shadowd-mempool-test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	backend := logs.NewBackend([]*logs.BackendWriter{logs.NewAllLevelsBackendWriter(os.Stderr)})
	store, err := database.Open(dir, backend.Logger("TEST"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func registerSender(t *testing.T, store *database.Store, sender crypto.PublicKey) {
	t.Helper()
	nonceVersion, err := store.GetNewVersionedNonce(sender, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SetNonceAtTopoheight(sender, 0, nonceVersion); err != nil {
		t.Fatal(err)
	}
	balanceVersion, err := store.GetNewVersionedBalance(sender, crypto.ZeroHash, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SetBalanceAtTopoheight(sender, crypto.ZeroHash, 0, balanceVersion); err != nil {
		t.Fatal(err)
	}
}

func TestAddRejectsUnregisteredSender(t *testing.T) {
	store := newTestStore(t)
	pool := New(logs.NewBackend(nil).Logger("TEST"))

	pair, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	tx := &blockdag.Transaction{
		Nonce:  0,
		Data:   blockdag.TransactionData{Variant: blockdag.VariantBurn, Burn: blockdag.BurnData{Amount: 1}},
		Sender: pair.PublicKey(),
		Fee:    100,
	}
	tx.Sign(pair)

	if err := pool.Add(tx, store); err == nil {
		t.Fatal("expected rejection for unregistered sender")
	}
}

func TestAddAcceptsRegisteredSenderWithCorrectNonce(t *testing.T) {
	store := newTestStore(t)
	pool := New(logs.NewBackend(nil).Logger("TEST"))

	pair, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	registerSender(t, store, pair.PublicKey())

	tx := &blockdag.Transaction{
		Nonce:  1,
		Data:   blockdag.TransactionData{Variant: blockdag.VariantBurn, Burn: blockdag.BurnData{Amount: 1}},
		Sender: pair.PublicKey(),
		Fee:    100,
	}
	tx.Sign(pair)

	if err := pool.Add(tx, store); err != nil {
		t.Fatalf("expected admission, got %s", err)
	}
	if pool.Count() != 1 {
		t.Fatalf("expected pool count 1, got %d", pool.Count())
	}
	if !pool.Has(tx.Hash()) {
		t.Fatal("expected pool to report tx as present")
	}
}

func TestAddRejectsDuplicate(t *testing.T) {
	store := newTestStore(t)
	pool := New(logs.NewBackend(nil).Logger("TEST"))

	pair, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	registerSender(t, store, pair.PublicKey())

	tx := &blockdag.Transaction{
		Nonce:  1,
		Data:   blockdag.TransactionData{Variant: blockdag.VariantBurn, Burn: blockdag.BurnData{Amount: 1}},
		Sender: pair.PublicKey(),
		Fee:    100,
	}
	tx.Sign(pair)

	if err := pool.Add(tx, store); err != nil {
		t.Fatal(err)
	}
	if err := pool.Add(tx, store); err == nil {
		t.Fatal("expected duplicate rejection")
	}
}

func TestRemoveExecuted(t *testing.T) {
	store := newTestStore(t)
	pool := New(logs.NewBackend(nil).Logger("TEST"))

	pair, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	registerSender(t, store, pair.PublicKey())

	tx := &blockdag.Transaction{
		Nonce:  1,
		Data:   blockdag.TransactionData{Variant: blockdag.VariantBurn, Burn: blockdag.BurnData{Amount: 1}},
		Sender: pair.PublicKey(),
		Fee:    100,
	}
	tx.Sign(pair)
	if err := pool.Add(tx, store); err != nil {
		t.Fatal(err)
	}

	pool.RemoveExecuted([]crypto.Hash{tx.Hash()})
	if pool.Count() != 0 {
		t.Fatalf("expected empty pool after removal, got %d", pool.Count())
	}
}
