package signer

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestMemoryStoreSeedAndLookup(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	seed, err := FromKey(key)
	if err != nil {
		t.Fatalf("from key: %v", err)
	}

	store, err := NewMemoryStore(map[string]string{"alice": seed.KeyHex()})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	got, err := store.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Address() != seed.Address() {
		t.Fatalf("address mismatch: %s != %s", got.Address(), seed.Address())
	}

	if _, err := store.Get(ctx, "bob"); !errors.Is(err, ErrSignerNotFound) {
		t.Fatalf("expected signer not found, got %v", err)
	}

	other, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	bobSigner, err := FromKey(other)
	if err != nil {
		t.Fatalf("from key: %v", err)
	}
	if err := store.Put(ctx, "bob", bobSigner); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Get(ctx, "bob"); err != nil {
		t.Fatalf("get after put: %v", err)
	}

	if err := store.Delete(ctx, "bob"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "bob"); !errors.Is(err, ErrSignerNotFound) {
		t.Fatalf("expected signer not found after delete, got %v", err)
	}
}

func TestFromHexRejectsGarbage(t *testing.T) {
	if _, err := FromHex(""); err == nil {
		t.Fatal("expected error for empty key")
	}
	if _, err := FromHex("0xzz"); err == nil {
		t.Fatal("expected error for invalid hex")
	}
}
