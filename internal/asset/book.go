package asset

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// Book is the live address → instance table. The factory registers every
// deployed instance here; the marketplace engines resolve listings and
// payment tokens through it.
type Book struct {
	mu     sync.RWMutex
	assets map[common.Address]Asset
}

// NewBook creates an empty instance book.
func NewBook() *Book {
	return &Book{assets: make(map[common.Address]Asset)}
}

// Register adds a deployed instance under its derived address.
func (b *Book) Register(addr common.Address, a Asset) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.assets[addr] = a
}

// Lookup resolves an instance address.
func (b *Book) Lookup(addr common.Address) (Asset, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.assets[addr]
	if !ok {
		return nil, fmt.Errorf("asset: %s: %w", addr.Hex(), domain.ErrUnknownAsset)
	}
	return a, nil
}

// Fungible resolves an instance address and asserts it is a fungible
// ledger, as required for token-denominated payments.
func (b *Book) Fungible(addr common.Address) (*Fungible, error) {
	a, err := b.Lookup(addr)
	if err != nil {
		return nil, err
	}
	f, ok := a.(*Fungible)
	if !ok {
		return nil, fmt.Errorf("asset: %s is %s, not fungible: %w",
			addr.Hex(), a.Kind(), domain.ErrUnknownAsset)
	}
	return f, nil
}

// Len returns the number of registered instances.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.assets)
}
