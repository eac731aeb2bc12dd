package asset

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// NonFungible is a singleton-token ledger: each unit has exactly one owner
// and a transfer amount of one.
type NonFungible struct {
	*base
	owners map[uint64]common.Address
	nextID uint64
}

func newNonFungible(b *base, args ConstructorArgs) (*NonFungible, error) {
	nf := &NonFungible{
		base:   b,
		owners: make(map[uint64]common.Address),
	}
	// Quantity seeds an initial run of sequential token ids to the owner.
	if args.Quantity != nil && args.Quantity.Sign() > 0 {
		if !args.Quantity.IsUint64() {
			return nil, fmt.Errorf("asset: initial quantity: %w", domain.ErrInvalidAmount)
		}
		for i := uint64(0); i < args.Quantity.Uint64(); i++ {
			if err := nf.Mint(args.Owner, args.Owner, nf.nextID, big.NewInt(1)); err != nil {
				return nil, err
			}
		}
	}
	return nf, nil
}

// OwnerOf returns the holder of a token id.
func (nf *NonFungible) OwnerOf(unit uint64) (common.Address, error) {
	nf.mu.RLock()
	defer nf.mu.RUnlock()
	owner, ok := nf.owners[unit]
	if !ok {
		return common.Address{}, fmt.Errorf("asset: token %d: %w", unit, domain.ErrUnknownUnit)
	}
	return owner, nil
}

// Mint assigns a previously unissued token id to the recipient. The amount
// must be exactly one.
func (nf *NonFungible) Mint(caller, to common.Address, unit uint64, amount *big.Int) error {
	if !nf.canMint(caller) {
		return fmt.Errorf("asset: mint %s: %w", nf.symbol, domain.ErrUnauthorized)
	}
	if amount == nil || amount.Cmp(big.NewInt(1)) != 0 {
		return fmt.Errorf("asset: mint: %w", domain.ErrInvalidAmount)
	}

	nf.mu.Lock()
	defer nf.mu.Unlock()

	if _, exists := nf.owners[unit]; exists {
		return fmt.Errorf("asset: mint token %d: %w", unit, domain.ErrInvalidAmount)
	}
	nf.owners[unit] = to
	if unit >= nf.nextID {
		nf.nextID = unit + 1
	}
	return nil
}

// BalanceOf returns one when owner holds the token id, zero otherwise.
func (nf *NonFungible) BalanceOf(owner common.Address, unit uint64) *big.Int {
	nf.mu.RLock()
	defer nf.mu.RUnlock()
	if nf.owners[unit] == owner {
		return big.NewInt(1)
	}
	return new(big.Int)
}

// Transfer moves a single token id between holders.
func (nf *NonFungible) Transfer(operator, from, to common.Address, unit uint64, amount *big.Int) error {
	if !nf.authorized(operator, from) {
		return fmt.Errorf("asset: transfer %s: %w", nf.symbol, domain.ErrUnauthorized)
	}
	if amount == nil || amount.Cmp(big.NewInt(1)) != 0 {
		return fmt.Errorf("asset: transfer: %w", domain.ErrInvalidAmount)
	}

	nf.mu.Lock()
	defer nf.mu.Unlock()

	owner, ok := nf.owners[unit]
	if !ok {
		return fmt.Errorf("asset: token %d: %w", unit, domain.ErrUnknownUnit)
	}
	if owner != from {
		return fmt.Errorf("asset: transfer token %d: %w", unit, domain.ErrInsufficientFunds)
	}
	nf.owners[unit] = to
	return nil
}

var _ Asset = (*NonFungible)(nil)
