package asset

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// Fungible is a single-denomination balance ledger. The only valid unit is
// zero; fungible listings in the marketplace use tokenId 0.
type Fungible struct {
	*base
	balances    map[common.Address]*big.Int
	totalSupply *big.Int
}

func newFungible(b *base, args ConstructorArgs) (*Fungible, error) {
	f := &Fungible{
		base:        b,
		balances:    make(map[common.Address]*big.Int),
		totalSupply: new(big.Int),
	}
	if args.Quantity != nil && args.Quantity.Sign() > 0 {
		if err := f.Mint(args.Owner, args.Owner, 0, args.Quantity); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// TotalSupply returns the minted supply.
func (f *Fungible) TotalSupply() *big.Int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return new(big.Int).Set(f.totalSupply)
}

// Mint credits amount to the recipient. Owner and trusted operators only.
func (f *Fungible) Mint(caller, to common.Address, unit uint64, amount *big.Int) error {
	if !f.canMint(caller) {
		return fmt.Errorf("asset: mint %s: %w", f.symbol, domain.ErrUnauthorized)
	}
	if unit != 0 {
		return fmt.Errorf("asset: mint unit %d: %w", unit, domain.ErrUnknownUnit)
	}
	if !validAmount(amount) {
		return fmt.Errorf("asset: mint: %w", domain.ErrInvalidAmount)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.credit(to, amount)
	f.totalSupply.Add(f.totalSupply, amount)
	return nil
}

// BalanceOf returns the recipient's balance. Units other than zero have no
// balance by definition.
func (f *Fungible) BalanceOf(owner common.Address, unit uint64) *big.Int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if unit != 0 {
		return new(big.Int)
	}
	if bal, ok := f.balances[owner]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// Transfer moves amount from one holder to another. The operator must be
// the holder itself or a trusted marketplace engine.
func (f *Fungible) Transfer(operator, from, to common.Address, unit uint64, amount *big.Int) error {
	if !f.authorized(operator, from) {
		return fmt.Errorf("asset: transfer %s: %w", f.symbol, domain.ErrUnauthorized)
	}
	if unit != 0 {
		return fmt.Errorf("asset: transfer unit %d: %w", unit, domain.ErrUnknownUnit)
	}
	if !validAmount(amount) {
		return fmt.Errorf("asset: transfer: %w", domain.ErrInvalidAmount)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	bal, ok := f.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("asset: transfer %s: %w", f.symbol, domain.ErrInsufficientFunds)
	}
	bal.Sub(bal, amount)
	f.credit(to, amount)
	return nil
}

// credit adds amount to an account. Callers hold f.mu.
func (f *Fungible) credit(to common.Address, amount *big.Int) {
	if bal, ok := f.balances[to]; ok {
		bal.Add(bal, amount)
		return
	}
	f.balances[to] = new(big.Int).Set(amount)
}

var _ Asset = (*Fungible)(nil)
