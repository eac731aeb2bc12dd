package asset

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// SemiFungible is a multi-denomination ledger: every token id carries its
// own per-holder balances.
type SemiFungible struct {
	*base
	balances map[uint64]map[common.Address]*big.Int
}

func newSemiFungible(b *base, args ConstructorArgs) (*SemiFungible, error) {
	if len(args.IDs) != len(args.Amounts) {
		return nil, fmt.Errorf("asset: ids/amounts length mismatch: %w", domain.ErrInvalidAmount)
	}
	sf := &SemiFungible{
		base:     b,
		balances: make(map[uint64]map[common.Address]*big.Int),
	}
	for i, id := range args.IDs {
		if err := sf.Mint(args.Owner, args.Owner, id, args.Amounts[i]); err != nil {
			return nil, err
		}
	}
	return sf, nil
}

// Mint credits amount of a token id to the recipient.
func (sf *SemiFungible) Mint(caller, to common.Address, unit uint64, amount *big.Int) error {
	if !sf.canMint(caller) {
		return fmt.Errorf("asset: mint %s: %w", sf.symbol, domain.ErrUnauthorized)
	}
	if !validAmount(amount) {
		return fmt.Errorf("asset: mint: %w", domain.ErrInvalidAmount)
	}

	sf.mu.Lock()
	defer sf.mu.Unlock()
	sf.credit(to, unit, amount)
	return nil
}

// BalanceOf returns the holder's balance of a token id.
func (sf *SemiFungible) BalanceOf(owner common.Address, unit uint64) *big.Int {
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	if holders, ok := sf.balances[unit]; ok {
		if bal, ok := holders[owner]; ok {
			return new(big.Int).Set(bal)
		}
	}
	return new(big.Int)
}

// Transfer moves amount of a token id between holders.
func (sf *SemiFungible) Transfer(operator, from, to common.Address, unit uint64, amount *big.Int) error {
	if !sf.authorized(operator, from) {
		return fmt.Errorf("asset: transfer %s: %w", sf.symbol, domain.ErrUnauthorized)
	}
	if !validAmount(amount) {
		return fmt.Errorf("asset: transfer: %w", domain.ErrInvalidAmount)
	}

	sf.mu.Lock()
	defer sf.mu.Unlock()

	holders, ok := sf.balances[unit]
	if !ok {
		return fmt.Errorf("asset: token %d: %w", unit, domain.ErrUnknownUnit)
	}
	bal, ok := holders[from]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("asset: transfer token %d: %w", unit, domain.ErrInsufficientFunds)
	}
	bal.Sub(bal, amount)
	sf.credit(to, unit, amount)
	return nil
}

// credit adds amount of a token id to an account. Callers hold sf.mu.
func (sf *SemiFungible) credit(to common.Address, unit uint64, amount *big.Int) {
	holders, ok := sf.balances[unit]
	if !ok {
		holders = make(map[common.Address]*big.Int)
		sf.balances[unit] = holders
	}
	if bal, ok := holders[to]; ok {
		bal.Add(bal, amount)
		return
	}
	holders[to] = new(big.Int).Set(amount)
}

var _ Asset = (*SemiFungible)(nil)
