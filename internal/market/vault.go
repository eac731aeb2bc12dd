package market

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// Vault is the native-currency ledger. Off-chain there is no ambient value
// attached to a call, so buyers fund orders and bids out of vault balances
// deposited ahead of time; the engines escrow under their own account.
type Vault struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
}

// NewVault creates an empty vault.
func NewVault() *Vault {
	return &Vault{balances: make(map[common.Address]*big.Int)}
}

// Deposit credits amount to an account.
func (v *Vault) Deposit(account common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("vault: deposit: %w", domain.ErrInvalidAmount)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.credit(account, amount)
	return nil
}

// Withdraw debits amount from an account.
func (v *Vault) Withdraw(account common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("vault: withdraw: %w", domain.ErrInvalidAmount)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.debit(account, amount)
}

// Move atomically transfers amount between two accounts; nothing moves if
// the source balance is short.
func (v *Vault) Move(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("vault: move: %w", domain.ErrInvalidAmount)
	}
	if amount.Sign() == 0 {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.debit(from, amount); err != nil {
		return err
	}
	v.credit(to, amount)
	return nil
}

// Balance returns an account's balance.
func (v *Vault) Balance(account common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if bal, ok := v.balances[account]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// credit adds amount to an account. Callers hold v.mu.
func (v *Vault) credit(account common.Address, amount *big.Int) {
	if bal, ok := v.balances[account]; ok {
		bal.Add(bal, amount)
		return
	}
	v.balances[account] = new(big.Int).Set(amount)
}

// debit subtracts amount from an account. Callers hold v.mu.
func (v *Vault) debit(account common.Address, amount *big.Int) error {
	bal, ok := v.balances[account]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("vault: %s: %w", account.Hex(), domain.ErrInsufficientFunds)
	}
	bal.Sub(bal, amount)
	return nil
}
