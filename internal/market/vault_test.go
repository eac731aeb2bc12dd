package market

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

func TestVaultDepositWithdraw(t *testing.T) {
	v := NewVault()
	alice := common.HexToAddress("0xa11ce")

	if err := v.Deposit(alice, big.NewInt(100)); err != nil {
		t.Fatalf("Deposit returned error: %v", err)
	}
	if got := v.Balance(alice); got.Int64() != 100 {
		t.Fatalf("balance = %s, want 100", got)
	}

	if err := v.Withdraw(alice, big.NewInt(40)); err != nil {
		t.Fatalf("Withdraw returned error: %v", err)
	}
	if got := v.Balance(alice); got.Int64() != 60 {
		t.Fatalf("balance = %s, want 60", got)
	}

	if err := v.Withdraw(alice, big.NewInt(61)); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("overdraw: expected ErrInsufficientFunds, got %v", err)
	}
	if got := v.Balance(alice); got.Int64() != 60 {
		t.Fatalf("balance changed on failed withdraw: %s", got)
	}
}

func TestVaultMoveIsAtomic(t *testing.T) {
	v := NewVault()
	alice := common.HexToAddress("0xa11ce")
	bob := common.HexToAddress("0xb0b")

	if err := v.Deposit(alice, big.NewInt(50)); err != nil {
		t.Fatalf("Deposit returned error: %v", err)
	}

	if err := v.Move(alice, bob, big.NewInt(30)); err != nil {
		t.Fatalf("Move returned error: %v", err)
	}
	if got := v.Balance(alice); got.Int64() != 20 {
		t.Fatalf("alice balance = %s, want 20", got)
	}
	if got := v.Balance(bob); got.Int64() != 30 {
		t.Fatalf("bob balance = %s, want 30", got)
	}

	// A short source moves nothing.
	if err := v.Move(alice, bob, big.NewInt(21)); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := v.Balance(bob); got.Int64() != 30 {
		t.Fatalf("bob balance changed on failed move: %s", got)
	}
}

func TestVaultRejectsInvalidAmounts(t *testing.T) {
	v := NewVault()
	alice := common.HexToAddress("0xa11ce")

	if err := v.Deposit(alice, nil); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("nil deposit: expected ErrInvalidAmount, got %v", err)
	}
	if err := v.Deposit(alice, big.NewInt(0)); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("zero deposit: expected ErrInvalidAmount, got %v", err)
	}
	if err := v.Withdraw(alice, big.NewInt(-1)); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("negative withdraw: expected ErrInvalidAmount, got %v", err)
	}

	// Zero-amount moves are a no-op, not an error.
	if err := v.Move(alice, common.HexToAddress("0xb0b"), big.NewInt(0)); err != nil {
		t.Fatalf("zero move returned error: %v", err)
	}
}

func TestVaultBalanceReturnsCopy(t *testing.T) {
	v := NewVault()
	alice := common.HexToAddress("0xa11ce")
	if err := v.Deposit(alice, big.NewInt(10)); err != nil {
		t.Fatalf("Deposit returned error: %v", err)
	}

	bal := v.Balance(alice)
	bal.SetInt64(9999)
	if got := v.Balance(alice); got.Int64() != 10 {
		t.Fatalf("vault balance aliased by caller: %s", got)
	}
}
