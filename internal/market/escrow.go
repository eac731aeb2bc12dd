package market

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/BunsDev/shareconomy-nft-factory/internal/asset"
	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// EngineConfig carries the shared construction parameters of both
// marketplace engines.
type EngineConfig struct {
	// Address is the engine identity; escrowed funds are held under it,
	// and asset instances trust it as a transfer operator.
	Address common.Address

	// FeeRecipient receives the protocol fee share on settlement.
	FeeRecipient common.Address

	Book   *asset.Book
	Vault  *Vault
	Clock  domain.Clock
	Logger *slog.Logger
}

func (cfg EngineConfig) withDefaults() EngineConfig {
	if cfg.Clock == nil {
		cfg.Clock = domain.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// escrow moves payment-side funds in and out of the engine's custody
// account, in native currency or a fungible payment token.
type escrow struct {
	self  common.Address
	vault *Vault
	book  *asset.Book
}

// validatePayment checks that a payment selector is usable: native, or a
// registered fungible instance.
func (e escrow) validatePayment(p domain.PaymentAsset) error {
	if p.Native() {
		return nil
	}
	_, err := e.book.Fungible(p.Token)
	return err
}

// pull takes amount from the payer into engine custody. It either moves the
// full amount or nothing.
func (e escrow) pull(payer common.Address, p domain.PaymentAsset, amount *big.Int) error {
	if p.Native() {
		if err := e.vault.Move(payer, e.self, amount); err != nil {
			return fmt.Errorf("escrow: pull: %w", err)
		}
		return nil
	}
	token, err := e.book.Fungible(p.Token)
	if err != nil {
		return fmt.Errorf("escrow: pull: %w", err)
	}
	if err := token.Transfer(e.self, payer, e.self, 0, amount); err != nil {
		return fmt.Errorf("escrow: pull: %w", err)
	}
	return nil
}

// pay releases amount from engine custody to the recipient. The engine only
// ever pays out what it previously pulled, so a shortfall here is a custody
// accounting bug, not a caller error.
func (e escrow) pay(recipient common.Address, p domain.PaymentAsset, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if p.Native() {
		if err := e.vault.Move(e.self, recipient, amount); err != nil {
			return fmt.Errorf("escrow: pay: %w", err)
		}
		return nil
	}
	token, err := e.book.Fungible(p.Token)
	if err != nil {
		return fmt.Errorf("escrow: pay: %w", err)
	}
	if err := token.Transfer(e.self, e.self, recipient, 0, amount); err != nil {
		return fmt.Errorf("escrow: pay: %w", err)
	}
	return nil
}
