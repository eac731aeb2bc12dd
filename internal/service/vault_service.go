package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
	"github.com/BunsDev/shareconomy-nft-factory/internal/market"
)

// VaultService fronts the native-currency ledger that escrow settlement
// draws on. Accounts deposit before funding orders or bidding, and withdraw
// proceeds after settlement.
type VaultService struct {
	vault  *market.Vault
	bus    domain.SignalBus
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewVaultService creates a VaultService with all required dependencies.
func NewVaultService(vault *market.Vault, bus domain.SignalBus, audit domain.AuditStore, logger *slog.Logger) *VaultService {
	return &VaultService{
		vault:  vault,
		bus:    bus,
		audit:  audit,
		logger: logger,
	}
}

// Deposit credits native currency to an account.
func (s *VaultService) Deposit(ctx context.Context, account common.Address, amount *big.Int) error {
	if err := s.vault.Deposit(account, amount); err != nil {
		return fmt.Errorf("vault_service: deposit: %w", err)
	}

	publishEvent(ctx, s.bus, nil, s.logger, domain.Event{
		Type:      domain.EventVaultDeposit,
		Actor:     account,
		Amount:    amount.String(),
		Timestamp: time.Now().UTC(),
	})

	s.auditLog(ctx, "vault.deposit", map[string]any{
		"account": account.Hex(),
		"amount":  amount.String(),
	})
	return nil
}

// Withdraw debits native currency from an account.
func (s *VaultService) Withdraw(ctx context.Context, account common.Address, amount *big.Int) error {
	if err := s.vault.Withdraw(account, amount); err != nil {
		return fmt.Errorf("vault_service: withdraw: %w", err)
	}

	publishEvent(ctx, s.bus, nil, s.logger, domain.Event{
		Type:      domain.EventVaultWithdraw,
		Actor:     account,
		Amount:    amount.String(),
		Timestamp: time.Now().UTC(),
	})

	s.auditLog(ctx, "vault.withdraw", map[string]any{
		"account": account.Hex(),
		"amount":  amount.String(),
	})
	return nil
}

// Balance returns the current native balance of an account.
func (s *VaultService) Balance(ctx context.Context, account common.Address) *big.Int {
	return s.vault.Balance(account)
}

func (s *VaultService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "vault_service: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
