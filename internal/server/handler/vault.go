package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// VaultService defines the methods that the vault handler requires from the
// service layer.
type VaultService interface {
	Deposit(ctx context.Context, account common.Address, amount *big.Int) error
	Withdraw(ctx context.Context, account common.Address, amount *big.Int) error
	Balance(ctx context.Context, account common.Address) *big.Int
}

// VaultHandler serves native-balance vault HTTP endpoints.
type VaultHandler struct {
	vault  VaultService
	logger *slog.Logger
}

// NewVaultHandler creates a VaultHandler with the given service and logger.
func NewVaultHandler(vault VaultService, logger *slog.Logger) *VaultHandler {
	return &VaultHandler{
		vault:  vault,
		logger: logger,
	}
}

// vaultRequest is the JSON body for deposits and withdrawals.
type vaultRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

func (h *VaultHandler) decodeVaultRequest(r *http.Request) (common.Address, *big.Int, error) {
	var req vaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return common.Address{}, nil, errors.New("invalid request body: " + err.Error())
	}
	account, err := parseAddress("account", req.Account)
	if err != nil {
		return common.Address{}, nil, err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return common.Address{}, nil, err
	}
	return account, amount, nil
}

// Deposit credits native balance to an account.
// POST /api/vault/deposit
func (h *VaultHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	account, amount, err := h.decodeVaultRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.vault.Deposit(r.Context(), account, amount); err != nil {
		h.writeVaultError(w, r, "deposit", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "deposited",
		"account": account.Hex(),
		"balance": h.vault.Balance(r.Context(), account).String(),
	})
}

// Withdraw debits native balance from an account.
// POST /api/vault/withdraw
func (h *VaultHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	account, amount, err := h.decodeVaultRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.vault.Withdraw(r.Context(), account, amount); err != nil {
		h.writeVaultError(w, r, "withdraw", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "withdrawn",
		"account": account.Hex(),
		"balance": h.vault.Balance(r.Context(), account).String(),
	})
}

// GetBalance returns one account's native balance.
// GET /api/vault/{address}
func (h *VaultHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account": account.Hex(),
		"balance": h.vault.Balance(r.Context(), account).String(),
	})
}

func (h *VaultHandler) writeVaultError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, "insufficient balance")
	case errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid amount")
	default:
		h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}
