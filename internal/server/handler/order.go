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

// OrderService defines the methods that the order handler requires from the
// service layer.
type OrderService interface {
	AddOrder(ctx context.Context, caller, asset common.Address, tokenID uint64, amount, price *big.Int, payment domain.PaymentAsset) (uint64, error)
	RedeemOrder(ctx context.Context, caller, asset common.Address, orderID uint64, funds *big.Int) error
	AcceptOrder(ctx context.Context, caller, asset common.Address, orderID uint64, accept bool) error
	CompleteOrder(ctx context.Context, caller, asset common.Address, orderID uint64) error
	DeclineOrder(ctx context.Context, caller, asset common.Address, orderID uint64) error
	GetOrder(ctx context.Context, asset common.Address, orderID uint64) (domain.Order, error)
	ListOrders(ctx context.Context, asset common.Address) []domain.Order
	ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.Order, error)
}

// OrderHandler serves escrow order HTTP endpoints.
type OrderHandler struct {
	orders OrderService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler with the given service and logger.
func NewOrderHandler(orders OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		logger: logger,
	}
}

// orderView is the JSON shape for order snapshots.
type orderView struct {
	Asset          string `json:"asset"`
	OrderID        uint64 `json:"order_id"`
	TokenID        uint64 `json:"token_id"`
	Amount         string `json:"amount"`
	Price          string `json:"price"`
	FeeRateBps     uint32 `json:"fee_rate_bps"`
	Seller         string `json:"seller"`
	Buyer          string `json:"buyer,omitempty"`
	Payment        string `json:"payment"`
	SellerAccepted bool   `json:"seller_accepted"`
	Settled        bool   `json:"settled"`
}

func toOrderView(o domain.Order) orderView {
	v := orderView{
		Asset:          o.Asset.Hex(),
		OrderID:        o.OrderID,
		TokenID:        o.TokenID,
		Amount:         o.Amount.String(),
		Price:          o.Price.String(),
		FeeRateBps:     o.FeeRateBps,
		Seller:         o.Seller.Hex(),
		Payment:        o.Payment.String(),
		SellerAccepted: o.SellerAccepted,
		Settled:        o.Settled,
	}
	if o.Funded() {
		v.Buyer = o.Buyer.Hex()
	}
	return v
}

// writeOrderError maps escrow sentinel errors onto HTTP statuses.
func (h *OrderHandler) writeOrderError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, domain.ErrUnknownAsset):
		writeError(w, http.StatusNotFound, "unknown asset")
	case errors.Is(err, domain.ErrAlreadySettled):
		writeError(w, http.StatusConflict, "order already settled")
	case errors.Is(err, domain.ErrAlreadyFunded):
		writeError(w, http.StatusConflict, "order already funded")
	case errors.Is(err, domain.ErrIncorrectFunds):
		writeError(w, http.StatusBadRequest, "funds must exactly equal the asking price")
	case errors.Is(err, domain.ErrNothingToAccept):
		writeError(w, http.StatusConflict, "order has no funded buyer")
	case errors.Is(err, domain.ErrOrderNotReady):
		writeError(w, http.StatusConflict, "order is not funded and accepted")
	case errors.Is(err, domain.ErrNothingToDecline):
		writeError(w, http.StatusConflict, "nothing to decline")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "caller may not perform this operation")
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

// addOrderRequest is the JSON body for listing an asset in escrow.
type addOrderRequest struct {
	Caller  string `json:"caller"`
	TokenID uint64 `json:"token_id"`
	Amount  string `json:"amount"`
	Price   string `json:"price"`
	Payment string `json:"payment"` // "native" or a token address
}

// AddOrder lists asset units for sale.
// POST /api/assets/{address}/orders
func (h *OrderHandler) AddOrder(w http.ResponseWriter, r *http.Request) {
	assetAddr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req addOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	price, err := parseAmount("price", req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	payment, err := domain.ParsePaymentAsset(req.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payment asset")
		return
	}

	orderID, err := h.orders.AddOrder(r.Context(), caller, assetAddr, req.TokenID, amount, price, payment)
	if err != nil {
		h.writeOrderError(w, r, "add order", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"asset":    assetAddr.Hex(),
		"order_id": orderID,
	})
}

// callerFundsRequest is the JSON body shared by funding-style operations.
type callerFundsRequest struct {
	Caller string `json:"caller"`
	Funds  string `json:"funds"`
}

// RedeemOrder escrows exact payment from a buyer.
// POST /api/assets/{address}/orders/{id}/redeem
func (h *OrderHandler) RedeemOrder(w http.ResponseWriter, r *http.Request) {
	assetAddr, orderID, caller, funds, ok := h.decodeFundsCall(w, r)
	if !ok {
		return
	}

	if err := h.orders.RedeemOrder(r.Context(), caller, assetAddr, orderID, funds); err != nil {
		h.writeOrderError(w, r, "redeem order", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "funded",
		"asset":    assetAddr.Hex(),
		"order_id": orderID,
	})
}

// acceptOrderRequest is the JSON body for seller approval.
type acceptOrderRequest struct {
	Caller string `json:"caller"`
	Accept *bool  `json:"accept"`
}

// AcceptOrder records seller approval (or declines when accept is false).
// POST /api/assets/{address}/orders/{id}/accept
func (h *OrderHandler) AcceptOrder(w http.ResponseWriter, r *http.Request) {
	assetAddr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	orderID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req acceptOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	accept := true
	if req.Accept != nil {
		accept = *req.Accept
	}

	if err := h.orders.AcceptOrder(r.Context(), caller, assetAddr, orderID, accept); err != nil {
		h.writeOrderError(w, r, "accept order", err)
		return
	}

	status := "accepted"
	if !accept {
		status = "declined"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   status,
		"asset":    assetAddr.Hex(),
		"order_id": orderID,
	})
}

// callerOnlyRequest is the JSON body for operations that need only a caller.
type callerOnlyRequest struct {
	Caller string `json:"caller"`
}

// CompleteOrder settles a funded, accepted order.
// POST /api/assets/{address}/orders/{id}/complete
func (h *OrderHandler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	assetAddr, orderID, caller, ok := h.decodeCallerCall(w, r)
	if !ok {
		return
	}

	if err := h.orders.CompleteOrder(r.Context(), caller, assetAddr, orderID); err != nil {
		h.writeOrderError(w, r, "complete order", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "settled",
		"asset":    assetAddr.Hex(),
		"order_id": orderID,
	})
}

// DeclineOrder cancels a live order, refunding any escrowed payment.
// POST /api/assets/{address}/orders/{id}/decline
func (h *OrderHandler) DeclineOrder(w http.ResponseWriter, r *http.Request) {
	assetAddr, orderID, caller, ok := h.decodeCallerCall(w, r)
	if !ok {
		return
	}

	if err := h.orders.DeclineOrder(r.Context(), caller, assetAddr, orderID); err != nil {
		h.writeOrderError(w, r, "decline order", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "declined",
		"asset":    assetAddr.Hex(),
		"order_id": orderID,
	})
}

// GetOrder returns one order snapshot.
// GET /api/assets/{address}/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	assetAddr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	orderID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.orders.GetOrder(r.Context(), assetAddr, orderID)
	if err != nil {
		h.writeOrderError(w, r, "get order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderView(order))
}

// listOrdersResponse wraps the list orders response.
type listOrdersResponse struct {
	Orders []orderView `json:"orders"`
}

// ListOrders returns all live orders for one asset.
// GET /api/assets/{address}/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	assetAddr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	orders := h.orders.ListOrders(r.Context(), assetAddr)
	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, toOrderView(o))
	}

	writeJSON(w, http.StatusOK, listOrdersResponse{Orders: views})
}

// ListOpen returns unsettled orders across all assets from the journal.
// GET /api/orders/open?limit=50&offset=0
func (h *OrderHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	orders, err := h.orders.ListOpen(r.Context(), opts)
	if err != nil {
		h.writeOrderError(w, r, "list open orders", err)
		return
	}

	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, toOrderView(o))
	}

	writeJSON(w, http.StatusOK, listOrdersResponse{Orders: views})
}

// decodeFundsCall parses the path and a caller+funds body.
func (h *OrderHandler) decodeFundsCall(w http.ResponseWriter, r *http.Request) (common.Address, uint64, common.Address, *big.Int, bool) {
	assetAddr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return common.Address{}, 0, common.Address{}, nil, false
	}
	orderID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return common.Address{}, 0, common.Address{}, nil, false
	}

	var req callerFundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return common.Address{}, 0, common.Address{}, nil, false
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return common.Address{}, 0, common.Address{}, nil, false
	}
	funds, err := parseAmount("funds", req.Funds)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return common.Address{}, 0, common.Address{}, nil, false
	}
	return assetAddr, orderID, caller, funds, true
}

// decodeCallerCall parses the path and a caller-only body.
func (h *OrderHandler) decodeCallerCall(w http.ResponseWriter, r *http.Request) (common.Address, uint64, common.Address, bool) {
	assetAddr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return common.Address{}, 0, common.Address{}, false
	}
	orderID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return common.Address{}, 0, common.Address{}, false
	}

	var req callerOnlyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return common.Address{}, 0, common.Address{}, false
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return common.Address{}, 0, common.Address{}, false
	}
	return assetAddr, orderID, caller, true
}
