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

// OrderService fronts the escrow order book engine. Every committed
// transition is journaled as a full snapshot, published on the signal bus,
// and recorded in the audit log.
type OrderService struct {
	book     *market.OrderBook
	orders   domain.OrderStore
	locks    domain.LockManager
	bus      domain.SignalBus
	audit    domain.AuditStore
	notifier Notifier
	logger   *slog.Logger
}

// NewOrderService creates an OrderService with all required dependencies.
func NewOrderService(
	book *market.OrderBook,
	orders domain.OrderStore,
	locks domain.LockManager,
	bus domain.SignalBus,
	audit domain.AuditStore,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		book:   book,
		orders: orders,
		locks:  locks,
		bus:    bus,
		audit:  audit,
		logger: logger,
	}
}

// WithNotifier attaches an operator notifier.
func (s *OrderService) WithNotifier(n Notifier) *OrderService {
	s.notifier = n
	return s
}

// AddOrder lists an asset for sale in escrow and returns the new order ID.
func (s *OrderService) AddOrder(ctx context.Context, caller, asset common.Address, tokenID uint64, amount, price *big.Int, payment domain.PaymentAsset) (uint64, error) {
	unlock, err := s.locks.Acquire(ctx, assetLockKey(asset), lockTTL)
	if err != nil {
		return 0, fmt.Errorf("order_service: acquire lock: %w", err)
	}
	defer unlock()

	orderID, err := s.book.AddOrder(caller, asset, tokenID, amount, price, payment)
	if err != nil {
		return 0, fmt.Errorf("order_service: add order: %w", err)
	}

	s.commit(ctx, asset, orderID, domain.EventOrderListed, caller, price.String())

	s.auditLog(ctx, "order.add", map[string]any{
		"asset":    asset.Hex(),
		"order_id": orderID,
		"seller":   caller.Hex(),
		"price":    price.String(),
	})
	return orderID, nil
}

// RedeemOrder escrows exact payment from a buyer, funding the order.
func (s *OrderService) RedeemOrder(ctx context.Context, caller, asset common.Address, orderID uint64, funds *big.Int) error {
	unlock, err := s.locks.Acquire(ctx, assetLockKey(asset), lockTTL)
	if err != nil {
		return fmt.Errorf("order_service: acquire lock: %w", err)
	}
	defer unlock()

	if err := s.book.RedeemOrder(caller, asset, orderID, funds); err != nil {
		return fmt.Errorf("order_service: redeem order: %w", err)
	}

	s.commit(ctx, asset, orderID, domain.EventOrderFunded, caller, funds.String())

	s.auditLog(ctx, "order.redeem", map[string]any{
		"asset":    asset.Hex(),
		"order_id": orderID,
		"buyer":    caller.Hex(),
		"funds":    funds.String(),
	})
	return nil
}

// AcceptOrder records seller approval of the funded buyer, or declines the
// order when accept is false.
func (s *OrderService) AcceptOrder(ctx context.Context, caller, asset common.Address, orderID uint64, accept bool) error {
	unlock, err := s.locks.Acquire(ctx, assetLockKey(asset), lockTTL)
	if err != nil {
		return fmt.Errorf("order_service: acquire lock: %w", err)
	}
	defer unlock()

	if err := s.book.AcceptOrder(caller, asset, orderID, accept); err != nil {
		return fmt.Errorf("order_service: accept order: %w", err)
	}

	evType := domain.EventOrderAccepted
	if !accept {
		evType = domain.EventOrderDeclined
	}
	s.commit(ctx, asset, orderID, evType, caller, "")

	s.auditLog(ctx, "order.accept", map[string]any{
		"asset":    asset.Hex(),
		"order_id": orderID,
		"seller":   caller.Hex(),
		"accept":   accept,
	})
	return nil
}

// CompleteOrder settles a funded, accepted order: the asset moves to the
// buyer and escrowed payment is split between seller and fee recipient.
func (s *OrderService) CompleteOrder(ctx context.Context, caller, asset common.Address, orderID uint64) error {
	unlock, err := s.locks.Acquire(ctx, assetLockKey(asset), lockTTL)
	if err != nil {
		return fmt.Errorf("order_service: acquire lock: %w", err)
	}
	defer unlock()

	if err := s.book.CompleteOrder(caller, asset, orderID); err != nil {
		return fmt.Errorf("order_service: complete order: %w", err)
	}

	s.commit(ctx, asset, orderID, domain.EventOrderSettled, caller, "")

	s.auditLog(ctx, "order.complete", map[string]any{
		"asset":    asset.Hex(),
		"order_id": orderID,
		"caller":   caller.Hex(),
	})
	return nil
}

// DeclineOrder cancels a live order, refunding any escrowed payment.
func (s *OrderService) DeclineOrder(ctx context.Context, caller, asset common.Address, orderID uint64) error {
	unlock, err := s.locks.Acquire(ctx, assetLockKey(asset), lockTTL)
	if err != nil {
		return fmt.Errorf("order_service: acquire lock: %w", err)
	}
	defer unlock()

	if err := s.book.DeclineOrder(caller, asset, orderID); err != nil {
		return fmt.Errorf("order_service: decline order: %w", err)
	}

	s.commit(ctx, asset, orderID, domain.EventOrderDeclined, caller, "")

	s.auditLog(ctx, "order.decline", map[string]any{
		"asset":    asset.Hex(),
		"order_id": orderID,
		"caller":   caller.Hex(),
	})
	return nil
}

// GetOrder returns the current snapshot of one order from the engine.
func (s *OrderService) GetOrder(ctx context.Context, asset common.Address, orderID uint64) (domain.Order, error) {
	order, err := s.book.GetOrder(asset, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order_service: get order %s/%d: %w", asset.Hex(), orderID, err)
	}
	return order, nil
}

// ListOrders returns all engine-held orders for one asset.
func (s *OrderService) ListOrders(ctx context.Context, asset common.Address) []domain.Order {
	return s.book.ListOrders(asset)
}

// ListOpen returns unsettled order snapshots from the journal, across all
// assets.
func (s *OrderService) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.Order, error) {
	orders, err := s.orders.ListOpen(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("order_service: list open: %w", err)
	}
	return orders, nil
}

// commit journals the post-transition snapshot and broadcasts the event. The
// engine has already committed, so failures here are logged, never returned.
func (s *OrderService) commit(ctx context.Context, asset common.Address, orderID uint64, evType domain.EventType, actor common.Address, amount string) {
	order, err := s.book.GetOrder(asset, orderID)
	if err != nil {
		s.logger.ErrorContext(ctx, "order_service: snapshot after commit failed",
			slog.String("asset", asset.Hex()),
			slog.Uint64("order_id", orderID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := s.orders.Upsert(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "order_service: journal upsert failed",
			slog.String("asset", asset.Hex()),
			slog.Uint64("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}

	publishEvent(ctx, s.bus, s.notifier, s.logger, domain.Event{
		Type:      evType,
		Asset:     asset,
		ID:        orderID,
		Actor:     actor,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	})
}

func (s *OrderService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "order_service: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// assetLockKey namespaces the per-asset distributed lock.
func assetLockKey(asset common.Address) string {
	return "lock:asset:" + asset.Hex()
}
