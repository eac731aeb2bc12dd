package market

import (
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/BunsDev/shareconomy-nft-factory/internal/asset"
	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// OrderBook is the escrow order book: list → fund → accept → settle, or
// decline back to a fresh listable order. One state machine covers all
// three asset kinds; the (tokenID, amount) pair describes the listed unit.
//
// Every public operation is all-or-nothing: preconditions are checked
// before any state write or funds movement, and the settled/funded flags
// are committed before the outbound transfers they gate.
type OrderBook struct {
	addr         common.Address
	feeRecipient common.Address
	book         *asset.Book
	escrow       escrow
	clock        domain.Clock
	logger       *slog.Logger

	mu     sync.Mutex
	orders map[common.Address][]*domain.Order
}

// NewOrderBook creates an empty order book engine.
func NewOrderBook(cfg EngineConfig) *OrderBook {
	cfg = cfg.withDefaults()
	return &OrderBook{
		addr:         cfg.Address,
		feeRecipient: cfg.FeeRecipient,
		book:         cfg.Book,
		escrow:       escrow{self: cfg.Address, vault: cfg.Vault, book: cfg.Book},
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		orders:       make(map[common.Address][]*domain.Order),
	}
}

// Address returns the engine identity holding escrow.
func (ob *OrderBook) Address() common.Address { return ob.addr }

// AddOrder lists (tokenID, amount) of an asset instance at the given price.
// The asset stays in the seller's custody until settlement; the engine only
// verifies the seller can cover the listing. Returns the order id,
// sequential per asset instance.
func (ob *OrderBook) AddOrder(caller, assetAddr common.Address, tokenID uint64, amount, price *big.Int, payment domain.PaymentAsset) (uint64, error) {
	a, err := ob.book.Lookup(assetAddr)
	if err != nil {
		return 0, fmt.Errorf("orderbook: add: %w", err)
	}
	if price == nil || price.Sign() <= 0 {
		return 0, fmt.Errorf("orderbook: add: price: %w", domain.ErrInvalidAmount)
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, fmt.Errorf("orderbook: add: amount: %w", domain.ErrInvalidAmount)
	}
	if err := ob.escrow.validatePayment(payment); err != nil {
		return 0, fmt.Errorf("orderbook: add: %w", err)
	}
	if a.BalanceOf(caller, tokenID).Cmp(amount) < 0 {
		return 0, fmt.Errorf("orderbook: add: seller balance: %w", domain.ErrInsufficientFunds)
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	order := &domain.Order{
		OrderID:    uint64(len(ob.orders[assetAddr])),
		Asset:      assetAddr,
		TokenID:    tokenID,
		Amount:     new(big.Int).Set(amount),
		Price:      new(big.Int).Set(price),
		FeeRateBps: a.FeeRateBps(),
		Seller:     caller,
		Payment:    payment,
		CreatedAt:  ob.clock.Now(),
	}
	ob.orders[assetAddr] = append(ob.orders[assetAddr], order)

	ob.logger.Info("order listed",
		slog.String("asset", assetAddr.Hex()),
		slog.Uint64("order_id", order.OrderID),
		slog.String("seller", caller.Hex()),
		slog.String("price", price.String()),
	)
	return order.OrderID, nil
}

// RedeemOrder funds an order: the caller becomes the buyer and the exact
// price moves into engine escrow. Overpay and underpay are both rejected.
func (ob *OrderBook) RedeemOrder(caller, assetAddr common.Address, orderID uint64, funds *big.Int) error {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	order, err := ob.find(assetAddr, orderID)
	if err != nil {
		return err
	}
	if order.Settled {
		return fmt.Errorf("orderbook: redeem %d: %w", orderID, domain.ErrAlreadySettled)
	}
	if order.Funded() {
		return fmt.Errorf("orderbook: redeem %d: %w", orderID, domain.ErrAlreadyFunded)
	}
	if caller == order.Seller {
		return fmt.Errorf("orderbook: redeem %d: seller cannot buy: %w", orderID, domain.ErrUnauthorized)
	}
	if funds == nil || funds.Cmp(order.Price) != 0 {
		return fmt.Errorf("orderbook: redeem %d: %w", orderID, domain.ErrIncorrectFunds)
	}

	if err := ob.escrow.pull(caller, order.Payment, order.Price); err != nil {
		return fmt.Errorf("orderbook: redeem %d: %w", orderID, err)
	}
	order.Buyer = caller

	ob.logger.Info("order funded",
		slog.String("asset", assetAddr.Hex()),
		slog.Uint64("order_id", orderID),
		slog.String("buyer", caller.Hex()),
	)
	return nil
}

// AcceptOrder records the seller's decision. Accepting arms the order for
// settlement; rejecting behaves exactly like DeclineOrder.
func (ob *OrderBook) AcceptOrder(caller, assetAddr common.Address, orderID uint64, accept bool) error {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	order, err := ob.find(assetAddr, orderID)
	if err != nil {
		return err
	}
	if caller != order.Seller {
		return fmt.Errorf("orderbook: accept %d: %w", orderID, domain.ErrUnauthorized)
	}
	if order.Settled {
		return fmt.Errorf("orderbook: accept %d: %w", orderID, domain.ErrAlreadySettled)
	}
	if !order.Funded() {
		return fmt.Errorf("orderbook: accept %d: %w", orderID, domain.ErrNothingToAccept)
	}

	if !accept {
		return ob.declineLocked(order)
	}

	order.SellerAccepted = true
	ob.logger.Info("order accepted",
		slog.String("asset", assetAddr.Hex()),
		slog.Uint64("order_id", orderID),
	)
	return nil
}

// CompleteOrder settles an order once both sides have committed. Anyone may
// trigger it. The settled flag is committed before any transfer, so a
// nested call observes the terminal state.
func (ob *OrderBook) CompleteOrder(caller, assetAddr common.Address, orderID uint64) error {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	order, err := ob.find(assetAddr, orderID)
	if err != nil {
		return err
	}
	if order.Settled {
		return fmt.Errorf("orderbook: complete %d: %w", orderID, domain.ErrAlreadySettled)
	}
	if !order.Funded() || !order.SellerAccepted {
		return fmt.Errorf("orderbook: complete %d: %w", orderID, domain.ErrOrderNotReady)
	}

	proceeds, fee, err := Split(order.Price, order.FeeRateBps)
	if err != nil {
		return fmt.Errorf("orderbook: complete %d: %w", orderID, err)
	}
	a, err := ob.book.Lookup(order.Asset)
	if err != nil {
		return fmt.Errorf("orderbook: complete %d: %w", orderID, err)
	}

	order.Settled = true

	// Asset leg first: it is the only transfer that can still fail (the
	// seller may have moved the unit since listing). Roll the flag back so
	// the order stays retryable and the escrow stays intact.
	if err := a.Transfer(ob.addr, order.Seller, order.Buyer, order.TokenID, order.Amount); err != nil {
		order.Settled = false
		return fmt.Errorf("orderbook: complete %d: asset leg: %w", orderID, err)
	}

	// Payment legs cannot fail: escrow holds exactly Price by invariant.
	if err := ob.escrow.pay(order.Seller, order.Payment, proceeds); err != nil {
		return fmt.Errorf("orderbook: complete %d: %w", orderID, err)
	}
	if err := ob.escrow.pay(ob.feeRecipient, order.Payment, fee); err != nil {
		return fmt.Errorf("orderbook: complete %d: %w", orderID, err)
	}

	ob.logger.Info("order settled",
		slog.String("asset", assetAddr.Hex()),
		slog.Uint64("order_id", orderID),
		slog.String("proceeds", proceeds.String()),
		slog.String("fee", fee.String()),
		slog.String("caller", caller.Hex()),
	)
	return nil
}

// DeclineOrder refunds the buyer in full and resets the order so it is
// listable again under the same id. Seller or buyer only.
func (ob *OrderBook) DeclineOrder(caller, assetAddr common.Address, orderID uint64) error {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	order, err := ob.find(assetAddr, orderID)
	if err != nil {
		return err
	}
	if order.Settled {
		return fmt.Errorf("orderbook: decline %d: %w", orderID, domain.ErrAlreadySettled)
	}
	if !order.Funded() {
		return fmt.Errorf("orderbook: decline %d: %w", orderID, domain.ErrNothingToDecline)
	}
	if caller != order.Seller && caller != order.Buyer {
		return fmt.Errorf("orderbook: decline %d: %w", orderID, domain.ErrUnauthorized)
	}
	return ob.declineLocked(order)
}

// declineLocked performs the refund-and-reset. Callers hold ob.mu and have
// verified the order is funded and not settled.
func (ob *OrderBook) declineLocked(order *domain.Order) error {
	buyer := order.Buyer

	// Reset first, refund second: the refund is the external transfer.
	order.Buyer = common.Address{}
	order.SellerAccepted = false

	if err := ob.escrow.pay(buyer, order.Payment, order.Price); err != nil {
		// Escrow invariant violated; restore the funded state.
		order.Buyer = buyer
		return fmt.Errorf("orderbook: decline %d: refund: %w", order.OrderID, err)
	}

	ob.logger.Info("order declined",
		slog.String("asset", order.Asset.Hex()),
		slog.Uint64("order_id", order.OrderID),
		slog.String("refunded", buyer.Hex()),
	)
	return nil
}

// GetOrder returns a snapshot of one order.
func (ob *OrderBook) GetOrder(assetAddr common.Address, orderID uint64) (domain.Order, error) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	order, err := ob.find(assetAddr, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return snapshotOrder(order), nil
}

// ListOrders returns snapshots of every order for an asset instance.
func (ob *OrderBook) ListOrders(assetAddr common.Address) []domain.Order {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	records := ob.orders[assetAddr]
	out := make([]domain.Order, len(records))
	for i, order := range records {
		out[i] = snapshotOrder(order)
	}
	return out
}

// find resolves an order record. Callers hold ob.mu.
func (ob *OrderBook) find(assetAddr common.Address, orderID uint64) (*domain.Order, error) {
	records := ob.orders[assetAddr]
	if orderID >= uint64(len(records)) {
		return nil, fmt.Errorf("orderbook: order %d on %s: %w", orderID, assetAddr.Hex(), domain.ErrNotFound)
	}
	return records[orderID], nil
}

// snapshotOrder deep-copies a record so callers never alias engine state.
func snapshotOrder(order *domain.Order) domain.Order {
	out := *order
	out.Amount = new(big.Int).Set(order.Amount)
	out.Price = new(big.Int).Set(order.Price)
	return out
}
