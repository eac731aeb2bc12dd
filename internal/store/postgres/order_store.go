package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL. Orders are
// journaled as full snapshots keyed by (asset, order_id), upserted after
// every committed engine transition.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Upsert writes the latest snapshot of an order.
func (s *OrderStore) Upsert(ctx context.Context, o domain.Order) error {
	var buyer *string
	if o.Funded() {
		v := o.Buyer.Hex()
		buyer = &v
	}

	const query = `
		INSERT INTO orders (
			asset, order_id, token_id, amount, price, fee_rate_bps,
			seller, buyer, payment, seller_accepted, settled,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, NOW()
		)
		ON CONFLICT (asset, order_id) DO UPDATE SET
			buyer = EXCLUDED.buyer,
			seller_accepted = EXCLUDED.seller_accepted,
			settled = EXCLUDED.settled,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		o.Asset.Hex(), int64(o.OrderID), int64(o.TokenID),
		o.Amount.String(), o.Price.String(), int32(o.FeeRateBps),
		o.Seller.Hex(), buyer, o.Payment.String(),
		o.SellerAccepted, o.Settled, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert order %s/%d: %w", o.Asset.Hex(), o.OrderID, err)
	}
	return nil
}

const orderSelectCols = `asset, order_id, token_id, amount, price, fee_rate_bps,
	seller, buyer, payment, seller_accepted, settled, created_at`

func scanOrder(scanner interface{ Scan(dest ...any) error }) (domain.Order, error) {
	var o domain.Order
	var assetHex, seller, payment, amount, price string
	var buyer *string
	var orderID, tokenID int64
	var feeRate int32

	err := scanner.Scan(&assetHex, &orderID, &tokenID, &amount, &price, &feeRate,
		&seller, &buyer, &payment, &o.SellerAccepted, &o.Settled, &o.CreatedAt)
	if err != nil {
		return domain.Order{}, err
	}

	o.Asset = common.HexToAddress(assetHex)
	o.OrderID = uint64(orderID)
	o.TokenID = uint64(tokenID)
	o.FeeRateBps = uint32(feeRate)
	o.Seller = common.HexToAddress(seller)
	if buyer != nil {
		o.Buyer = common.HexToAddress(*buyer)
	}

	var ok bool
	if o.Amount, ok = new(big.Int).SetString(amount, 10); !ok {
		return domain.Order{}, fmt.Errorf("bad amount %q", amount)
	}
	if o.Price, ok = new(big.Int).SetString(price, 10); !ok {
		return domain.Order{}, fmt.Errorf("bad price %q", price)
	}
	if o.Payment, err = domain.ParsePaymentAsset(payment); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// Get returns one order snapshot.
func (s *OrderStore) Get(ctx context.Context, asset common.Address, orderID uint64) (domain.Order, error) {
	query := `SELECT ` + orderSelectCols + ` FROM orders WHERE asset = $1 AND order_id = $2`

	o, err := scanOrder(s.pool.QueryRow(ctx, query, asset.Hex(), int64(orderID)))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("postgres: get order %s/%d: %w", asset.Hex(), orderID, err)
	}
	return o, nil
}

// ListByAsset returns order snapshots for one asset instance.
func (s *OrderStore) ListByAsset(ctx context.Context, asset common.Address, opts domain.ListOpts) ([]domain.Order, error) {
	query := `SELECT ` + orderSelectCols + `
		FROM orders WHERE asset = $1 ORDER BY order_id` + limitOffset(opts)

	rows, err := s.pool.Query(ctx, query, asset.Hex())
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders by asset: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListOpen returns unsettled order snapshots across all assets.
func (s *OrderStore) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.Order, error) {
	query := `SELECT ` + orderSelectCols + `
		FROM orders WHERE NOT settled ORDER BY created_at DESC` + limitOffset(opts)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListSettledBefore returns settled order snapshots created strictly before
// the cutoff, for archival.
func (s *OrderStore) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Order, error) {
	query := `SELECT ` + orderSelectCols + `
		FROM orders WHERE settled AND created_at < $1 ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settled orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]domain.Order, error) {
	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: order rows: %w", err)
	}
	return out, nil
}

var _ domain.OrderStore = (*OrderStore)(nil)
