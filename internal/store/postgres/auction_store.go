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

// AuctionStore implements domain.AuctionStore using PostgreSQL.
type AuctionStore struct {
	pool *pgxpool.Pool
}

// NewAuctionStore creates a new AuctionStore backed by the given pool.
func NewAuctionStore(pool *pgxpool.Pool) *AuctionStore {
	return &AuctionStore{pool: pool}
}

// Upsert writes the latest snapshot of an auction.
func (s *AuctionStore) Upsert(ctx context.Context, a domain.Auction) error {
	var bidder *string
	if a.HasBids() {
		v := a.BestBidder.Hex()
		bidder = &v
	}

	const query = `
		INSERT INTO auctions (
			asset, auction_id, token_id, amount, best_bid, best_bidder,
			seller, payment, fee_rate_bps, end_time, settled,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, NOW()
		)
		ON CONFLICT (asset, auction_id) DO UPDATE SET
			best_bid = EXCLUDED.best_bid,
			best_bidder = EXCLUDED.best_bidder,
			settled = EXCLUDED.settled,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		a.Asset.Hex(), int64(a.AuctionID), int64(a.TokenID),
		a.Amount.String(), a.BestBid.String(), bidder,
		a.Seller.Hex(), a.Payment.String(), int32(a.FeeRateBps),
		a.EndTime, a.Settled, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert auction %s/%d: %w", a.Asset.Hex(), a.AuctionID, err)
	}
	return nil
}

const auctionSelectCols = `asset, auction_id, token_id, amount, best_bid, best_bidder,
	seller, payment, fee_rate_bps, end_time, settled, created_at`

func scanAuction(scanner interface{ Scan(dest ...any) error }) (domain.Auction, error) {
	var a domain.Auction
	var assetHex, seller, payment, amount, bestBid string
	var bidder *string
	var auctionID, tokenID int64
	var feeRate int32

	err := scanner.Scan(&assetHex, &auctionID, &tokenID, &amount, &bestBid, &bidder,
		&seller, &payment, &feeRate, &a.EndTime, &a.Settled, &a.CreatedAt)
	if err != nil {
		return domain.Auction{}, err
	}

	a.Asset = common.HexToAddress(assetHex)
	a.AuctionID = uint64(auctionID)
	a.TokenID = uint64(tokenID)
	a.FeeRateBps = uint32(feeRate)
	a.Seller = common.HexToAddress(seller)
	if bidder != nil {
		a.BestBidder = common.HexToAddress(*bidder)
	}

	var ok bool
	if a.Amount, ok = new(big.Int).SetString(amount, 10); !ok {
		return domain.Auction{}, fmt.Errorf("bad amount %q", amount)
	}
	if a.BestBid, ok = new(big.Int).SetString(bestBid, 10); !ok {
		return domain.Auction{}, fmt.Errorf("bad best bid %q", bestBid)
	}
	if a.Payment, err = domain.ParsePaymentAsset(payment); err != nil {
		return domain.Auction{}, err
	}
	return a, nil
}

// Get returns one auction snapshot.
func (s *AuctionStore) Get(ctx context.Context, asset common.Address, auctionID uint64) (domain.Auction, error) {
	query := `SELECT ` + auctionSelectCols + ` FROM auctions WHERE asset = $1 AND auction_id = $2`

	a, err := scanAuction(s.pool.QueryRow(ctx, query, asset.Hex(), int64(auctionID)))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Auction{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Auction{}, fmt.Errorf("postgres: get auction %s/%d: %w", asset.Hex(), auctionID, err)
	}
	return a, nil
}

// ListByAsset returns auction snapshots for one asset instance.
func (s *AuctionStore) ListByAsset(ctx context.Context, asset common.Address, opts domain.ListOpts) ([]domain.Auction, error) {
	query := `SELECT ` + auctionSelectCols + `
		FROM auctions WHERE asset = $1 ORDER BY auction_id` + limitOffset(opts)

	rows, err := s.pool.Query(ctx, query, asset.Hex())
	if err != nil {
		return nil, fmt.Errorf("postgres: list auctions by asset: %w", err)
	}
	defer rows.Close()
	return collectAuctions(rows)
}

// ListOpen returns unsettled auction snapshots across all assets.
func (s *AuctionStore) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.Auction, error) {
	query := `SELECT ` + auctionSelectCols + `
		FROM auctions WHERE NOT settled ORDER BY end_time` + limitOffset(opts)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open auctions: %w", err)
	}
	defer rows.Close()
	return collectAuctions(rows)
}

// ListSettledBefore returns settled auction snapshots created strictly
// before the cutoff, for archival.
func (s *AuctionStore) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Auction, error) {
	query := `SELECT ` + auctionSelectCols + `
		FROM auctions WHERE settled AND created_at < $1 ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settled auctions: %w", err)
	}
	defer rows.Close()
	return collectAuctions(rows)
}

func collectAuctions(rows pgx.Rows) ([]domain.Auction, error) {
	var out []domain.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan auction: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: auction rows: %w", err)
	}
	return out, nil
}

var _ domain.AuctionStore = (*AuctionStore)(nil)
