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

// AuctionService fronts the auction house engine, mirroring OrderService:
// engine state is authoritative, the journal is the durable read model.
type AuctionService struct {
	house    *market.AuctionHouse
	auctions domain.AuctionStore
	locks    domain.LockManager
	bus      domain.SignalBus
	audit    domain.AuditStore
	notifier Notifier
	logger   *slog.Logger
}

// NewAuctionService creates an AuctionService with all required dependencies.
func NewAuctionService(
	house *market.AuctionHouse,
	auctions domain.AuctionStore,
	locks domain.LockManager,
	bus domain.SignalBus,
	audit domain.AuditStore,
	logger *slog.Logger,
) *AuctionService {
	return &AuctionService{
		house:    house,
		auctions: auctions,
		locks:    locks,
		bus:      bus,
		audit:    audit,
		logger:   logger,
	}
}

// WithNotifier attaches an operator notifier.
func (s *AuctionService) WithNotifier(n Notifier) *AuctionService {
	s.notifier = n
	return s
}

// StartAuction escrows the seller's asset units and opens bidding until the
// deadline.
func (s *AuctionService) StartAuction(ctx context.Context, caller, asset common.Address, tokenID uint64, amount, startingBid *big.Int, duration time.Duration, payment domain.PaymentAsset) (uint64, error) {
	unlock, err := s.locks.Acquire(ctx, assetLockKey(asset), lockTTL)
	if err != nil {
		return 0, fmt.Errorf("auction_service: acquire lock: %w", err)
	}
	defer unlock()

	auctionID, err := s.house.StartAuction(caller, asset, tokenID, amount, startingBid, duration, payment)
	if err != nil {
		return 0, fmt.Errorf("auction_service: start auction: %w", err)
	}

	s.commit(ctx, asset, auctionID, domain.EventAuctionStarted, caller, startingBid.String())

	s.auditLog(ctx, "auction.start", map[string]any{
		"asset":        asset.Hex(),
		"auction_id":   auctionID,
		"seller":       caller.Hex(),
		"starting_bid": startingBid.String(),
		"duration":     duration.String(),
	})
	return auctionID, nil
}

// MakeBid escrows a strictly higher bid and refunds the previous best
// bidder.
func (s *AuctionService) MakeBid(ctx context.Context, caller, asset common.Address, auctionID uint64, funds *big.Int) error {
	unlock, err := s.locks.Acquire(ctx, assetLockKey(asset), lockTTL)
	if err != nil {
		return fmt.Errorf("auction_service: acquire lock: %w", err)
	}
	defer unlock()

	if err := s.house.MakeBid(caller, asset, auctionID, funds); err != nil {
		return fmt.Errorf("auction_service: make bid: %w", err)
	}

	s.commit(ctx, asset, auctionID, domain.EventBidPlaced, caller, funds.String())

	s.auditLog(ctx, "auction.bid", map[string]any{
		"asset":      asset.Hex(),
		"auction_id": auctionID,
		"bidder":     caller.Hex(),
		"funds":      funds.String(),
	})
	return nil
}

// CompleteAuction settles an ended auction: asset to the winner, split
// payment to seller and fee recipient. With no bids the escrowed asset
// returns to the seller.
func (s *AuctionService) CompleteAuction(ctx context.Context, caller, asset common.Address, auctionID uint64) error {
	unlock, err := s.locks.Acquire(ctx, assetLockKey(asset), lockTTL)
	if err != nil {
		return fmt.Errorf("auction_service: acquire lock: %w", err)
	}
	defer unlock()

	if err := s.house.CompleteAuction(caller, asset, auctionID); err != nil {
		return fmt.Errorf("auction_service: complete auction: %w", err)
	}

	s.commit(ctx, asset, auctionID, domain.EventAuctionSettled, caller, "")

	s.auditLog(ctx, "auction.complete", map[string]any{
		"asset":      asset.Hex(),
		"auction_id": auctionID,
		"caller":     caller.Hex(),
	})
	return nil
}

// GetAuction returns the current snapshot of one auction from the engine.
func (s *AuctionService) GetAuction(ctx context.Context, asset common.Address, auctionID uint64) (domain.Auction, error) {
	auction, err := s.house.GetAuction(asset, auctionID)
	if err != nil {
		return domain.Auction{}, fmt.Errorf("auction_service: get auction %s/%d: %w", asset.Hex(), auctionID, err)
	}
	return auction, nil
}

// ListAuctions returns all engine-held auctions for one asset.
func (s *AuctionService) ListAuctions(ctx context.Context, asset common.Address) []domain.Auction {
	return s.house.ListAuctions(asset)
}

// ListOpen returns unsettled auction snapshots from the journal, across all
// assets, ordered by deadline.
func (s *AuctionService) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.Auction, error) {
	auctions, err := s.auctions.ListOpen(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("auction_service: list open: %w", err)
	}
	return auctions, nil
}

// commit journals the post-transition snapshot and broadcasts the event.
func (s *AuctionService) commit(ctx context.Context, asset common.Address, auctionID uint64, evType domain.EventType, actor common.Address, amount string) {
	auction, err := s.house.GetAuction(asset, auctionID)
	if err != nil {
		s.logger.ErrorContext(ctx, "auction_service: snapshot after commit failed",
			slog.String("asset", asset.Hex()),
			slog.Uint64("auction_id", auctionID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := s.auctions.Upsert(ctx, auction); err != nil {
		s.logger.ErrorContext(ctx, "auction_service: journal upsert failed",
			slog.String("asset", asset.Hex()),
			slog.Uint64("auction_id", auctionID),
			slog.String("error", err.Error()),
		)
	}

	publishEvent(ctx, s.bus, s.notifier, s.logger, domain.Event{
		Type:      evType,
		Asset:     asset,
		ID:        auctionID,
		Actor:     actor,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	})
}

func (s *AuctionService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "auction_service: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
