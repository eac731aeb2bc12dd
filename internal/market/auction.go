package market

import (
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/BunsDev/shareconomy-nft-factory/internal/asset"
	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// AuctionHouse is the timed-auction engine: list → bid → settle after the
// end time. Outbid bidders are refunded inside the bid that displaces them;
// auction end is evaluated lazily against the injected clock, never by a
// background timer.
type AuctionHouse struct {
	addr         common.Address
	feeRecipient common.Address
	book         *asset.Book
	escrow       escrow
	clock        domain.Clock
	logger       *slog.Logger

	mu       sync.Mutex
	auctions map[common.Address][]*domain.Auction
}

// NewAuctionHouse creates an empty auction engine.
func NewAuctionHouse(cfg EngineConfig) *AuctionHouse {
	cfg = cfg.withDefaults()
	return &AuctionHouse{
		addr:         cfg.Address,
		feeRecipient: cfg.FeeRecipient,
		book:         cfg.Book,
		escrow:       escrow{self: cfg.Address, vault: cfg.Vault, book: cfg.Book},
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		auctions:     make(map[common.Address][]*domain.Auction),
	}
}

// Address returns the engine identity holding escrow.
func (ah *AuctionHouse) Address() common.Address { return ah.addr }

// StartAuction lists (tokenID, amount) of an asset instance for auction.
// startingBid is the seller's reserve, not a real bid; the end time is
// fixed at creation and never moves.
func (ah *AuctionHouse) StartAuction(caller, assetAddr common.Address, tokenID uint64, amount, startingBid *big.Int, duration time.Duration, payment domain.PaymentAsset) (uint64, error) {
	a, err := ah.book.Lookup(assetAddr)
	if err != nil {
		return 0, fmt.Errorf("auction: start: %w", err)
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, fmt.Errorf("auction: start: amount: %w", domain.ErrInvalidAmount)
	}
	if startingBid == nil || startingBid.Sign() < 0 {
		return 0, fmt.Errorf("auction: start: reserve: %w", domain.ErrInvalidAmount)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("auction: start: duration: %w", domain.ErrInvalidAmount)
	}
	if err := ah.escrow.validatePayment(payment); err != nil {
		return 0, fmt.Errorf("auction: start: %w", err)
	}
	if a.BalanceOf(caller, tokenID).Cmp(amount) < 0 {
		return 0, fmt.Errorf("auction: start: seller balance: %w", domain.ErrInsufficientFunds)
	}

	ah.mu.Lock()
	defer ah.mu.Unlock()

	now := ah.clock.Now()
	auction := &domain.Auction{
		AuctionID:  uint64(len(ah.auctions[assetAddr])),
		Asset:      assetAddr,
		TokenID:    tokenID,
		Amount:     new(big.Int).Set(amount),
		BestBid:    new(big.Int).Set(startingBid),
		Seller:     caller,
		Payment:    payment,
		FeeRateBps: a.FeeRateBps(),
		EndTime:    now.Add(duration),
		CreatedAt:  now,
	}
	ah.auctions[assetAddr] = append(ah.auctions[assetAddr], auction)

	ah.logger.Info("auction started",
		slog.String("asset", assetAddr.Hex()),
		slog.Uint64("auction_id", auction.AuctionID),
		slog.String("seller", caller.Hex()),
		slog.String("reserve", startingBid.String()),
		slog.Time("end_time", auction.EndTime),
	)
	return auction.AuctionID, nil
}

// MakeBid escrows a new best bid. The bid must strictly exceed the current
// best; the displaced bidder is refunded in full before the new bid is
// recorded, inside the same atomic operation.
func (ah *AuctionHouse) MakeBid(caller, assetAddr common.Address, auctionID uint64, funds *big.Int) error {
	ah.mu.Lock()
	defer ah.mu.Unlock()

	auction, err := ah.find(assetAddr, auctionID)
	if err != nil {
		return err
	}
	if auction.Settled {
		return fmt.Errorf("auction: bid %d: %w", auctionID, domain.ErrAlreadySettled)
	}
	if !ah.clock.Now().Before(auction.EndTime) {
		return fmt.Errorf("auction: bid %d: %w", auctionID, domain.ErrAuctionEnded)
	}
	if funds == nil || funds.Cmp(auction.BestBid) <= 0 {
		return fmt.Errorf("auction: bid %d: %w", auctionID, domain.ErrBidTooLow)
	}

	// Pull the new bid first; only after it is secured can the previous
	// bidder's escrow be released. A failed pull leaves everything intact.
	if err := ah.escrow.pull(caller, auction.Payment, funds); err != nil {
		return fmt.Errorf("auction: bid %d: %w", auctionID, err)
	}
	if auction.HasBids() {
		if err := ah.escrow.pay(auction.BestBidder, auction.Payment, auction.BestBid); err != nil {
			// Refund of the new bid keeps the displaced bidder whole.
			_ = ah.escrow.pay(caller, auction.Payment, funds)
			return fmt.Errorf("auction: bid %d: refund previous: %w", auctionID, err)
		}
	}

	auction.BestBid = new(big.Int).Set(funds)
	auction.BestBidder = caller

	ah.logger.Info("bid placed",
		slog.String("asset", assetAddr.Hex()),
		slog.Uint64("auction_id", auctionID),
		slog.String("bidder", caller.Hex()),
		slog.String("bid", funds.String()),
	)
	return nil
}

// CompleteAuction settles after the end time has passed. With no bids the
// listing simply closes (the asset never left the seller); otherwise the
// best bid is fee-split to the seller and the unit moves to the winner.
func (ah *AuctionHouse) CompleteAuction(caller, assetAddr common.Address, auctionID uint64) error {
	ah.mu.Lock()
	defer ah.mu.Unlock()

	auction, err := ah.find(assetAddr, auctionID)
	if err != nil {
		return err
	}
	if auction.Settled {
		return fmt.Errorf("auction: complete %d: %w", auctionID, domain.ErrAlreadySettled)
	}
	if ah.clock.Now().Before(auction.EndTime) {
		return fmt.Errorf("auction: complete %d: %w", auctionID, domain.ErrAuctionNotEnded)
	}

	if !auction.HasBids() {
		auction.Settled = true
		ah.logger.Info("auction settled without bids",
			slog.String("asset", assetAddr.Hex()),
			slog.Uint64("auction_id", auctionID),
		)
		return nil
	}

	proceeds, fee, err := Split(auction.BestBid, auction.FeeRateBps)
	if err != nil {
		return fmt.Errorf("auction: complete %d: %w", auctionID, err)
	}
	a, err := ah.book.Lookup(auction.Asset)
	if err != nil {
		return fmt.Errorf("auction: complete %d: %w", auctionID, err)
	}

	auction.Settled = true

	// Asset leg first; see OrderBook.CompleteOrder for the rollback rule.
	if err := a.Transfer(ah.addr, auction.Seller, auction.BestBidder, auction.TokenID, auction.Amount); err != nil {
		auction.Settled = false
		return fmt.Errorf("auction: complete %d: asset leg: %w", auctionID, err)
	}

	if err := ah.escrow.pay(auction.Seller, auction.Payment, proceeds); err != nil {
		return fmt.Errorf("auction: complete %d: %w", auctionID, err)
	}
	if err := ah.escrow.pay(ah.feeRecipient, auction.Payment, fee); err != nil {
		return fmt.Errorf("auction: complete %d: %w", auctionID, err)
	}

	ah.logger.Info("auction settled",
		slog.String("asset", assetAddr.Hex()),
		slog.Uint64("auction_id", auctionID),
		slog.String("winner", auction.BestBidder.Hex()),
		slog.String("proceeds", proceeds.String()),
		slog.String("fee", fee.String()),
		slog.String("caller", caller.Hex()),
	)
	return nil
}

// GetAuction returns a snapshot of one auction.
func (ah *AuctionHouse) GetAuction(assetAddr common.Address, auctionID uint64) (domain.Auction, error) {
	ah.mu.Lock()
	defer ah.mu.Unlock()
	auction, err := ah.find(assetAddr, auctionID)
	if err != nil {
		return domain.Auction{}, err
	}
	return snapshotAuction(auction), nil
}

// ListAuctions returns snapshots of every auction for an asset instance.
func (ah *AuctionHouse) ListAuctions(assetAddr common.Address) []domain.Auction {
	ah.mu.Lock()
	defer ah.mu.Unlock()
	records := ah.auctions[assetAddr]
	out := make([]domain.Auction, len(records))
	for i, auction := range records {
		out[i] = snapshotAuction(auction)
	}
	return out
}

// find resolves an auction record. Callers hold ah.mu.
func (ah *AuctionHouse) find(assetAddr common.Address, auctionID uint64) (*domain.Auction, error) {
	records := ah.auctions[assetAddr]
	if auctionID >= uint64(len(records)) {
		return nil, fmt.Errorf("auction: %d on %s: %w", auctionID, assetAddr.Hex(), domain.ErrNotFound)
	}
	return records[auctionID], nil
}

func snapshotAuction(auction *domain.Auction) domain.Auction {
	out := *auction
	out.Amount = new(big.Int).Set(auction.Amount)
	out.BestBid = new(big.Int).Set(auction.BestBid)
	return out
}
