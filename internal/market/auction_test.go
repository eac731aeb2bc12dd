package market

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// TestAuctionLifecycle walks start, outbid, settle and checks refunds and
// the fee split.
func TestAuctionLifecycle(t *testing.T) {
	env := newMarketEnv(t)

	id, err := env.house.StartAuction(env.seller, env.nft, 0, big.NewInt(1), big.NewInt(1000), time.Hour, domain.NativePayment())
	if err != nil {
		t.Fatalf("StartAuction returned error: %v", err)
	}
	if id != 0 {
		t.Fatalf("auction id = %d, want 0", id)
	}

	if err := env.house.MakeBid(env.buyer, env.nft, id, big.NewInt(2000)); err != nil {
		t.Fatalf("first bid returned error: %v", err)
	}
	if got := env.vault.Balance(env.buyer); got.Int64() != 998000 {
		t.Fatalf("buyer balance after bid = %s, want 998000", got)
	}

	// The rival outbids; the displaced buyer is refunded in full.
	if err := env.house.MakeBid(env.rival, env.nft, id, big.NewInt(3000)); err != nil {
		t.Fatalf("second bid returned error: %v", err)
	}
	if got := env.vault.Balance(env.buyer); got.Int64() != 1_000_000 {
		t.Fatalf("outbid buyer not refunded: %s", got)
	}
	if got := env.vault.Balance(env.rival); got.Int64() != 997000 {
		t.Fatalf("rival balance after bid = %s, want 997000", got)
	}

	env.clock.advance(time.Hour + time.Second)
	if err := env.house.CompleteAuction(env.buyer, env.nft, id); err != nil {
		t.Fatalf("CompleteAuction returned error: %v", err)
	}

	// 250 bps of 3000 is a 75 fee; the seller keeps 2925.
	if got := env.vault.Balance(env.seller); got.Int64() != 2925 {
		t.Errorf("seller proceeds = %s, want 2925", got)
	}
	if got := env.vault.Balance(env.feeTo); got.Int64() != 75 {
		t.Errorf("fee recipient = %s, want 75", got)
	}
	if got := env.nftBalance(t, env.rival, 0); got != 1 {
		t.Errorf("winner nft balance = %d, want 1", got)
	}
}

// TestBidMustStrictlyExceedBest ensures bids at or below the current best
// (including the seller's reserve) are rejected.
func TestBidMustStrictlyExceedBest(t *testing.T) {
	env := newMarketEnv(t)
	id, _ := env.house.StartAuction(env.seller, env.nft, 0, big.NewInt(1), big.NewInt(1000), time.Hour, domain.NativePayment())

	// A bid equal to the reserve is too low; the reserve is not a real bid.
	if err := env.house.MakeBid(env.buyer, env.nft, id, big.NewInt(1000)); !errors.Is(err, domain.ErrBidTooLow) {
		t.Fatalf("reserve-equal bid: expected ErrBidTooLow, got %v", err)
	}

	if err := env.house.MakeBid(env.buyer, env.nft, id, big.NewInt(2000)); err != nil {
		t.Fatalf("MakeBid returned error: %v", err)
	}
	if err := env.house.MakeBid(env.rival, env.nft, id, big.NewInt(2000)); !errors.Is(err, domain.ErrBidTooLow) {
		t.Fatalf("matching bid: expected ErrBidTooLow, got %v", err)
	}
	if got := env.vault.Balance(env.rival); got.Int64() != 1_000_000 {
		t.Fatalf("rejected bidder's balance moved: %s", got)
	}
}

// TestBidAfterEndRejected ensures the end time gates bidding against the
// injected clock.
func TestBidAfterEndRejected(t *testing.T) {
	env := newMarketEnv(t)
	id, _ := env.house.StartAuction(env.seller, env.nft, 0, big.NewInt(1), big.NewInt(1000), time.Hour, domain.NativePayment())

	env.clock.advance(time.Hour)
	if err := env.house.MakeBid(env.buyer, env.nft, id, big.NewInt(2000)); !errors.Is(err, domain.ErrAuctionEnded) {
		t.Fatalf("expected ErrAuctionEnded, got %v", err)
	}
}

// TestCompleteBeforeEndRejected ensures settlement cannot run while the
// auction is still live.
func TestCompleteBeforeEndRejected(t *testing.T) {
	env := newMarketEnv(t)
	id, _ := env.house.StartAuction(env.seller, env.nft, 0, big.NewInt(1), big.NewInt(1000), time.Hour, domain.NativePayment())

	if err := env.house.CompleteAuction(env.seller, env.nft, id); !errors.Is(err, domain.ErrAuctionNotEnded) {
		t.Fatalf("expected ErrAuctionNotEnded, got %v", err)
	}
}

// TestCompleteWithoutBidsClosesListing ensures a bidless auction settles
// with no transfers and the asset still with the seller.
func TestCompleteWithoutBidsClosesListing(t *testing.T) {
	env := newMarketEnv(t)
	id, _ := env.house.StartAuction(env.seller, env.nft, 0, big.NewInt(1), big.NewInt(1000), time.Hour, domain.NativePayment())

	env.clock.advance(2 * time.Hour)
	if err := env.house.CompleteAuction(env.seller, env.nft, id); err != nil {
		t.Fatalf("CompleteAuction returned error: %v", err)
	}

	auction, err := env.house.GetAuction(env.nft, id)
	if err != nil {
		t.Fatalf("GetAuction returned error: %v", err)
	}
	if !auction.Settled {
		t.Error("auction not marked settled")
	}
	if got := env.nftBalance(t, env.seller, 0); got != 1 {
		t.Errorf("seller nft balance = %d, want 1", got)
	}
	if got := env.vault.Balance(env.seller); got.Int64() != 0 {
		t.Errorf("seller credited on bidless settle: %s", got)
	}

	if err := env.house.CompleteAuction(env.seller, env.nft, id); !errors.Is(err, domain.ErrAlreadySettled) {
		t.Fatalf("double settle: expected ErrAlreadySettled, got %v", err)
	}
}

// TestStartAuctionPreconditions covers listing-time validation.
func TestStartAuctionPreconditions(t *testing.T) {
	env := newMarketEnv(t)

	if _, err := env.house.StartAuction(env.seller, common.HexToAddress("0xdead"), 0, big.NewInt(1), big.NewInt(1), time.Hour, domain.NativePayment()); !errors.Is(err, domain.ErrUnknownAsset) {
		t.Errorf("unknown asset: expected ErrUnknownAsset, got %v", err)
	}
	if _, err := env.house.StartAuction(env.seller, env.nft, 0, big.NewInt(0), big.NewInt(1), time.Hour, domain.NativePayment()); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("zero amount: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := env.house.StartAuction(env.seller, env.nft, 0, big.NewInt(1), big.NewInt(-1), time.Hour, domain.NativePayment()); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("negative reserve: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := env.house.StartAuction(env.seller, env.nft, 0, big.NewInt(1), big.NewInt(1), 0, domain.NativePayment()); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("zero duration: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := env.house.StartAuction(env.buyer, env.nft, 0, big.NewInt(1), big.NewInt(1), time.Hour, domain.NativePayment()); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("seller without unit: expected ErrInsufficientFunds, got %v", err)
	}
}

// TestAuctionTokenPayment settles an auction denominated in a fungible
// instance.
func TestAuctionTokenPayment(t *testing.T) {
	env := newMarketEnv(t)
	payment := domain.TokenPayment(env.payTok)

	id, err := env.house.StartAuction(env.seller, env.nft, 2, big.NewInt(1), big.NewInt(100), time.Hour, payment)
	if err != nil {
		t.Fatalf("StartAuction returned error: %v", err)
	}
	if err := env.house.MakeBid(env.buyer, env.nft, id, big.NewInt(4000)); err != nil {
		t.Fatalf("MakeBid returned error: %v", err)
	}

	env.clock.advance(2 * time.Hour)
	if err := env.house.CompleteAuction(env.buyer, env.nft, id); err != nil {
		t.Fatalf("CompleteAuction returned error: %v", err)
	}

	tok, err := env.book.Fungible(env.payTok)
	if err != nil {
		t.Fatalf("lookup payment token: %v", err)
	}
	if got := tok.BalanceOf(env.seller, 0); got.Int64() != 3900 {
		t.Errorf("seller token proceeds = %s, want 3900", got)
	}
	if got := tok.BalanceOf(env.feeTo, 0); got.Int64() != 100 {
		t.Errorf("fee recipient tokens = %s, want 100", got)
	}
	if got := env.nftBalance(t, env.buyer, 2); got != 1 {
		t.Errorf("winner nft balance = %d, want 1", got)
	}
}
