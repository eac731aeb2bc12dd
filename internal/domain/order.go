package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Order is one escrow listing in the order book. IDs are sequential per
// asset instance. The zero address in Buyer means the order is unfunded.
//
// Escrow invariant: the engine holds custody of Price iff Buyer is set and
// Settled is false.
type Order struct {
	OrderID        uint64
	Asset          common.Address
	TokenID        uint64
	Amount         *big.Int
	Price          *big.Int
	FeeRateBps     uint32
	Seller         common.Address
	Buyer          common.Address
	Payment        PaymentAsset
	SellerAccepted bool
	Settled        bool
	CreatedAt      time.Time
}

// Funded reports whether a buyer has escrowed the full price.
func (o Order) Funded() bool {
	return o.Buyer != (common.Address{})
}

// Auction is one timed listing in the auction house. BestBid starts at the
// seller's reserve; it only ever increases, and only together with
// BestBidder. EndTime is immutable after creation.
type Auction struct {
	AuctionID  uint64
	Asset      common.Address
	TokenID    uint64
	Amount     *big.Int
	BestBid    *big.Int
	BestBidder common.Address
	Seller     common.Address
	Payment    PaymentAsset
	FeeRateBps uint32
	EndTime    time.Time
	Settled    bool
	CreatedAt  time.Time
}

// HasBids reports whether any real bid has been placed above the reserve.
func (a Auction) HasBids() bool {
	return a.BestBidder != (common.Address{})
}
