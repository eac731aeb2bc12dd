package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// AuctionService defines the methods that the auction handler requires from
// the service layer.
type AuctionService interface {
	StartAuction(ctx context.Context, caller, asset common.Address, tokenID uint64, amount, startingBid *big.Int, duration time.Duration, payment domain.PaymentAsset) (uint64, error)
	MakeBid(ctx context.Context, caller, asset common.Address, auctionID uint64, funds *big.Int) error
	CompleteAuction(ctx context.Context, caller, asset common.Address, auctionID uint64) error
	GetAuction(ctx context.Context, asset common.Address, auctionID uint64) (domain.Auction, error)
	ListAuctions(ctx context.Context, asset common.Address) []domain.Auction
	ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.Auction, error)
}

// AuctionHandler serves auction HTTP endpoints.
type AuctionHandler struct {
	auctions AuctionService
	logger   *slog.Logger
}

// NewAuctionHandler creates an AuctionHandler with the given service and logger.
func NewAuctionHandler(auctions AuctionService, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctions: auctions,
		logger:   logger,
	}
}

// auctionView is the JSON shape for auction snapshots.
type auctionView struct {
	Asset      string `json:"asset"`
	AuctionID  uint64 `json:"auction_id"`
	TokenID    uint64 `json:"token_id"`
	Amount     string `json:"amount"`
	BestBid    string `json:"best_bid"`
	BestBidder string `json:"best_bidder,omitempty"`
	Seller     string `json:"seller"`
	Payment    string `json:"payment"`
	FeeRateBps uint32 `json:"fee_rate_bps"`
	EndTime    string `json:"end_time"`
	Settled    bool   `json:"settled"`
}

func toAuctionView(a domain.Auction) auctionView {
	v := auctionView{
		Asset:      a.Asset.Hex(),
		AuctionID:  a.AuctionID,
		TokenID:    a.TokenID,
		Amount:     a.Amount.String(),
		BestBid:    a.BestBid.String(),
		Seller:     a.Seller.Hex(),
		Payment:    a.Payment.String(),
		FeeRateBps: a.FeeRateBps,
		EndTime:    a.EndTime.Format(time.RFC3339),
		Settled:    a.Settled,
	}
	if a.HasBids() {
		v.BestBidder = a.BestBidder.Hex()
	}
	return v
}

// writeAuctionError maps auction sentinel errors onto HTTP statuses.
func (h *AuctionHandler) writeAuctionError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "auction not found")
	case errors.Is(err, domain.ErrUnknownAsset):
		writeError(w, http.StatusNotFound, "unknown asset")
	case errors.Is(err, domain.ErrAlreadySettled):
		writeError(w, http.StatusConflict, "auction already settled")
	case errors.Is(err, domain.ErrAuctionEnded):
		writeError(w, http.StatusConflict, "auction has ended")
	case errors.Is(err, domain.ErrAuctionNotEnded):
		writeError(w, http.StatusConflict, "auction has not ended yet")
	case errors.Is(err, domain.ErrBidTooLow):
		writeError(w, http.StatusBadRequest, "bid must be strictly greater than the current best bid")
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

// startAuctionRequest is the JSON body for opening an auction.
type startAuctionRequest struct {
	Caller          string `json:"caller"`
	TokenID         uint64 `json:"token_id"`
	Amount          string `json:"amount"`
	StartingBid     string `json:"starting_bid"`
	DurationSeconds int64  `json:"duration_seconds"`
	Payment         string `json:"payment"`
}

// StartAuction escrows asset units and opens bidding until the deadline.
// POST /api/assets/{address}/auctions
func (h *AuctionHandler) StartAuction(w http.ResponseWriter, r *http.Request) {
	assetAddr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req startAuctionRequest
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
	startingBid, err := parseAmount("starting_bid", req.StartingBid)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DurationSeconds <= 0 {
		writeError(w, http.StatusBadRequest, "duration_seconds must be positive")
		return
	}
	payment, err := domain.ParsePaymentAsset(req.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payment asset")
		return
	}

	auctionID, err := h.auctions.StartAuction(r.Context(), caller, assetAddr, req.TokenID,
		amount, startingBid, time.Duration(req.DurationSeconds)*time.Second, payment)
	if err != nil {
		h.writeAuctionError(w, r, "start auction", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"asset":      assetAddr.Hex(),
		"auction_id": auctionID,
	})
}

// makeBidRequest is the JSON body for bidding.
type makeBidRequest struct {
	Caller string `json:"caller"`
	Funds  string `json:"funds"`
}

// MakeBid escrows a strictly higher bid, refunding the previous best bidder.
// POST /api/assets/{address}/auctions/{id}/bids
func (h *AuctionHandler) MakeBid(w http.ResponseWriter, r *http.Request) {
	assetAddr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	auctionID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req makeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	funds, err := parseAmount("funds", req.Funds)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.auctions.MakeBid(r.Context(), caller, assetAddr, auctionID, funds); err != nil {
		h.writeAuctionError(w, r, "make bid", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "bid_placed",
		"asset":      assetAddr.Hex(),
		"auction_id": auctionID,
		"bid":        funds.String(),
	})
}

// CompleteAuction settles an ended auction.
// POST /api/assets/{address}/auctions/{id}/complete
func (h *AuctionHandler) CompleteAuction(w http.ResponseWriter, r *http.Request) {
	assetAddr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	auctionID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req callerOnlyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.auctions.CompleteAuction(r.Context(), caller, assetAddr, auctionID); err != nil {
		h.writeAuctionError(w, r, "complete auction", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "settled",
		"asset":      assetAddr.Hex(),
		"auction_id": auctionID,
	})
}

// GetAuction returns one auction snapshot.
// GET /api/assets/{address}/auctions/{id}
func (h *AuctionHandler) GetAuction(w http.ResponseWriter, r *http.Request) {
	assetAddr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	auctionID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	auction, err := h.auctions.GetAuction(r.Context(), assetAddr, auctionID)
	if err != nil {
		h.writeAuctionError(w, r, "get auction", err)
		return
	}

	writeJSON(w, http.StatusOK, toAuctionView(auction))
}

// listAuctionsResponse wraps the list auctions response.
type listAuctionsResponse struct {
	Auctions []auctionView `json:"auctions"`
}

// ListAuctions returns all live auctions for one asset.
// GET /api/assets/{address}/auctions
func (h *AuctionHandler) ListAuctions(w http.ResponseWriter, r *http.Request) {
	assetAddr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	auctions := h.auctions.ListAuctions(r.Context(), assetAddr)
	views := make([]auctionView, 0, len(auctions))
	for _, a := range auctions {
		views = append(views, toAuctionView(a))
	}

	writeJSON(w, http.StatusOK, listAuctionsResponse{Auctions: views})
}

// ListOpen returns unsettled auctions across all assets from the journal.
// GET /api/auctions/open?limit=50&offset=0
func (h *AuctionHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	auctions, err := h.auctions.ListOpen(r.Context(), opts)
	if err != nil {
		h.writeAuctionError(w, r, "list open auctions", err)
		return
	}

	views := make([]auctionView, 0, len(auctions))
	for _, a := range auctions {
		views = append(views, toAuctionView(a))
	}

	writeJSON(w, http.StatusOK, listAuctionsResponse{Auctions: views})
}
