package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Event channel names published on the signal bus and mirrored to
// WebSocket subscribers.
const (
	ChannelContract = "ch:contract"
	ChannelOrder    = "ch:order"
	ChannelAuction  = "ch:auction"
	ChannelVault    = "ch:vault"
)

// EventType identifies a marketplace lifecycle transition.
type EventType string

const (
	EventContractCreated EventType = "contract_created"
	EventOrderListed     EventType = "order_listed"
	EventOrderFunded     EventType = "order_funded"
	EventOrderAccepted   EventType = "order_accepted"
	EventOrderSettled    EventType = "order_settled"
	EventOrderDeclined   EventType = "order_declined"
	EventAuctionStarted  EventType = "auction_started"
	EventBidPlaced       EventType = "bid_placed"
	EventAuctionSettled  EventType = "auction_settled"
	EventVaultDeposit    EventType = "vault_deposit"
	EventVaultWithdraw   EventType = "vault_withdraw"
)

// Event is the JSON payload broadcast for every committed state transition.
// Amounts are decimal strings to survive JSON number precision limits.
type Event struct {
	Type      EventType      `json:"type"`
	Asset     common.Address `json:"asset"`
	ID        uint64         `json:"id"`
	Actor     common.Address `json:"actor,omitempty"`
	Amount    string         `json:"amount,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Channel returns the bus channel this event is published on.
func (e Event) Channel() string {
	switch e.Type {
	case EventContractCreated:
		return ChannelContract
	case EventAuctionStarted, EventBidPlaced, EventAuctionSettled:
		return ChannelAuction
	case EventVaultDeposit, EventVaultWithdraw:
		return ChannelVault
	default:
		return ChannelOrder
	}
}
