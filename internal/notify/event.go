package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// NotifyEvent formats a marketplace event and dispatches it through the
// configured senders, subject to the event-type filter.
func (n *Notifier) NotifyEvent(ctx context.Context, ev domain.Event) error {
	return n.Notify(ctx, string(ev.Type), eventTitle(ev.Type), eventBody(ev))
}

func eventTitle(t domain.EventType) string {
	switch t {
	case domain.EventContractCreated:
		return "Contract Created"
	case domain.EventOrderListed:
		return "Order Listed"
	case domain.EventOrderFunded:
		return "Order Funded"
	case domain.EventOrderAccepted:
		return "Order Accepted"
	case domain.EventOrderSettled:
		return "Order Settled"
	case domain.EventOrderDeclined:
		return "Order Declined"
	case domain.EventAuctionStarted:
		return "Auction Started"
	case domain.EventBidPlaced:
		return "Bid Placed"
	case domain.EventAuctionSettled:
		return "Auction Settled"
	default:
		return string(t)
	}
}

// eventBody renders the event payload as one field per line.
func eventBody(ev domain.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "asset: %s\nid: %d", ev.Asset.Hex(), ev.ID)
	if ev.Actor != (common.Address{}) {
		fmt.Fprintf(&b, "\nactor: %s", ev.Actor.Hex())
	}
	if ev.Amount != "" {
		fmt.Fprintf(&b, "\namount: %s", ev.Amount)
	}
	return b.String()
}
