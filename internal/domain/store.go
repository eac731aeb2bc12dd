package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// InstanceStore journals deployed asset instances. The factory's in-memory
// state is authoritative; the store is the durable read model.
type InstanceStore interface {
	Create(ctx context.Context, inst Instance) error
	GetByAddress(ctx context.Context, addr common.Address) (Instance, error)
	ListByCreator(ctx context.Context, creator common.Address, opts ListOpts) ([]Instance, error)
	List(ctx context.Context, opts ListOpts) ([]Instance, error)
	Count(ctx context.Context) (int64, error)
}

// OrderStore journals escrow order snapshots, upserted after every
// committed transition.
type OrderStore interface {
	Upsert(ctx context.Context, order Order) error
	Get(ctx context.Context, asset common.Address, orderID uint64) (Order, error)
	ListByAsset(ctx context.Context, asset common.Address, opts ListOpts) ([]Order, error)
	ListOpen(ctx context.Context, opts ListOpts) ([]Order, error)
}

// AuctionStore journals auction snapshots.
type AuctionStore interface {
	Upsert(ctx context.Context, auction Auction) error
	Get(ctx context.Context, asset common.Address, auctionID uint64) (Auction, error)
	ListByAsset(ctx context.Context, asset common.Address, opts ListOpts) ([]Auction, error)
	ListOpen(ctx context.Context, opts ListOpts) ([]Auction, error)
}

// AuditEntry is a single append-only audit row.
type AuditEntry struct {
	ID        string
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of every state transition.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
