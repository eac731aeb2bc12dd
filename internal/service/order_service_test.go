package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/BunsDev/shareconomy-nft-factory/internal/asset"
	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
	"github.com/BunsDev/shareconomy-nft-factory/internal/market"
)

// fakeLocks records every acquired key and can refuse acquisition.
type fakeLocks struct {
	keys []string
	fail bool
}

func (l *fakeLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l.fail {
		return nil, errors.New("lock unavailable")
	}
	l.keys = append(l.keys, key)
	return func() {}, nil
}

// fakeOrderStore collects journaled snapshots in memory.
type fakeOrderStore struct {
	upserts []domain.Order
	open    []domain.Order
	fail    bool
}

func (s *fakeOrderStore) Upsert(ctx context.Context, order domain.Order) error {
	if s.fail {
		return errors.New("journal down")
	}
	s.upserts = append(s.upserts, order)
	return nil
}

func (s *fakeOrderStore) Get(ctx context.Context, asset common.Address, orderID uint64) (domain.Order, error) {
	return domain.Order{}, errors.New("not implemented")
}

func (s *fakeOrderStore) ListByAsset(ctx context.Context, asset common.Address, opts domain.ListOpts) ([]domain.Order, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeOrderStore) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.Order, error) {
	if s.fail {
		return nil, errors.New("journal down")
	}
	return s.open, nil
}

type publishedSignal struct {
	channel string
	payload []byte
}

// fakeBus collects published signals in memory.
type fakeBus struct {
	signals []publishedSignal
	fail    bool
}

func (b *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if b.fail {
		return errors.New("bus down")
	}
	b.signals = append(b.signals, publishedSignal{channel: channel, payload: payload})
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, errors.New("not implemented")
}

// fakeAudit collects audit event names in memory.
type fakeAudit struct {
	events []string
	fail   bool
}

func (a *fakeAudit) Log(ctx context.Context, event string, detail map[string]any) error {
	if a.fail {
		return errors.New("audit down")
	}
	a.events = append(a.events, event)
	return nil
}

func (a *fakeAudit) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, errors.New("not implemented")
}

// serviceEnv wires an OrderService over a live engine and fake
// infrastructure.
type serviceEnv struct {
	svc    *OrderService
	locks  *fakeLocks
	orders *fakeOrderStore
	bus    *fakeBus
	audit  *fakeAudit

	nft    common.Address
	seller common.Address
	buyer  common.Address
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()

	env := &serviceEnv{
		locks:  &fakeLocks{},
		orders: &fakeOrderStore{},
		bus:    &fakeBus{},
		audit:  &fakeAudit{},
		nft:    common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		seller: common.HexToAddress("0x0000000000000000000000000000000000000001"),
		buyer:  common.HexToAddress("0x0000000000000000000000000000000000000002"),
	}

	obAddr := common.HexToAddress("0x000000000000000000000000000000000000b00c")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	book := asset.NewBook()
	nft, err := asset.New(domain.KindNonFungible, asset.ConstructorArgs{
		Name:       "Deed",
		Symbol:     "DEED",
		Owner:      env.seller,
		FeeRateBps: 250,
		Quantity:   big.NewInt(1),
	}, []common.Address{obAddr})
	if err != nil {
		t.Fatalf("create nft: %v", err)
	}
	book.Register(env.nft, nft)

	vault := market.NewVault()
	if err := vault.Deposit(env.buyer, big.NewInt(100_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	engine := market.NewOrderBook(market.EngineConfig{
		Address:      obAddr,
		FeeRecipient: common.HexToAddress("0x00000000000000000000000000000000000000fe"),
		Book:         book,
		Vault:        vault,
		Logger:       logger,
	})

	env.svc = NewOrderService(engine, env.orders, env.locks, env.bus, env.audit, logger)
	return env
}

// TestOrderServiceLifecycleCommits runs a full list-fund-accept-settle pass
// and checks that every transition is journaled, broadcast, and audited.
func TestOrderServiceLifecycleCommits(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	price := big.NewInt(10_000)

	orderID, err := env.svc.AddOrder(ctx, env.seller, env.nft, 0, big.NewInt(1), price, domain.NativePayment())
	if err != nil {
		t.Fatalf("add order: %v", err)
	}
	if err := env.svc.RedeemOrder(ctx, env.buyer, env.nft, orderID, price); err != nil {
		t.Fatalf("redeem order: %v", err)
	}
	if err := env.svc.AcceptOrder(ctx, env.seller, env.nft, orderID, true); err != nil {
		t.Fatalf("accept order: %v", err)
	}
	if err := env.svc.CompleteOrder(ctx, env.seller, env.nft, orderID); err != nil {
		t.Fatalf("complete order: %v", err)
	}

	if got := len(env.orders.upserts); got != 4 {
		t.Fatalf("journal upserts = %d, want 4", got)
	}
	last := env.orders.upserts[3]
	if !last.Settled || last.Buyer != env.buyer {
		t.Fatalf("final snapshot = %+v, want settled with buyer %s", last, env.buyer.Hex())
	}

	wantTypes := []domain.EventType{
		domain.EventOrderListed,
		domain.EventOrderFunded,
		domain.EventOrderAccepted,
		domain.EventOrderSettled,
	}
	if got := len(env.bus.signals); got != len(wantTypes) {
		t.Fatalf("published signals = %d, want %d", got, len(wantTypes))
	}
	for i, sig := range env.bus.signals {
		if sig.channel != domain.ChannelOrder {
			t.Errorf("signal %d channel = %q, want %q", i, sig.channel, domain.ChannelOrder)
		}
		var ev domain.Event
		if err := json.Unmarshal(sig.payload, &ev); err != nil {
			t.Fatalf("signal %d payload: %v", i, err)
		}
		if ev.Type != wantTypes[i] {
			t.Errorf("signal %d type = %q, want %q", i, ev.Type, wantTypes[i])
		}
	}

	wantAudit := []string{"order.add", "order.redeem", "order.accept", "order.complete"}
	if len(env.audit.events) != len(wantAudit) {
		t.Fatalf("audit events = %v, want %v", env.audit.events, wantAudit)
	}
	for i, ev := range wantAudit {
		if env.audit.events[i] != ev {
			t.Errorf("audit event %d = %q, want %q", i, env.audit.events[i], ev)
		}
	}

	for i, key := range env.locks.keys {
		if want := "lock:asset:" + env.nft.Hex(); key != want {
			t.Errorf("lock %d key = %q, want %q", i, key, want)
		}
	}
}

// TestOrderServiceEngineErrorNoCommit verifies that a rejected transition
// leaves no trace in the journal, the bus, or the audit log.
func TestOrderServiceEngineErrorNoCommit(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	orderID, err := env.svc.AddOrder(ctx, env.seller, env.nft, 0, big.NewInt(1), big.NewInt(10_000), domain.NativePayment())
	if err != nil {
		t.Fatalf("add order: %v", err)
	}
	journaled, published, audited := len(env.orders.upserts), len(env.bus.signals), len(env.audit.events)

	if err := env.svc.RedeemOrder(ctx, env.buyer, env.nft, orderID, big.NewInt(9_999)); !errors.Is(err, domain.ErrIncorrectFunds) {
		t.Fatalf("redeem with short funds: err = %v, want ErrIncorrectFunds", err)
	}

	if len(env.orders.upserts) != journaled {
		t.Errorf("journal grew after rejected transition")
	}
	if len(env.bus.signals) != published {
		t.Errorf("bus published after rejected transition")
	}
	if len(env.audit.events) != audited {
		t.Errorf("audit logged after rejected transition")
	}
}

// TestOrderServiceLockFailure verifies that a failed lock acquisition stops
// the operation before the engine is touched.
func TestOrderServiceLockFailure(t *testing.T) {
	env := newServiceEnv(t)
	env.locks.fail = true
	ctx := context.Background()

	_, err := env.svc.AddOrder(ctx, env.seller, env.nft, 0, big.NewInt(1), big.NewInt(10_000), domain.NativePayment())
	if err == nil {
		t.Fatal("add order succeeded without the lock")
	}
	if orders := env.svc.ListOrders(ctx, env.nft); len(orders) != 0 {
		t.Fatalf("engine holds %d orders, want 0", len(orders))
	}
}

// TestOrderServiceInfraFailuresAreSoft verifies that journal, bus, and audit
// outages never fail an operation the engine has already committed.
func TestOrderServiceInfraFailuresAreSoft(t *testing.T) {
	env := newServiceEnv(t)
	env.orders.fail = true
	env.bus.fail = true
	env.audit.fail = true
	ctx := context.Background()

	orderID, err := env.svc.AddOrder(ctx, env.seller, env.nft, 0, big.NewInt(1), big.NewInt(10_000), domain.NativePayment())
	if err != nil {
		t.Fatalf("add order: %v", err)
	}

	order, err := env.svc.GetOrder(ctx, env.nft, orderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Seller != env.seller {
		t.Fatalf("order seller = %s, want %s", order.Seller.Hex(), env.seller.Hex())
	}
}

// TestOrderServiceListOpen verifies the open-order listing reads from the
// journal, not the engine.
func TestOrderServiceListOpen(t *testing.T) {
	env := newServiceEnv(t)
	env.orders.open = []domain.Order{
		{OrderID: 0, Asset: env.nft, Seller: env.seller, Price: big.NewInt(5_000)},
	}
	ctx := context.Background()

	open, err := env.svc.ListOpen(ctx, domain.ListOpts{Limit: 10})
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 1 || open[0].Asset != env.nft {
		t.Fatalf("open orders = %+v, want the seeded journal row", open)
	}
}
