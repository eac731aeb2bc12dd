package market

import (
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/BunsDev/shareconomy-nft-factory/internal/asset"
	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// fakeClock is a manually advanced clock for time-gated engine behavior.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

// marketEnv is a complete engine fixture: a non-fungible asset listed by the
// seller, a fungible payment token held by the buyer, and vault balances for
// both bidders.
type marketEnv struct {
	book   *asset.Book
	vault  *Vault
	orders *OrderBook
	house  *AuctionHouse
	clock  *fakeClock

	nft    common.Address
	payTok common.Address

	seller common.Address
	buyer  common.Address
	rival  common.Address
	feeTo  common.Address
}

func newMarketEnv(t *testing.T) *marketEnv {
	t.Helper()

	env := &marketEnv{
		book:   asset.NewBook(),
		vault:  NewVault(),
		clock:  &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		nft:    common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		payTok: common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		seller: common.HexToAddress("0x0000000000000000000000000000000000000001"),
		buyer:  common.HexToAddress("0x0000000000000000000000000000000000000002"),
		rival:  common.HexToAddress("0x0000000000000000000000000000000000000003"),
		feeTo:  common.HexToAddress("0x00000000000000000000000000000000000000fe"),
	}

	obAddr := common.HexToAddress("0x000000000000000000000000000000000000b00c")
	ahAddr := common.HexToAddress("0x00000000000000000000000000000000000a0c71")
	operators := []common.Address{obAddr, ahAddr}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	nft, err := asset.New(domain.KindNonFungible, asset.ConstructorArgs{
		Name:       "Deed",
		Symbol:     "DEED",
		Owner:      env.seller,
		FeeRateBps: 250,
		Quantity:   big.NewInt(3),
	}, operators)
	if err != nil {
		t.Fatalf("create nft: %v", err)
	}
	env.book.Register(env.nft, nft)

	payTok, err := asset.New(domain.KindFungible, asset.ConstructorArgs{
		Name:     "Credit",
		Symbol:   "CRD",
		Owner:    env.buyer,
		Quantity: big.NewInt(1_000_000),
	}, operators)
	if err != nil {
		t.Fatalf("create payment token: %v", err)
	}
	env.book.Register(env.payTok, payTok)

	for _, acct := range []common.Address{env.buyer, env.rival} {
		if err := env.vault.Deposit(acct, big.NewInt(1_000_000)); err != nil {
			t.Fatalf("deposit: %v", err)
		}
	}

	env.orders = NewOrderBook(EngineConfig{
		Address:      obAddr,
		FeeRecipient: env.feeTo,
		Book:         env.book,
		Vault:        env.vault,
		Clock:        env.clock,
		Logger:       logger,
	})
	env.house = NewAuctionHouse(EngineConfig{
		Address:      ahAddr,
		FeeRecipient: env.feeTo,
		Book:         env.book,
		Vault:        env.vault,
		Clock:        env.clock,
		Logger:       logger,
	})
	return env
}

func (env *marketEnv) nftBalance(t *testing.T, holder common.Address, tokenID uint64) int64 {
	t.Helper()
	a, err := env.book.Lookup(env.nft)
	if err != nil {
		t.Fatalf("lookup nft: %v", err)
	}
	return a.BalanceOf(holder, tokenID).Int64()
}

// TestOrderLifecycleNativePayment walks list, fund, accept, complete and
// checks every leg of the settlement.
func TestOrderLifecycleNativePayment(t *testing.T) {
	env := newMarketEnv(t)
	price := big.NewInt(10000)

	id, err := env.orders.AddOrder(env.seller, env.nft, 0, big.NewInt(1), price, domain.NativePayment())
	if err != nil {
		t.Fatalf("AddOrder returned error: %v", err)
	}
	if id != 0 {
		t.Fatalf("order id = %d, want 0", id)
	}

	if err := env.orders.RedeemOrder(env.buyer, env.nft, id, price); err != nil {
		t.Fatalf("RedeemOrder returned error: %v", err)
	}
	if got := env.vault.Balance(env.buyer); got.Int64() != 990000 {
		t.Fatalf("buyer balance after funding = %s, want 990000", got)
	}

	if err := env.orders.AcceptOrder(env.seller, env.nft, id, true); err != nil {
		t.Fatalf("AcceptOrder returned error: %v", err)
	}
	if err := env.orders.CompleteOrder(env.rival, env.nft, id); err != nil {
		t.Fatalf("CompleteOrder returned error: %v", err)
	}

	// 250 bps of 10000 is a 250 fee; the seller keeps 9750.
	if got := env.vault.Balance(env.seller); got.Int64() != 9750 {
		t.Errorf("seller proceeds = %s, want 9750", got)
	}
	if got := env.vault.Balance(env.feeTo); got.Int64() != 250 {
		t.Errorf("fee recipient = %s, want 250", got)
	}
	if got := env.nftBalance(t, env.buyer, 0); got != 1 {
		t.Errorf("buyer nft balance = %d, want 1", got)
	}
	if got := env.nftBalance(t, env.seller, 0); got != 0 {
		t.Errorf("seller nft balance = %d, want 0", got)
	}

	order, err := env.orders.GetOrder(env.nft, id)
	if err != nil {
		t.Fatalf("GetOrder returned error: %v", err)
	}
	if !order.Settled {
		t.Error("order not marked settled")
	}
}

// TestOrderLifecycleTokenPayment settles an order denominated in a fungible
// instance instead of the native currency.
func TestOrderLifecycleTokenPayment(t *testing.T) {
	env := newMarketEnv(t)
	price := big.NewInt(4000)
	payment := domain.TokenPayment(env.payTok)

	id, err := env.orders.AddOrder(env.seller, env.nft, 1, big.NewInt(1), price, payment)
	if err != nil {
		t.Fatalf("AddOrder returned error: %v", err)
	}
	if err := env.orders.RedeemOrder(env.buyer, env.nft, id, price); err != nil {
		t.Fatalf("RedeemOrder returned error: %v", err)
	}
	if err := env.orders.AcceptOrder(env.seller, env.nft, id, true); err != nil {
		t.Fatalf("AcceptOrder returned error: %v", err)
	}
	if err := env.orders.CompleteOrder(env.buyer, env.nft, id); err != nil {
		t.Fatalf("CompleteOrder returned error: %v", err)
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
	if got := env.nftBalance(t, env.buyer, 1); got != 1 {
		t.Errorf("buyer nft balance = %d, want 1", got)
	}
}

// TestRedeemRequiresExactFunds ensures underpay and overpay are both
// rejected with the order left unfunded.
func TestRedeemRequiresExactFunds(t *testing.T) {
	env := newMarketEnv(t)
	id, err := env.orders.AddOrder(env.seller, env.nft, 0, big.NewInt(1), big.NewInt(5000), domain.NativePayment())
	if err != nil {
		t.Fatalf("AddOrder returned error: %v", err)
	}

	for _, funds := range []int64{4999, 5001} {
		if err := env.orders.RedeemOrder(env.buyer, env.nft, id, big.NewInt(funds)); !errors.Is(err, domain.ErrIncorrectFunds) {
			t.Errorf("funds %d: expected ErrIncorrectFunds, got %v", funds, err)
		}
	}
	if got := env.vault.Balance(env.buyer); got.Int64() != 1_000_000 {
		t.Fatalf("buyer balance moved on rejected funding: %s", got)
	}

	order, err := env.orders.GetOrder(env.nft, id)
	if err != nil {
		t.Fatalf("GetOrder returned error: %v", err)
	}
	if order.Funded() {
		t.Fatal("order funded after rejected redemptions")
	}
}

// TestRedeemRejectsSelfPurchaseAndDoubleFunding covers the buyer-side
// preconditions.
func TestRedeemRejectsSelfPurchaseAndDoubleFunding(t *testing.T) {
	env := newMarketEnv(t)
	price := big.NewInt(5000)
	id, _ := env.orders.AddOrder(env.seller, env.nft, 0, big.NewInt(1), price, domain.NativePayment())

	if err := env.orders.RedeemOrder(env.seller, env.nft, id, price); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("self purchase: expected ErrUnauthorized, got %v", err)
	}
	if err := env.orders.RedeemOrder(env.buyer, env.nft, id, price); err != nil {
		t.Fatalf("RedeemOrder returned error: %v", err)
	}
	if err := env.orders.RedeemOrder(env.rival, env.nft, id, price); !errors.Is(err, domain.ErrAlreadyFunded) {
		t.Fatalf("double funding: expected ErrAlreadyFunded, got %v", err)
	}
}

// TestCompleteRequiresFundingAndAcceptance ensures settlement is blocked
// until both sides have committed.
func TestCompleteRequiresFundingAndAcceptance(t *testing.T) {
	env := newMarketEnv(t)
	price := big.NewInt(5000)
	id, _ := env.orders.AddOrder(env.seller, env.nft, 0, big.NewInt(1), price, domain.NativePayment())

	if err := env.orders.CompleteOrder(env.buyer, env.nft, id); !errors.Is(err, domain.ErrOrderNotReady) {
		t.Fatalf("unfunded complete: expected ErrOrderNotReady, got %v", err)
	}
	if err := env.orders.AcceptOrder(env.seller, env.nft, id, true); !errors.Is(err, domain.ErrNothingToAccept) {
		t.Fatalf("unfunded accept: expected ErrNothingToAccept, got %v", err)
	}

	if err := env.orders.RedeemOrder(env.buyer, env.nft, id, price); err != nil {
		t.Fatalf("RedeemOrder returned error: %v", err)
	}
	if err := env.orders.CompleteOrder(env.buyer, env.nft, id); !errors.Is(err, domain.ErrOrderNotReady) {
		t.Fatalf("unaccepted complete: expected ErrOrderNotReady, got %v", err)
	}

	if err := env.orders.AcceptOrder(env.buyer, env.nft, id, true); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("buyer accept: expected ErrUnauthorized, got %v", err)
	}
}

// TestDeclineRefundsAndRelists ensures a declined order refunds the buyer in
// full and returns to a fundable state under the same id.
func TestDeclineRefundsAndRelists(t *testing.T) {
	env := newMarketEnv(t)
	price := big.NewInt(5000)
	id, _ := env.orders.AddOrder(env.seller, env.nft, 0, big.NewInt(1), price, domain.NativePayment())

	if err := env.orders.DeclineOrder(env.seller, env.nft, id); !errors.Is(err, domain.ErrNothingToDecline) {
		t.Fatalf("unfunded decline: expected ErrNothingToDecline, got %v", err)
	}

	if err := env.orders.RedeemOrder(env.buyer, env.nft, id, price); err != nil {
		t.Fatalf("RedeemOrder returned error: %v", err)
	}
	if err := env.orders.DeclineOrder(env.rival, env.nft, id); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("third-party decline: expected ErrUnauthorized, got %v", err)
	}
	if err := env.orders.DeclineOrder(env.seller, env.nft, id); err != nil {
		t.Fatalf("DeclineOrder returned error: %v", err)
	}

	if got := env.vault.Balance(env.buyer); got.Int64() != 1_000_000 {
		t.Fatalf("buyer not refunded in full: %s", got)
	}

	// The same order is fundable again, this time by the rival.
	if err := env.orders.RedeemOrder(env.rival, env.nft, id, price); err != nil {
		t.Fatalf("refund did not relist: %v", err)
	}
}

// TestAcceptWithRejectBehavesLikeDecline ensures the accept operation's
// reject branch refunds exactly like an explicit decline.
func TestAcceptWithRejectBehavesLikeDecline(t *testing.T) {
	env := newMarketEnv(t)
	price := big.NewInt(5000)
	id, _ := env.orders.AddOrder(env.seller, env.nft, 0, big.NewInt(1), price, domain.NativePayment())

	if err := env.orders.RedeemOrder(env.buyer, env.nft, id, price); err != nil {
		t.Fatalf("RedeemOrder returned error: %v", err)
	}
	if err := env.orders.AcceptOrder(env.seller, env.nft, id, false); err != nil {
		t.Fatalf("AcceptOrder(reject) returned error: %v", err)
	}

	if got := env.vault.Balance(env.buyer); got.Int64() != 1_000_000 {
		t.Fatalf("buyer not refunded: %s", got)
	}
	order, err := env.orders.GetOrder(env.nft, id)
	if err != nil {
		t.Fatalf("GetOrder returned error: %v", err)
	}
	if order.Funded() || order.SellerAccepted {
		t.Fatalf("order not reset: funded=%v accepted=%v", order.Funded(), order.SellerAccepted)
	}
}

// TestCompleteOrderIsTerminal ensures a settled order rejects every further
// operation.
func TestCompleteOrderIsTerminal(t *testing.T) {
	env := newMarketEnv(t)
	price := big.NewInt(5000)
	id, _ := env.orders.AddOrder(env.seller, env.nft, 0, big.NewInt(1), price, domain.NativePayment())
	if err := env.orders.RedeemOrder(env.buyer, env.nft, id, price); err != nil {
		t.Fatalf("RedeemOrder returned error: %v", err)
	}
	if err := env.orders.AcceptOrder(env.seller, env.nft, id, true); err != nil {
		t.Fatalf("AcceptOrder returned error: %v", err)
	}
	if err := env.orders.CompleteOrder(env.buyer, env.nft, id); err != nil {
		t.Fatalf("CompleteOrder returned error: %v", err)
	}

	if err := env.orders.CompleteOrder(env.buyer, env.nft, id); !errors.Is(err, domain.ErrAlreadySettled) {
		t.Errorf("double complete: expected ErrAlreadySettled, got %v", err)
	}
	if err := env.orders.RedeemOrder(env.rival, env.nft, id, price); !errors.Is(err, domain.ErrAlreadySettled) {
		t.Errorf("redeem after settle: expected ErrAlreadySettled, got %v", err)
	}
	if err := env.orders.DeclineOrder(env.seller, env.nft, id); !errors.Is(err, domain.ErrAlreadySettled) {
		t.Errorf("decline after settle: expected ErrAlreadySettled, got %v", err)
	}
}

// TestAddOrderPreconditions covers listing-time validation.
func TestAddOrderPreconditions(t *testing.T) {
	env := newMarketEnv(t)

	if _, err := env.orders.AddOrder(env.seller, common.HexToAddress("0xdead"), 0, big.NewInt(1), big.NewInt(1), domain.NativePayment()); !errors.Is(err, domain.ErrUnknownAsset) {
		t.Errorf("unknown asset: expected ErrUnknownAsset, got %v", err)
	}
	if _, err := env.orders.AddOrder(env.seller, env.nft, 0, big.NewInt(1), big.NewInt(0), domain.NativePayment()); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("zero price: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := env.orders.AddOrder(env.buyer, env.nft, 0, big.NewInt(1), big.NewInt(100), domain.NativePayment()); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("seller without unit: expected ErrInsufficientFunds, got %v", err)
	}
	// The nft instance itself is not fungible, so it cannot denominate payment.
	if _, err := env.orders.AddOrder(env.seller, env.nft, 0, big.NewInt(1), big.NewInt(100), domain.TokenPayment(env.nft)); !errors.Is(err, domain.ErrUnknownAsset) {
		t.Errorf("non-fungible payment token: expected ErrUnknownAsset, got %v", err)
	}
}

// TestOrderIDsAreSequentialPerAsset ensures ids count up independently per
// asset instance.
func TestOrderIDsAreSequentialPerAsset(t *testing.T) {
	env := newMarketEnv(t)

	for want := uint64(0); want < 3; want++ {
		id, err := env.orders.AddOrder(env.seller, env.nft, 0, big.NewInt(1), big.NewInt(100), domain.NativePayment())
		if err != nil {
			t.Fatalf("AddOrder returned error: %v", err)
		}
		if id != want {
			t.Fatalf("order id = %d, want %d", id, want)
		}
	}
	if got := len(env.orders.ListOrders(env.nft)); got != 3 {
		t.Fatalf("ListOrders returned %d orders, want 3", got)
	}
}
