package asset

import (
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

var (
	owner    = common.HexToAddress("0x0000000000000000000000000000000000000001")
	holder   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	engine   = common.HexToAddress("0x000000000000000000000000000000000000b00c")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000ee")
)

// TestFungibleInitialMintAndTransfer ensures the constructor quantity lands
// with the owner and transfers move balances.
func TestFungibleInitialMintAndTransfer(t *testing.T) {
	a, err := New(domain.KindFungible, ConstructorArgs{
		Name: "Coin", Symbol: "C", Owner: owner, Quantity: big.NewInt(1000),
	}, []common.Address{engine})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if got := a.BalanceOf(owner, 0); got.Int64() != 1000 {
		t.Fatalf("initial balance = %s, want 1000", got)
	}
	f := a.(*Fungible)
	if got := f.TotalSupply(); got.Int64() != 1000 {
		t.Fatalf("total supply = %s, want 1000", got)
	}

	if err := a.Transfer(owner, owner, holder, 0, big.NewInt(300)); err != nil {
		t.Fatalf("Transfer returned error: %v", err)
	}
	if got := a.BalanceOf(holder, 0); got.Int64() != 300 {
		t.Fatalf("holder balance = %s, want 300", got)
	}

	// Only unit zero exists on a fungible ledger.
	if err := a.Transfer(owner, owner, holder, 1, big.NewInt(1)); !errors.Is(err, domain.ErrUnknownUnit) {
		t.Fatalf("nonzero unit: expected ErrUnknownUnit, got %v", err)
	}
	if got := a.BalanceOf(owner, 1); got.Sign() != 0 {
		t.Fatalf("nonzero unit has balance: %s", got)
	}
}

// TestOperatorAuthorization ensures only the holder or a trusted engine may
// move a balance, and only owner or engine may mint.
func TestOperatorAuthorization(t *testing.T) {
	a, err := New(domain.KindFungible, ConstructorArgs{
		Name: "Coin", Symbol: "C", Owner: owner, Quantity: big.NewInt(1000),
	}, []common.Address{engine})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if err := a.Transfer(stranger, owner, stranger, 0, big.NewInt(1)); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stranger transfer: expected ErrUnauthorized, got %v", err)
	}
	if err := a.Transfer(engine, owner, holder, 0, big.NewInt(1)); err != nil {
		t.Fatalf("engine transfer rejected: %v", err)
	}
	if err := a.Mint(stranger, stranger, 0, big.NewInt(1)); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stranger mint: expected ErrUnauthorized, got %v", err)
	}
	if err := a.Mint(owner, holder, 0, big.NewInt(5)); err != nil {
		t.Fatalf("owner mint rejected: %v", err)
	}
}

// TestNonFungibleSeedsSequentialIDs ensures the constructor quantity mints
// token ids 0..n-1 to the owner and singleton semantics hold.
func TestNonFungibleSeedsSequentialIDs(t *testing.T) {
	a, err := New(domain.KindNonFungible, ConstructorArgs{
		Name: "Deed", Symbol: "D", Owner: owner, Quantity: big.NewInt(3),
	}, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	nf := a.(*NonFungible)

	for id := uint64(0); id < 3; id++ {
		got, err := nf.OwnerOf(id)
		if err != nil {
			t.Fatalf("OwnerOf(%d) returned error: %v", id, err)
		}
		if got != owner {
			t.Fatalf("token %d owned by %s, want %s", id, got.Hex(), owner.Hex())
		}
	}
	if _, err := nf.OwnerOf(3); !errors.Is(err, domain.ErrUnknownUnit) {
		t.Fatalf("unissued token: expected ErrUnknownUnit, got %v", err)
	}

	// Transfer amount must be exactly one.
	if err := a.Transfer(owner, owner, holder, 0, big.NewInt(2)); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("amount 2: expected ErrInvalidAmount, got %v", err)
	}
	if err := a.Transfer(owner, owner, holder, 0, big.NewInt(1)); err != nil {
		t.Fatalf("Transfer returned error: %v", err)
	}
	if got, _ := nf.OwnerOf(0); got != holder {
		t.Fatalf("token 0 owned by %s after transfer", got.Hex())
	}

	// The previous owner can no longer move the token.
	if err := a.Transfer(owner, owner, stranger, 0, big.NewInt(1)); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("moved token: expected ErrInsufficientFunds, got %v", err)
	}

	// Re-minting an issued id is rejected.
	if err := a.Mint(owner, owner, 1, big.NewInt(1)); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("re-mint: expected ErrInvalidAmount, got %v", err)
	}
}

// TestSemiFungibleSeededBalances ensures IDs/Amounts seed per-unit balances
// and a length mismatch is rejected.
func TestSemiFungibleSeededBalances(t *testing.T) {
	a, err := New(domain.KindSemiFungible, ConstructorArgs{
		Name: "Pack", Symbol: "P", Owner: owner,
		IDs:     []uint64{1, 2},
		Amounts: []*big.Int{big.NewInt(10), big.NewInt(20)},
	}, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if got := a.BalanceOf(owner, 1); got.Int64() != 10 {
		t.Fatalf("unit 1 balance = %s, want 10", got)
	}
	if got := a.BalanceOf(owner, 2); got.Int64() != 20 {
		t.Fatalf("unit 2 balance = %s, want 20", got)
	}

	if err := a.Transfer(owner, owner, holder, 2, big.NewInt(15)); err != nil {
		t.Fatalf("Transfer returned error: %v", err)
	}
	if got := a.BalanceOf(holder, 2); got.Int64() != 15 {
		t.Fatalf("holder unit 2 balance = %s, want 15", got)
	}
	if err := a.Transfer(owner, owner, holder, 3, big.NewInt(1)); !errors.Is(err, domain.ErrUnknownUnit) {
		t.Fatalf("unseeded unit: expected ErrUnknownUnit, got %v", err)
	}

	_, err = New(domain.KindSemiFungible, ConstructorArgs{
		Owner: owner, IDs: []uint64{1}, Amounts: nil,
	}, nil)
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("length mismatch: expected ErrInvalidAmount, got %v", err)
	}
}

// TestConstructorValidation covers kind and fee-rate checks.
func TestConstructorValidation(t *testing.T) {
	if _, err := New(domain.Kind(99), ConstructorArgs{Owner: owner}, nil); !errors.Is(err, domain.ErrInvalidKind) {
		t.Fatalf("bad kind: expected ErrInvalidKind, got %v", err)
	}
	if _, err := New(domain.KindFungible, ConstructorArgs{Owner: owner, FeeRateBps: 10001}, nil); !errors.Is(err, domain.ErrInvalidFeeRate) {
		t.Fatalf("excess fee: expected ErrInvalidFeeRate, got %v", err)
	}
}

// TestBookFungibleAssertion ensures payment-token resolution rejects
// non-fungible instances.
func TestBookFungibleAssertion(t *testing.T) {
	book := NewBook()
	addr := common.HexToAddress("0xaa")

	nft, err := New(domain.KindNonFungible, ConstructorArgs{Owner: owner, Quantity: big.NewInt(1)}, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	book.Register(addr, nft)

	if _, err := book.Fungible(addr); !errors.Is(err, domain.ErrUnknownAsset) {
		t.Fatalf("expected ErrUnknownAsset, got %v", err)
	}
	if _, err := book.Lookup(common.HexToAddress("0xbb")); !errors.Is(err, domain.ErrUnknownAsset) {
		t.Fatalf("unknown address: expected ErrUnknownAsset, got %v", err)
	}
}

// TestTemplateFingerprintVariesByKindAndAddress confirms distinct templates
// derive distinct fingerprints.
func TestTemplateFingerprintVariesByKindAndAddress(t *testing.T) {
	a := Template{Address: common.HexToAddress("0x01"), Kind: domain.KindFungible}
	b := Template{Address: common.HexToAddress("0x01"), Kind: domain.KindNonFungible}
	c := Template{Address: common.HexToAddress("0x02"), Kind: domain.KindFungible}

	if a.Fingerprint() == b.Fingerprint() {
		t.Error("fingerprint identical across kinds")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("fingerprint identical across addresses")
	}
	if a.Fingerprint() != a.Fingerprint() {
		t.Error("fingerprint not deterministic")
	}
}

// TestFungibleConcurrentAccess hammers one ledger from several goroutines to
// confirm the shared lock guards every balance mutation and read.
func TestFungibleConcurrentAccess(t *testing.T) {
	a, err := New(domain.KindFungible, ConstructorArgs{
		Name: "Coin", Symbol: "C", Owner: owner, Quantity: big.NewInt(10_000),
	}, []common.Address{engine})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	const workers = 8
	const transfersEach = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < transfersEach; j++ {
				if err := a.Transfer(owner, owner, holder, 0, big.NewInt(1)); err != nil {
					t.Errorf("Transfer returned error: %v", err)
					return
				}
				a.BalanceOf(holder, 0)
			}
		}()
	}
	wg.Wait()

	moved := int64(workers * transfersEach)
	if got := a.BalanceOf(holder, 0); got.Int64() != moved {
		t.Fatalf("holder balance = %s, want %d", got, moved)
	}
	if got := a.BalanceOf(owner, 0); got.Int64() != 10_000-moved {
		t.Fatalf("owner balance = %s, want %d", got, 10_000-moved)
	}
}
