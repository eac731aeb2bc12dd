package market

import (
	"errors"
	"math/big"
	"testing"

	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// TestSplitTruncatesTowardSeller ensures the division remainder of the fee
// computation always stays with the seller.
func TestSplitTruncatesTowardSeller(t *testing.T) {
	tests := []struct {
		name         string
		price        int64
		feeRateBps   uint32
		wantProceeds int64
		wantFee      int64
	}{
		{"integral split", 10000, 250, 9750, 250},
		{"remainder stays with seller", 10001, 3333, 6668, 3333},
		{"zero fee rate", 10000, 0, 10000, 0},
		{"full fee rate", 10000, 10000, 0, 10000},
		{"zero price", 0, 500, 0, 0},
		{"price below one fee unit", 3, 2500, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proceeds, fee, err := Split(big.NewInt(tt.price), tt.feeRateBps)
			if err != nil {
				t.Fatalf("Split returned error: %v", err)
			}
			if proceeds.Int64() != tt.wantProceeds {
				t.Errorf("proceeds = %s, want %d", proceeds, tt.wantProceeds)
			}
			if fee.Int64() != tt.wantFee {
				t.Errorf("fee = %s, want %d", fee, tt.wantFee)
			}
			sum := new(big.Int).Add(proceeds, fee)
			if sum.Int64() != tt.price {
				t.Errorf("proceeds+fee = %s, want %d", sum, tt.price)
			}
		})
	}
}

// TestSplitRejectsExcessiveFeeRate ensures fee rates above 10000 bps fail.
func TestSplitRejectsExcessiveFeeRate(t *testing.T) {
	_, _, err := Split(big.NewInt(100), 10001)
	if !errors.Is(err, domain.ErrInvalidFeeRate) {
		t.Fatalf("expected ErrInvalidFeeRate, got %v", err)
	}
}

// TestSplitRejectsInvalidPrice ensures nil and negative prices fail.
func TestSplitRejectsInvalidPrice(t *testing.T) {
	if _, _, err := Split(nil, 100); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("nil price: expected ErrInvalidAmount, got %v", err)
	}
	if _, _, err := Split(big.NewInt(-1), 100); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("negative price: expected ErrInvalidAmount, got %v", err)
	}
}
