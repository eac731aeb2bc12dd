// Package market implements the escrow order book and the auction house,
// one state machine each, plus the fee splitter and the native-currency
// vault both engines settle through.
package market

import (
	"fmt"
	"math/big"

	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// bpsDenominator is the basis-point scale: 10000 bps = 100%.
const bpsDenominator = 10000

// Split divides price into seller proceeds and protocol fee at feeRateBps
// parts-per-10000. The fee is truncated toward zero, so the division
// remainder always stays with the seller.
func Split(price *big.Int, feeRateBps uint32) (sellerProceeds, feeAmount *big.Int, err error) {
	if feeRateBps > bpsDenominator {
		return nil, nil, fmt.Errorf("market: fee rate %d bps: %w", feeRateBps, domain.ErrInvalidFeeRate)
	}
	if price == nil || price.Sign() < 0 {
		return nil, nil, fmt.Errorf("market: split: %w", domain.ErrInvalidAmount)
	}

	feeAmount = new(big.Int).Mul(price, big.NewInt(int64(feeRateBps)))
	feeAmount.Quo(feeAmount, big.NewInt(bpsDenominator))
	sellerProceeds = new(big.Int).Sub(price, feeAmount)
	return sellerProceeds, feeAmount, nil
}
