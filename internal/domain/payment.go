package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// PaymentAsset selects the currency a listing settles in: the native
// currency of the platform, or a factory-deployed fungible asset identified
// by its instance address. The zero value means native.
type PaymentAsset struct {
	Token common.Address
}

// NativePayment returns the native-currency payment selector.
func NativePayment() PaymentAsset {
	return PaymentAsset{}
}

// TokenPayment returns a payment selector for the fungible asset at addr.
func TokenPayment(addr common.Address) PaymentAsset {
	return PaymentAsset{Token: addr}
}

// Native reports whether the payment is in the native currency.
func (p PaymentAsset) Native() bool {
	return p.Token == (common.Address{})
}

func (p PaymentAsset) String() string {
	if p.Native() {
		return "native"
	}
	return p.Token.Hex()
}

// ParsePaymentAsset parses "native" (or empty) or a hex instance address.
func ParsePaymentAsset(s string) (PaymentAsset, error) {
	if s == "" || s == "native" {
		return NativePayment(), nil
	}
	if !common.IsHexAddress(s) {
		return PaymentAsset{}, fmt.Errorf("invalid payment asset %q", s)
	}
	return TokenPayment(common.HexToAddress(s)), nil
}
