// Package domain defines the core types of the asset factory and
// marketplace: asset kinds, deployed instances, escrow orders, auctions,
// and the store/cache interfaces implemented by the infrastructure layers.
package domain

import "fmt"

// Kind tags an asset template as fungible, semi-fungible, or non-fungible.
// The wire values mirror the contract-type tags of the original deployment
// tooling (ERC-20 / ERC-1155 / ERC-721).
type Kind uint32

const (
	KindFungible     Kind = 20
	KindNonFungible  Kind = 721
	KindSemiFungible Kind = 1155
)

// Valid reports whether k is one of the three known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindFungible, KindNonFungible, KindSemiFungible:
		return true
	}
	return false
}

func (k Kind) String() string {
	switch k {
	case KindFungible:
		return "fungible"
	case KindNonFungible:
		return "non_fungible"
	case KindSemiFungible:
		return "semi_fungible"
	}
	return fmt.Sprintf("kind(%d)", uint32(k))
}

// ParseKind accepts either the symbolic name or the numeric wire value.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "fungible", "20":
		return KindFungible, nil
	case "non_fungible", "721":
		return KindNonFungible, nil
	case "semi_fungible", "1155":
		return KindSemiFungible, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidKind, s)
}
