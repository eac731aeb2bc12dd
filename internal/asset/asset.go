// Package asset implements the capability interface that every
// factory-deployed instance satisfies, together with the three ledger
// implementations (fungible, semi-fungible, non-fungible) and the in-memory
// book mapping instance addresses to live instances.
package asset

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// maxFeeRateBps is the fee ceiling in basis points (100%).
const maxFeeRateBps = 10000

// Asset is the minimal capability surface the factory and marketplace rely
// on. Transfers are operator-checked: the holder itself, or an operator the
// instance trusts (the marketplace engines, granted at creation time), may
// move balances.
type Asset interface {
	Kind() domain.Kind
	Name() string
	Symbol() string
	BaseURI() string
	Owner() common.Address
	FeeRateBps() uint32
	Mint(caller, to common.Address, unit uint64, amount *big.Int) error
	BalanceOf(owner common.Address, unit uint64) *big.Int
	Transfer(operator, from, to common.Address, unit uint64, amount *big.Int) error
}

// ConstructorArgs carries the per-instance configuration copied from the
// template at creation time. Quantity seeds the fungible supply or the
// non-fungible mint count; IDs/Amounts seed semi-fungible balances. The
// initial allocation is minted to Owner during construction.
type ConstructorArgs struct {
	Name       string
	Symbol     string
	BaseURI    string
	Owner      common.Address
	FeeRateBps uint32
	Quantity   *big.Int
	IDs        []uint64
	Amounts    []*big.Int
}

// New builds a fresh instance of the given kind from args. operators are
// the marketplace engine identities trusted to move balances without a
// separate approval step.
func New(kind domain.Kind, args ConstructorArgs, operators []common.Address) (Asset, error) {
	if args.FeeRateBps > maxFeeRateBps {
		return nil, fmt.Errorf("asset: fee rate %d: %w", args.FeeRateBps, domain.ErrInvalidFeeRate)
	}

	b := newBase(kind, args, operators)

	switch kind {
	case domain.KindFungible:
		return newFungible(b, args)
	case domain.KindNonFungible:
		return newNonFungible(b, args)
	case domain.KindSemiFungible:
		return newSemiFungible(b, args)
	}
	return nil, fmt.Errorf("asset: %w: %d", domain.ErrInvalidKind, kind)
}

// base holds the state shared by all three ledger kinds.
type base struct {
	kind       domain.Kind
	name       string
	symbol     string
	baseURI    string
	owner      common.Address
	feeRateBps uint32
	operators  map[common.Address]bool
	mu         sync.RWMutex
}

func newBase(kind domain.Kind, args ConstructorArgs, operators []common.Address) *base {
	ops := make(map[common.Address]bool, len(operators))
	for _, op := range operators {
		ops[op] = true
	}
	return &base{
		kind:       kind,
		name:       args.Name,
		symbol:     args.Symbol,
		baseURI:    args.BaseURI,
		owner:      args.Owner,
		feeRateBps: args.FeeRateBps,
		operators:  ops,
	}
}

func (b *base) Kind() domain.Kind     { return b.kind }
func (b *base) Name() string          { return b.name }
func (b *base) Symbol() string        { return b.symbol }
func (b *base) BaseURI() string       { return b.baseURI }
func (b *base) Owner() common.Address { return b.owner }
func (b *base) FeeRateBps() uint32    { return b.feeRateBps }

// authorized reports whether operator may move from's balance.
func (b *base) authorized(operator, from common.Address) bool {
	return operator == from || b.operators[operator]
}

// canMint reports whether caller may mint on this instance.
func (b *base) canMint(caller common.Address) bool {
	return caller == b.owner || b.operators[caller]
}

func validAmount(amount *big.Int) bool {
	return amount != nil && amount.Sign() > 0
}
