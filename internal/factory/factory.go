package factory

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/BunsDev/shareconomy-nft-factory/internal/asset"
	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// Factory deploys asset instances cloned from the registered template of a
// kind, at an address computable in advance from the caller-chosen salt.
// A Factory value is the replaceable logic half; the State it attaches to
// survives logic swaps unchanged.
type Factory struct {
	addr    common.Address
	state   *State
	book    *asset.Book
	markets []common.Address
	clock   domain.Clock
	logger  *slog.Logger

	// mu serializes CreateContract so the salt check and the deployment
	// commit are a single atomic step.
	mu sync.Mutex
}

// Config carries the factory's construction parameters.
type Config struct {
	// Address is the factory's own identity; it feeds address derivation
	// so two factories never collide on the same (kind, salt).
	Address common.Address

	// Markets are the marketplace engine identities granted transfer
	// capability on every instance this factory deploys.
	Markets []common.Address

	Clock  domain.Clock
	Logger *slog.Logger
}

// Attach binds factory logic to existing state and bumps the logic version
// counter. Registry contents and consumed salts carry over untouched.
func Attach(cfg Config, state *State, book *asset.Book) *Factory {
	if cfg.Clock == nil {
		cfg.Clock = domain.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	version := state.bumpVersion()

	f := &Factory{
		addr:    cfg.Address,
		state:   state,
		book:    book,
		markets: cfg.Markets,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
	}

	f.logger.Info("factory logic attached",
		slog.String("factory", cfg.Address.Hex()),
		slog.Uint64("version", version),
	)
	return f
}

// New creates a factory with fresh state owned by the given administrator.
func New(cfg Config, owner common.Address, book *asset.Book) *Factory {
	return Attach(cfg, NewState(owner), book)
}

// Address returns the factory identity.
func (f *Factory) Address() common.Address { return f.addr }

// Owner returns the administrator identity.
func (f *Factory) Owner() common.Address { return f.state.Owner() }

// Version returns the monotonic logic version, incremented on every attach.
func (f *Factory) Version() uint64 { return f.state.Version() }

// State returns the factory state for handoff to a replacement logic value.
func (f *Factory) State() *State { return f.state }

// SetImplementation overwrites the registry entry for kind. Administrator
// only. Already-deployed instances are snapshots and are unaffected.
func (f *Factory) SetImplementation(caller common.Address, kind domain.Kind, template common.Address) error {
	if caller != f.state.Owner() {
		return fmt.Errorf("factory: set implementation: %w", domain.ErrUnauthorized)
	}
	if !kind.Valid() {
		return fmt.Errorf("factory: set implementation: %w: %d", domain.ErrInvalidKind, kind)
	}

	f.state.setImplementation(asset.Template{Address: template, Kind: kind})
	f.logger.Info("implementation registered",
		slog.String("kind", kind.String()),
		slog.String("template", template.Hex()),
	)
	return nil
}

// Implementation returns the active template for kind.
func (f *Factory) Implementation(kind domain.Kind) (asset.Template, error) {
	t, ok := f.state.implementation(kind)
	if !ok {
		return asset.Template{}, fmt.Errorf("factory: %s: %w", kind, domain.ErrNoImplementation)
	}
	return t, nil
}

// TransferOwnership hands the administrator role to a new identity.
func (f *Factory) TransferOwnership(caller, newOwner common.Address) error {
	if caller != f.state.Owner() {
		return fmt.Errorf("factory: transfer ownership: %w", domain.ErrUnauthorized)
	}
	f.state.setOwner(newOwner)
	return nil
}

// PredictAddress computes the address a CreateContract call for
// (kind, salt) will deploy at. Pure: no state is consumed, and the result
// is identical before and after the deployment itself.
func (f *Factory) PredictAddress(kind domain.Kind, salt uint64) (common.Address, error) {
	tmpl, err := f.Implementation(kind)
	if err != nil {
		return common.Address{}, err
	}
	return deriveAddress(f.addr, tmpl.Fingerprint(), salt), nil
}

// CreateContract deploys a new instance cloned from the kind's active
// template at exactly the predicted address. The (kind, salt) pair is
// consumed permanently, before the instance is published, so a replayed
// salt fails deterministically regardless of its constructor arguments.
func (f *Factory) CreateContract(caller common.Address, kind domain.Kind, args asset.ConstructorArgs, salt uint64) (domain.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tmpl, err := f.Implementation(kind)
	if err != nil {
		return domain.Instance{}, err
	}
	if f.state.saltUsed(kind, salt) {
		return domain.Instance{}, fmt.Errorf("factory: %s salt %d: %w", kind, salt, domain.ErrSaltAlreadyUsed)
	}

	// Instantiating the clone validates the constructor arguments; nothing
	// is committed if it fails.
	inst, err := asset.New(kind, args, f.markets)
	if err != nil {
		return domain.Instance{}, fmt.Errorf("factory: create %s: %w", kind, err)
	}

	addr := deriveAddress(f.addr, tmpl.Fingerprint(), salt)

	f.state.consumeSalt(kind, salt)
	f.book.Register(addr, inst)

	record := domain.Instance{
		Address:     addr,
		Kind:        kind,
		Creator:     caller,
		Salt:        salt,
		Name:        args.Name,
		Symbol:      args.Symbol,
		Fingerprint: tmpl.Fingerprint(),
		CreatedAt:   f.clock.Now(),
	}

	f.logger.Info("contract created",
		slog.String("address", addr.Hex()),
		slog.String("kind", kind.String()),
		slog.String("creator", caller.Hex()),
		slog.Uint64("salt", salt),
	)
	return record, nil
}

// deriveAddress is the CREATE2-style derivation: a keccak256 hash over a
// constant prefix, the factory identity, the 32-byte salt, and the template
// code fingerprint, truncated to the trailing 20 bytes.
func deriveAddress(factory common.Address, fingerprint common.Hash, salt uint64) common.Address {
	var saltWord [32]byte
	binary.BigEndian.PutUint64(saltWord[24:], salt)

	h := ethcrypto.Keccak256(
		[]byte{0xff},
		factory.Bytes(),
		saltWord[:],
		fingerprint.Bytes(),
	)
	return common.BytesToAddress(h[12:])
}
