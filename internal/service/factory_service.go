package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/BunsDev/shareconomy-nft-factory/internal/asset"
	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
	"github.com/BunsDev/shareconomy-nft-factory/internal/factory"
)

// FactoryService fronts the deterministic factory engine. Engine state is
// authoritative; the service journals every created instance, keeps the
// instance cache warm, and broadcasts lifecycle events.
type FactoryService struct {
	engine    *factory.Factory
	instances domain.InstanceStore
	cache     domain.InstanceCache
	locks     domain.LockManager
	bus       domain.SignalBus
	audit     domain.AuditStore
	notifier  Notifier
	logger    *slog.Logger
}

// NewFactoryService creates a FactoryService with all required dependencies.
func NewFactoryService(
	engine *factory.Factory,
	instances domain.InstanceStore,
	cache domain.InstanceCache,
	locks domain.LockManager,
	bus domain.SignalBus,
	audit domain.AuditStore,
	logger *slog.Logger,
) *FactoryService {
	return &FactoryService{
		engine:    engine,
		instances: instances,
		cache:     cache,
		locks:     locks,
		bus:       bus,
		audit:     audit,
		logger:    logger,
	}
}

// WithNotifier attaches an operator notifier. Without one, events are only
// published on the signal bus.
func (s *FactoryService) WithNotifier(n Notifier) *FactoryService {
	s.notifier = n
	return s
}

// Owner returns the current registry owner.
func (s *FactoryService) Owner() common.Address { return s.engine.Owner() }

// Version returns the current factory logic version.
func (s *FactoryService) Version() uint64 { return s.engine.Version() }

// PredictAddress computes the address a future CreateContract call with the
// same kind and salt would deploy to.
func (s *FactoryService) PredictAddress(ctx context.Context, kind domain.Kind, salt uint64) (common.Address, error) {
	addr, err := s.engine.PredictAddress(kind, salt)
	if err != nil {
		return common.Address{}, fmt.Errorf("factory_service: predict address: %w", err)
	}
	return addr, nil
}

// CreateContract deploys a new asset instance, journals it, warms the cache,
// and broadcasts a contract_created event.
func (s *FactoryService) CreateContract(ctx context.Context, caller common.Address, kind domain.Kind, args asset.ConstructorArgs, salt uint64) (domain.Instance, error) {
	unlock, err := s.locks.Acquire(ctx, "lock:factory", lockTTL)
	if err != nil {
		return domain.Instance{}, fmt.Errorf("factory_service: acquire lock: %w", err)
	}
	defer unlock()

	inst, err := s.engine.CreateContract(caller, kind, args, salt)
	if err != nil {
		return domain.Instance{}, fmt.Errorf("factory_service: create contract: %w", err)
	}

	// The engine has committed; journal and cache failures are logged, not
	// returned.
	if err := s.instances.Create(ctx, inst); err != nil {
		s.logger.ErrorContext(ctx, "factory_service: journal instance failed",
			slog.String("address", inst.Address.Hex()),
			slog.String("error", err.Error()),
		)
	}
	if err := s.cache.Set(ctx, inst); err != nil {
		s.logger.WarnContext(ctx, "factory_service: cache set failed",
			slog.String("address", inst.Address.Hex()),
			slog.String("error", err.Error()),
		)
	}

	publishEvent(ctx, s.bus, s.notifier, s.logger, domain.Event{
		Type:      domain.EventContractCreated,
		Asset:     inst.Address,
		ID:        inst.Salt,
		Actor:     caller,
		Timestamp: inst.CreatedAt,
	})

	s.auditLog(ctx, "factory.create_contract", map[string]any{
		"address": inst.Address.Hex(),
		"kind":    inst.Kind.String(),
		"salt":    salt,
		"creator": caller.Hex(),
	})

	return inst, nil
}

// SetImplementation registers or replaces the template for a kind. Owner
// only.
func (s *FactoryService) SetImplementation(ctx context.Context, caller common.Address, kind domain.Kind, template common.Address) error {
	if err := s.engine.SetImplementation(caller, kind, template); err != nil {
		return fmt.Errorf("factory_service: set implementation: %w", err)
	}

	s.auditLog(ctx, "factory.set_implementation", map[string]any{
		"kind":     kind.String(),
		"template": template.Hex(),
		"caller":   caller.Hex(),
	})
	return nil
}

// Implementation returns the registered template for a kind.
func (s *FactoryService) Implementation(kind domain.Kind) (asset.Template, error) {
	t, err := s.engine.Implementation(kind)
	if err != nil {
		return asset.Template{}, fmt.Errorf("factory_service: implementation: %w", err)
	}
	return t, nil
}

// TransferOwnership hands the registry to a new owner. Owner only.
func (s *FactoryService) TransferOwnership(ctx context.Context, caller, newOwner common.Address) error {
	if err := s.engine.TransferOwnership(caller, newOwner); err != nil {
		return fmt.Errorf("factory_service: transfer ownership: %w", err)
	}

	s.auditLog(ctx, "factory.transfer_ownership", map[string]any{
		"from": caller.Hex(),
		"to":   newOwner.Hex(),
	})
	return nil
}

// GetInstance retrieves instance metadata, checking the cache first and
// falling back to the journal on a miss.
func (s *FactoryService) GetInstance(ctx context.Context, addr common.Address) (domain.Instance, error) {
	inst, err := s.cache.Get(ctx, addr)
	if err == nil {
		return inst, nil
	}

	inst, err = s.instances.GetByAddress(ctx, addr)
	if err != nil {
		return domain.Instance{}, fmt.Errorf("factory_service: get instance %s: %w", addr.Hex(), err)
	}

	if cacheErr := s.cache.Set(ctx, inst); cacheErr != nil {
		s.logger.WarnContext(ctx, "factory_service: cache set failed",
			slog.String("address", addr.Hex()),
			slog.String("error", cacheErr.Error()),
		)
	}
	return inst, nil
}

// ListInstances returns instance records from the journal.
func (s *FactoryService) ListInstances(ctx context.Context, opts domain.ListOpts) ([]domain.Instance, error) {
	insts, err := s.instances.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("factory_service: list instances: %w", err)
	}
	return insts, nil
}

// ListByCreator returns instance records created by one account.
func (s *FactoryService) ListByCreator(ctx context.Context, creator common.Address, opts domain.ListOpts) ([]domain.Instance, error) {
	insts, err := s.instances.ListByCreator(ctx, creator, opts)
	if err != nil {
		return nil, fmt.Errorf("factory_service: list by creator: %w", err)
	}
	return insts, nil
}

// Count returns the total number of journaled instances.
func (s *FactoryService) Count(ctx context.Context) (int64, error) {
	n, err := s.instances.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("factory_service: count: %w", err)
	}
	return n, nil
}

func (s *FactoryService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "factory_service: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
