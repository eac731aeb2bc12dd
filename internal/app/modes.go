package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/BunsDev/shareconomy-nft-factory/internal/asset"
	"github.com/BunsDev/shareconomy-nft-factory/internal/crypto"
	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
	"github.com/BunsDev/shareconomy-nft-factory/internal/factory"
	"github.com/BunsDev/shareconomy-nft-factory/internal/market"
	"github.com/BunsDev/shareconomy-nft-factory/internal/server"
	"github.com/BunsDev/shareconomy-nft-factory/internal/server/handler"
	"github.com/BunsDev/shareconomy-nft-factory/internal/server/ws"
	"github.com/BunsDev/shareconomy-nft-factory/internal/service"
)

// engines bundles the in-memory factory and marketplace engines plus the
// owner identity they were booted with. Engine state is process-lifetime;
// the Postgres journal is the durable read model.
type engines struct {
	owner   common.Address
	factory *factory.Factory
	book    *market.OrderBook
	house   *market.AuctionHouse
	vault   *market.Vault
}

// buildEngines derives the owner identity from the configured admin key,
// constructs the shared asset book and vault, and boots the factory with
// both marketplace engines registered as trusted operators. Template
// implementations from the configuration are seeded into the registry.
func (a *App) buildEngines(ctx context.Context) (*engines, error) {
	keyHex, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    a.cfg.Admin.PrivateKey,
		EncryptedKeyPath: a.cfg.Admin.EncryptedKeyPath,
		KeyPassword:      a.cfg.Admin.KeyPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("app: load admin key: %w", err)
	}
	owner, err := crypto.AdminAddress(keyHex)
	if err != nil {
		return nil, fmt.Errorf("app: derive admin address: %w", err)
	}

	factoryAddr := common.HexToAddress(a.cfg.Market.FactoryAddress)
	orderBookAddr := common.HexToAddress(a.cfg.Market.OrderBookAddress)
	auctionAddr := common.HexToAddress(a.cfg.Market.AuctionHouseAddress)
	feeRecipient := owner
	if a.cfg.Market.FeeRecipient != "" {
		feeRecipient = common.HexToAddress(a.cfg.Market.FeeRecipient)
	}

	book := asset.NewBook()
	vault := market.NewVault()

	orderBook := market.NewOrderBook(market.EngineConfig{
		Address:      orderBookAddr,
		FeeRecipient: feeRecipient,
		Book:         book,
		Vault:        vault,
		Logger:       a.logger,
	})
	house := market.NewAuctionHouse(market.EngineConfig{
		Address:      auctionAddr,
		FeeRecipient: feeRecipient,
		Book:         book,
		Vault:        vault,
		Logger:       a.logger,
	})

	eng := factory.New(factory.Config{
		Address: factoryAddr,
		Markets: []common.Address{orderBookAddr, auctionAddr},
		Logger:  a.logger,
	}, owner, book)

	// Seed the implementation registry from configuration. A kind with no
	// configured template stays unregistered until an admin call installs one.
	templates := []struct {
		kind domain.Kind
		raw  string
	}{
		{domain.KindFungible, a.cfg.Market.FungibleTemplate},
		{domain.KindSemiFungible, a.cfg.Market.SemiFungibleTemplate},
		{domain.KindNonFungible, a.cfg.Market.NonFungibleTemplate},
	}
	for _, t := range templates {
		if t.raw == "" {
			continue
		}
		if err := eng.SetImplementation(owner, t.kind, common.HexToAddress(t.raw)); err != nil {
			return nil, fmt.Errorf("app: seed %s template: %w", t.kind, err)
		}
	}

	a.logger.InfoContext(ctx, "engines booted",
		slog.String("owner", owner.Hex()),
		slog.String("factory", factoryAddr.Hex()),
		slog.String("order_book", orderBookAddr.Hex()),
		slog.String("auction_house", auctionAddr.Hex()),
	)

	return &engines{
		owner:   owner,
		factory: eng,
		book:    orderBook,
		house:   house,
		vault:   vault,
	}, nil
}

// services bundles the service layer wrapping the engines.
type services struct {
	factories *service.FactoryService
	orders    *service.OrderService
	auctions  *service.AuctionService
	vault     *service.VaultService
}

// buildServices wraps the engines with the journaling service layer and
// attaches the operator notifier.
func (a *App) buildServices(eng *engines, deps *Dependencies) *services {
	factories := service.NewFactoryService(
		eng.factory, deps.InstanceStore, deps.InstanceCache,
		deps.LockManager, deps.SignalBus, deps.AuditStore, a.logger,
	).WithNotifier(deps.Notifier)

	orders := service.NewOrderService(
		eng.book, deps.OrderStore, deps.LockManager,
		deps.SignalBus, deps.AuditStore, a.logger,
	).WithNotifier(deps.Notifier)

	auctions := service.NewAuctionService(
		eng.house, deps.AuctionStore, deps.LockManager,
		deps.SignalBus, deps.AuditStore, a.logger,
	).WithNotifier(deps.Notifier)

	vault := service.NewVaultService(eng.vault, deps.SignalBus, deps.AuditStore, a.logger)

	return &services{
		factories: factories,
		orders:    orders,
		auctions:  auctions,
		vault:     vault,
	}
}

// ServerMode runs the HTTP API and WebSocket hub over freshly booted engines.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	eng, err := a.buildEngines(ctx)
	if err != nil {
		return err
	}
	svcs := a.buildServices(eng, deps)

	a.startHTTPServer(ctx, g, deps, eng, svcs)

	return g.Wait()
}

// ArchiveMode periodically sweeps settled orders and auctions older than the
// retention window out of the journal into object storage.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode",
		slog.Int("retention_days", a.cfg.Archive.RetentionDays),
		slog.Duration("interval", a.cfg.Archive.Interval.Duration),
	)

	g, ctx := errgroup.WithContext(ctx)
	a.startArchiveLoop(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the HTTP API plus the archival sweep in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	eng, err := a.buildEngines(ctx)
	if err != nil {
		return err
	}
	svcs := a.buildServices(eng, deps)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, eng, svcs)
	}
	if a.cfg.Archive.Enabled {
		a.startArchiveLoop(ctx, g, deps)
	}

	return g.Wait()
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, eng *engines, svcs *services) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(a.logger),
		Status:   handler.NewStatusHandler(a.cfg.Mode, eng.factory.Version(), time.Now().UTC()),
		Factory:  handler.NewFactoryHandler(svcs.factories, a.logger),
		Orders:   handler.NewOrderHandler(svcs.orders, a.logger),
		Auctions: handler.NewAuctionHandler(svcs.auctions, a.logger),
		Vault:    handler.NewVaultHandler(svcs.vault, a.logger),
	}

	adminAuth := &server.AdminAuth{
		Verifier: &crypto.HMACAuth{Secret: a.cfg.Admin.HMACSecret},
		Owner:    eng.owner,
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		RateLimitPerMin: a.cfg.Server.RateLimitPerMin,
	}, handlers, adminAuth, deps.RateLimiter, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// startArchiveLoop adds the periodic settlement archival goroutine to the
// given errgroup. Each tick sweeps records settled before the retention
// cutoff into object storage.
func (a *App) startArchiveLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		a.logger.WarnContext(ctx, "archive loop disabled: object storage not wired")
		return
	}

	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)
				a.runArchiveSweep(ctx, deps, cutoff)
			}
		}
	})
}

// runArchiveSweep archives orders and auctions settled before the cutoff.
// Failures are logged and retried on the next tick.
func (a *App) runArchiveSweep(ctx context.Context, deps *Dependencies, cutoff time.Time) {
	if n, err := deps.Archiver.ArchiveOrders(ctx, cutoff); err != nil {
		a.logger.ErrorContext(ctx, "archive sweep: orders failed",
			slog.String("error", err.Error()),
		)
	} else if n > 0 {
		a.logger.InfoContext(ctx, "archived settled orders",
			slog.Int64("count", n),
			slog.Time("cutoff", cutoff),
		)
	}

	if n, err := deps.Archiver.ArchiveAuctions(ctx, cutoff); err != nil {
		a.logger.ErrorContext(ctx, "archive sweep: auctions failed",
			slog.String("error", err.Error()),
		)
	} else if n > 0 {
		a.logger.InfoContext(ctx, "archived settled auctions",
			slog.Int64("count", n),
			slog.Time("cutoff", cutoff),
		)
	}
}
