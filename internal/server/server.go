package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/BunsDev/shareconomy-nft-factory/internal/crypto"
	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
	"github.com/BunsDev/shareconomy-nft-factory/internal/server/handler"
	"github.com/BunsDev/shareconomy-nft-factory/internal/server/middleware"
	"github.com/BunsDev/shareconomy-nft-factory/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	RateLimitPerMin int
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Status   *handler.StatusHandler
	Factory  *handler.FactoryHandler
	Orders   *handler.OrderHandler
	Auctions *handler.AuctionHandler
	Vault    *handler.VaultHandler
}

// AdminAuth carries what the admin middleware needs to verify signed requests.
// A nil value disables the admin routes entirely.
type AdminAuth struct {
	Verifier *crypto.HMACAuth
	Owner    common.Address
}

// Server is the headless HTTP + WebSocket API server for the factory.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (CORS, logging, rate limiting) and attaches the
// WebSocket hub. Admin routes are only registered when adminAuth is non-nil;
// they sit behind the HMAC verification middleware.
func NewServer(cfg Config, handlers Handlers, adminAuth *AdminAuth, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health and status (no rate limit concerns beyond the global one).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Factory endpoints.
	mux.HandleFunc("GET /api/factory", handlers.Factory.GetStatus)
	mux.HandleFunc("GET /api/factory/predict", handlers.Factory.PredictAddress)
	mux.HandleFunc("POST /api/factory/contracts", handlers.Factory.CreateContract)

	// Deployed instance endpoints.
	mux.HandleFunc("GET /api/instances", handlers.Factory.ListInstances)
	mux.HandleFunc("GET /api/instances/{address}", handlers.Factory.GetInstance)

	// Order book endpoints, scoped per asset instance.
	mux.HandleFunc("POST /api/assets/{address}/orders", handlers.Orders.AddOrder)
	mux.HandleFunc("GET /api/assets/{address}/orders", handlers.Orders.ListOrders)
	mux.HandleFunc("GET /api/assets/{address}/orders/{id}", handlers.Orders.GetOrder)
	mux.HandleFunc("POST /api/assets/{address}/orders/{id}/redeem", handlers.Orders.RedeemOrder)
	mux.HandleFunc("POST /api/assets/{address}/orders/{id}/accept", handlers.Orders.AcceptOrder)
	mux.HandleFunc("POST /api/assets/{address}/orders/{id}/complete", handlers.Orders.CompleteOrder)
	mux.HandleFunc("POST /api/assets/{address}/orders/{id}/decline", handlers.Orders.DeclineOrder)
	mux.HandleFunc("GET /api/orders/open", handlers.Orders.ListOpen)

	// Auction house endpoints, scoped per asset instance.
	mux.HandleFunc("POST /api/assets/{address}/auctions", handlers.Auctions.StartAuction)
	mux.HandleFunc("GET /api/assets/{address}/auctions", handlers.Auctions.ListAuctions)
	mux.HandleFunc("GET /api/assets/{address}/auctions/{id}", handlers.Auctions.GetAuction)
	mux.HandleFunc("POST /api/assets/{address}/auctions/{id}/bids", handlers.Auctions.MakeBid)
	mux.HandleFunc("POST /api/assets/{address}/auctions/{id}/complete", handlers.Auctions.CompleteAuction)
	mux.HandleFunc("GET /api/auctions/open", handlers.Auctions.ListOpen)

	// Vault endpoints.
	mux.HandleFunc("POST /api/vault/deposit", handlers.Vault.Deposit)
	mux.HandleFunc("POST /api/vault/withdraw", handlers.Vault.Withdraw)
	mux.HandleFunc("GET /api/vault/{address}", handlers.Vault.GetBalance)

	// Admin endpoints require a valid HMAC signature from the factory owner.
	if adminAuth != nil {
		requireAdmin := middleware.AdminAuth(adminAuth.Verifier, adminAuth.Owner, logger)
		mux.Handle("PUT /api/admin/implementations/{kind}",
			requireAdmin(http.HandlerFunc(handlers.Factory.SetImplementation)))
		mux.Handle("POST /api/admin/ownership",
			requireAdmin(http.HandlerFunc(handlers.Factory.TransferOwnership)))
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	if limiter != nil && cfg.RateLimitPerMin > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimitPerMin, time.Minute)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
