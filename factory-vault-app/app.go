package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/clones-ai/factoryvault/factory-vault-app/config"
	"github.com/clones-ai/factoryvault/metrics"
	apisrv "github.com/clones-ai/factoryvault/server/api"
	apimw "github.com/clones-ai/factoryvault/server/api/middleware"
	"github.com/clones-ai/factoryvault/x/bank"
	"github.com/clones-ai/factoryvault/x/events"
	eventshttp "github.com/clones-ai/factoryvault/x/events/http"
	"github.com/clones-ai/factoryvault/x/factory"
	factoryhttp "github.com/clones-ai/factoryvault/x/factory/http"
	"github.com/clones-ai/factoryvault/x/registry"
	"github.com/clones-ai/factoryvault/x/router"
	routerhttp "github.com/clones-ai/factoryvault/x/router/http"
)

// App wires the protocol engine: asset ledger, event bus, factory, claim
// router, deployment registry, and the HTTP API on top.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	bank     *bank.Bank
	bus      *events.Bus
	factory  *factory.Factory
	router   *router.Router
	registry *registry.Store

	apiServer *apisrv.Server

	startedAt time.Time
	cancel    context.CancelFunc
}

// NewApp creates a new application instance.
func NewApp(cfg *config.Config, log zerolog.Logger) (*App, error) {
	app := &App{
		cfg: cfg,
		log: log.With().Str("component", "app").Logger(),
	}

	if err := app.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize app: %w", err)
	}

	return app, nil
}

func (a *App) initialize() error {
	a.bank = bank.New(a.cfg.Chain.ID, a.log)
	a.bus = events.NewBus(a.log)

	if err := a.initializeFactory(); err != nil {
		return err
	}
	if err := a.initializeTokens(); err != nil {
		return err
	}
	if err := a.initializeRouter(); err != nil {
		return err
	}
	if err := a.initializeRegistry(); err != nil {
		return err
	}
	a.initializeAPIServer()

	return nil
}

func (a *App) initializeFactory() error {
	f, err := factory.New(a.cfg.FactoryConfig(), a.bank, a.bus, a.log)
	if err != nil {
		return fmt.Errorf("failed to create factory: %w", err)
	}
	a.factory = f
	return nil
}

// initializeTokens registers configured assets, applies the allow-list, and
// runs the dev faucet mints.
func (a *App) initializeTokens() error {
	timelock := a.factory.Timelock()

	for i, tok := range a.cfg.Tokens {
		addr := common.HexToAddress(tok.Address)

		asset := bank.Asset{
			Address:  addr,
			Name:     tok.Name,
			Symbol:   tok.Symbol,
			Decimals: tok.Decimals,
		}
		if err := a.bank.Register(asset); err != nil {
			return fmt.Errorf("failed to register token %s: %w", tok.Symbol, err)
		}

		if tok.Allowed {
			if err := a.factory.SetTokenAllowed(timelock, addr, true); err != nil {
				return fmt.Errorf("failed to allow token %s: %w", tok.Symbol, err)
			}
		}

		if tok.MintAmount != "" {
			amount, ok := new(big.Int).SetString(tok.MintAmount, 10)
			if !ok {
				return fmt.Errorf("tokens[%d].mint_amount is not a decimal integer: %q", i, tok.MintAmount)
			}
			mintTo := common.HexToAddress(tok.MintTo)
			if err := a.bank.Mint(addr, mintTo, amount); err != nil {
				return fmt.Errorf("failed to mint %s: %w", tok.Symbol, err)
			}
			a.log.Info().
				Str("token", tok.Symbol).
				Str("to", mintTo.Hex()).
				Str("amount", amount.String()).
				Msg("Dev mint applied")
		}
	}

	return nil
}

func (a *App) initializeRouter() error {
	rcfg := a.cfg.RouterConfig()

	rt, err := router.New(rcfg, &vaultResolver{factory: a.factory}, a.bus, a.log)
	if err != nil {
		return fmt.Errorf("failed to create router: %w", err)
	}

	// The node's own factory is trusted provenance out of the box.
	if err := rt.SetFactoryApproved(rcfg.Owner, a.factory.Address(), true); err != nil {
		return fmt.Errorf("failed to approve factory on router: %w", err)
	}

	a.router = rt
	return nil
}

func (a *App) initializeRegistry() error {
	if !a.cfg.Registry.Enabled {
		return nil
	}

	store, err := registry.Open(a.cfg.Registry.Path, a.log)
	if err != nil {
		return fmt.Errorf("failed to open deployment registry: %w", err)
	}
	a.registry = store

	network := a.cfg.Chain.Network
	records := []struct {
		name string
		kind string
		addr common.Address
		args map[string]string
	}{
		{
			name: "vault-factory",
			kind: "factory",
			addr: a.factory.Address(),
			args: map[string]string{
				"fee_bps":        fmt.Sprintf("%d", a.cfg.Factory.FeeBps),
				"implementation": a.cfg.Factory.Implementation,
				"treasury":       a.cfg.Factory.Treasury,
				"publisher":      a.cfg.Factory.Publisher,
			},
		},
		{
			name: "claim-router",
			kind: "router",
			addr: common.HexToAddress(a.cfg.Router.Owner),
			args: map[string]string{
				"max_batch_size": fmt.Sprintf("%d", a.cfg.Router.MaxBatchSize),
			},
		},
	}

	for _, rec := range records {
		_, err := store.Register(rec.name, network, rec.kind, rec.addr, rec.args)
		if err != nil && !errors.Is(err, registry.ErrNameTaken) {
			return fmt.Errorf("failed to record %s deployment: %w", rec.name, err)
		}
	}

	return nil
}

func (a *App) initializeAPIServer() {
	s := apisrv.NewServer(a.cfg.API, a.log)
	s.Use(apimw.Recover(a.log))
	s.Use(apimw.RequestID())
	s.Use(apimw.Logger(a.log))

	// Health/readiness/stats
	s.Router.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	s.Router.HandleFunc("/ready", a.handleReady).Methods(http.MethodGet)
	s.Router.HandleFunc("/stats", a.handleStats).Methods(http.MethodGet)

	// Metrics
	if a.cfg.Metrics.Enabled {
		s.Router.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})).
			Methods(http.MethodGet)
	}

	// Protocol API
	factoryhttp.NewHandler(a.factory, a.log).RegisterMux(s.Router)
	routerhttp.NewHandler(a.router, a.log).RegisterMux(s.Router)
	eventshttp.NewHandler(a.bus, a.log).RegisterMux(s.Router)

	a.apiServer = s
}

// Run starts the application and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.startedAt = time.Now()

	go func() {
		if err := a.apiServer.Start(runCtx); err != nil {
			a.log.Error().Err(err).Msg("API server error")
		}
	}()

	go a.statsReporter(runCtx)

	return a.runWithGracefulShutdown(runCtx)
}

// runWithGracefulShutdown handles shutdown signals.
func (a *App) runWithGracefulShutdown(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	a.log.Info().Msg("FactoryVault node started successfully")

	select {
	case <-ctx.Done():
		a.log.Info().Msg("Context canceled, initiating shutdown")
	case sig := <-sigCh:
		a.log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	if a.cancel != nil {
		a.cancel()
	}

	return a.shutdown()
}

func (a *App) shutdown() error {
	a.log.Info().Msg("Initiating graceful shutdown")

	a.bus.Close()

	a.log.Info().Msg("Graceful shutdown complete")
	return nil
}

// handleHealth responds to health check requests.
func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339))
}

func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	code := http.StatusOK

	if a.factory.Paused() {
		status = "paused"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"status":"%s","vaults":%d}`, status, a.factory.VaultCount())
}

func (a *App) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(a.GetStats())
}

// GetStats returns application statistics.
func (a *App) GetStats() map[string]any {
	stats := a.factory.Stats()
	stats["max_batch_size"] = a.router.CurrentMaxBatchSize()
	stats["events_dropped"] = a.bus.Dropped()
	stats["uptime_seconds"] = time.Since(a.startedAt).Seconds()
	stats["app_version"] = Version
	stats["app_build_time"] = BuildTime
	stats["app_git_commit"] = GitCommit
	return stats
}

// statsReporter periodically reports application statistics.
func (a *App) statsReporter(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.log.Info().
				Int("vaults", a.factory.VaultCount()).
				Bool("paused", a.factory.Paused()).
				Uint64("events_dropped", a.bus.Dropped()).
				Float64("uptime_seconds", time.Since(a.startedAt).Seconds()).
				Msg("FactoryVault statistics")
		}
	}
}

// vaultResolver adapts the factory's vault lookup to the router's resolver
// interface.
type vaultResolver struct {
	factory *factory.Factory
}

func (r *vaultResolver) Resolve(addr common.Address) (router.ClaimTarget, bool) {
	v, ok := r.factory.Vault(addr)
	if !ok {
		return nil, false
	}
	return v, true
}
