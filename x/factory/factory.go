// Package factory mints per-(creator, token) payout vaults at deterministic
// addresses and centrally manages the claim-authorization identity every
// vault trusts. One factory instance is the single source of truth for the
// publisher key, the token allow-list and the guardian/timelock roles.
package factory

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/clones-ai/factoryvault/x/derive"
	"github.com/clones-ai/factoryvault/x/events"
	"github.com/clones-ai/factoryvault/x/vault"
)

var (
	ErrTokenNotAllowed    = errors.New("token not on allow-list")
	ErrFactoryPaused      = errors.New("factory is paused")
	ErrUnauthorized       = errors.New("caller not authorized")
	ErrZeroAddress        = errors.New("zero address")
	ErrPredictionMismatch = errors.New("deployed address diverges from prediction")
	ErrVaultExists        = errors.New("vault already deployed at predicted address")
	ErrVaultUnknown       = errors.New("no vault at address")
)

// Factory deploys vaults and owns the protocol's mutable identity state.
type Factory struct {
	cfg     Config
	assets  vault.AssetLedger
	bus     *events.Bus
	log     zerolog.Logger
	metrics *Metrics
	vaultMx *vault.Metrics
	now     func() time.Time

	mu            sync.RWMutex
	allowedTokens map[common.Address]bool
	poolNonce     map[common.Address]map[common.Address]uint64
	vaults        map[common.Address]*vault.Vault

	publisher    common.Address
	oldPublisher common.Address
	graceEnd     time.Time

	paused bool
}

// New creates a factory. The configured publisher is active immediately.
func New(cfg Config, assets vault.AssetLedger, bus *events.Bus, log zerolog.Logger) (*Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid factory config: %w", err)
	}
	if assets == nil {
		return nil, fmt.Errorf("asset ledger is required")
	}

	f := &Factory{
		cfg:    cfg,
		assets: assets,
		bus:    bus,
		now:    time.Now,
		log: log.With().
			Str("component", "factory").
			Str("factory", cfg.Address.Hex()).
			Logger(),
		allowedTokens: make(map[common.Address]bool),
		poolNonce:     make(map[common.Address]map[common.Address]uint64),
		vaults:        make(map[common.Address]*vault.Vault),
		publisher:     cfg.Publisher,
	}

	if cfg.MetricsEnabled {
		f.metrics = NewMetrics()
		f.vaultMx = vault.NewMetrics()
	}

	return f, nil
}

// Address returns the factory's own address, the CREATE2 deployer of every
// vault it mints.
func (f *Factory) Address() common.Address { return f.cfg.Address }

// CreatePool deploys the vault for (creator, token) at the pre-computed
// deterministic address. The deployed address is verified against the
// prediction before the nonce advances; a derivation-scheme drift must fail
// loudly rather than mint at an unexpected address.
func (f *Factory) CreatePool(creator, token common.Address) (*vault.Vault, error) {
	if creator == (common.Address{}) || token == (common.Address{}) {
		return nil, ErrZeroAddress
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.paused {
		return nil, ErrFactoryPaused
	}
	if !f.allowedTokens[token] {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotAllowed, token.Hex())
	}

	nonce := f.nonceLocked(creator, token)
	salt, err := derive.Salt(creator, token, nonce)
	if err != nil {
		return nil, err
	}
	predicted := derive.PredictAddress(f.cfg.Implementation, salt, f.cfg.Address)

	deployed, err := vault.New(vault.Params{
		Address:           predicted,
		Token:             token,
		Creator:           creator,
		Factory:           f.cfg.Address,
		ChainID:           f.cfg.ChainID,
		FeeBps:            f.cfg.FeeBps,
		MaxDeadlineWindow: f.cfg.MaxDeadlineWindow,
		SweepDormancy:     f.cfg.SweepDormancy,
		SweepNotice:       f.cfg.SweepNotice,
	}, f, f.assets, f.bus, f.vaultMx, f.log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vault: %w", err)
	}

	if deployed.Address() != predicted {
		return nil, fmt.Errorf("%w: predicted %s, deployed %s",
			ErrPredictionMismatch, predicted.Hex(), deployed.Address().Hex())
	}
	if _, exists := f.vaults[predicted]; exists {
		return nil, fmt.Errorf("%w: %s", ErrVaultExists, predicted.Hex())
	}

	f.vaults[predicted] = deployed
	f.setNonceLocked(creator, token, nonce+1)

	f.metrics.RecordPoolCreated()
	f.publish(events.TypePoolCreated, events.PoolCreated{
		Creator: creator,
		Vault:   predicted,
		Token:   token,
		Salt:    salt,
		Nonce:   nonce,
	})

	f.log.Info().
		Str("creator", creator.Hex()).
		Str("token", token.Hex()).
		Str("vault", predicted.Hex()).
		Uint64("nonce", nonce).
		Msg("Pool created")

	return deployed, nil
}

// PredictPoolAddress derives the address the next CreatePool call for
// (creator, token) will deploy at.
func (f *Factory) PredictPoolAddress(creator, token common.Address) (common.Address, error) {
	f.mu.RLock()
	nonce := f.nonceLocked(creator, token)
	f.mu.RUnlock()

	return f.PredictPoolAddressWithNonce(creator, token, nonce)
}

// PredictPoolAddressWithNonce derives the deployment address for an explicit
// nonce. Pure with respect to factory state.
func (f *Factory) PredictPoolAddressWithNonce(creator, token common.Address, nonce uint64) (common.Address, error) {
	if creator == (common.Address{}) || token == (common.Address{}) {
		return common.Address{}, ErrZeroAddress
	}

	salt, err := derive.Salt(creator, token, nonce)
	if err != nil {
		return common.Address{}, err
	}
	return derive.PredictAddress(f.cfg.Implementation, salt, f.cfg.Address), nil
}

// SetTokenAllowed toggles allow-list membership. Timelock-gated.
func (f *Factory) SetTokenAllowed(caller, token common.Address, allowed bool) error {
	if caller != f.cfg.Timelock {
		return fmt.Errorf("%w: timelock required", ErrUnauthorized)
	}
	if token == (common.Address{}) {
		return ErrZeroAddress
	}

	f.mu.Lock()
	f.allowedTokens[token] = allowed
	f.mu.Unlock()

	f.publish(events.TypeTokenAllowlistUpdated, events.TokenAllowlistUpdated{
		Token:   token,
		Allowed: allowed,
	})

	f.log.Info().
		Str("token", token.Hex()).
		Bool("allowed", allowed).
		Msg("Token allow-list updated")

	return nil
}

// TokenAllowed reports allow-list membership.
func (f *Factory) TokenAllowed(token common.Address) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.allowedTokens[token]
}

// PoolNonce returns the next nonce for (creator, token).
func (f *Factory) PoolNonce(creator, token common.Address) uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.nonceLocked(creator, token)
}

// Vault returns a deployed vault by address.
func (f *Factory) Vault(addr common.Address) (*vault.Vault, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	v, ok := f.vaults[addr]
	return v, ok
}

// VaultCount returns the number of deployed vaults.
func (f *Factory) VaultCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vaults)
}

// Pause halts pool creation. Guardian-gated (fast, single-key).
func (f *Factory) Pause(caller common.Address) error {
	if caller != f.cfg.Guardian {
		return fmt.Errorf("%w: guardian required", ErrUnauthorized)
	}

	f.mu.Lock()
	f.paused = true
	f.mu.Unlock()

	f.publish(events.TypePausedChanged, events.PausedChanged{Subject: f.cfg.Address, Paused: true})
	f.log.Warn().Str("caller", caller.Hex()).Msg("Factory paused")
	return nil
}

// Unpause resumes pool creation. Timelock-gated (slow, deliberate).
func (f *Factory) Unpause(caller common.Address) error {
	if caller != f.cfg.Timelock {
		return fmt.Errorf("%w: timelock required", ErrUnauthorized)
	}

	f.mu.Lock()
	f.paused = false
	f.mu.Unlock()

	f.publish(events.TypePausedChanged, events.PausedChanged{Subject: f.cfg.Address, Paused: false})
	f.log.Info().Str("caller", caller.Hex()).Msg("Factory unpaused")
	return nil
}

// Paused reports whether pool creation is halted.
func (f *Factory) Paused() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.paused
}

// Guardian implements vault.Authority.
func (f *Factory) Guardian() common.Address { return f.cfg.Guardian }

// Timelock implements vault.Authority.
func (f *Factory) Timelock() common.Address { return f.cfg.Timelock }

// Treasury implements vault.Authority.
func (f *Factory) Treasury() common.Address { return f.cfg.Treasury }

// Stats returns a point-in-time snapshot for the API surface.
func (f *Factory) Stats() map[string]any {
	f.mu.RLock()
	defer f.mu.RUnlock()

	allowed := make([]string, 0, len(f.allowedTokens))
	for token, ok := range f.allowedTokens {
		if ok {
			allowed = append(allowed, token.Hex())
		}
	}

	stats := map[string]any{
		"address":        f.cfg.Address.Hex(),
		"chain_id":       f.cfg.ChainID,
		"fee_bps":        f.cfg.FeeBps,
		"paused":         f.paused,
		"vaults":         len(f.vaults),
		"allowed_tokens": allowed,
		"publisher":      f.publisher.Hex(),
	}
	if f.rotationActiveLocked() {
		stats["old_publisher"] = f.oldPublisher.Hex()
		stats["grace_end"] = f.graceEnd.UTC().Format(time.RFC3339)
	}
	return stats
}

// SetNow overrides the factory clock. Tests only.
func (f *Factory) SetNow(now func() time.Time) { f.now = now }

func (f *Factory) nonceLocked(creator, token common.Address) uint64 {
	if byToken, ok := f.poolNonce[creator]; ok {
		return byToken[token]
	}
	return 0
}

func (f *Factory) setNonceLocked(creator, token common.Address, nonce uint64) {
	byToken, ok := f.poolNonce[creator]
	if !ok {
		byToken = make(map[common.Address]uint64)
		f.poolNonce[creator] = byToken
	}
	byToken[token] = nonce
}

func (f *Factory) publish(typ events.Type, payload any) {
	if f.bus == nil {
		return
	}
	f.bus.Publish(typ, payload)
}
