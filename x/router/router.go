// Package router batches claims across many vaults with best-effort
// semantics: no single failing claim fails the batch. Before any claim
// executes, every target vault's self-reported factory is validated against
// the approved set — the anti-phishing check that keeps a rogue vault from
// impersonating the protocol.
package router

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/clones-ai/factoryvault/x/claims"
	"github.com/clones-ai/factoryvault/x/events"
	"github.com/clones-ai/factoryvault/x/vault"
)

var (
	ErrEmptyBatch    = errors.New("batch is empty")
	ErrBatchTooLarge = errors.New("batch exceeds max size")
	ErrUnauthorized  = errors.New("caller is not the router owner")
	ErrBadBatchSize  = errors.New("max batch size out of range")

	// errLowLevel marks execution failures that did not surface a typed
	// reason (a panic in the target rather than a clean revert).
	errLowLevel = errors.New("low-level failure")
)

// Failure reasons recorded per item. Validation-stage reasons come from the
// router itself; execution-stage reasons are derived from the vault's typed
// errors, with a generic marker for anything lower-level.
const (
	ReasonVaultUnreachable   = "vault_unreachable"
	ReasonFactoryNotApproved = "factory_not_approved"
	ReasonNotIncreasing      = "already_claimed"
	ReasonPaused             = "paused"
	ReasonBadSignature       = "bad_signature"
	ReasonUnauthorizedSigner = "unauthorized_signer"
	ReasonInsufficientFunds  = "insufficient_funds"
	ReasonExpired            = "expired"
	ReasonExecutionReverted  = "execution_reverted"
	ReasonLowLevelFailure    = "low_level_failure"
)

// ClaimTarget is the vault surface the router consumes.
type ClaimTarget interface {
	Address() common.Address
	Factory() common.Address
	PayWithSig(account common.Address, cumulativeAmount *big.Int, deadline uint64, sig []byte) (vault.Payout, error)
}

// Resolver locates deployed vaults by address.
type Resolver interface {
	Resolve(addr common.Address) (ClaimTarget, bool)
}

// ClaimItem is one claim in a batch.
type ClaimItem struct {
	Vault            common.Address `json:"vault"`
	Account          common.Address `json:"account"`
	CumulativeAmount *big.Int       `json:"cumulative_amount"`
	Deadline         uint64         `json:"deadline,omitempty"`
	Signature        []byte         `json:"signature"`
}

// ItemResult is the per-item outcome. Stage tells which pipeline phase
// rejected the item.
type ItemResult struct {
	Index   int            `json:"index"`
	Vault   common.Address `json:"vault"`
	Account common.Address `json:"account"`
	OK      bool           `json:"ok"`
	Stage   string         `json:"stage,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	Payout  *vault.Payout  `json:"payout,omitempty"`
}

// BatchResult aggregates a batch call.
type BatchResult struct {
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	TotalGross *big.Int     `json:"total_gross"`
	TotalFee   *big.Int     `json:"total_fee"`
	TotalNet   *big.Int     `json:"total_net"`
	Items      []ItemResult `json:"items"`
}

// Router is the batch claim aggregator. Per-call state lives on the stack;
// the struct only carries governance state.
type Router struct {
	resolver Resolver
	bus      *events.Bus
	log      zerolog.Logger
	metrics  *Metrics
	owner    common.Address

	mu                sync.RWMutex
	approvedFactories map[common.Address]bool
	maxBatchSize      int
}

// New creates a router.
func New(cfg Config, resolver Resolver, bus *events.Bus, log zerolog.Logger) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid router config: %w", err)
	}
	if resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}

	r := &Router{
		resolver:          resolver,
		bus:               bus,
		owner:             cfg.Owner,
		log:               log.With().Str("component", "claim-router").Logger(),
		approvedFactories: make(map[common.Address]bool),
		maxBatchSize:      cfg.MaxBatchSize,
	}

	if cfg.MetricsEnabled {
		r.metrics = NewMetrics()
	}

	return r, nil
}

// SetFactoryApproved updates the approved-factory set. Owner-gated.
func (r *Router) SetFactoryApproved(caller, factory common.Address, approved bool) error {
	if caller != r.owner {
		return ErrUnauthorized
	}
	if factory == (common.Address{}) {
		return fmt.Errorf("factory address is required")
	}

	r.mu.Lock()
	r.approvedFactories[factory] = approved
	r.mu.Unlock()

	r.log.Info().
		Str("factory", factory.Hex()).
		Bool("approved", approved).
		Msg("Factory approval updated")

	return nil
}

// FactoryApproved reports approval of a factory address.
func (r *Router) FactoryApproved(factory common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.approvedFactories[factory]
}

// SetMaxBatchSize updates the batch ceiling within [1, 100]. Owner-gated.
func (r *Router) SetMaxBatchSize(caller common.Address, size int) error {
	if caller != r.owner {
		return ErrUnauthorized
	}
	if size < MinBatchSize || size > MaxBatchSize {
		return fmt.Errorf("%w: %d", ErrBadBatchSize, size)
	}

	r.mu.Lock()
	r.maxBatchSize = size
	r.mu.Unlock()

	r.log.Info().Int("max_batch_size", size).Msg("Max batch size updated")
	return nil
}

// CurrentMaxBatchSize returns the batch ceiling.
func (r *Router) CurrentMaxBatchSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maxBatchSize
}

// ClaimAll processes a batch in two explicit phases: validate every item's
// vault provenance first, then execute the survivors with per-item failure
// isolation. The summary event is emitted unconditionally — it is the one
// output off-chain systems reconcile batches against, even when every item
// failed.
func (r *Router) ClaimAll(caller common.Address, items []ClaimItem) (BatchResult, error) {
	r.mu.RLock()
	maxSize := r.maxBatchSize
	r.mu.RUnlock()

	if len(items) == 0 {
		return BatchResult{}, ErrEmptyBatch
	}
	if len(items) > maxSize {
		return BatchResult{}, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(items), maxSize)
	}

	result := BatchResult{
		TotalGross: new(big.Int),
		TotalFee:   new(big.Int),
		TotalNet:   new(big.Int),
		Items:      make([]ItemResult, len(items)),
	}

	// Phase 1: provenance validation. Front-loaded so one rogue or
	// unreachable vault cannot disturb later execution and factory lookups
	// are not repeated per valid item.
	targets := make([]ClaimTarget, len(items))
	for i, item := range items {
		result.Items[i] = ItemResult{Index: i, Vault: item.Vault, Account: item.Account}

		target, ok := r.resolver.Resolve(item.Vault)
		if !ok {
			r.failItem(&result, i, "validation", ReasonVaultUnreachable)
			continue
		}
		if !r.FactoryApproved(target.Factory()) {
			r.failItem(&result, i, "validation", ReasonFactoryNotApproved)
			continue
		}
		targets[i] = target
	}

	// Phase 2: execution of surviving items, isolated per item.
	for i, item := range items {
		if targets[i] == nil {
			continue
		}

		payout, err := r.executeClaim(targets[i], item)
		if err != nil {
			r.failItem(&result, i, "execution", classifyExecutionError(err))
			continue
		}

		result.Items[i].OK = true
		result.Items[i].Payout = &payout
		result.Successful++
		result.TotalGross.Add(result.TotalGross, payout.Gross)
		result.TotalFee.Add(result.TotalFee, payout.Fee)
		result.TotalNet.Add(result.TotalNet, payout.Net)
		r.metrics.RecordClaim("success")
	}

	r.metrics.RecordBatch(len(items), result.Successful, result.Failed)
	r.publish(events.TypeBatchClaimed, events.BatchClaimed{
		Caller:     caller,
		Successful: result.Successful,
		Failed:     result.Failed,
		TotalGross: new(big.Int).Set(result.TotalGross),
		TotalFee:   new(big.Int).Set(result.TotalFee),
		TotalNet:   new(big.Int).Set(result.TotalNet),
	})

	r.log.Info().
		Int("items", len(items)).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Str("total_net", result.TotalNet.String()).
		Msg("Batch processed")

	return result, nil
}

// executeClaim runs one claim and converts a panic into an error so a
// misbehaving target cannot take the whole batch down.
func (r *Router) executeClaim(target ClaimTarget, item ClaimItem) (payout vault.Payout, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", errLowLevel, rec)
			r.log.Error().
				Str("vault", item.Vault.Hex()).
				Interface("panic", rec).
				Msg("Claim execution panicked")
		}
	}()

	return target.PayWithSig(item.Account, item.CumulativeAmount, item.Deadline, item.Signature)
}

func (r *Router) failItem(result *BatchResult, i int, stage, reason string) {
	result.Items[i].Stage = stage
	result.Items[i].Reason = reason
	result.Failed++
	r.metrics.RecordClaim("failure")

	r.publish(events.TypeClaimFailed, events.ClaimFailed{
		Vault:   result.Items[i].Vault,
		Account: result.Items[i].Account,
		Reason:  reason,
	})
}

// classifyExecutionError maps the vault's typed errors to stable reason codes
// so relayers can tell "already claimed" from "paused" from "bad signature".
func classifyExecutionError(err error) string {
	switch {
	case errors.Is(err, vault.ErrNotIncreasing):
		return ReasonNotIncreasing
	case errors.Is(err, vault.ErrPaused):
		return ReasonPaused
	case errors.Is(err, claims.ErrMalformedSignature):
		return ReasonBadSignature
	case errors.Is(err, vault.ErrUnauthorizedSigner):
		return ReasonUnauthorizedSigner
	case errors.Is(err, vault.ErrInsufficientFunds):
		return ReasonInsufficientFunds
	case errors.Is(err, vault.ErrDeadlineExpired), errors.Is(err, vault.ErrDeadlineTooFar):
		return ReasonExpired
	case errors.Is(err, errLowLevel):
		return ReasonLowLevelFailure
	default:
		return ReasonExecutionReverted
	}
}

func (r *Router) publish(typ events.Type, payload any) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(typ, payload)
}
