// Package vault implements the per-(creator, token) payout vault: it custodies
// funds and pays out against publisher-signed cumulative claims. A claim
// states the total ever owed to an account; the vault pays the delta over the
// recorded total, takes the platform fee from the cumulative figure, and
// trusts only the factory's current (or in-grace previous) publisher key.
package vault

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/clones-ai/factoryvault/x/claims"
	"github.com/clones-ai/factoryvault/x/events"
)

// FeeDenominator is the basis-point scale for the platform fee.
const FeeDenominator = 10_000

// Params fixes a vault instance at initialization. Everything here is
// immutable for the vault's lifetime; governance-mutable values (treasury,
// publisher, pause roles) are resolved through the Authority instead.
type Params struct {
	Address common.Address
	Token   common.Address
	Creator common.Address
	Factory common.Address

	ChainID           uint64
	FeeBps            uint64
	MaxDeadlineWindow time.Duration
	SweepDormancy     time.Duration
	SweepNotice       time.Duration
}

// Payout reports the settled amounts of one accepted claim.
type Payout struct {
	Gross         *big.Int `json:"gross"`
	Fee           *big.Int `json:"fee"`
	Net           *big.Int `json:"net"`
	NewCumulative *big.Int `json:"new_cumulative"`
}

// Vault holds one (creator, token) pair's funds and claim ledger. The mutex
// serializes every ledger-mutating call; ledger effects land strictly before
// transfers and roll back in full if a transfer leg fails.
type Vault struct {
	params    Params
	authority Authority
	assets    AssetLedger
	log       zerolog.Logger
	bus       *events.Bus
	metrics   *Metrics
	now       func() time.Time

	mu             sync.Mutex
	alreadyClaimed map[common.Address]*big.Int
	alreadyFeePaid map[common.Address]*big.Int
	globalClaimed  *big.Int
	createdAt      time.Time
	lastClaimAt    time.Time
	paused         bool

	noticeAt            time.Time
	noticeRecipient     common.Address
	noticeJustification string
}

// New initializes a vault. The factory is the only expected caller.
func New(params Params, authority Authority, assets AssetLedger, bus *events.Bus, metrics *Metrics, log zerolog.Logger) (*Vault, error) {
	if params.Address == (common.Address{}) || params.Token == (common.Address{}) ||
		params.Creator == (common.Address{}) || params.Factory == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	if params.FeeBps > FeeDenominator {
		return nil, fmt.Errorf("fee %d exceeds denominator", params.FeeBps)
	}
	if authority == nil {
		return nil, fmt.Errorf("authority is required")
	}
	if assets == nil {
		return nil, fmt.Errorf("asset ledger is required")
	}

	v := &Vault{
		params:    params,
		authority: authority,
		assets:    assets,
		bus:       bus,
		metrics:   metrics,
		now:       time.Now,
		log: log.With().
			Str("component", "vault").
			Str("vault", params.Address.Hex()).
			Logger(),
		alreadyClaimed: make(map[common.Address]*big.Int),
		alreadyFeePaid: make(map[common.Address]*big.Int),
		globalClaimed:  new(big.Int),
	}
	v.createdAt = v.now()

	return v, nil
}

// Address returns the vault's deterministic deployment address.
func (v *Vault) Address() common.Address { return v.params.Address }

// Token returns the asset this vault custodies.
func (v *Vault) Token() common.Address { return v.params.Token }

// Creator returns the creator the vault pays out for.
func (v *Vault) Creator() common.Address { return v.params.Creator }

// Factory returns the self-reported factory address. The router's
// anti-phishing validation checks this against its approved set.
func (v *Vault) Factory() common.Address { return v.params.Factory }

// Balance returns the vault's current token balance.
func (v *Vault) Balance() *big.Int {
	return v.assets.BalanceOf(v.params.Token, v.params.Address)
}

// AlreadyClaimed returns the cumulative gross total recorded for an account.
func (v *Vault) AlreadyClaimed(account common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.claimedLocked(account))
}

// AlreadyFeePaid returns the cumulative fee total recorded for an account.
func (v *Vault) AlreadyFeePaid(account common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if fee, ok := v.alreadyFeePaid[account]; ok {
		return new(big.Int).Set(fee)
	}
	return new(big.Int)
}

// GlobalClaimed returns the sum of all recorded cumulative claims.
func (v *Vault) GlobalClaimed() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.globalClaimed)
}

// LastClaimAt returns the time of the most recent accepted claim, zero if the
// vault has never paid out.
func (v *Vault) LastClaimAt() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastClaimAt
}

// Paused reports the vault's pause state.
func (v *Vault) Paused() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.paused
}

// Fund pulls amount tokens from the funder into the vault. The measured
// balance delta must equal the requested amount; fee-on-transfer and other
// non-standard assets are rejected outright.
func (v *Vault) Fund(from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	before := v.assets.BalanceOf(v.params.Token, v.params.Address)
	if err := v.assets.TransferFrom(v.params.Token, v.params.Address, from, v.params.Address, amount); err != nil {
		return fmt.Errorf("deposit transfer failed: %w", err)
	}

	after := v.assets.BalanceOf(v.params.Token, v.params.Address)
	delta := new(big.Int).Sub(after, before)
	if delta.Cmp(amount) != 0 {
		// Undo the pull; partial-fee tolerance is a legacy-ledger behavior
		// this vault variant does not carry.
		if err := v.assets.Transfer(v.params.Token, v.params.Address, from, delta); err != nil {
			v.log.Error().Err(err).Msg("Failed to return mismatched deposit")
		}
		return fmt.Errorf("%w: requested %s, received %s", ErrDepositMismatch, amount, delta)
	}

	v.metrics.RecordDeposit()
	v.publish(events.TypeVaultFunded, events.VaultFunded{
		Vault:  v.params.Address,
		Funder: from,
		Amount: new(big.Int).Set(amount),
	})

	v.log.Info().
		Str("funder", from.Hex()).
		Str("amount", amount.String()).
		Msg("Vault funded")

	return nil
}

// FundWithPermit applies an EIP-2612 permit for the deposit amount and then
// pulls it in a single call.
func (v *Vault) FundWithPermit(from common.Address, amount *big.Int, deadline uint64, permitSig []byte) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	if err := v.assets.Permit(v.params.Token, from, v.params.Address, amount, deadline, permitSig); err != nil {
		return fmt.Errorf("permit failed: %w", err)
	}

	return v.Fund(from, amount)
}

// PayWithSig settles a publisher-signed cumulative claim. See the package doc
// for the scheme; the strict monotonicity requirement is the sole replay
// defense, so it is checked before anything else touches state.
func (v *Vault) PayWithSig(account common.Address, cumulativeAmount *big.Int, deadline uint64, sig []byte) (Payout, error) {
	if account == (common.Address{}) {
		return Payout{}, ErrZeroAddress
	}
	if cumulativeAmount == nil || cumulativeAmount.Sign() <= 0 {
		return Payout{}, ErrInvalidAmount
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		v.metrics.RecordClaimRejected("paused")
		return Payout{}, ErrPaused
	}

	claimed := v.claimedLocked(account)
	if cumulativeAmount.Cmp(claimed) <= 0 {
		v.metrics.RecordClaimRejected("not_increasing")
		return Payout{}, fmt.Errorf("%w: claimed %s, recorded %s", ErrNotIncreasing, cumulativeAmount, claimed)
	}

	now := v.now()
	if deadline != 0 {
		if now.Unix() > int64(deadline) {
			v.metrics.RecordClaimRejected("expired")
			return Payout{}, fmt.Errorf("%w: deadline %d", ErrDeadlineExpired, deadline)
		}
		if int64(deadline) > now.Add(v.params.MaxDeadlineWindow).Unix() {
			v.metrics.RecordClaimRejected("deadline_too_far")
			return Payout{}, fmt.Errorf("%w: deadline %d", ErrDeadlineTooFar, deadline)
		}
	}

	signer, err := claims.Recover(v.params.ChainID, v.params.Address, claims.Claim{
		Account:          account,
		CumulativeAmount: cumulativeAmount,
		Deadline:         deadline,
	}, sig)
	if err != nil {
		v.metrics.RecordClaimRejected("malformed_signature")
		return Payout{}, err
	}

	current, old, graceEnd := v.authority.Publisher()
	trusted := signer == current ||
		(old != (common.Address{}) && signer == old && now.Before(graceEnd))
	if !trusted {
		v.metrics.RecordClaimRejected("unauthorized_signer")
		return Payout{}, fmt.Errorf("%w: recovered %s", ErrUnauthorizedSigner, signer.Hex())
	}

	gross := new(big.Int).Sub(cumulativeAmount, claimed)

	// Fee is derived from the cumulative total so rounding cannot leak across
	// many small claims.
	cumulativeFeeDue := new(big.Int).Mul(cumulativeAmount, new(big.Int).SetUint64(v.params.FeeBps))
	cumulativeFeeDue.Quo(cumulativeFeeDue, big.NewInt(FeeDenominator))

	feePaid := new(big.Int)
	if fp, ok := v.alreadyFeePaid[account]; ok {
		feePaid.Set(fp)
	}
	fee := new(big.Int).Sub(cumulativeFeeDue, feePaid)
	if fee.Sign() < 0 {
		fee.SetInt64(0)
	}
	net := new(big.Int).Sub(gross, fee)

	balance := v.assets.BalanceOf(v.params.Token, v.params.Address)
	if balance.Cmp(gross) < 0 {
		v.metrics.RecordClaimRejected("insufficient_funds")
		return Payout{}, fmt.Errorf("%w: balance %s, gross %s", ErrInsufficientFunds, balance, gross)
	}

	// Effects before interactions.
	prevClaim := new(big.Int).Set(claimed)
	prevFee := new(big.Int).Set(feePaid)
	prevLast := v.lastClaimAt

	v.alreadyClaimed[account] = new(big.Int).Set(cumulativeAmount)
	v.alreadyFeePaid[account] = new(big.Int).Set(cumulativeFeeDue)
	v.globalClaimed.Add(v.globalClaimed, gross)
	v.lastClaimAt = now

	rollback := func() {
		v.alreadyClaimed[account] = prevClaim
		v.alreadyFeePaid[account] = prevFee
		v.globalClaimed.Sub(v.globalClaimed, gross)
		v.lastClaimAt = prevLast
	}

	// Net to the account first, then the fee to the treasury. If either leg
	// fails the whole call fails and all ledger effects roll back.
	if net.Sign() > 0 {
		if err := v.assets.Transfer(v.params.Token, v.params.Address, account, net); err != nil {
			rollback()
			return Payout{}, fmt.Errorf("net transfer failed: %w", err)
		}
	}
	if fee.Sign() > 0 {
		if err := v.assets.Transfer(v.params.Token, v.params.Address, v.authority.Treasury(), fee); err != nil {
			if net.Sign() > 0 {
				if undoErr := v.assets.Transfer(v.params.Token, account, v.params.Address, net); undoErr != nil {
					v.log.Error().Err(undoErr).Msg("Failed to unwind net transfer")
				}
			}
			rollback()
			return Payout{}, fmt.Errorf("fee transfer failed: %w", err)
		}
	}

	v.metrics.RecordClaimPaid()
	v.publish(events.TypeClaimPaid, events.ClaimPaid{
		Vault:         v.params.Address,
		Account:       account,
		Token:         v.params.Token,
		NewCumulative: new(big.Int).Set(cumulativeAmount),
	})

	v.log.Info().
		Str("account", account.Hex()).
		Str("gross", gross.String()).
		Str("fee", fee.String()).
		Str("net", net.String()).
		Str("cumulative", cumulativeAmount.String()).
		Msg("Claim paid")

	return Payout{
		Gross:         gross,
		Fee:           fee,
		Net:           net,
		NewCumulative: new(big.Int).Set(cumulativeAmount),
	}, nil
}

// Pause halts claims and deposits. Guardian-gated: pausing is the fast,
// single-key side of the asymmetric trust split.
func (v *Vault) Pause(caller common.Address) error {
	if caller != v.authority.Guardian() {
		return fmt.Errorf("%w: guardian required", ErrUnauthorized)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		return nil
	}
	v.paused = true

	v.publish(events.TypePausedChanged, events.PausedChanged{Subject: v.params.Address, Paused: true})
	v.log.Warn().Str("caller", caller.Hex()).Msg("Vault paused")
	return nil
}

// Unpause resumes operation. Timelock-gated: resuming is the slow,
// deliberate side.
func (v *Vault) Unpause(caller common.Address) error {
	if caller != v.authority.Timelock() {
		return fmt.Errorf("%w: timelock required", ErrUnauthorized)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.paused {
		return nil
	}
	v.paused = false

	v.publish(events.TypePausedChanged, events.PausedChanged{Subject: v.params.Address, Paused: false})
	v.log.Info().Str("caller", caller.Hex()).Msg("Vault unpaused")
	return nil
}

// SetNow overrides the vault clock. Tests only.
func (v *Vault) SetNow(now func() time.Time) { v.now = now }

func (v *Vault) claimedLocked(account common.Address) *big.Int {
	if c, ok := v.alreadyClaimed[account]; ok {
		return c
	}
	return new(big.Int)
}

func (v *Vault) publish(typ events.Type, payload any) {
	if v.bus == nil {
		return
	}
	v.bus.Publish(typ, payload)
}
