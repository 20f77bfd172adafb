package vault

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/clones-ai/factoryvault/x/events"
)

// Emergency sweep is the custodial escape hatch: a two-phase, timelock-gated
// drain of the entire vault balance with a mandatory public notice between the
// phases. It deliberately bypasses the per-claimant ledger; it is a
// last-resort override, not a payout path.

// EmergencyNotice describes a pending sweep notice.
type EmergencyNotice struct {
	Recipient     common.Address `json:"recipient"`
	Justification string         `json:"justification"`
	RaisedAt      time.Time      `json:"raised_at"`
	ExecutableAt  time.Time      `json:"executable_at"`
}

// EmergencyNotice returns the pending notice, if any.
func (v *Vault) EmergencyNotice() (EmergencyNotice, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.noticeAt.IsZero() {
		return EmergencyNotice{}, false
	}
	return EmergencyNotice{
		Recipient:     v.noticeRecipient,
		Justification: v.noticeJustification,
		RaisedAt:      v.noticeAt,
		ExecutableAt:  v.noticeAt.Add(v.params.SweepNotice),
	}, true
}

// InitiateEmergencySweepNotice raises the public notice. Requires the vault to
// be paused and dormant (no accepted claim) for the full dormancy window.
// Raising a new notice supersedes a pending one and restarts the clock.
func (v *Vault) InitiateEmergencySweepNotice(caller, to common.Address, justification string) error {
	if caller != v.authority.Timelock() {
		return fmt.Errorf("%w: timelock required", ErrUnauthorized)
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if strings.TrimSpace(justification) == "" {
		return fmt.Errorf("justification is required")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.paused {
		return ErrNotPaused
	}

	now := v.now()
	dormantSince := v.lastClaimAt
	if dormantSince.IsZero() {
		dormantSince = v.createdAt
	}
	if now.Sub(dormantSince) < v.params.SweepDormancy {
		return fmt.Errorf("%w: last activity %s", ErrNotDormant, dormantSince.UTC().Format(time.RFC3339))
	}

	v.noticeAt = now
	v.noticeRecipient = to
	v.noticeJustification = justification

	executableAt := now.Add(v.params.SweepNotice)
	v.publish(events.TypeEmergencySweepNoticeCreated, events.EmergencySweepNotice{
		Vault:         v.params.Address,
		Recipient:     to,
		Justification: justification,
		ExecutableAt:  executableAt,
	})

	v.log.Warn().
		Str("recipient", to.Hex()).
		Str("justification", justification).
		Time("executable_at", executableAt).
		Msg("Emergency sweep notice raised")

	return nil
}

// EmergencySweepAll drains the entire balance to the noticed recipient once
// the notice period has elapsed, then clears the notice.
func (v *Vault) EmergencySweepAll(caller, to common.Address) (*big.Int, error) {
	if caller != v.authority.Timelock() {
		return nil, fmt.Errorf("%w: timelock required", ErrUnauthorized)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.paused {
		return nil, ErrNotPaused
	}
	if v.noticeAt.IsZero() {
		return nil, ErrNoNotice
	}
	if to != v.noticeRecipient {
		return nil, fmt.Errorf("%w: notice names %s", ErrNoticeRecipient, v.noticeRecipient.Hex())
	}

	now := v.now()
	executableAt := v.noticeAt.Add(v.params.SweepNotice)
	if now.Before(executableAt) {
		return nil, fmt.Errorf("%w: executable at %s", ErrNoticeImmature, executableAt.UTC().Format(time.RFC3339))
	}

	balance := v.assets.BalanceOf(v.params.Token, v.params.Address)
	if balance.Sign() == 0 {
		return nil, ErrNothingToSweep
	}

	if err := v.assets.Transfer(v.params.Token, v.params.Address, to, balance); err != nil {
		return nil, fmt.Errorf("sweep transfer failed: %w", err)
	}

	v.noticeAt = time.Time{}
	v.noticeRecipient = common.Address{}
	v.noticeJustification = ""

	v.metrics.RecordSweep()
	v.publish(events.TypeEmergencySwept, events.EmergencySwept{
		Vault:     v.params.Address,
		Recipient: to,
		Amount:    new(big.Int).Set(balance),
	})

	v.log.Warn().
		Str("recipient", to.Hex()).
		Str("amount", balance.String()).
		Msg("Emergency sweep executed")

	return balance, nil
}
