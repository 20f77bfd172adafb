package factory

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/clones-ai/factoryvault/x/events"
)

// Publisher rotation is a two-state machine: Stable and RotationInGrace.
// Initiating a rotation activates the new key immediately and opens a grace
// window during which the previous key also authorizes claims. Immediate
// activation means there is never a moment with no valid signer; the price is
// a brief dual-trust period.

var (
	ErrRotationActive = errors.New("publisher rotation already in grace")
	ErrNoRotation     = errors.New("no publisher rotation in grace")
	ErrSamePublisher  = errors.New("new publisher equals current publisher")
)

// Publisher implements vault.Authority: the current signer, the previous one
// and the grace window end. Outside a rotation the previous signer is the
// zero address.
func (f *Factory) Publisher() (current, old common.Address, graceEnd time.Time) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.rotationActiveLocked() {
		return f.publisher, common.Address{}, time.Time{}
	}
	return f.publisher, f.oldPublisher, f.graceEnd
}

// RotationInGrace reports whether a rotation is currently in its grace window.
func (f *Factory) RotationInGrace() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.rotationActiveLocked()
}

// InitiatePublisherRotation activates newPublisher immediately and opens the
// grace window for the outgoing key. At most one rotation may be in flight.
// Timelock-gated.
func (f *Factory) InitiatePublisherRotation(caller, newPublisher common.Address) error {
	if caller != f.cfg.Timelock {
		return fmt.Errorf("%w: timelock required", ErrUnauthorized)
	}
	if newPublisher == (common.Address{}) {
		return ErrZeroAddress
	}

	f.mu.Lock()

	if newPublisher == f.publisher {
		f.mu.Unlock()
		return ErrSamePublisher
	}
	if f.rotationActiveLocked() {
		f.mu.Unlock()
		return fmt.Errorf("%w: grace ends %s", ErrRotationActive, f.graceEnd.UTC().Format(time.RFC3339))
	}

	old := f.publisher
	graceEnd := f.now().Add(f.cfg.RotationGrace)

	f.oldPublisher = old
	f.publisher = newPublisher
	f.graceEnd = graceEnd
	f.mu.Unlock()

	f.metrics.RecordRotation("initiated")
	f.publish(events.TypePublisherRotationInitiated, events.PublisherRotationInitiated{
		OldPublisher: old,
		NewPublisher: newPublisher,
		GraceEnd:     graceEnd,
	})

	f.log.Info().
		Str("old_publisher", old.Hex()).
		Str("new_publisher", newPublisher.Hex()).
		Time("grace_end", graceEnd).
		Msg("Publisher rotation initiated")

	return nil
}

// CancelPublisherRotation restores the previous publisher. Only valid while
// the grace window is open; after it closes the rotation is final.
func (f *Factory) CancelPublisherRotation(caller common.Address) error {
	if caller != f.cfg.Timelock {
		return fmt.Errorf("%w: timelock required", ErrUnauthorized)
	}

	f.mu.Lock()

	if !f.rotationActiveLocked() {
		f.mu.Unlock()
		return ErrNoRotation
	}

	cancelled := f.publisher
	restored := f.oldPublisher

	f.publisher = restored
	f.oldPublisher = common.Address{}
	f.graceEnd = time.Time{}
	f.mu.Unlock()

	f.metrics.RecordRotation("cancelled")
	f.publish(events.TypePublisherRotationCancelled, events.PublisherRotationCancelled{
		RestoredPublisher:  restored,
		CancelledPublisher: cancelled,
	})

	f.log.Warn().
		Str("restored_publisher", restored.Hex()).
		Str("cancelled_publisher", cancelled.Hex()).
		Msg("Publisher rotation cancelled")

	return nil
}

func (f *Factory) rotationActiveLocked() bool {
	return !f.graceEnd.IsZero() && f.now().Before(f.graceEnd)
}
