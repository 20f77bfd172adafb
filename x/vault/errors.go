package vault

import "errors"

var (
	// ErrPaused rejects funds-moving operations while the vault is paused.
	ErrPaused = errors.New("vault is paused")

	// ErrNotPaused guards operations that require an active pause first.
	ErrNotPaused = errors.New("vault is not paused")

	// ErrUnauthorized rejects callers that do not hold the required role.
	ErrUnauthorized = errors.New("caller not authorized")

	// ErrNotIncreasing rejects claims whose cumulative amount does not
	// strictly exceed the recorded total. This is the replay defense.
	ErrNotIncreasing = errors.New("cumulative amount not increasing")

	// ErrDeadlineExpired rejects claims signed against a past deadline.
	ErrDeadlineExpired = errors.New("claim deadline passed")

	// ErrDeadlineTooFar rejects deadlines beyond the maximum future window.
	ErrDeadlineTooFar = errors.New("claim deadline too far in the future")

	// ErrUnauthorizedSigner rejects well-formed signatures from a key that is
	// neither the current publisher nor the in-grace previous one.
	ErrUnauthorizedSigner = errors.New("signer is not an authorized publisher")

	// ErrInsufficientFunds rejects claims exceeding the vault balance.
	ErrInsufficientFunds = errors.New("vault balance below claimed amount")

	// ErrDepositMismatch rejects deposits whose measured balance delta
	// diverges from the requested amount (fee-on-transfer tokens).
	ErrDepositMismatch = errors.New("deposit balance delta mismatch")

	// ErrNotDormant guards the sweep notice: the vault must have seen no
	// claims for the full dormancy window.
	ErrNotDormant = errors.New("vault not dormant long enough")

	// ErrNoNotice guards sweep execution without a pending notice.
	ErrNoNotice = errors.New("no emergency sweep notice pending")

	// ErrNoticeImmature guards sweep execution before the notice period ends.
	ErrNoticeImmature = errors.New("emergency sweep notice period not elapsed")

	// ErrNoticeRecipient rejects sweep execution to a recipient other than
	// the one the public notice named.
	ErrNoticeRecipient = errors.New("sweep recipient does not match notice")

	// ErrNothingToSweep rejects sweeping an empty vault.
	ErrNothingToSweep = errors.New("vault holds no balance")

	// ErrZeroAddress rejects zero-address parameters.
	ErrZeroAddress = errors.New("zero address")

	// ErrInvalidAmount rejects non-positive amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)
