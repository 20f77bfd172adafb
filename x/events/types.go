// Package events defines the protocol's emitted events and an in-process bus
// for indexers and the HTTP API. The event set mirrors what an off-chain
// indexer must consume to reconcile protocol state.
package events

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Type identifies an event payload.
type Type string

const (
	TypePoolCreated                 Type = "pool_created"
	TypeVaultFunded                 Type = "vault_funded"
	TypeClaimPaid                   Type = "claim_paid"
	TypeClaimFailed                 Type = "claim_failed"
	TypeBatchClaimed                Type = "batch_claimed"
	TypePublisherRotationInitiated  Type = "publisher_rotation_initiated"
	TypePublisherRotationCancelled  Type = "publisher_rotation_cancelled"
	TypeTokenAllowlistUpdated       Type = "token_allowlist_updated"
	TypePausedChanged               Type = "paused_changed"
	TypeEmergencySweepNoticeCreated Type = "emergency_sweep_notice"
	TypeEmergencySwept              Type = "emergency_swept"
)

// Event is an emitted protocol event with its payload.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// PoolCreated is emitted by the factory for every deployed vault.
type PoolCreated struct {
	Creator common.Address `json:"creator"`
	Vault   common.Address `json:"vault"`
	Token   common.Address `json:"token"`
	Salt    common.Hash    `json:"salt"`
	Nonce   uint64         `json:"nonce"`
}

// VaultFunded is emitted when a deposit lands in a vault.
type VaultFunded struct {
	Vault  common.Address `json:"vault"`
	Funder common.Address `json:"funder"`
	Amount *big.Int       `json:"amount"`
}

// ClaimPaid is the minimal per-claim success event, sized for cheap indexing:
// account, token and the new cumulative total are enough to rebuild the ledger.
type ClaimPaid struct {
	Vault         common.Address `json:"vault"`
	Account       common.Address `json:"account"`
	Token         common.Address `json:"token"`
	NewCumulative *big.Int       `json:"new_cumulative"`
}

// ClaimFailed records a per-item batch failure with a typed reason so relayers
// can distinguish "already claimed" from "paused" from "bad signature".
type ClaimFailed struct {
	Vault   common.Address `json:"vault"`
	Account common.Address `json:"account"`
	Reason  string         `json:"reason"`
}

// BatchClaimed is the mandatory batch summary; it is emitted even when every
// item in the batch failed.
type BatchClaimed struct {
	Caller     common.Address `json:"caller"`
	Successful int            `json:"successful"`
	Failed     int            `json:"failed"`
	TotalGross *big.Int       `json:"total_gross"`
	TotalFee   *big.Int       `json:"total_fee"`
	TotalNet   *big.Int       `json:"total_net"`
}

// PublisherRotationInitiated is emitted when a new publisher key activates.
type PublisherRotationInitiated struct {
	OldPublisher common.Address `json:"old_publisher"`
	NewPublisher common.Address `json:"new_publisher"`
	GraceEnd     time.Time      `json:"grace_end"`
}

// PublisherRotationCancelled is emitted when an in-grace rotation rolls back.
type PublisherRotationCancelled struct {
	RestoredPublisher  common.Address `json:"restored_publisher"`
	CancelledPublisher common.Address `json:"cancelled_publisher"`
}

// TokenAllowlistUpdated is emitted on allow-list toggles.
type TokenAllowlistUpdated struct {
	Token   common.Address `json:"token"`
	Allowed bool           `json:"allowed"`
}

// PausedChanged is emitted on factory or vault pause transitions.
type PausedChanged struct {
	Subject common.Address `json:"subject"`
	Paused  bool           `json:"paused"`
}

// EmergencySweepNotice is the public on-record justification preceding a sweep.
type EmergencySweepNotice struct {
	Vault         common.Address `json:"vault"`
	Recipient     common.Address `json:"recipient"`
	Justification string         `json:"justification"`
	ExecutableAt  time.Time      `json:"executable_at"`
}

// EmergencySwept records a completed custodial sweep.
type EmergencySwept struct {
	Vault     common.Address `json:"vault"`
	Recipient common.Address `json:"recipient"`
	Amount    *big.Int       `json:"amount"`
}
