// Package claims implements the EIP-712 typed-data scheme that authorizes
// vault payouts. A claim states the cumulative total ever owed to an account;
// the signed total superseding the previously recorded total is the protocol's
// replay defense, so there is no per-message nonce.
package claims

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// Domain constants bound into every claim digest.
const (
	DomainName    = "FactoryVault"
	DomainVersion = "1"
)

var (
	// ErrMalformedSignature marks signatures that cannot be parsed at all
	// (wrong length, zero bytes, invalid recovery id). Distinct from a vault's
	// wrong-signer rejection so relayers can tell corruption from key drift.
	ErrMalformedSignature = errors.New("malformed signature")

	domainTypeHash = crypto.Keccak256Hash(
		[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
	)
	claimTypeHash = crypto.Keccak256Hash(
		[]byte("Claim(address account,uint256 cumulativeAmount,uint256 deadline)"),
	)
)

// Claim is the ephemeral signed payload. Deadline is a unix timestamp;
// zero means the claim carries no expiry (signers predating the deadline
// revision).
type Claim struct {
	Account          common.Address `json:"account"`
	CumulativeAmount *big.Int       `json:"cumulative_amount"`
	Deadline         uint64         `json:"deadline,omitempty"`
}

// DomainSeparator computes the EIP-712 domain separator binding signatures to
// one vault on one chain.
func DomainSeparator(chainID uint64, vault common.Address) common.Hash {
	return crypto.Keccak256Hash(
		domainTypeHash.Bytes(),
		crypto.Keccak256([]byte(DomainName)),
		crypto.Keccak256([]byte(DomainVersion)),
		math.U256Bytes(new(big.Int).SetUint64(chainID)),
		common.LeftPadBytes(vault.Bytes(), 32),
	)
}

// Digest computes the final signable hash:
// keccak256(0x1901 ++ domainSeparator ++ structHash).
func Digest(chainID uint64, vault common.Address, claim Claim) (common.Hash, error) {
	if claim.CumulativeAmount == nil {
		return common.Hash{}, fmt.Errorf("cumulative amount is required")
	}
	if claim.CumulativeAmount.Sign() < 0 || claim.CumulativeAmount.BitLen() > 256 {
		return common.Hash{}, fmt.Errorf("cumulative amount out of uint256 range")
	}

	structHash := crypto.Keccak256Hash(
		claimTypeHash.Bytes(),
		common.LeftPadBytes(claim.Account.Bytes(), 32),
		math.U256Bytes(new(big.Int).Set(claim.CumulativeAmount)),
		math.U256Bytes(new(big.Int).SetUint64(claim.Deadline)),
	)

	return crypto.Keccak256Hash(
		[]byte{0x19, 0x01},
		DomainSeparator(chainID, vault).Bytes(),
		structHash.Bytes(),
	), nil
}

// Sign produces a 65-byte [R || S || V] signature over the claim digest with
// V in {27, 28}. This is the publisher-side half of the protocol, used by
// off-chain signers and tests.
func Sign(chainID uint64, vault common.Address, claim Claim, privKeyHex string) ([]byte, error) {
	key, err := crypto.HexToECDSA(privKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}

	digest, err := Digest(chainID, vault, claim)
	if err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign claim digest: %w", err)
	}

	// Ethereum wire format uses V = 27/28.
	sig[64] += 27
	return sig, nil
}

// Recover returns the address that signed the claim. Accepts V in {0, 1} and
// {27, 28}. Unparseable signatures fail with ErrMalformedSignature.
func Recover(chainID uint64, vault common.Address, claim Claim, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrMalformedSignature, len(sig))
	}

	allZero := true
	for _, b := range sig {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return common.Address{}, fmt.Errorf("%w: zero bytes", ErrMalformedSignature)
	}

	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	if normalized[64] > 1 {
		return common.Address{}, fmt.Errorf("%w: invalid recovery id %d", ErrMalformedSignature, sig[64])
	}

	digest, err := Digest(chainID, vault, claim)
	if err != nil {
		return common.Address{}, err
	}

	pubKey, err := crypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}

	return crypto.PubkeyToAddress(*pubKey), nil
}
