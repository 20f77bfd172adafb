package bank

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrPermitExpired   = errors.New("permit deadline passed")
	ErrPermitBadSigner = errors.New("permit signer is not the owner")
	ErrPermitMalformed = errors.New("malformed permit signature")

	permitDomainTypeHash = crypto.Keccak256Hash(
		[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
	)
	permitTypeHash = crypto.Keccak256Hash(
		[]byte("Permit(address owner,address spender,uint256 value,uint256 nonce,uint256 deadline)"),
	)
)

// PermitNonce returns the next expected permit nonce for owner on token.
func (b *Bank) PermitNonce(token, owner common.Address) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if byToken, ok := b.nonces[token]; ok {
		return byToken[owner]
	}
	return 0
}

// PermitDigest computes the EIP-2612 typed-data digest for a gasless approval.
// The domain name is the token's registered name, version "1".
func (b *Bank) PermitDigest(token, owner, spender common.Address, value *big.Int, nonce uint64, deadline uint64) (common.Hash, error) {
	asset, err := b.Asset(token)
	if err != nil {
		return common.Hash{}, err
	}
	if value == nil || value.Sign() < 0 {
		return common.Hash{}, ErrInvalidAmount
	}

	domainSeparator := crypto.Keccak256Hash(
		permitDomainTypeHash.Bytes(),
		crypto.Keccak256([]byte(asset.Name)),
		crypto.Keccak256([]byte("1")),
		math.U256Bytes(new(big.Int).SetUint64(b.chainID)),
		common.LeftPadBytes(token.Bytes(), 32),
	)

	structHash := crypto.Keccak256Hash(
		permitTypeHash.Bytes(),
		common.LeftPadBytes(owner.Bytes(), 32),
		common.LeftPadBytes(spender.Bytes(), 32),
		math.U256Bytes(new(big.Int).Set(value)),
		math.U256Bytes(new(big.Int).SetUint64(nonce)),
		math.U256Bytes(new(big.Int).SetUint64(deadline)),
	)

	return crypto.Keccak256Hash(
		[]byte{0x19, 0x01},
		domainSeparator.Bytes(),
		structHash.Bytes(),
	), nil
}

// SignPermit produces a permit signature with the owner's key. Off-chain
// tooling and test helper.
func (b *Bank) SignPermit(token, owner, spender common.Address, value *big.Int, deadline uint64, privKeyHex string) ([]byte, error) {
	key, err := crypto.HexToECDSA(privKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse permit key: %w", err)
	}

	digest, err := b.PermitDigest(token, owner, spender, value, b.PermitNonce(token, owner), deadline)
	if err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign permit: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// Permit verifies an owner-signed approval and sets spender's allowance,
// consuming the owner's nonce.
func (b *Bank) Permit(token, owner, spender common.Address, value *big.Int, deadline uint64, sig []byte) error {
	if deadline != 0 && time.Now().Unix() > int64(deadline) {
		return ErrPermitExpired
	}
	if spender == (common.Address{}) || owner == (common.Address{}) {
		return ErrZeroAddress
	}

	nonce := b.PermitNonce(token, owner)
	digest, err := b.PermitDigest(token, owner, spender, value, nonce, deadline)
	if err != nil {
		return err
	}

	signer, err := recoverSigner(digest, sig)
	if err != nil {
		return err
	}
	if signer != owner {
		return fmt.Errorf("%w: recovered %s", ErrPermitBadSigner, signer.Hex())
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	allowances, ok := b.allowances[token]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAssetUnknown, token.Hex())
	}

	b.setAllowance(allowances, owner, spender, value)
	b.nonces[token][owner] = nonce + 1
	return nil
}

func recoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrPermitMalformed, len(sig))
	}

	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	if normalized[64] > 1 {
		return common.Address{}, fmt.Errorf("%w: invalid recovery id", ErrPermitMalformed)
	}

	pubKey, err := crypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrPermitMalformed, err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}
