// Package derive implements the deterministic clone-address scheme used by the
// vault factory: an EIP-1167 minimal proxy deployed via CREATE2 with a salt
// bound to (creator, token, nonce). Every function is pure; off-chain address
// prediction must reproduce on-chain deployment byte-for-byte, so the encoding
// here is the protocol's tightest cross-environment contract.
package derive

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EIP-1167 minimal proxy bytecode template: prefix + implementation + suffix.
var (
	clonePrefix = common.Hex2Bytes("3d602d80600a3d3981f3363d3d373d3d3d363d73")
	cloneSuffix = common.Hex2Bytes("5af43d82803e903d91602b57fd5bf3")
)

var saltArguments abi.Arguments

func init() {
	addressType, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(fmt.Sprintf("derive: address type: %v", err))
	}
	uint256Type, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(fmt.Sprintf("derive: uint256 type: %v", err))
	}

	saltArguments = abi.Arguments{
		{Name: "creator", Type: addressType},
		{Name: "token", Type: addressType},
		{Name: "nonce", Type: uint256Type},
	}
}

// Salt computes keccak256(abi.encode(creator, token, nonce)). Argument order
// and 32-byte padding must not change: the factory and every off-chain
// predictor hash the exact same byte layout.
func Salt(creator, token common.Address, nonce uint64) (common.Hash, error) {
	packed, err := saltArguments.Pack(creator, token, new(big.Int).SetUint64(nonce))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode salt preimage: %w", err)
	}
	return crypto.Keccak256Hash(packed), nil
}

// CloneInitCode returns the EIP-1167 creation bytecode for a proxy delegating
// to implementation.
func CloneInitCode(implementation common.Address) []byte {
	code := make([]byte, 0, len(clonePrefix)+common.AddressLength+len(cloneSuffix))
	code = append(code, clonePrefix...)
	code = append(code, implementation.Bytes()...)
	code = append(code, cloneSuffix...)
	return code
}

// CloneInitCodeHash returns keccak256 of the proxy creation bytecode.
func CloneInitCodeHash(implementation common.Address) common.Hash {
	return crypto.Keccak256Hash(CloneInitCode(implementation))
}

// PredictAddress computes the CREATE2 address for a minimal proxy of
// implementation deployed by deployer with the given salt:
// keccak256(0xff ++ deployer ++ salt ++ keccak256(initCode))[12:].
func PredictAddress(implementation common.Address, salt common.Hash, deployer common.Address) common.Address {
	initCodeHash := CloneInitCodeHash(implementation)
	return crypto.CreateAddress2(deployer, salt, initCodeHash.Bytes())
}
