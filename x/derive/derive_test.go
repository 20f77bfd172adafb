package derive

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testCreator        = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testToken          = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testImplementation = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testFactory        = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

// manualSalt re-derives the salt from raw bytes, independent of the abi
// package, to pin the exact preimage layout: two 32-byte left-padded
// addresses followed by a 32-byte big-endian nonce.
func manualSalt(creator, token common.Address, nonce uint64) common.Hash {
	preimage := make([]byte, 96)
	copy(preimage[12:32], creator.Bytes())
	copy(preimage[44:64], token.Bytes())
	preimage[88] = byte(nonce >> 56)
	preimage[89] = byte(nonce >> 48)
	preimage[90] = byte(nonce >> 40)
	preimage[91] = byte(nonce >> 32)
	preimage[92] = byte(nonce >> 24)
	preimage[93] = byte(nonce >> 16)
	preimage[94] = byte(nonce >> 8)
	preimage[95] = byte(nonce)
	return crypto.Keccak256Hash(preimage)
}

func TestSaltMatchesIndependentDerivation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		nonce uint64
	}{
		{name: "nonce zero", nonce: 0},
		{name: "nonce one", nonce: 1},
		{name: "large nonce", nonce: 1<<40 + 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			salt, err := Salt(testCreator, testToken, tt.nonce)
			require.NoError(t, err)
			assert.Equal(t, manualSalt(testCreator, testToken, tt.nonce), salt)
		})
	}
}

func TestSaltSensitivity(t *testing.T) {
	t.Parallel()

	base, err := Salt(testCreator, testToken, 0)
	require.NoError(t, err)

	otherNonce, err := Salt(testCreator, testToken, 1)
	require.NoError(t, err)
	assert.NotEqual(t, base, otherNonce)

	otherCreator, err := Salt(testToken, testCreator, 0)
	require.NoError(t, err)
	assert.NotEqual(t, base, otherCreator, "argument order must matter")
}

func TestCloneInitCodeLayout(t *testing.T) {
	t.Parallel()

	code := CloneInitCode(testImplementation)
	require.Len(t, code, 55)

	assert.Equal(t, common.Hex2Bytes("3d602d80600a3d3981f3363d3d373d3d3d363d73"), code[:20])
	assert.Equal(t, testImplementation.Bytes(), code[20:40])
	assert.Equal(t, common.Hex2Bytes("5af43d82803e903d91602b57fd5bf3"), code[40:])

	assert.Equal(t, crypto.Keccak256Hash(code), CloneInitCodeHash(testImplementation))
}

func TestPredictAddressMatchesIndependentDerivation(t *testing.T) {
	t.Parallel()

	salt, err := Salt(testCreator, testToken, 3)
	require.NoError(t, err)

	// Raw CREATE2: keccak256(0xff ++ deployer ++ salt ++ initCodeHash)[12:].
	preimage := make([]byte, 0, 85)
	preimage = append(preimage, 0xff)
	preimage = append(preimage, testFactory.Bytes()...)
	preimage = append(preimage, salt.Bytes()...)
	preimage = append(preimage, crypto.Keccak256(CloneInitCode(testImplementation))...)
	want := common.BytesToAddress(crypto.Keccak256(preimage)[12:])

	assert.Equal(t, want, PredictAddress(testImplementation, salt, testFactory))
}

func TestPredictAddressDeterminism(t *testing.T) {
	t.Parallel()

	salt, err := Salt(testCreator, testToken, 0)
	require.NoError(t, err)

	first := PredictAddress(testImplementation, salt, testFactory)
	second := PredictAddress(testImplementation, salt, testFactory)
	assert.Equal(t, first, second)

	otherDeployer := PredictAddress(testImplementation, salt, testCreator)
	assert.NotEqual(t, first, otherDeployer)
}
