package router

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clones-ai/factoryvault/x/events"
	"github.com/clones-ai/factoryvault/x/vault"
)

var (
	ownerAddr       = common.HexToAddress("0x7000000000000000000000000000000000000007")
	goodFactory     = common.HexToAddress("0x3000000000000000000000000000000000000003")
	rogueFactory    = common.HexToAddress("0xBad0000000000000000000000000000000000bad")
	relayerAddr     = common.HexToAddress("0xe1a0000000000000000000000000000000000001")
	accountAddr     = common.HexToAddress("0x8000000000000000000000000000000000000008")
	baseVaultAddr   = common.HexToAddress("0x2000000000000000000000000000000000000000")
	missingVaultAdr = common.HexToAddress("0xF000000000000000000000000000000000000000")
)

// stubTarget is a scriptable vault stand-in.
type stubTarget struct {
	addr    common.Address
	factory common.Address
	pay     func(account common.Address, cumulative *big.Int) (vault.Payout, error)
}

func (s *stubTarget) Address() common.Address { return s.addr }
func (s *stubTarget) Factory() common.Address { return s.factory }
func (s *stubTarget) PayWithSig(account common.Address, cumulative *big.Int, _ uint64, _ []byte) (vault.Payout, error) {
	return s.pay(account, cumulative)
}

// mapResolver resolves targets from a fixed map.
type mapResolver map[common.Address]ClaimTarget

func (m mapResolver) Resolve(addr common.Address) (ClaimTarget, bool) {
	target, ok := m[addr]
	return target, ok
}

func payOK(_ common.Address, cumulative *big.Int) (vault.Payout, error) {
	fee := new(big.Int).Div(cumulative, big.NewInt(10))
	return vault.Payout{
		Gross:         new(big.Int).Set(cumulative),
		Fee:           fee,
		Net:           new(big.Int).Sub(cumulative, fee),
		NewCumulative: new(big.Int).Set(cumulative),
	}, nil
}

func vaultAddrN(i int) common.Address {
	addr := baseVaultAddr
	addr[19] = byte(i + 1)
	return addr
}

func newTestRouter(t *testing.T, resolver Resolver) *Router {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Owner = ownerAddr

	r, err := New(cfg, resolver, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, r.SetFactoryApproved(ownerAddr, goodFactory, true))
	return r
}

func claimItems(n int) []ClaimItem {
	items := make([]ClaimItem, n)
	for i := range items {
		items[i] = ClaimItem{
			Vault:            vaultAddrN(i),
			Account:          accountAddr,
			CumulativeAmount: big.NewInt(int64(100 * (i + 1))),
			Signature:        make([]byte, 65),
		}
	}
	return items
}

func TestClaimAllHappyPath(t *testing.T) {
	t.Parallel()

	resolver := mapResolver{}
	for i := 0; i < 3; i++ {
		resolver[vaultAddrN(i)] = &stubTarget{addr: vaultAddrN(i), factory: goodFactory, pay: payOK}
	}

	r := newTestRouter(t, resolver)
	result, err := r.ClaimAll(relayerAddr, claimItems(3))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Successful)
	assert.Equal(t, 0, result.Failed)
	// 100 + 200 + 300 gross, 10% fee each.
	assert.Equal(t, big.NewInt(600), result.TotalGross)
	assert.Equal(t, big.NewInt(60), result.TotalFee)
	assert.Equal(t, big.NewInt(540), result.TotalNet)

	for i, item := range result.Items {
		assert.True(t, item.OK, "item %d", i)
		require.NotNil(t, item.Payout)
	}
}

// TestBatchIsolation is the router's defining property: one bad vault in a
// batch fails alone, every other claimant still gets paid.
func TestBatchIsolation(t *testing.T) {
	t.Parallel()

	const n = 5
	resolver := mapResolver{}
	for i := 0; i < n; i++ {
		resolver[vaultAddrN(i)] = &stubTarget{addr: vaultAddrN(i), factory: goodFactory, pay: payOK}
	}
	// Item 2's vault self-reports a factory outside the approved set.
	resolver[vaultAddrN(2)] = &stubTarget{addr: vaultAddrN(2), factory: rogueFactory, pay: payOK}

	r := newTestRouter(t, resolver)
	result, err := r.ClaimAll(relayerAddr, claimItems(n))
	require.NoError(t, err)

	assert.Equal(t, n-1, result.Successful)
	assert.Equal(t, 1, result.Failed)
	assert.False(t, result.Items[2].OK)
	assert.Equal(t, "validation", result.Items[2].Stage)
	assert.Equal(t, ReasonFactoryNotApproved, result.Items[2].Reason)
}

func TestUnreachableVault(t *testing.T) {
	t.Parallel()

	resolver := mapResolver{
		vaultAddrN(0): &stubTarget{addr: vaultAddrN(0), factory: goodFactory, pay: payOK},
	}

	r := newTestRouter(t, resolver)
	items := claimItems(2)
	items[1].Vault = missingVaultAdr

	result, err := r.ClaimAll(relayerAddr, items)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, ReasonVaultUnreachable, result.Items[1].Reason)
}

func TestExecutionFailureReasons(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		reason string
	}{
		{name: "already claimed", err: fmt.Errorf("wrapped: %w", vault.ErrNotIncreasing), reason: ReasonNotIncreasing},
		{name: "paused", err: vault.ErrPaused, reason: ReasonPaused},
		{name: "unauthorized signer", err: vault.ErrUnauthorizedSigner, reason: ReasonUnauthorizedSigner},
		{name: "insufficient funds", err: vault.ErrInsufficientFunds, reason: ReasonInsufficientFunds},
		{name: "expired", err: vault.ErrDeadlineExpired, reason: ReasonExpired},
		{name: "untyped revert", err: fmt.Errorf("boom"), reason: ReasonExecutionReverted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			failErr := tt.err
			resolver := mapResolver{
				vaultAddrN(0): &stubTarget{
					addr:    vaultAddrN(0),
					factory: goodFactory,
					pay: func(common.Address, *big.Int) (vault.Payout, error) {
						return vault.Payout{}, failErr
					},
				},
			}

			r := newTestRouter(t, resolver)
			result, err := r.ClaimAll(relayerAddr, claimItems(1))
			require.NoError(t, err, "a failing claim must not fail the batch")

			assert.Equal(t, 0, result.Successful)
			assert.Equal(t, 1, result.Failed)
			assert.Equal(t, "execution", result.Items[0].Stage)
			assert.Equal(t, tt.reason, result.Items[0].Reason)
		})
	}
}

func TestPanicIsolation(t *testing.T) {
	t.Parallel()

	resolver := mapResolver{
		vaultAddrN(0): &stubTarget{
			addr:    vaultAddrN(0),
			factory: goodFactory,
			pay: func(common.Address, *big.Int) (vault.Payout, error) {
				panic("malformed return")
			},
		},
		vaultAddrN(1): &stubTarget{addr: vaultAddrN(1), factory: goodFactory, pay: payOK},
	}

	r := newTestRouter(t, resolver)
	result, err := r.ClaimAll(relayerAddr, claimItems(2))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, ReasonLowLevelFailure, result.Items[0].Reason)
	assert.True(t, result.Items[1].OK)
}

func TestBatchBounds(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, mapResolver{})

	_, err := r.ClaimAll(relayerAddr, nil)
	require.ErrorIs(t, err, ErrEmptyBatch)

	_, err = r.ClaimAll(relayerAddr, claimItems(DefaultConfig().MaxBatchSize+1))
	require.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestSummaryEventAlwaysEmitted(t *testing.T) {
	t.Parallel()

	bus := events.NewBus(zerolog.Nop())
	defer bus.Close()
	sub := bus.Subscribe()

	cfg := DefaultConfig()
	cfg.Owner = ownerAddr
	r, err := New(cfg, mapResolver{}, bus, zerolog.Nop())
	require.NoError(t, err)

	// Every item fails validation; the summary must still appear.
	result, err := r.ClaimAll(relayerAddr, claimItems(2))
	require.NoError(t, err)
	require.Equal(t, 2, result.Failed)

	var summary *events.BatchClaimed
	for i := 0; i < 3; i++ {
		evt := <-sub
		if evt.Type == events.TypeBatchClaimed {
			payload := evt.Payload.(events.BatchClaimed)
			summary = &payload
			break
		}
		require.Equal(t, events.TypeClaimFailed, evt.Type)
	}

	require.NotNil(t, summary)
	assert.Equal(t, 0, summary.Successful)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, relayerAddr, summary.Caller)
}

func TestGovernanceGates(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, mapResolver{})
	stranger := common.HexToAddress("0x0000000000000000000000000000000000000123")

	require.ErrorIs(t, r.SetFactoryApproved(stranger, goodFactory, false), ErrUnauthorized)
	require.ErrorIs(t, r.SetMaxBatchSize(stranger, 10), ErrUnauthorized)

	require.ErrorIs(t, r.SetMaxBatchSize(ownerAddr, 0), ErrBadBatchSize)
	require.ErrorIs(t, r.SetMaxBatchSize(ownerAddr, MaxBatchSize+1), ErrBadBatchSize)

	require.NoError(t, r.SetMaxBatchSize(ownerAddr, 10))
	assert.Equal(t, 10, r.CurrentMaxBatchSize())

	_, err := r.ClaimAll(relayerAddr, claimItems(11))
	require.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.Error(t, cfg.Validate(), "missing owner")

	cfg.Owner = ownerAddr
	cfg.MaxBatchSize = 0
	require.Error(t, cfg.Validate())

	cfg.MaxBatchSize = MaxBatchSize + 1
	require.Error(t, cfg.Validate())

	cfg.MaxBatchSize = 50
	require.NoError(t, cfg.Validate())
}
