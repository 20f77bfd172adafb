package http

import (
	"bytes"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/clones-ai/factoryvault/x/events"
	"github.com/clones-ai/factoryvault/x/router"
	"github.com/clones-ai/factoryvault/x/vault"
)

var (
	ownerAddr   = common.HexToAddress("0x9000000000000000000000000000000000000001")
	factoryAddr = common.HexToAddress("0x9000000000000000000000000000000000000002")
	vaultAddr   = common.HexToAddress("0x9000000000000000000000000000000000000003")
	accountAddr = common.HexToAddress("0x9000000000000000000000000000000000000004")
)

// stubTarget pays every claim at a fixed 10% fee.
type stubTarget struct {
	addr common.Address
}

func (s *stubTarget) Address() common.Address { return s.addr }

func (s *stubTarget) Factory() common.Address { return factoryAddr }

func (s *stubTarget) PayWithSig(_ common.Address, cumulativeAmount *big.Int, _ uint64, _ []byte) (vault.Payout, error) {
	fee := new(big.Int).Div(cumulativeAmount, big.NewInt(10))
	return vault.Payout{
		Gross:         new(big.Int).Set(cumulativeAmount),
		Fee:           fee,
		Net:           new(big.Int).Sub(cumulativeAmount, fee),
		NewCumulative: new(big.Int).Set(cumulativeAmount),
	}, nil
}

type mapResolver map[common.Address]router.ClaimTarget

func (m mapResolver) Resolve(addr common.Address) (router.ClaimTarget, bool) {
	target, ok := m[addr]
	return target, ok
}

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()

	log := zerolog.New(io.Discard)
	cfg := router.DefaultConfig()
	cfg.Owner = ownerAddr

	rt, err := router.New(cfg, mapResolver{vaultAddr: &stubTarget{addr: vaultAddr}}, events.NewBus(log), log)
	require.NoError(t, err)
	require.NoError(t, rt.SetFactoryApproved(ownerAddr, factoryAddr, true))

	r := mux.NewRouter()
	NewHandler(rt, log).RegisterMux(r)
	return r
}

func post(t *testing.T, r *mux.Router, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	b, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_BatchClaims(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	sig := hexutil.Encode(bytes.Repeat([]byte{0x11}, 65))
	rec := post(t, r, routeBatchClaims, map[string]any{
		"caller": ownerAddr.Hex(),
		"items": []map[string]any{
			{
				"vault":             vaultAddr.Hex(),
				"account":           accountAddr.Hex(),
				"cumulative_amount": "100",
				"signature":         sig,
			},
			{
				// Unknown vault: isolated failure, not a batch abort.
				"vault":             accountAddr.Hex(),
				"account":           accountAddr.Hex(),
				"cumulative_amount": "50",
				"signature":         sig,
			},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result router.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, 1, result.Successful)
	require.Equal(t, 1, result.Failed)
	require.Equal(t, big.NewInt(100), result.TotalGross)
	require.Equal(t, big.NewInt(90), result.TotalNet)
}

func TestHandler_BatchClaimsEmpty(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	rec := post(t, r, routeBatchClaims, map[string]any{
		"caller": ownerAddr.Hex(),
		"items":  []map[string]any{},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_BatchClaimsBadItem(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	rec := post(t, r, routeBatchClaims, map[string]any{
		"caller": ownerAddr.Hex(),
		"items": []map[string]any{
			{
				"vault":             "not-an-address",
				"account":           accountAddr.Hex(),
				"cumulative_amount": "100",
				"signature":         "0x11",
			},
		},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Governance(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	rec := post(t, r, routeMaxBatchSize, map[string]any{
		"caller": accountAddr.Hex(),
		"size":   10,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = post(t, r, routeMaxBatchSize, map[string]any{
		"caller": ownerAddr.Hex(),
		"size":   10,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = post(t, r, routeMaxBatchSize, map[string]any{
		"caller": ownerAddr.Hex(),
		"size":   0,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, r, routeFactories, map[string]any{
		"caller":   ownerAddr.Hex(),
		"factory":  factoryAddr.Hex(),
		"approved": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, routeRouter, nil)
	recState := httptest.NewRecorder()
	r.ServeHTTP(recState, req)
	require.Equal(t, http.StatusOK, recState.Code)

	var state struct {
		MaxBatchSize int `json:"max_batch_size"`
	}
	require.NoError(t, json.Unmarshal(recState.Body.Bytes(), &state))
	require.Equal(t, 10, state.MaxBatchSize)
}
