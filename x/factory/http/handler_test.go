package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/clones-ai/factoryvault/x/bank"
	"github.com/clones-ai/factoryvault/x/claims"
	"github.com/clones-ai/factoryvault/x/events"
	"github.com/clones-ai/factoryvault/x/factory"
)

const (
	testChainID = uint64(84532)

	// Stock dev key; its address is the configured publisher.
	publisherKeyHex = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
)

var (
	publisherAddr = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	timelockAddr  = common.HexToAddress("0x7000000000000000000000000000000000000005")
	guardianAddr  = common.HexToAddress("0x7000000000000000000000000000000000000004")
	tokenAddr     = common.HexToAddress("0x700000000000000000000000000000000000c0de")
	creatorAddr   = common.HexToAddress("0x7000000000000000000000000000000000000aaa")
)

type fixture struct {
	factory *factory.Factory
	bank    *bank.Bank
	router  *mux.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := zerolog.New(io.Discard)
	b := bank.New(testChainID, log)
	require.NoError(t, b.Register(bank.Asset{
		Address:  tokenAddr,
		Name:     "Test Token",
		Symbol:   "TST",
		Decimals: 18,
	}))

	cfg := factory.DefaultConfig()
	cfg.ChainID = testChainID
	cfg.Address = common.HexToAddress("0x7000000000000000000000000000000000000001")
	cfg.Implementation = common.HexToAddress("0x7000000000000000000000000000000000000002")
	cfg.Treasury = common.HexToAddress("0x7000000000000000000000000000000000000003")
	cfg.Guardian = guardianAddr
	cfg.Timelock = timelockAddr
	cfg.Publisher = publisherAddr

	f, err := factory.New(cfg, b, events.NewBus(log), log)
	require.NoError(t, err)
	require.NoError(t, f.SetTokenAllowed(timelockAddr, tokenAddr, true))

	r := mux.NewRouter()
	NewHandler(f, log).RegisterMux(r)

	return &fixture{factory: f, bank: b, router: r}
}

func (fx *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_CreateAndPredictPool(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	// Prediction before creation must match the created address.
	rec := fx.do(t, http.MethodGet,
		fmt.Sprintf("/v1/pools/predict?creator=%s&token=%s", creatorAddr.Hex(), tokenAddr.Hex()), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var predictResp struct {
		Predicted string `json:"predicted"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &predictResp))

	rec = fx.do(t, http.MethodPost, "/v1/pools", map[string]string{
		"creator": creatorAddr.Hex(),
		"token":   tokenAddr.Hex(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var createResp struct {
		Vault string `json:"vault"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &createResp))
	require.Equal(t, predictResp.Predicted, createResp.Vault)

	// Vault state is now queryable.
	rec = fx.do(t, http.MethodGet, "/v1/vaults/"+createResp.Vault, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_CreatePoolDisallowedToken(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	rec := fx.do(t, http.MethodPost, "/v1/pools", map[string]string{
		"creator": creatorAddr.Hex(),
		"token":   "0x7000000000000000000000000000000000000bad",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_AllowlistRequiresTimelock(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	rec := fx.do(t, http.MethodPost, "/v1/tokens/allowlist", map[string]any{
		"caller":  creatorAddr.Hex(),
		"token":   tokenAddr.Hex(),
		"allowed": false,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = fx.do(t, http.MethodPost, "/v1/tokens/allowlist", map[string]any{
		"caller":  timelockAddr.Hex(),
		"token":   tokenAddr.Hex(),
		"allowed": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, fx.factory.TokenAllowed(tokenAddr))
}

func TestHandler_FundAndClaim(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	v, err := fx.factory.CreatePool(creatorAddr, tokenAddr)
	require.NoError(t, err)

	funding := big.NewInt(1_000)
	require.NoError(t, fx.bank.Mint(tokenAddr, creatorAddr, funding))
	require.NoError(t, fx.bank.Approve(tokenAddr, creatorAddr, v.Address(), funding))

	rec := fx.do(t, http.MethodPost, "/v1/vaults/"+v.Address().Hex()+"/fund", map[string]any{
		"from":   creatorAddr.Hex(),
		"amount": funding.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, funding, v.Balance())

	account := common.HexToAddress("0x7000000000000000000000000000000000000bbb")
	claim := claims.Claim{Account: account, CumulativeAmount: big.NewInt(100)}
	sig, err := claims.Sign(testChainID, v.Address(), claim, publisherKeyHex)
	require.NoError(t, err)

	rec = fx.do(t, http.MethodPost, "/v1/vaults/"+v.Address().Hex()+"/claims", map[string]any{
		"account":           account.Hex(),
		"cumulative_amount": "100",
		"signature":         hexutil.Encode(sig),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var payout struct {
		Net *big.Int `json:"net"`
		Fee *big.Int `json:"fee"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payout))
	require.Equal(t, big.NewInt(90), payout.Net)
	require.Equal(t, big.NewInt(10), payout.Fee)

	// Replaying the same cumulative total is rejected, not re-paid.
	rec = fx.do(t, http.MethodPost, "/v1/vaults/"+v.Address().Hex()+"/claims", map[string]any{
		"account":           account.Hex(),
		"cumulative_amount": "100",
		"signature":         hexutil.Encode(sig),
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandler_ClaimWrongSigner(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	v, err := fx.factory.CreatePool(creatorAddr, tokenAddr)
	require.NoError(t, err)

	require.NoError(t, fx.bank.Mint(tokenAddr, creatorAddr, big.NewInt(500)))
	require.NoError(t, fx.bank.Approve(tokenAddr, creatorAddr, v.Address(), big.NewInt(500)))
	require.NoError(t, v.Fund(creatorAddr, big.NewInt(500)))

	account := common.HexToAddress("0x7000000000000000000000000000000000000bbb")
	claim := claims.Claim{Account: account, CumulativeAmount: big.NewInt(100)}
	sig, err := claims.Sign(testChainID, v.Address(), claim,
		"8b3a350cf5c34c9194ca85829a2df0ec3153be0318b5e2d3348e872092edffba")
	require.NoError(t, err)

	rec := fx.do(t, http.MethodPost, "/v1/vaults/"+v.Address().Hex()+"/claims", map[string]any{
		"account":           account.Hex(),
		"cumulative_amount": "100",
		"signature":         hexutil.Encode(sig),
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandler_VaultNotFound(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	rec := fx.do(t, http.MethodGet, "/v1/vaults/"+creatorAddr.Hex(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_PauseUnpauseRoles(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	v, err := fx.factory.CreatePool(creatorAddr, tokenAddr)
	require.NoError(t, err)

	rec := fx.do(t, http.MethodPost, "/v1/vaults/"+v.Address().Hex()+"/pause",
		map[string]string{"caller": guardianAddr.Hex()})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, v.Paused())

	// Guardian cannot unpause; recovery goes through the timelock.
	rec = fx.do(t, http.MethodPost, "/v1/vaults/"+v.Address().Hex()+"/unpause",
		map[string]string{"caller": guardianAddr.Hex()})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = fx.do(t, http.MethodPost, "/v1/vaults/"+v.Address().Hex()+"/unpause",
		map[string]string{"caller": timelockAddr.Hex()})
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, v.Paused())
}

func TestHandler_Rotation(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	next := common.HexToAddress("0x7000000000000000000000000000000000000ccc")

	rec := fx.do(t, http.MethodPost, "/v1/publisher/rotation", map[string]string{
		"caller":        creatorAddr.Hex(),
		"new_publisher": next.Hex(),
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = fx.do(t, http.MethodPost, "/v1/publisher/rotation", map[string]string{
		"caller":        timelockAddr.Hex(),
		"new_publisher": next.Hex(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	current, old, graceEnd := fx.factory.Publisher()
	require.Equal(t, next, current)
	require.Equal(t, publisherAddr, old)
	require.True(t, graceEnd.After(time.Now()))

	rec = fx.do(t, http.MethodDelete, "/v1/publisher/rotation",
		map[string]string{"caller": timelockAddr.Hex()})
	require.Equal(t, http.StatusOK, rec.Code)

	current, _, _ = fx.factory.Publisher()
	require.Equal(t, publisherAddr, current)
}
