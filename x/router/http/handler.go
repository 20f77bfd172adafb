// Package http exposes the claim router over the HTTP API.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"

	apicommon "github.com/clones-ai/factoryvault/server/api"
	"github.com/clones-ai/factoryvault/x/router"
)

type Handler struct {
	router *router.Router
	log    zerolog.Logger
}

func NewHandler(rt *router.Router, log zerolog.Logger) *Handler {
	return &Handler{
		router: rt,
		log:    log.With().Str("component", "router-http").Logger(),
	}
}

func (h *Handler) handleRouterState(w http.ResponseWriter, r *http.Request) {
	apicommon.WriteJSON(w, http.StatusOK, map[string]any{
		"max_batch_size": h.router.CurrentMaxBatchSize(),
	})
}

// claimItemWire is the JSON shape of one batch entry. Amounts are decimal
// strings and signatures 0x-prefixed hex; encoding/json would otherwise
// expect base64 for the raw bytes.
type claimItemWire struct {
	Vault            string `json:"vault"`
	Account          string `json:"account"`
	CumulativeAmount string `json:"cumulative_amount"`
	Deadline         uint64 `json:"deadline,omitempty"`
	Signature        string `json:"signature"`
}

type batchRequest struct {
	Caller string          `json:"caller"`
	Items  []claimItemWire `json:"items"`
}

func (h *Handler) handleBatchClaims(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", "Invalid JSON body", err.Error())
		return
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}

	items := make([]router.ClaimItem, 0, len(req.Items))
	for i, wire := range req.Items {
		item, convErr := decodeClaimItem(i, wire)
		if convErr != nil {
			apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", convErr.Error(), nil)
			return
		}
		items = append(items, item)
	}

	result, err := h.router.ClaimAll(caller, items)
	if err != nil {
		switch {
		case errors.Is(err, router.ErrEmptyBatch), errors.Is(err, router.ErrBatchTooLarge):
			apicommon.WriteError(w, r, http.StatusBadRequest, "invalid_batch", err.Error(), nil)
		default:
			apicommon.WriteError(w, r, http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return
	}

	apicommon.WriteJSON(w, http.StatusOK, result)
}

func decodeClaimItem(index int, wire claimItemWire) (router.ClaimItem, error) {
	vaultAddr, err := parseAddress(fmt.Sprintf("items[%d].vault", index), wire.Vault)
	if err != nil {
		return router.ClaimItem{}, err
	}
	account, err := parseAddress(fmt.Sprintf("items[%d].account", index), wire.Account)
	if err != nil {
		return router.ClaimItem{}, err
	}
	amount, err := parseAmount(fmt.Sprintf("items[%d].cumulative_amount", index), wire.CumulativeAmount)
	if err != nil {
		return router.ClaimItem{}, err
	}
	sig, err := hexutil.Decode(wire.Signature)
	if err != nil {
		return router.ClaimItem{}, fmt.Errorf("items[%d].signature: %w", index, err)
	}

	return router.ClaimItem{
		Vault:            vaultAddr,
		Account:          account,
		CumulativeAmount: amount,
		Deadline:         wire.Deadline,
		Signature:        sig,
	}, nil
}

type factoryApprovalRequest struct {
	Caller   string `json:"caller"`
	Factory  string `json:"factory"`
	Approved bool   `json:"approved"`
}

func (h *Handler) handleFactoryApproval(w http.ResponseWriter, r *http.Request) {
	var req factoryApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", "Invalid JSON body", err.Error())
		return
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}
	factoryAddr, err := parseAddress("factory", req.Factory)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}

	if err := h.router.SetFactoryApproved(caller, factoryAddr, req.Approved); err != nil {
		h.writeRouterError(w, r, err)
		return
	}

	apicommon.WriteJSON(w, http.StatusOK, map[string]any{
		"factory":  factoryAddr.Hex(),
		"approved": req.Approved,
	})
}

type maxBatchSizeRequest struct {
	Caller string `json:"caller"`
	Size   int    `json:"size"`
}

func (h *Handler) handleMaxBatchSize(w http.ResponseWriter, r *http.Request) {
	var req maxBatchSizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", "Invalid JSON body", err.Error())
		return
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}

	if err := h.router.SetMaxBatchSize(caller, req.Size); err != nil {
		h.writeRouterError(w, r, err)
		return
	}

	apicommon.WriteJSON(w, http.StatusOK, map[string]any{
		"max_batch_size": h.router.CurrentMaxBatchSize(),
	})
}

func (h *Handler) writeRouterError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, router.ErrUnauthorized):
		apicommon.WriteError(w, r, http.StatusForbidden, "unauthorized", err.Error(), nil)
	case errors.Is(err, router.ErrBadBatchSize):
		apicommon.WriteError(w, r, http.StatusBadRequest, "invalid_parameter", err.Error(), nil)
	default:
		apicommon.WriteError(w, r, http.StatusInternalServerError, "internal_error", err.Error(), nil)
	}
}

func parseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s: not a hex address: %q", field, value)
	}
	return common.HexToAddress(value), nil
}

func parseAmount(field, value string) (*big.Int, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil, fmt.Errorf("%s is required", field)
	}

	amount, ok := new(big.Int).SetString(v, 10)
	if !ok {
		return nil, fmt.Errorf("%s: not a decimal integer: %q", field, value)
	}
	return amount, nil
}
