// Package http exposes the factory and its vaults over the HTTP API. All
// amounts travel as decimal strings and signatures as 0x-prefixed hex.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	apicommon "github.com/clones-ai/factoryvault/server/api"
	"github.com/clones-ai/factoryvault/x/factory"
	"github.com/clones-ai/factoryvault/x/vault"
)

type Handler struct {
	factory *factory.Factory
	log     zerolog.Logger
}

func NewHandler(f *factory.Factory, log zerolog.Logger) *Handler {
	return &Handler{
		factory: f,
		log:     log.With().Str("component", "factory-http").Logger(),
	}
}

func (h *Handler) handleFactoryState(w http.ResponseWriter, r *http.Request) {
	apicommon.WriteJSON(w, http.StatusOK, h.factory.Stats())
}

type createPoolRequest struct {
	Creator string `json:"creator"`
	Token   string `json:"token"`
}

func (h *Handler) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", "Invalid JSON body", err.Error())
		return
	}

	creator, err := parseAddress("creator", req.Creator)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}
	token, err := parseAddress("token", req.Token)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}

	v, err := h.factory.CreatePool(creator, token)
	if err != nil {
		h.writeFactoryError(w, r, err)
		return
	}

	apicommon.WriteJSON(w, http.StatusCreated, map[string]any{
		"vault":   v.Address().Hex(),
		"token":   v.Token().Hex(),
		"creator": v.Creator().Hex(),
		"factory": v.Factory().Hex(),
	})
}

func (h *Handler) handlePredictPool(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	creator, err := parseAddress("creator", q.Get("creator"))
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}
	token, err := parseAddress("token", q.Get("token"))
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}

	var predicted string
	if nonceStr := q.Get("nonce"); nonceStr != "" {
		nonce, parseErr := strconv.ParseUint(nonceStr, 10, 64)
		if parseErr != nil {
			apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", "nonce: not an unsigned integer", nil)
			return
		}
		addr, predictErr := h.factory.PredictPoolAddressWithNonce(creator, token, nonce)
		if predictErr != nil {
			h.writeFactoryError(w, r, predictErr)
			return
		}
		predicted = addr.Hex()
	} else {
		addr, predictErr := h.factory.PredictPoolAddress(creator, token)
		if predictErr != nil {
			h.writeFactoryError(w, r, predictErr)
			return
		}
		predicted = addr.Hex()
	}

	apicommon.WriteJSON(w, http.StatusOK, map[string]any{
		"creator":   creator.Hex(),
		"token":     token.Hex(),
		"predicted": predicted,
	})
}

type allowlistRequest struct {
	Caller  string `json:"caller"`
	Token   string `json:"token"`
	Allowed bool   `json:"allowed"`
}

func (h *Handler) handleAllowlist(w http.ResponseWriter, r *http.Request) {
	var req allowlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", "Invalid JSON body", err.Error())
		return
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}
	token, err := parseAddress("token", req.Token)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}

	if err := h.factory.SetTokenAllowed(caller, token, req.Allowed); err != nil {
		h.writeFactoryError(w, r, err)
		return
	}

	apicommon.WriteJSON(w, http.StatusOK, map[string]any{
		"token":   token.Hex(),
		"allowed": req.Allowed,
	})
}

type rotationRequest struct {
	Caller       string `json:"caller"`
	NewPublisher string `json:"new_publisher"`
}

func (h *Handler) handleRotationInitiate(w http.ResponseWriter, r *http.Request) {
	var req rotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", "Invalid JSON body", err.Error())
		return
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}
	newPublisher, err := parseAddress("new_publisher", req.NewPublisher)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}

	if err := h.factory.InitiatePublisherRotation(caller, newPublisher); err != nil {
		h.writeFactoryError(w, r, err)
		return
	}

	current, old, graceEnd := h.factory.Publisher()
	apicommon.WriteJSON(w, http.StatusOK, map[string]any{
		"publisher":     current.Hex(),
		"old_publisher": old.Hex(),
		"grace_end":     graceEnd,
	})
}

type cancelRotationRequest struct {
	Caller string `json:"caller"`
}

func (h *Handler) handleRotationCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", "Invalid JSON body", err.Error())
		return
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}

	if err := h.factory.CancelPublisherRotation(caller); err != nil {
		h.writeFactoryError(w, r, err)
		return
	}

	current, _, _ := h.factory.Publisher()
	apicommon.WriteJSON(w, http.StatusOK, map[string]any{"publisher": current.Hex()})
}

// vaultFromRequest resolves the {address} path variable to a deployed vault.
func (h *Handler) vaultFromRequest(w http.ResponseWriter, r *http.Request) (*vault.Vault, bool) {
	addrStr := mux.Vars(r)["address"]

	addr, err := parseAddress("address", addrStr)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return nil, false
	}

	v, ok := h.factory.Vault(addr)
	if !ok {
		apicommon.WriteError(w, r, http.StatusNotFound, "vault_not_found", "No vault at address", addr.Hex())
		return nil, false
	}
	return v, true
}

func (h *Handler) handleVaultState(w http.ResponseWriter, r *http.Request) {
	v, ok := h.vaultFromRequest(w, r)
	if !ok {
		return
	}

	state := map[string]any{
		"address":        v.Address().Hex(),
		"token":          v.Token().Hex(),
		"creator":        v.Creator().Hex(),
		"factory":        v.Factory().Hex(),
		"balance":        v.Balance().String(),
		"global_claimed": v.GlobalClaimed().String(),
		"paused":         v.Paused(),
	}
	if last := v.LastClaimAt(); !last.IsZero() {
		state["last_claim_at"] = last
	}
	if notice, pending := v.EmergencyNotice(); pending {
		state["emergency_notice"] = notice
	}

	if accountStr := r.URL.Query().Get("account"); accountStr != "" {
		account, err := parseAddress("account", accountStr)
		if err != nil {
			apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
			return
		}
		state["account"] = map[string]any{
			"address":          account.Hex(),
			"already_claimed":  v.AlreadyClaimed(account).String(),
			"already_fee_paid": v.AlreadyFeePaid(account).String(),
		}
	}

	apicommon.WriteJSON(w, http.StatusOK, state)
}

type fundRequest struct {
	From      string `json:"from"`
	Amount    string `json:"amount"`
	Deadline  uint64 `json:"deadline,omitempty"`
	PermitSig string `json:"permit_signature,omitempty"`
}

func (h *Handler) handleVaultFund(w http.ResponseWriter, r *http.Request) {
	v, ok := h.vaultFromRequest(w, r)
	if !ok {
		return
	}

	var req fundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", "Invalid JSON body", err.Error())
		return
	}

	from, err := parseAddress("from", req.From)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}

	if req.PermitSig != "" {
		sig, sigErr := parseSignature("permit_signature", req.PermitSig)
		if sigErr != nil {
			apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", sigErr.Error(), nil)
			return
		}
		err = v.FundWithPermit(from, amount, req.Deadline, sig)
	} else {
		err = v.Fund(from, amount)
	}
	if err != nil {
		h.writeVaultError(w, r, err)
		return
	}

	apicommon.WriteJSON(w, http.StatusOK, map[string]any{
		"balance": v.Balance().String(),
	})
}

type claimRequest struct {
	Account          string `json:"account"`
	CumulativeAmount string `json:"cumulative_amount"`
	Deadline         uint64 `json:"deadline,omitempty"`
	Signature        string `json:"signature"`
}

func (h *Handler) handleVaultClaim(w http.ResponseWriter, r *http.Request) {
	v, ok := h.vaultFromRequest(w, r)
	if !ok {
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", "Invalid JSON body", err.Error())
		return
	}

	account, err := parseAddress("account", req.Account)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}
	amount, err := parseAmount("cumulative_amount", req.CumulativeAmount)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}
	sig, err := parseSignature("signature", req.Signature)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}

	payout, err := v.PayWithSig(account, amount, req.Deadline, sig)
	if err != nil {
		h.writeVaultError(w, r, err)
		return
	}

	apicommon.WriteJSON(w, http.StatusOK, payout)
}

func (h *Handler) handleVaultPause(w http.ResponseWriter, r *http.Request) {
	h.handleVaultRoleCall(w, r, (*vault.Vault).Pause)
}

func (h *Handler) handleVaultUnpause(w http.ResponseWriter, r *http.Request) {
	h.handleVaultRoleCall(w, r, (*vault.Vault).Unpause)
}

func (h *Handler) handleVaultRoleCall(w http.ResponseWriter, r *http.Request, call func(*vault.Vault, common.Address) error) {
	v, ok := h.vaultFromRequest(w, r)
	if !ok {
		return
	}

	var req cancelRotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", "Invalid JSON body", err.Error())
		return
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}

	if err := call(v, caller); err != nil {
		h.writeVaultError(w, r, err)
		return
	}

	apicommon.WriteJSON(w, http.StatusOK, map[string]any{"paused": v.Paused()})
}

type sweepNoticeRequest struct {
	Caller        string `json:"caller"`
	Recipient     string `json:"recipient"`
	Justification string `json:"justification"`
}

func (h *Handler) handleSweepNotice(w http.ResponseWriter, r *http.Request) {
	v, ok := h.vaultFromRequest(w, r)
	if !ok {
		return
	}

	var req sweepNoticeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", "Invalid JSON body", err.Error())
		return
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}

	if err := v.InitiateEmergencySweepNotice(caller, recipient, req.Justification); err != nil {
		h.writeVaultError(w, r, err)
		return
	}

	notice, _ := v.EmergencyNotice()
	apicommon.WriteJSON(w, http.StatusOK, notice)
}

type sweepRequest struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	v, ok := h.vaultFromRequest(w, r)
	if !ok {
		return
	}

	var req sweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", "Invalid JSON body", err.Error())
		return
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}

	swept, err := v.EmergencySweepAll(caller, recipient)
	if err != nil {
		h.writeVaultError(w, r, err)
		return
	}

	apicommon.WriteJSON(w, http.StatusOK, map[string]any{
		"swept":     swept.String(),
		"recipient": recipient.Hex(),
	})
}

// writeFactoryError maps factory errors onto HTTP statuses.
func (h *Handler) writeFactoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, factory.ErrUnauthorized):
		apicommon.WriteError(w, r, http.StatusForbidden, "unauthorized", err.Error(), nil)
	case errors.Is(err, factory.ErrTokenNotAllowed),
		errors.Is(err, factory.ErrZeroAddress),
		errors.Is(err, factory.ErrSamePublisher):
		apicommon.WriteError(w, r, http.StatusBadRequest, "invalid_parameter", err.Error(), nil)
	case errors.Is(err, factory.ErrFactoryPaused):
		apicommon.WriteError(w, r, http.StatusConflict, "paused", err.Error(), nil)
	case errors.Is(err, factory.ErrRotationActive), errors.Is(err, factory.ErrNoRotation):
		apicommon.WriteError(w, r, http.StatusConflict, "rotation_state", err.Error(), nil)
	default:
		apicommon.WriteError(w, r, http.StatusInternalServerError, "internal_error", err.Error(), nil)
	}
}

// writeVaultError maps vault errors onto HTTP statuses.
func (h *Handler) writeVaultError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, vault.ErrUnauthorized):
		apicommon.WriteError(w, r, http.StatusForbidden, "unauthorized", err.Error(), nil)
	case errors.Is(err, vault.ErrUnauthorizedSigner):
		apicommon.WriteError(w, r, http.StatusForbidden, "unauthorized_signer", err.Error(), nil)
	case errors.Is(err, vault.ErrPaused), errors.Is(err, vault.ErrNotPaused):
		apicommon.WriteError(w, r, http.StatusConflict, "pause_state", err.Error(), nil)
	case errors.Is(err, vault.ErrNotIncreasing),
		errors.Is(err, vault.ErrDeadlineExpired),
		errors.Is(err, vault.ErrDeadlineTooFar),
		errors.Is(err, vault.ErrInsufficientFunds):
		apicommon.WriteError(w, r, http.StatusUnprocessableEntity, "claim_rejected", err.Error(), nil)
	case errors.Is(err, vault.ErrNotDormant),
		errors.Is(err, vault.ErrNoNotice),
		errors.Is(err, vault.ErrNoticeImmature),
		errors.Is(err, vault.ErrNoticeRecipient),
		errors.Is(err, vault.ErrNothingToSweep):
		apicommon.WriteError(w, r, http.StatusConflict, "sweep_state", err.Error(), nil)
	case errors.Is(err, vault.ErrZeroAddress),
		errors.Is(err, vault.ErrInvalidAmount),
		errors.Is(err, vault.ErrDepositMismatch):
		apicommon.WriteError(w, r, http.StatusBadRequest, "invalid_parameter", err.Error(), nil)
	default:
		apicommon.WriteError(w, r, http.StatusUnprocessableEntity, "operation_failed", err.Error(), nil)
	}
}
