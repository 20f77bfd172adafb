package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterMux binds gorilla/mux routes. Routes with an {address} segment
// require mux; there is no stdlib ServeMux variant for this surface.
func (h *Handler) RegisterMux(r *mux.Router) {
	r.HandleFunc(routeFactory, h.handleFactoryState).
		Methods(http.MethodGet).
		Name(routeNameFactory)

	r.HandleFunc(routePools, h.handleCreatePool).
		Methods(http.MethodPost).
		Name(routeNamePools)

	r.HandleFunc(routePredict, h.handlePredictPool).
		Methods(http.MethodGet).
		Name(routeNamePredict)

	r.HandleFunc(routeAllowlist, h.handleAllowlist).
		Methods(http.MethodPost).
		Name(routeNameAllowlist)

	r.HandleFunc(routeRotation, h.handleRotationInitiate).
		Methods(http.MethodPost).
		Name(routeNameRotationInit)

	r.HandleFunc(routeRotation, h.handleRotationCancel).
		Methods(http.MethodDelete).
		Name(routeNameRotationCancel)

	r.HandleFunc(routeVault, h.handleVaultState).
		Methods(http.MethodGet).
		Name(routeNameVault)

	r.HandleFunc(routeVaultFund, h.handleVaultFund).
		Methods(http.MethodPost).
		Name(routeNameVaultFund)

	r.HandleFunc(routeVaultClaims, h.handleVaultClaim).
		Methods(http.MethodPost).
		Name(routeNameVaultClaims)

	r.HandleFunc(routeVaultPause, h.handleVaultPause).
		Methods(http.MethodPost).
		Name(routeNameVaultPause)

	r.HandleFunc(routeVaultUnpause, h.handleVaultUnpause).
		Methods(http.MethodPost).
		Name(routeNameVaultUnpause)

	r.HandleFunc(routeVaultSweepNote, h.handleSweepNotice).
		Methods(http.MethodPost).
		Name(routeNameVaultSweepNote)

	r.HandleFunc(routeVaultSweep, h.handleSweep).
		Methods(http.MethodPost).
		Name(routeNameVaultSweep)
}
