package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterMux binds gorilla/mux routes.
func (h *Handler) RegisterMux(r *mux.Router) {
	r.HandleFunc(routeRouter, h.handleRouterState).
		Methods(http.MethodGet).
		Name(routeNameRouter)

	r.HandleFunc(routeBatchClaims, h.handleBatchClaims).
		Methods(http.MethodPost).
		Name(routeNameBatchClaims)

	r.HandleFunc(routeFactories, h.handleFactoryApproval).
		Methods(http.MethodPost).
		Name(routeNameFactories)

	r.HandleFunc(routeMaxBatchSize, h.handleMaxBatchSize).
		Methods(http.MethodPost).
		Name(routeNameMaxBatchSize)
}
