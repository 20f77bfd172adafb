package http

// Route patterns for the batch claim surface.
const (
	routeRouter       = "/v1/router"
	routeBatchClaims  = "/v1/claims/batch"
	routeFactories    = "/v1/router/factories"
	routeMaxBatchSize = "/v1/router/max-batch-size"
)

// Route names for mux URL building.
const (
	routeNameRouter       = "router_state"
	routeNameBatchClaims  = "router_batch_claims"
	routeNameFactories    = "router_factory_approval"
	routeNameMaxBatchSize = "router_max_batch_size"
)
