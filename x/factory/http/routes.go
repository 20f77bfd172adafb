package http

// Route patterns for the factory and vault HTTP surface.
const (
	routeFactory        = "/v1/factory"
	routePools          = "/v1/pools"
	routePredict        = "/v1/pools/predict"
	routeAllowlist      = "/v1/tokens/allowlist"
	routeRotation       = "/v1/publisher/rotation"
	routeVault          = "/v1/vaults/{address}"
	routeVaultFund      = "/v1/vaults/{address}/fund"
	routeVaultClaims    = "/v1/vaults/{address}/claims"
	routeVaultPause     = "/v1/vaults/{address}/pause"
	routeVaultUnpause   = "/v1/vaults/{address}/unpause"
	routeVaultSweepNote = "/v1/vaults/{address}/sweep/notice"
	routeVaultSweep     = "/v1/vaults/{address}/sweep"
)

// Route names for mux URL building.
const (
	routeNameFactory        = "factory_state"
	routeNamePools          = "factory_create_pool"
	routeNamePredict        = "factory_predict_pool"
	routeNameAllowlist      = "factory_token_allowlist"
	routeNameRotationInit   = "factory_rotation_initiate"
	routeNameRotationCancel = "factory_rotation_cancel"
	routeNameVault          = "vault_state"
	routeNameVaultFund      = "vault_fund"
	routeNameVaultClaims    = "vault_claim"
	routeNameVaultPause     = "vault_pause"
	routeNameVaultUnpause   = "vault_unpause"
	routeNameVaultSweepNote = "vault_sweep_notice"
	routeNameVaultSweep     = "vault_sweep"
)
