package dto

// RuleRequest sets the value of a permission rule.
type RuleRequest struct {
	Value string `json:"value"`
}

// EnvRequest sets the key and value of an environment variable.
type EnvRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// EnabledRequest toggles a boolean preference.
type EnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// ProviderURLRequest changes the provider base URL.
type ProviderURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// ProviderModelRequest selects a model.
type ProviderModelRequest struct {
	Model string `json:"model" binding:"required"`
}

// DeferredRequest stages a value on a deferred sub-module.
type DeferredRequest struct {
	Value string `json:"value"`
}
