package openrouter

import "github.com/forPelevin/minutes/internal/ports/adapters/endpoint"

// BaseURLPolicy guards where the OpenRouter key may be sent.
var BaseURLPolicy = endpoint.Policy{
	Env:          "OPENROUTER_BASE_URL",
	AllowedEnv:   "OPENROUTER_ALLOWED_HOSTS",
	Default:      "https://openrouter.ai",
	DefaultHosts: []string{"openrouter.ai", "api.openrouter.ai"},
}

func normalizeBaseURL(baseURL string) string { return BaseURLPolicy.Normalize(baseURL) }

func ValidateBaseURL(baseURL string, allowedHosts []string) error {
	return BaseURLPolicy.Validate(baseURL, allowedHosts)
}
