// Package endpoint decides whether an HTTP API base URL is trusted to receive
// a bearer key.
package endpoint

import (
	"fmt"
	"net/url"
	"strings"
)

// Policy describes one configurable base URL. Env and AllowedEnv only name
// the settings in error messages.
type Policy struct {
	Env          string
	AllowedEnv   string
	Default      string
	DefaultHosts []string
}

func (p Policy) Normalize(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = p.Default
	}
	return strings.TrimRight(baseURL, "/")
}

// Validate accepts only absolute https URLs without userinfo, query or
// fragment whose host is in allowedHosts (DefaultHosts when empty).
func (p Policy) Validate(baseURL string, allowedHosts []string) error {
	baseURL = p.Normalize(baseURL)

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", p.Env, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("invalid %s %q: absolute URL with host is required", p.Env, baseURL)
	}
	if u.User != nil {
		return fmt.Errorf("invalid %s %q: userinfo is not allowed", p.Env, baseURL)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("invalid %s %q: query and fragment are not allowed", p.Env, baseURL)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("invalid %s %q: host is required", p.Env, baseURL)
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return fmt.Errorf("invalid %s %q: https is required", p.Env, baseURL)
	}

	if _, ok := p.AllowedHosts(allowedHosts)[host]; !ok {
		return fmt.Errorf("invalid %s %q: host %q is not in %s", p.Env, baseURL, host, p.AllowedEnv)
	}
	return nil
}

// AllowedHosts normalizes configured host entries, which may carry a scheme,
// port or trailing slash. Blank input falls back to DefaultHosts.
func (p Policy) AllowedHosts(configured []string) map[string]struct{} {
	out := hostSet(configured)
	if len(out) == 0 {
		return hostSet(p.DefaultHosts)
	}
	return out
}

func hostSet(hosts []string) map[string]struct{} {
	out := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		v := strings.ToLower(strings.TrimSpace(h))
		v = strings.TrimPrefix(v, "http://")
		v = strings.TrimPrefix(v, "https://")
		v = strings.Trim(v, "/")
		if v == "" {
			continue
		}
		if i := strings.Index(v, ":"); i >= 0 {
			v = v[:i]
		}
		out[v] = struct{}{}
	}
	return out
}
