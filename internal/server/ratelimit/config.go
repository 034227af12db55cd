package ratelimit

import (
	"strconv"
	"strings"
	"time"
)

// Rule limits one method on one path. A Path ending in "/" matches every path below it.
type Rule struct {
	Method string
	Path   string
	Limit  int           // Requests refilled per Window
	Window time.Duration // Refill period
	Burst  int           // Bucket capacity; defaults to Limit
}

// Config controls the Limiter.
type Config struct {
	Enabled bool
	// Default applies to requests no Rule matches. Its Method and Path are ignored.
	Default Rule
	Rules   []Rule
	// IdleTTL is how long an untouched bucket survives a Sweep.
	IdleTTL time.Duration
	// Allow is never limited; Deny is always rejected. Both hold client IDs.
	Allow map[string]bool
	Deny  map[string]bool
}

// DefaultRules limits the analysis endpoints more tightly than metadata reads.
func DefaultRules() []Rule {
	return []Rule{
		{Method: "POST", Path: "/v1/analyze", Limit: 120, Window: time.Minute, Burst: 20},
		{Method: "POST", Path: "/v1/extract", Limit: 120, Window: time.Minute, Burst: 20},
	}
}

// DefaultConfig returns an enabled limiter with DefaultRules and a lenient default.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Default: Rule{Limit: 600, Window: time.Minute},
		Rules:   DefaultRules(),
		IdleTTL: 10 * time.Minute,
	}
}

// ConfigFromEnv overlays RATE_LIMIT_* variables onto DefaultConfig.
// getenv is usually os.Getenv. Unparseable values keep the default.
func ConfigFromEnv(getenv func(string) string) Config {
	cfg := DefaultConfig()
	if v, err := strconv.ParseBool(getenv("RATE_LIMIT_ENABLED")); err == nil {
		cfg.Enabled = v
	}
	if n, err := strconv.Atoi(getenv("RATE_LIMIT_DEFAULT_LIMIT")); err == nil && n > 0 {
		cfg.Default.Limit = n
	}
	if d, err := time.ParseDuration(getenv("RATE_LIMIT_DEFAULT_WINDOW")); err == nil && d > 0 {
		cfg.Default.Window = d
	}
	if n, err := strconv.Atoi(getenv("RATE_LIMIT_ANALYZE_LIMIT")); err == nil && n > 0 {
		for i := range cfg.Rules {
			cfg.Rules[i].Limit = n
		}
	}
	if d, err := time.ParseDuration(getenv("RATE_LIMIT_IDLE_TTL")); err == nil && d > 0 {
		cfg.IdleTTL = d
	}
	cfg.Allow = parseClientList(getenv("RATE_LIMIT_ALLOWLIST"))
	cfg.Deny = parseClientList(getenv("RATE_LIMIT_DENYLIST"))
	return cfg
}

// parseClientList splits a comma-separated list of client IDs.
func parseClientList(s string) map[string]bool {
	out := make(map[string]bool)
	for part := range strings.SplitSeq(s, ",") {
		if id := strings.TrimSpace(part); id != "" {
			out[id] = true
		}
	}
	return out
}

// rule returns the Rule governing method and path, and a key naming it.
// Exact paths win over prefixes; among prefixes the longest wins.
func (c Config) rule(method, path string) (Rule, string) {
	best := -1
	for i, r := range c.Rules {
		if !strings.EqualFold(r.Method, method) {
			continue
		}
		if r.Path == path {
			return r, r.Method + " " + r.Path
		}
		if strings.HasSuffix(r.Path, "/") && strings.HasPrefix(path, r.Path) {
			if best < 0 || len(r.Path) > len(c.Rules[best].Path) {
				best = i
			}
		}
	}
	if best >= 0 {
		r := c.Rules[best]
		return r, r.Method + " " + r.Path
	}
	return c.Default, "default"
}
