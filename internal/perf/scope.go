// Package perf implements the in-process request performance monitor.
//
// This file implements the monitoring scope: a single skip predicate that
// combines a path denylist (health probes, metrics, docs, static assets) with
// an optional allowlist of path prefixes and HTTP methods. Setting the
// allowlist narrows monitoring to, for example, POST and PUT under
// /api/contacts without a second middleware.
package perf

import (
	"strings"

	"golang.org/x/text/cases"
)

// ScopeConfig describes which requests the monitor measures. Deny rules are
// checked first; when an allow list is non-empty the request must match it.
type ScopeConfig struct {
	ExcludedExactPaths     []string
	ExcludedPathPrefixes   []string
	ExcludedPathSubstrings []string
	ExcludedPathSuffixes   []string
	IncludedPathPrefixes   []string
	IncludedMethods        []string
}

// DefaultScopeConfig skips health probes, metrics, API docs, and static assets.
func DefaultScopeConfig() ScopeConfig {
	return ScopeConfig{
		ExcludedExactPaths:     []string{"/health", "/healthz", "/ready", "/metrics"},
		ExcludedPathPrefixes:   []string{"/swagger"},
		ExcludedPathSubstrings: []string{"/css/", "/js/", "/images/"},
		ExcludedPathSuffixes:   []string{".ico"},
	}
}

// Scope is the compiled skip predicate. Matching is case-insensitive.
type Scope struct {
	exact      map[string]struct{}
	prefixes   []string
	substrings []string
	suffixes   []string
	allowPfx   []string
	methods    map[string]struct{}
}

// NewScope folds every pattern once so Skip only folds the request path.
func NewScope(cfg ScopeConfig) *Scope {
	s := &Scope{
		exact:      make(map[string]struct{}, len(cfg.ExcludedExactPaths)),
		prefixes:   foldAll(cfg.ExcludedPathPrefixes),
		substrings: foldAll(cfg.ExcludedPathSubstrings),
		suffixes:   foldAll(cfg.ExcludedPathSuffixes),
		allowPfx:   foldAll(cfg.IncludedPathPrefixes),
	}
	for _, p := range foldAll(cfg.ExcludedExactPaths) {
		s.exact[p] = struct{}{}
	}
	if len(cfg.IncludedMethods) > 0 {
		s.methods = make(map[string]struct{}, len(cfg.IncludedMethods))
		for _, m := range cfg.IncludedMethods {
			if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
				s.methods[m] = struct{}{}
			}
		}
	}
	return s
}

// Skip reports whether a request should bypass monitoring entirely.
func (s *Scope) Skip(method, path string) bool {
	p := fold(path)
	if _, ok := s.exact[p]; ok {
		return true
	}
	for _, pre := range s.prefixes {
		if strings.HasPrefix(p, pre) {
			return true
		}
	}
	for _, sub := range s.substrings {
		if strings.Contains(p, sub) {
			return true
		}
	}
	for _, suf := range s.suffixes {
		if strings.HasSuffix(p, suf) {
			return true
		}
	}

	if len(s.methods) > 0 {
		if _, ok := s.methods[strings.ToUpper(method)]; !ok {
			return true
		}
	}
	if len(s.allowPfx) > 0 {
		for _, pre := range s.allowPfx {
			if strings.HasPrefix(p, pre) {
				return false
			}
		}
		return true
	}
	return false
}

// fold uses a fresh caser per call; cases.Caser is stateful and not safe for
// concurrent use.
func fold(s string) string {
	return cases.Fold().String(s)
}

func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, fold(v))
		}
	}
	return out
}
