// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gateway

import (
	"net/http"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// OriginPolicy decides which browser origins may open a stream. Patterns are
// globs over the full origin, e.g. "https://*.example.com"; '*' does not
// cross '.'.
type OriginPolicy struct {
	patterns []glob.Glob
}

// NewOriginPolicy compiles the allowed origin patterns. An empty list allows
// every origin.
func NewOriginPolicy(patterns []string) (*OriginPolicy, error) {
	p := &OriginPolicy{}
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, oops.With("pattern", pattern).Wrapf(err, "invalid origin pattern")
		}
		p.patterns = append(p.patterns, g)
	}
	return p, nil
}

// Allowed reports whether origin may connect. Requests without an Origin
// header come from non-browser clients and are allowed.
func (p *OriginPolicy) Allowed(origin string) bool {
	if origin == "" || len(p.patterns) == 0 {
		return true
	}
	for _, g := range p.patterns {
		if g.Match(origin) {
			return true
		}
	}
	return false
}

// CheckOrigin adapts the policy to websocket.Upgrader.
func (p *OriginPolicy) CheckOrigin(r *http.Request) bool {
	return p.Allowed(r.Header.Get("Origin"))
}
