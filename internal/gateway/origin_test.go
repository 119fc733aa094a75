// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginPolicy(t *testing.T) {
	p, err := NewOriginPolicy([]string{"https://*.example.com", "http://localhost:*"})
	require.NoError(t, err)

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://app.example.com", true},
		{"https://a.b.example.com", false},
		{"https://example.org", false},
		{"http://localhost:5173", true},
		{"http://app.example.com", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Allowed(tt.origin), "origin %q", tt.origin)
	}
}

func TestOriginPolicy_EmptyAllowsAll(t *testing.T) {
	p, err := NewOriginPolicy(nil)
	require.NoError(t, err)
	assert.True(t, p.Allowed("https://anywhere.test"))
}

func TestOriginPolicy_InvalidPattern(t *testing.T) {
	_, err := NewOriginPolicy([]string{"https://[a-"})
	require.Error(t, err)
}
