// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"golang.org/x/sync/singleflight"
)

// CodeUpstreamUnavailable marks a metadata query that failed with no fresh
// cached value.
const CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"

// DefaultMetadataTTL is how long a fetched version stays fresh.
const DefaultMetadataTTL = time.Minute

// Version is the client and protocol version metadata served to clients.
type Version struct {
	ClientVersion   string `json:"clientVersion"`
	ProtocolVersion string `json:"protocolVersion"`
}

// Fetcher retrieves version metadata.
type Fetcher interface {
	Fetch(ctx context.Context) (Version, error)
}

// HTTPFetcher reads version metadata from a JSON endpoint.
type HTTPFetcher struct {
	URL    string
	Client *http.Client
}

// NewHTTPFetcher creates a fetcher with a bounded request timeout.
func NewHTTPFetcher(url string) *HTTPFetcher {
	return &HTTPFetcher{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

// Fetch queries the endpoint and validates the client version as semver.
func (f *HTTPFetcher) Fetch(ctx context.Context) (Version, error) {
	errb := oops.Code(CodeUpstreamUnavailable).With("url", f.URL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return Version{}, errb.Wrapf(err, "build metadata request")
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return Version{}, errb.Wrapf(err, "query metadata")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Version{}, errb.With("status", resp.StatusCode).Errorf("metadata query returned %s", resp.Status)
	}

	var v Version
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return Version{}, errb.Wrapf(err, "decode metadata")
	}
	if _, err := semver.StrictNewVersion(v.ClientVersion); err != nil {
		return Version{}, errb.With("client_version", v.ClientVersion).Wrapf(err, "invalid client version")
	}
	return v, nil
}

// VersionCache serves version metadata, querying the fetcher at most once per
// TTL. Concurrent refreshes share one query.
type VersionCache struct {
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time
	group   singleflight.Group

	mu      sync.RWMutex
	value   Version
	expires time.Time
	valid   bool
}

// NewVersionCache wraps fetcher. A non-positive ttl uses DefaultMetadataTTL.
func NewVersionCache(fetcher Fetcher, ttl time.Duration) *VersionCache {
	if ttl <= 0 {
		ttl = DefaultMetadataTTL
	}
	return &VersionCache{fetcher: fetcher, ttl: ttl, now: time.Now}
}

// Version returns the cached value while fresh, otherwise queries the
// fetcher. An expired value is never served.
func (c *VersionCache) Version(ctx context.Context) (Version, error) {
	if v, ok := c.fresh(); ok {
		return v, nil
	}

	res, err, _ := c.group.Do("version", func() (any, error) {
		if v, ok := c.fresh(); ok {
			return v, nil
		}
		v, err := c.fetcher.Fetch(ctx)
		if err != nil {
			return Version{}, err
		}
		c.mu.Lock()
		c.value, c.expires, c.valid = v, c.now().Add(c.ttl), true
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return Version{}, oops.Code(CodeUpstreamUnavailable).Wrapf(err, "version metadata")
	}
	v, _ := res.(Version)
	return v, nil
}

func (c *VersionCache) fresh() (Version, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.valid && c.now().Before(c.expires) {
		return c.value, true
	}
	return Version{}, false
}
