// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/eventhub/pkg/errutil"
)

type fakeFetcher struct {
	calls atomic.Int32
	err   error
	value Version
	delay time.Duration
}

func (f *fakeFetcher) Fetch(context.Context) (Version, error) {
	f.calls.Add(1)
	time.Sleep(f.delay)
	return f.value, f.err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(f Fetcher) (*VersionCache, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	c := NewVersionCache(f, time.Minute)
	c.now = clock.Now
	return c, clock
}

func TestVersionCache_ServesFreshValue(t *testing.T) {
	f := &fakeFetcher{value: Version{ClientVersion: "1.2.3", ProtocolVersion: "3"}}
	c, clock := newTestCache(f)

	v, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", v.ClientVersion)

	clock.Advance(59 * time.Second)
	_, err = c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.calls.Load(), "fresh value served without query")

	clock.Advance(2 * time.Second)
	_, err = c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestVersionCache_ExpiredAndFailing(t *testing.T) {
	f := &fakeFetcher{value: Version{ClientVersion: "1.0.0"}}
	c, clock := newTestCache(f)

	_, err := c.Version(context.Background())
	require.NoError(t, err)

	f.err = errors.New("connection refused")
	clock.Advance(time.Minute)

	_, err = c.Version(context.Background())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, CodeUpstreamUnavailable)
}

func TestVersionCache_CollapsesConcurrentRefreshes(t *testing.T) {
	f := &fakeFetcher{value: Version{ClientVersion: "1.0.0"}, delay: 50 * time.Millisecond}
	c, _ := newTestCache(f)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Version(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load())
}

func TestHTTPFetcher(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"valid", http.StatusOK, `{"clientVersion":"2.4.1","protocolVersion":"3"}`, false},
		{"not semver", http.StatusOK, `{"clientVersion":"latest"}`, true},
		{"leading v", http.StatusOK, `{"clientVersion":"v2.4.1"}`, true},
		{"server error", http.StatusInternalServerError, `oops`, true},
		{"bad json", http.StatusOK, `{`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			v, err := NewHTTPFetcher(srv.URL).Fetch(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, CodeUpstreamUnavailable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Version{ClientVersion: "2.4.1", ProtocolVersion: "3"}, v)
		})
	}
}
