// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package control

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func startControl(t *testing.T, endpoints ...string) (*GRPCServer, *Client) {
	t.Helper()
	s := NewGRPCServer(endpoints)
	_, err := s.Start("127.0.0.1:0")
	require.NoError(t, err)

	c, err := NewClient(s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s, c
}

func TestGRPCServer_InitialStatus(t *testing.T) {
	s := NewGRPCServer([]string{"EventServerEndpoint_Connery_1"})

	st, err := s.Check(context.Background(), ServiceName)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, st)

	st, err = s.Check(context.Background(), UpstreamService("EventServerEndpoint_Connery_1"))
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, st)
}

func TestGRPCServer_CheckUnknownService(t *testing.T) {
	s := NewGRPCServer(nil)
	_, err := s.Check(context.Background(), "nope")
	assert.Error(t, err)
}

func TestGRPCServer_ReportsOverClient(t *testing.T) {
	s, c := startControl(t, "EventServerEndpoint_Connery_1", "EventServerEndpoint_Miller_10")
	s.SetServing(true)
	s.SetUpstream("EventServerEndpoint_Connery_1", true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	report := c.Report(ctx, []string{"EventServerEndpoint_Connery_1", "EventServerEndpoint_Miller_10", "EventServerEndpoint_Cobalt_13"})
	assert.Equal(t, []ServiceStatus{
		{Service: ServiceName, Status: "SERVING"},
		{Service: UpstreamService("EventServerEndpoint_Connery_1"), Status: "SERVING"},
		{Service: UpstreamService("EventServerEndpoint_Miller_10"), Status: "NOT_SERVING"},
		{Service: UpstreamService("EventServerEndpoint_Cobalt_13"), Status: StatusUnknownService},
	}, report)
}

func TestGRPCServer_UpstreamTransitions(t *testing.T) {
	s, c := startControl(t, "EventServerEndpoint_Connery_1")
	ctx := context.Background()
	service := UpstreamService("EventServerEndpoint_Connery_1")

	s.SetUpstream("EventServerEndpoint_Connery_1", true)
	st, err := c.Check(ctx, service)
	require.NoError(t, err)
	assert.Equal(t, "SERVING", st)

	s.SetUpstream("EventServerEndpoint_Connery_1", false)
	st, err = c.Check(ctx, service)
	require.NoError(t, err)
	assert.Equal(t, "NOT_SERVING", st)
}

func TestGRPCServer_DoubleStartReturnsError(t *testing.T) {
	s, _ := startControl(t)
	_, err := s.Start("127.0.0.1:0")
	assert.Error(t, err)
}

func TestGRPCServer_StartFailsOnInvalidAddress(t *testing.T) {
	s := NewGRPCServer(nil)
	_, err := s.Start("256.0.0.1:bad")
	assert.Error(t, err)
	assert.Empty(t, s.Addr())
}

func TestGRPCServer_StopWithoutStart(t *testing.T) {
	s := NewGRPCServer(nil)
	assert.NoError(t, s.Stop(context.Background()))
}

func TestGRPCServer_StopMarksNotServingAndClosesChannel(t *testing.T) {
	s := NewGRPCServer(nil)
	errCh, err := s.Start("127.0.0.1:0")
	require.NoError(t, err)
	s.SetServing(true)

	require.NoError(t, s.Stop(context.Background()))

	st, err := s.Check(context.Background(), ServiceName)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, st)

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("error channel did not receive")
	}
}

func TestClient_UnreachableServer(t *testing.T) {
	c, err := NewClient("127.0.0.1:1")
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	report := c.Report(ctx, nil)
	require.Len(t, report, 1)
	assert.Equal(t, "UNKNOWN", report[0].Status)
	assert.NotEmpty(t, report[0].Error)
}
