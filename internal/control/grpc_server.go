// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package control exposes process and upstream liveness over the standard
// gRPC health protocol.
//
// The overall service ServiceName is SERVING while the hub accepts
// connections. Each collector endpoint is published as its own service,
// see UpstreamService, and is SERVING while its link is online.
package control

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name of the hub itself.
const ServiceName = "eventhub"

// UpstreamService returns the health service name of a collector endpoint.
func UpstreamService(endpoint string) string {
	return ServiceName + ".upstream." + endpoint
}

// GRPCServer runs the gRPC health service.
type GRPCServer struct {
	health *health.Server

	mu         sync.Mutex
	listener   net.Listener
	grpcServer *grpc.Server
}

// NewGRPCServer creates a health server. The overall service starts
// NOT_SERVING and each endpoint starts offline.
func NewGRPCServer(endpoints []string) *GRPCServer {
	s := &GRPCServer{health: health.NewServer()}
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	for _, endpoint := range endpoints {
		s.SetUpstream(endpoint, false)
	}
	return s
}

// SetServing sets the overall status.
func (s *GRPCServer) SetServing(serving bool) {
	status := servingStatus(serving)
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// SetUpstream records the link state of a collector endpoint.
func (s *GRPCServer) SetUpstream(endpoint string, online bool) {
	s.health.SetServingStatus(UpstreamService(endpoint), servingStatus(online))
}

// Check reports the status of a service without going through the network.
func (s *GRPCServer) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, oops.With("service", service).Wrap(err)
	}
	return resp.GetStatus(), nil
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// Start begins listening on addr.
// It returns an error channel that receives the server's exit error, or nil
// on graceful stop, exactly once.
func (s *GRPCServer) Start(addr string) (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil, oops.With("addr", addr).Errorf("control server is already running")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, oops.With("addr", addr).Wrap(err)
	}
	s.listener = listener

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, s.health)
	s.grpcServer = srv

	errCh := make(chan error, 1)
	go func() {
		err := srv.Serve(listener)
		if err != nil {
			slog.Error("control gRPC server error", "error", err)
		}
		errCh <- err
	}()

	slog.Info("control server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop marks every service NOT_SERVING and stops the server, waiting for
// in-flight RPCs until ctx expires.
func (s *GRPCServer) Stop(ctx context.Context) error {
	s.health.Shutdown()

	s.mu.Lock()
	srv := s.grpcServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		srv.Stop()
		<-done
		return oops.With("operation", "stop_control_server").Wrap(ctx.Err())
	}
}

// Addr returns the listening address, or "" before Start.
func (s *GRPCServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
