// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package control

import (
	"context"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// StatusUnknownService is reported for a service the server does not know.
const StatusUnknownService = "SERVICE_UNKNOWN"

// ServiceStatus is the health of one service as seen by a client.
type ServiceStatus struct {
	Service string `json:"service"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// Client queries a running hub's health service.
type Client struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
}

// NewClient creates a client for addr. No connection is made until the first
// call.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, oops.With("addr", addr).Wrap(err)
	}
	return &Client{conn: conn, health: healthpb.NewHealthClient(conn)}, nil
}

// Check returns the status name of service.
func (c *Client) Check(ctx context.Context, service string) (string, error) {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if status.Code(err) == codes.NotFound {
		return StatusUnknownService, nil
	}
	if err != nil {
		return "", oops.With("service", service).Wrap(err)
	}
	return resp.GetStatus().String(), nil
}

// Report checks the hub and each endpoint. A failed check is recorded in the
// entry's Error field rather than returned.
func (c *Client) Report(ctx context.Context, endpoints []string) []ServiceStatus {
	services := make([]string, 0, len(endpoints)+1)
	services = append(services, ServiceName)
	for _, endpoint := range endpoints {
		services = append(services, UpstreamService(endpoint))
	}

	report := make([]ServiceStatus, 0, len(services))
	for _, service := range services {
		entry := ServiceStatus{Service: service}
		st, err := c.Check(ctx, service)
		if err != nil {
			entry.Status = healthpb.HealthCheckResponse_UNKNOWN.String()
			entry.Error = err.Error()
		} else {
			entry.Status = st
		}
		report = append(report, entry)
	}
	return report
}

// Close releases the connection.
func (c *Client) Close() error {
	if err := c.conn.Close(); err != nil {
		return oops.Wrap(err)
	}
	return nil
}
