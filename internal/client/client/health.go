package client

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthProber checks reachability through the standard gRPC health service.
type HealthProber struct {
	conn    *grpc.ClientConn
	client  healthpb.HealthClient
	service string
	timeout time.Duration
}

// NewHealthProber connects lazily to addr. A non-positive timeout falls back
// to common.ProbeTimeout. Extra dial options are appended after the insecure
// transport credentials.
func NewHealthProber(addr string, timeout time.Duration, opts ...grpc.DialOption) (*HealthProber, error) {
	if timeout <= 0 {
		timeout = common.ProbeTimeout
	}
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &HealthProber{
		conn:    conn,
		client:  healthpb.NewHealthClient(conn),
		timeout: timeout,
	}, nil
}

func (p *HealthProber) Close() error {
	return p.conn.Close()
}

// Ping succeeds only when the server reports SERVING.
func (p *HealthProber) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Check(ctx, &healthpb.HealthCheckRequest{Service: p.service})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %s", ErrUnavailable, resp.GetStatus())
	}
	return nil
}
