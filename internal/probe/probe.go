// Package probe serves gRPC health checks backed by a database ping.
package probe

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service is the health service name reported alongside the server-wide status.
const Service = "cosmetics.Storefront"

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe flips health status with the result of periodic pings.
type Probe struct {
	db      Pinger
	every   time.Duration
	timeout time.Duration
	hs      *health.Server
	log     *zap.Logger
}

// New returns a probe that starts NOT_SERVING until the first successful ping.
func New(db Pinger, every time.Duration, log *zap.Logger) *Probe {
	if every <= 0 {
		every = 10 * time.Second
	}
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(Service, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Probe{db: db, every: every, timeout: 2 * time.Second, hs: hs, log: log}
}

// Check pings once and records the status.
func (p *Probe) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	if err := p.db.Ping(ctx); err != nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
		p.log.Warn("database ping failed", zap.Error(err))
	}
	p.hs.SetServingStatus("", st)
	p.hs.SetServingStatus(Service, st)
	return st
}

// Run checks on a ticker until ctx is done, then reports NOT_SERVING for good.
func (p *Probe) Run(ctx context.Context) {
	p.Check(ctx)
	t := time.NewTicker(p.every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			p.hs.Shutdown()
			return
		case <-t.C:
			p.Check(ctx)
		}
	}
}

// Server builds a gRPC server exposing the health service.
func (p *Probe) Server() *grpc.Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RecoverUnary(p.log),
		LoggingUnary(p.log),
	))
	healthpb.RegisterHealthServer(s, p.hs)
	return s
}

// Serve listens on addr and serves until ctx is done.
func (p *Probe) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s := p.Server()
	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()
	p.log.Info("health probe listening", zap.String("addr", addr))
	return s.Serve(lis)
}
