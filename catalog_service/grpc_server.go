package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/akmmp241/catalog-gateway/shared"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const healthServiceName = "catalog.Gateway"

type GrpcServer struct {
	ListenAddr string
	Server     *grpc.Server
	Listener   net.Listener
	Health     *health.Server
}

func NewGrpcServer(addr string) (*GrpcServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		slog.Error("Error occurred while creating listener", "err", err)
		return nil, err
	}

	server := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)

	return &GrpcServer{
		ListenAddr: listener.Addr().String(),
		Server:     server,
		Listener:   listener,
		Health:     healthServer,
	}, nil
}

func (g *GrpcServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	g.Health.SetServingStatus("", status)
	g.Health.SetServingStatus(healthServiceName, status)
}

func (g *GrpcServer) Run() error {
	slog.Info("Starting Catalog Gateway gRPC health server on:", "addr", g.ListenAddr)

	if err := g.Server.Serve(g.Listener); err != nil {
		slog.Error("Error occurred while serving gRPC server", "err", err)
		return err
	}
	return nil
}

func (g *GrpcServer) Stop() {
	g.Health.Shutdown()
	g.Server.GracefulStop()
}

// probeHealth asks the gateway at target whether it is serving.
func probeHealth(ctx context.Context, target string, timeout time.Duration) error {
	conn, err := shared.NewGrpcClientConn(target)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: healthServiceName})
	if err != nil {
		return err
	}
	if res.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("gateway reports %s", res.GetStatus())
	}
	return nil
}
