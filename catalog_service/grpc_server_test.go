package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGrpcServer_HealthProbe(t *testing.T) {
	server, err := NewGrpcServer("127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = server.Run() }()
	t.Cleanup(server.Stop)

	ctx := context.Background()

	server.SetServing(true)
	require.NoError(t, probeHealth(ctx, server.ListenAddr, 2*time.Second))

	server.SetServing(false)
	err = probeHealth(ctx, server.ListenAddr, 2*time.Second)
	require.Error(t, err)
	require.Contains(t, err.Error(), "NOT_SERVING")
}

func TestProbeHealth_Unreachable(t *testing.T) {
	err := probeHealth(context.Background(), "127.0.0.1:1", 200*time.Millisecond)
	require.Error(t, err)
}
