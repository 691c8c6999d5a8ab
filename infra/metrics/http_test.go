package metrics

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vpp/test/util"
)

func TestStartPromServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	reg, err := NewPromSink()
	require.NoError(t, err)
	require.NoError(t, reg.RecordAvailableCapacity(12))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- StartPromServer(ctx, addr) }()

	waitCtx, waitCancel := context.WithTimeout(ctx, util.MetricTimeout)
	defer waitCancel()
	require.NoError(t, util.WaitForMetric(waitCtx, "http://"+addr+"/metrics", "vpp_available_capacity_kw 12"))

	cancel()
	require.NoError(t, <-done)
}
