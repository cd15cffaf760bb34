package monitor

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/banshee-data/lanekeep/internal/timeutil"
)

type countingFrames struct{ n atomic.Uint64 }

func (c *countingFrames) Frames() uint64 { return c.n.Load() }

func TestHealthServerTracksProgress(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1700000000, 0))
	frames := &countingFrames{}
	h := NewHealthServer(frames, 2*time.Second, clock)
	ctx := context.Background()

	status, err := h.Check(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status)

	assert.False(t, h.Refresh(), "no frames yet")

	frames.n.Store(10)
	clock.Advance(100 * time.Millisecond)
	assert.True(t, h.Refresh())
	status, err = h.Check(ctx, HealthService)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status)

	clock.Advance(time.Second)
	assert.True(t, h.Refresh(), "within stall timeout")

	clock.Advance(1500 * time.Millisecond)
	assert.False(t, h.Refresh(), "stalled")
	status, err = h.Check(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status)

	frames.n.Store(11)
	assert.True(t, h.Refresh(), "progress resumes serving")
}

func TestHealthServerUnknownService(t *testing.T) {
	h := NewHealthServer(&countingFrames{}, time.Second, nil)
	_, err := h.Check(context.Background(), "nope")
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestHealthServerOverGRPC(t *testing.T) {
	frames := &countingFrames{}
	frames.n.Store(5)
	h := NewHealthServer(frames, time.Hour, nil)
	require.True(t, h.Refresh())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.ServeListener(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()
	resp, err := client.Check(callCtx, &healthpb.HealthCheckRequest{Service: HealthService})
	require.NoError(t, err)
	want := &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}
	assert.True(t, proto.Equal(want, resp), "got %v", resp)

	_, err = client.Check(callCtx, &healthpb.HealthCheckRequest{Service: "nope"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestHealthServerServeStopsOnCancel(t *testing.T) {
	h := NewHealthServer(&countingFrames{}, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Serve(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestHealthServerRunShutsDown(t *testing.T) {
	frames := &countingFrames{}
	frames.n.Store(1)
	h := NewHealthServer(frames, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		s, err := h.Check(context.Background(), "")
		return err == nil && s == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
	status, err := h.Check(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status)
}
