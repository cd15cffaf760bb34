package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/lanekeep/internal/monitoring"
	"github.com/banshee-data/lanekeep/internal/timeutil"
)

// HealthService is the service name reported alongside the overall ("")
// status.
const HealthService = "lanekeep.Pipeline"

// FrameCounter is satisfied by pipeline.Runner.
type FrameCounter interface {
	Frames() uint64
}

// HealthServer reports SERVING while the pipeline keeps consuming frames and
// NOT_SERVING once no frame has arrived for the stall timeout.
type HealthServer struct {
	srv     *health.Server
	frames  FrameCounter
	clock   timeutil.Clock
	stallAt time.Duration

	mu         sync.Mutex
	lastFrames uint64
	lastChange time.Time
	serving    bool
}

// NewHealthServer watches frames. The server starts NOT_SERVING until the
// first frame arrives.
func NewHealthServer(frames FrameCounter, stallTimeout time.Duration, clock timeutil.Clock) *HealthServer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	h := &HealthServer{
		srv:        health.NewServer(),
		frames:     frames,
		clock:      clock,
		stallAt:    stallTimeout,
		lastChange: clock.Now(),
	}
	h.set(false)
	return h
}

func (h *HealthServer) set(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(HealthService, status)
}

// Refresh re-evaluates the status and returns whether the pipeline is
// serving.
func (h *HealthServer) Refresh() bool {
	now := h.clock.Now()
	n := h.frames.Frames()

	h.mu.Lock()
	defer h.mu.Unlock()
	if n != h.lastFrames {
		h.lastFrames = n
		h.lastChange = now
	}
	serving := n > 0 && now.Sub(h.lastChange) < h.stallAt
	if serving != h.serving {
		h.serving = serving
		h.set(serving)
		if serving {
			monitoring.Logf("[health] pipeline serving at frame %d", n)
		} else {
			monitoring.Logf("[health] warning: pipeline not serving, %d frames, last progress %s ago", n, now.Sub(h.lastChange).Round(time.Millisecond))
		}
	}
	return serving
}

// Check answers like the gRPC health service, for in-process callers.
func (h *HealthServer) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := h.srv.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// Register adds the health service to s.
func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// Run refreshes every interval until ctx ends, then marks every service
// NOT_SERVING.
func (h *HealthServer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-ticker.C:
			h.Refresh()
		}
	}
}

// Serve listens on address and serves the health service until ctx ends.
func (h *HealthServer) Serve(ctx context.Context, address string) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return h.ServeListener(ctx, lis)
}

// ServeListener serves on lis until ctx ends. lis is closed on return.
func (h *HealthServer) ServeListener(ctx context.Context, lis net.Listener) error {
	s := grpc.NewServer()
	h.Register(s)

	errCh := make(chan error, 1)
	go func() {
		monitoring.Logf("[health] gRPC listening on %s", lis.Addr())
		errCh <- s.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		s.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}
