package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/banshee-data/lanekeep/internal/lane/l1segments"
	"github.com/banshee-data/lanekeep/internal/monitoring"
	"github.com/banshee-data/lanekeep/internal/timeutil"
)

// FrameHandler receives each decoded frame, in arrival order.
type FrameHandler func(l1segments.Frame)

// UDPListenerConfig contains configuration options for the UDP listener.
type UDPListenerConfig struct {
	Address     string
	RcvBuf      int
	LogInterval time.Duration
	Stats       *FeedStats
	Handler     FrameHandler
	Clock       timeutil.Clock
	// SocketFactory defaults to real UDP sockets.
	SocketFactory UDPSocketFactory
}

// UDPListener receives line-segment frames, one per datagram, and hands
// them to a FrameHandler.
type UDPListener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	stats       Stats
	feedStats   *FeedStats
	handler     FrameHandler
	clock       timeutil.Clock
	factory     UDPSocketFactory
}

// NewUDPListener creates a new UDP listener with the provided configuration.
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	var stats Stats = noopStats{}
	if config.Stats != nil {
		stats = config.Stats
	}
	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}
	clock := config.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	factory := config.SocketFactory
	if factory == nil {
		factory = RealUDPSocketFactory{}
	}
	return &UDPListener{
		address:     config.Address,
		rcvBuf:      config.RcvBuf,
		logInterval: logInterval,
		stats:       stats,
		feedStats:   config.Stats,
		handler:     config.Handler,
		clock:       clock,
		factory:     factory,
	}
}

// Start listens until ctx is cancelled. It returns ctx.Err() on shutdown.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := l.factory.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	defer conn.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			monitoring.Logf("[udp] Warning: failed to set receive buffer to %d: %v", l.rcvBuf, err)
		}
	}
	monitoring.Logf("[udp] listening for frames on %s", conn.LocalAddr())

	if l.feedStats != nil {
		go l.startStatsLogging(ctx)
	}

	// Frames carry every segment in one datagram.
	buffer := make([]byte, 64*1024)
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("[udp] listener stopping")
			return ctx.Err()
		default:
		}

		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, from, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			monitoring.Logf("[udp] read error: %v", err)
			continue
		}
		if err := l.handlePacket(buffer[:n]); err != nil {
			monitoring.Logf("[udp] dropping datagram from %v: %v", from, err)
		}
	}
}

func (l *UDPListener) startStatsLogging(ctx context.Context) {
	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.feedStats.LogStats()
		}
	}
}

// handlePacket decodes one datagram and passes the frame on. Frames without
// a timestamp are stamped with the arrival time.
func (l *UDPListener) handlePacket(packet []byte) error {
	l.stats.AddPacket(len(packet))
	frame, err := l1segments.ParsePayload(packet)
	if err != nil {
		l.stats.AddMalformed()
		return err
	}
	if frame.Timestamp.IsZero() {
		frame.Timestamp = l.clock.Now()
	}
	l.stats.AddFrame()
	if l.handler != nil {
		l.handler(frame)
	}
	return nil
}
