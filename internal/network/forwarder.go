package network

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/lanekeep/internal/lane/pipeline"
	"github.com/banshee-data/lanekeep/internal/monitoring"
)

// ResultForwarder sends each pipeline.Result as one JSON datagram. Sends
// happen on a background goroutine; when its queue is full the result is
// dropped and counted.
type ResultForwarder struct {
	conn        *net.UDPConn
	channel     chan []byte
	stats       Stats
	logInterval time.Duration
	address     string
	closeOnce   sync.Once
	done        chan struct{}
}

// NewResultForwarder dials address ("host:port"). A nil stats discards the
// drop count.
func NewResultForwarder(address string, stats Stats, logInterval time.Duration) (*ResultForwarder, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve forward address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create forward connection: %w", err)
	}
	if stats == nil {
		stats = noopStats{}
	}
	if logInterval <= 0 {
		logInterval = time.Minute
	}
	return &ResultForwarder{
		conn:        conn,
		channel:     make(chan []byte, 256),
		stats:       stats,
		logInterval: logInterval,
		address:     address,
		done:        make(chan struct{}),
	}, nil
}

// Start runs the send loop until ctx is cancelled or Close is called.
func (f *ResultForwarder) Start(ctx context.Context) {
	go func() {
		failed := 0
		var lastErr error
		ticker := time.NewTicker(f.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-f.done:
				return
			case msg := <-f.channel:
				if _, err := f.conn.Write(msg); err != nil {
					failed++
					lastErr = err
				}
			case <-ticker.C:
				if failed > 0 {
					monitoring.Logf("[forward] Warning: %d results failed to send (latest: %v)", failed, lastErr)
					failed, lastErr = 0, nil
				}
			}
		}
	}()
	monitoring.Logf("[forward] sending results to %s", f.address)
}

// HandleResult queues res without blocking.
func (f *ResultForwarder) HandleResult(res pipeline.Result) {
	msg, err := json.Marshal(res)
	if err != nil {
		monitoring.Logf("[forward] encode frame %d: %v", res.Frame, err)
		return
	}
	select {
	case <-f.done:
		return
	default:
	}
	select {
	case f.channel <- msg:
	default:
		f.stats.AddDropped()
	}
}

// Close stops the send loop and closes the socket.
func (f *ResultForwarder) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.done)
		err = f.conn.Close()
	})
	return err
}
