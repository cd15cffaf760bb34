// Package serialmux drives the in-cab guidance display over a serial line.
// One SerialMux owns the port; guidance lines are written to it and every
// line the display sends back is fanned out to subscribers.
package serialmux

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"tailscale.com/tsweb"

	"github.com/banshee-data/lanekeep/internal/monitoring"
)

// ErrWriteFailed reports a short write to the port.
var ErrWriteFailed = errors.New("failed to write to serial port")

var sendCommandTemplate = template.Must(template.New("send-command").Parse(`<!DOCTYPE html>
<html>
<head><title>Guidance display</title></head>
<body>
<h1>Guidance display</h1>
<form method="POST" action="/debug/send-command-api">
<input type="text" name="command" placeholder="G,0,0,0,S" autofocus>
<button type="submit">Send</button>
</form>
<pre id="tail"></pre>
<script>
const tail = document.getElementById("tail");
const es = new EventSource("/debug/tail");
es.onmessage = (e) => { tail.textContent = e.data + "\n" + tail.textContent; };
</script>
</body>
</html>
`))

// subscriberBuffer lets a slow reader fall a few lines behind before it
// starts missing them.
const subscriberBuffer = 16

// SerialMux owns one port. Writes are serialised and every line read back
// is broadcast to the current subscribers.
type SerialMux[T SerialPorter] struct {
	port    T
	writeMu sync.Mutex
	closed  atomic.Bool
	now     func() time.Time

	subMu       sync.Mutex
	subscribers map[string]chan string
}

// SerialMuxInterface is what the rest of the program needs from a display
// connection. DisabledSerialMux satisfies it when no port is configured.
type SerialMuxInterface interface {
	// Subscribe returns an id and a channel that receives each line read
	// from the port until Unsubscribe or Close.
	Subscribe() (string, chan string)
	Unsubscribe(string)
	// SendCommand writes one line to the port.
	SendCommand(string) error
	// Monitor reads the port until ctx ends or input stops.
	Monitor(context.Context) error
	Close() error
	// Initialize sends the start-up sequence.
	Initialize() error
	// AttachAdminRoutes mounts the /debug/ pages for the port.
	AttachAdminRoutes(*http.ServeMux)
}

// NewSerialMux wraps an already opened port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{
		port:        port,
		subscribers: make(map[string]chan string),
		now:         time.Now,
	}
}

func (s *SerialMux[T]) Subscribe() (string, chan string) {
	id := uuid.NewString()
	ch := make(chan string, subscriberBuffer)
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.closed.Load() {
		close(ch)
		return id, ch
	}
	s.subscribers[id] = ch
	return id, ch
}

func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Initialize resets the display, syncs its clock and asks for a status
// report so the first reply tells us the firmware version.
func (s *SerialMux[T]) Initialize() error {
	for _, command := range []string{
		CommandReset,
		fmt.Sprintf("%s=%d", CommandClock, s.now().Unix()),
		CommandStatus,
	} {
		if err := s.SendCommand(command); err != nil {
			return fmt.Errorf("failed to send start command %q: %w", command, err)
		}
	}
	return nil
}

// SendCommand writes command to the port, adding the trailing newline if
// it is missing.
func (s *SerialMux[T]) SendCommand(command string) error {
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	n, err := io.WriteString(s.port, command)
	if err != nil {
		return err
	}
	if n != len(command) {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrWriteFailed, n, len(command))
	}
	return nil
}

// Monitor broadcasts each line read from the port. It returns ctx.Err()
// when ctx ends, the read error if the port fails, and nil at end of input
// or after Close.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	// Scanning blocks on the port, so it cannot sit in the select below.
	go func() {
		defer close(lines)
		scan := bufio.NewScanner(s.port)
		for scan.Scan() {
			select {
			case lines <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scan.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if s.closed.Load() {
						return nil
					}
					return err
				default:
					return ctx.Err()
				}
			}
			if s.closed.Load() {
				return nil
			}
			s.broadcast(line)
		}
	}
}

// broadcast drops the line for any subscriber whose buffer is full.
func (s *SerialMux[T]) broadcast(line string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- line:
		default:
		}
	}
}

// Close closes every subscriber channel and then the port. Calling it
// again only closes the port again.
func (s *SerialMux[T]) Close() error {
	s.closed.Store(true)
	s.subMu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subMu.Unlock()
	return s.port.Close()
}

func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	attachAdminRoutes(mux, s)
}

func attachAdminRoutes(mux *http.ServeMux, s SerialMuxInterface) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("send-command", "send a line to the guidance display", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := sendCommandTemplate.Execute(w, nil); err != nil {
			monitoring.Logf("[display] warning: render send-command page: %v", err)
		}
	})

	debug.HandleSilentFunc("send-command-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		if err := s.SendCommand(command); err != nil {
			monitoring.Logf("[display] warning: send %q: %v", command, err)
			http.Error(w, "Failed to write command", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "Wrote command %q to serial port", command)
	})

	// Server-sent events, one per line from the display.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("X-Accel-Buffering", "no")

		id, lines := s.Subscribe()
		defer s.Unsubscribe(id)

		io.WriteString(w, ": ping\n\n")
		flusher.Flush()
		for {
			select {
			case <-r.Context().Done():
				return
			case line, ok := <-lines:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", line); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	})
}
