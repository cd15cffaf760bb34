package serialmux

import (
	"bytes"
	"io"
	"sync"
)

// TestableSerialPort is an in-memory SerialPorter. Lines queued with
// QueueLine are returned by Read; Write appends to Written.
type TestableSerialPort struct {
	mu       sync.Mutex
	reader   *io.PipeReader
	writer   *io.PipeWriter
	written  bytes.Buffer
	writeErr error
	closed   bool
}

func NewTestableSerialPort() *TestableSerialPort {
	r, w := io.Pipe()
	return &TestableSerialPort{reader: r, writer: w}
}

func (p *TestableSerialPort) Read(b []byte) (int, error) {
	return p.reader.Read(b)
}

func (p *TestableSerialPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	return p.written.Write(b)
}

func (p *TestableSerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.writer.Close()
	return p.reader.Close()
}

// QueueLine makes line available to Read. It blocks until the line is
// consumed.
func (p *TestableSerialPort) QueueLine(line string) error {
	_, err := p.writer.Write([]byte(line + "\n"))
	return err
}

// EndInput closes the read side with io.EOF.
func (p *TestableSerialPort) EndInput() error {
	return p.writer.Close()
}

// SetWriteError makes every later Write fail with err.
func (p *TestableSerialPort) SetWriteError(err error) {
	p.mu.Lock()
	p.writeErr = err
	p.mu.Unlock()
}

// Written returns everything written so far.
func (p *TestableSerialPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}
