package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/tarm/serial"
)

// SerialPort serves one handler over a serial device.
type SerialPort struct {
	device  string
	baud    int
	handler Handler
	framing Framing
	logger  *slog.Logger

	mu   sync.Mutex
	port io.ReadWriteCloser
	done chan struct{}
}

// NewSerialPort prepares a serial transport; nothing is opened until Start.
func NewSerialPort(device string, baud int, h Handler, f Framing, logger *slog.Logger) *SerialPort {
	if logger == nil {
		logger = slog.Default()
	}
	if baud <= 0 {
		baud = 9600
	}
	return &SerialPort{
		device:  device,
		baud:    baud,
		handler: h,
		framing: f,
		logger:  logger.With("transport", "serial", "device", device),
	}
}

// Start opens the device and serves it in the background.
func (p *SerialPort) Start() error {
	port, err := serial.OpenPort(&serial.Config{Name: p.device, Baud: p.baud})
	if err != nil {
		return fmt.Errorf("open serial %s: %w", p.device, err)
	}
	return p.serve(port)
}

func (p *SerialPort) serve(port io.ReadWriteCloser) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.port != nil {
		_ = port.Close()
		return fmt.Errorf("serial %s already started", p.device)
	}
	p.port = port
	p.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		p.logger.Info("serving serial port", "baud", p.baud)
		err := NewSession(p.handler, p.framing, p.logger).Serve(port)
		if err != nil && !errors.Is(err, os.ErrClosed) {
			p.logger.Warn("serial session ended", "error", err)
		}
	}(p.done)
	return nil
}

// Stop closes the device and waits for the session to return.
func (p *SerialPort) Stop() error {
	p.mu.Lock()
	port, done := p.port, p.done
	p.port, p.done = nil, nil
	p.mu.Unlock()

	if port == nil {
		return nil
	}
	err := port.Close()
	<-done
	return err
}
