package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nixxel-company-limited/escpos-receipt-printer/adapter"
)

// Serial defaults. Many cheap printers drop bytes that arrive faster than
// their buffer drains, so payloads go out in paced chunks.
var (
	DefaultBaudRates  = []int{9600, 19200, 38400, 115200}
	DefaultChunkSize  = 256
	DefaultChunkDelay = 50 * time.Millisecond
)

// SerialStrategy writes the payload to a serial printer in paced chunks.
type SerialStrategy struct {
	port       string
	baudRates  []int
	chunkSize  int
	chunkDelay time.Duration
	listPorts  func() ([]string, error)
	newAdapter func(port string, baud int) adapter.Adapter
	sleep      func(time.Duration)
}

// NewSerialStrategy creates a serial strategy. An empty port selects the
// first port the host reports.
func NewSerialStrategy(port string, baudRates []int, chunkSize int, chunkDelay time.Duration) *SerialStrategy {
	if len(baudRates) == 0 {
		baudRates = DefaultBaudRates
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &SerialStrategy{
		port:       port,
		baudRates:  baudRates,
		chunkSize:  chunkSize,
		chunkDelay: chunkDelay,
		listPorts:  adapter.SerialPorts,
		newAdapter: func(port string, baud int) adapter.Adapter {
			return adapter.NewSerialAdapter(port, baud)
		},
		sleep: time.Sleep,
	}
}

func (s *SerialStrategy) Name() string { return NameSerial }

func (s *SerialStrategy) Available(context.Context) bool {
	_, err := s.resolvePort()
	return err == nil
}

func (s *SerialStrategy) resolvePort() (string, error) {
	if s.port != "" {
		return s.port, nil
	}
	ports, err := s.listPorts()
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", errors.New("no serial ports found")
	}
	return ports[0], nil
}

// Attempt writes the whole payload or fails; a failed chunk is never
// resumed. The payload is not cancelled once the first chunk is out.
func (s *SerialStrategy) Attempt(_ context.Context, job Job) error {
	port, err := s.resolvePort()
	if err != nil {
		return Unavailable(NameSerial, err)
	}

	dev, err := s.connect(port)
	if err != nil {
		return Rejected(NameSerial, err)
	}
	defer dev.Close()

	if err := s.writeChunks(dev, job.Payload); err != nil {
		return Rejected(NameSerial, err)
	}
	return nil
}

// connect opens port at the first baud rate that works.
func (s *SerialStrategy) connect(port string) (adapter.Adapter, error) {
	var errs []error
	for _, baud := range s.baudRates {
		dev := s.newAdapter(port, baud)
		if err := dev.Open(); err != nil {
			_ = dev.Close()
			errs = append(errs, err)
			continue
		}
		return dev, nil
	}
	return nil, fmt.Errorf("no baud rate could open %s: %w", port, errors.Join(errs...))
}

func (s *SerialStrategy) writeChunks(dev adapter.Adapter, payload []byte) error {
	for off := 0; off < len(payload); off += s.chunkSize {
		end := min(off+s.chunkSize, len(payload))
		chunk := payload[off:end]

		if off > 0 && s.chunkDelay > 0 {
			s.sleep(s.chunkDelay)
		}

		n, err := dev.Write(chunk)
		if err != nil {
			return fmt.Errorf("chunk at offset %d: %w", off, err)
		}
		if n != len(chunk) {
			return fmt.Errorf("chunk at offset %d: short write: %d of %d bytes", off, n, len(chunk))
		}
	}
	return nil
}
