package adapter

import (
	"fmt"
	"sync"

	"go.bug.st/serial"
)

// SerialAdapter talks to a printer on a serial port at a fixed baud rate.
type SerialAdapter struct {
	portName string
	baudRate int
	port     serial.Port
	mu       sync.Mutex
}

// NewSerialAdapter creates an unopened adapter for portName.
func NewSerialAdapter(portName string, baudRate int) *SerialAdapter {
	return &SerialAdapter{
		portName: portName,
		baudRate: baudRate,
	}
}

// SerialPorts lists the serial ports present on this host.
func SerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}

// Open opens the port with 8N1 framing.
func (a *SerialAdapter) Open() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.port != nil {
		return ErrAlreadyOpen
	}

	mode := &serial.Mode{
		BaudRate: a.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(a.portName, mode)
	if err != nil {
		return fmt.Errorf("open %s at %d baud: %w", a.portName, a.baudRate, err)
	}

	a.port = port
	return nil
}

// Write sends data and waits until the OS has transmitted it.
func (a *SerialAdapter) Write(data []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.port == nil {
		return 0, ErrNotOpen
	}

	n, err := a.port.Write(data)
	if err != nil {
		return n, fmt.Errorf("write failed: %w", err)
	}
	if err := a.port.Drain(); err != nil {
		return n, fmt.Errorf("drain failed: %w", err)
	}
	return n, nil
}

// Read reads data from the printer
func (a *SerialAdapter) Read(buf []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.port == nil {
		return 0, ErrNotOpen
	}

	n, err := a.port.Read(buf)
	if err != nil {
		return n, fmt.Errorf("read failed: %w", err)
	}
	return n, nil
}

// Close closes the port. Closing an unopened adapter is a no-op.
func (a *SerialAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.port == nil {
		return nil
	}
	err := a.port.Close()
	a.port = nil
	return err
}

// IsOpen returns whether the port is open
func (a *SerialAdapter) IsOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.port != nil
}
