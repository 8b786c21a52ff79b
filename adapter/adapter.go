package adapter

import "errors"

var (
	// ErrNotOpen is returned by I/O on a closed adapter.
	ErrNotOpen = errors.New("device not open")
	// ErrAlreadyOpen is returned by Open on an open adapter.
	ErrAlreadyOpen = errors.New("device already open")
	// ErrNoPrinter is returned when no matching printer is attached.
	ErrNoPrinter = errors.New("cannot find printer")
)

// Adapter defines the interface for printer communication adapters
type Adapter interface {
	// Open opens the connection to the printer
	Open() error

	// Write sends data to the printer
	Write(data []byte) (int, error)

	// Read reads data from the printer
	Read(buf []byte) (int, error)

	// Close releases every handle held by the adapter. It is safe to call
	// on an adapter that was never opened.
	Close() error

	// IsOpen returns whether the connection is open
	IsOpen() bool
}
