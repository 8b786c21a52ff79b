package transport

import (
	"context"
	"fmt"

	"github.com/nixxel-company-limited/escpos-receipt-printer/adapter"
)

// USBStrategy writes the payload to the first allow-listed USB printer as a
// single bulk transfer.
type USBStrategy struct {
	match adapter.USBMatch
	find  func(m adapter.USBMatch) ([]adapter.DeviceInfo, error)
	open  func(m adapter.USBMatch) (adapter.Adapter, error)
}

// NewUSBStrategy creates a USB strategy. An empty vendor list selects
// adapter.DefaultVendorIDs.
func NewUSBStrategy(match adapter.USBMatch) *USBStrategy {
	if len(match.Vendors) == 0 {
		match.Vendors = adapter.DefaultVendorIDs
	}
	return &USBStrategy{
		match: match,
		find:  adapter.FindUSBPrinters,
		open: func(m adapter.USBMatch) (adapter.Adapter, error) {
			return adapter.OpenUSBPrinter(m)
		},
	}
}

func (s *USBStrategy) Name() string { return NameUSB }

// Available reports whether a matching printer is attached.
func (s *USBStrategy) Available(context.Context) bool {
	found, err := s.find(s.match)
	return err == nil && len(found) > 0
}

func (s *USBStrategy) Attempt(_ context.Context, job Job) error {
	dev, err := s.open(s.match)
	if err != nil {
		return Unavailable(NameUSB, err)
	}
	defer dev.Close()

	if err := dev.Open(); err != nil {
		return Rejected(NameUSB, err)
	}

	n, err := dev.Write(job.Payload)
	if err != nil {
		return Rejected(NameUSB, err)
	}
	if n != len(job.Payload) {
		return Rejected(NameUSB, fmt.Errorf("short write: %d of %d bytes", n, len(job.Payload)))
	}
	return nil
}
