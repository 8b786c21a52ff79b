package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nixxel-company-limited/escpos-receipt-printer/adapter"
)

func usbWith(dev *MockAdapter, openErr error) *USBStrategy {
	s := NewUSBStrategy(adapter.USBMatch{})
	s.find = func(adapter.USBMatch) ([]adapter.DeviceInfo, error) {
		if dev == nil {
			return nil, nil
		}
		return []adapter.DeviceInfo{{Vendor: 0x04b8, Product: 0x0202}}, nil
	}
	s.open = func(adapter.USBMatch) (adapter.Adapter, error) {
		if openErr != nil {
			return nil, openErr
		}
		return dev, nil
	}
	return s
}

func TestUSBStrategySuccess(t *testing.T) {
	dev := &MockAdapter{}
	s := usbWith(dev, nil)
	payload := []byte{0x1B, 0x40, 'h', 'i'}

	assert.Equal(t, NameUSB, s.Name())
	assert.True(t, s.Available(context.Background()))
	assert.NoError(t, s.Attempt(context.Background(), Job{Payload: payload}))

	assert.Len(t, dev.writes, 1, "payload must go out as a single transfer")
	assert.Equal(t, payload, dev.written())
	assert.Equal(t, 1, dev.closed)
	assert.False(t, dev.IsOpen())
}

func TestUSBStrategyNoDevice(t *testing.T) {
	s := usbWith(nil, adapter.ErrNoPrinter)

	assert.False(t, s.Available(context.Background()))

	err := s.Attempt(context.Background(), Job{Payload: []byte("x")})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, adapter.ErrNoPrinter)
}

func TestUSBStrategyClaimFailure(t *testing.T) {
	dev := &MockAdapter{openErr: errors.New("failed to claim interface")}
	s := usbWith(dev, nil)

	err := s.Attempt(context.Background(), Job{Payload: []byte("x")})
	assert.ErrorIs(t, err, ErrDeviceRejected)
	assert.Equal(t, 1, dev.closed)
}

func TestUSBStrategyTransferRejected(t *testing.T) {
	dev := &MockAdapter{failWrite: 1}
	s := usbWith(dev, nil)

	err := s.Attempt(context.Background(), Job{Payload: []byte("x")})
	assert.ErrorIs(t, err, ErrDeviceRejected)
	assert.Equal(t, 1, dev.closed)
}

func TestUSBStrategyShortWrite(t *testing.T) {
	dev := &MockAdapter{shortWrite: true}
	s := usbWith(dev, nil)

	err := s.Attempt(context.Background(), Job{Payload: []byte("abcd")})
	assert.ErrorIs(t, err, ErrDeviceRejected)
	assert.Contains(t, err.Error(), "short write")
}

func TestUSBStrategyMatch(t *testing.T) {
	s := NewUSBStrategy(adapter.USBMatch{})
	assert.Equal(t, adapter.DefaultVendorIDs, s.match.Vendors)
	assert.False(t, s.match.PrinterClass)

	s = NewUSBStrategy(adapter.USBMatch{Vendors: []uint16{0x04b8}, PrinterClass: true})
	var seen adapter.USBMatch
	s.find = func(m adapter.USBMatch) ([]adapter.DeviceInfo, error) {
		seen = m
		return nil, nil
	}
	assert.False(t, s.Available(context.Background()))
	assert.Equal(t, adapter.USBMatch{Vendors: []uint16{0x04b8}, PrinterClass: true}, seen)
}
