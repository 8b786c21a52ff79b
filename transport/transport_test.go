package transport

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

// MockAdapter is a mock implementation of the adapter.Adapter interface for testing
type MockAdapter struct {
	openErr    error
	failWrite  int // 1-based write call that fails, 0 for never
	shortWrite bool
	open       bool
	writes     [][]byte
	closed     int
}

func (m *MockAdapter) Open() error {
	if m.openErr != nil {
		return m.openErr
	}
	m.open = true
	return nil
}

func (m *MockAdapter) Write(data []byte) (int, error) {
	m.writes = append(m.writes, append([]byte(nil), data...))
	if m.failWrite == len(m.writes) {
		return 0, io.ErrClosedPipe
	}
	if m.shortWrite {
		return len(data) / 2, nil
	}
	return len(data), nil
}

func (m *MockAdapter) Read(buf []byte) (int, error) {
	return 0, nil
}

func (m *MockAdapter) Close() error {
	m.open = false
	m.closed++
	return nil
}

func (m *MockAdapter) IsOpen() bool {
	return m.open
}

func (m *MockAdapter) written() []byte {
	var out []byte
	for _, w := range m.writes {
		out = append(out, w...)
	}
	return out
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("no device")

	u := Unavailable(NameUSB, cause)
	assert.ErrorIs(t, u, ErrUnavailable)
	assert.ErrorIs(t, u, cause)
	assert.NotErrorIs(t, u, ErrDeviceRejected)
	assert.Equal(t, "usb: transport unavailable: no device", u.Error())

	r := Rejected(NameSerial, nil)
	assert.ErrorIs(t, r, ErrDeviceRejected)
	assert.Equal(t, "serial: device rejected transfer", r.Error())
	assert.Equal(t, "rejected", r.Kind.String())
}

func TestAsError(t *testing.T) {
	assert.Nil(t, AsError(NameUSB, nil))

	original := Unavailable(NameBridge, errors.New("x"))
	assert.Same(t, original, AsError(NameUSB, original))

	converted := AsError(NameNetwork, io.EOF)
	assert.Equal(t, KindDeviceRejected, converted.Kind)
	assert.Equal(t, NameNetwork, converted.Strategy)
	assert.ErrorIs(t, converted, io.EOF)
}

func TestPriority(t *testing.T) {
	assert.Equal(t, []string{"usb", "bridge", "network", "serial", "browser"}, Priority)
}
