// Package transport delivers a formatted receipt to a printing surface. Each
// Strategy is one self-contained delivery mechanism; the printer package
// sequences them.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nixxel-company-limited/escpos-receipt-printer/receipt"
)

// Strategy names, listed in priority order by Priority.
const (
	NameUSB     = "usb"
	NameBridge  = "bridge"
	NameNetwork = "network"
	NameSerial  = "serial"
	NameBrowser = "browser"
)

// Priority is the order strategies must be tried in: device level first,
// then network, then serial, and the browser dialog last.
var Priority = []string{NameUSB, NameBridge, NameNetwork, NameSerial, NameBrowser}

// Job is one print request as seen by a strategy.
type Job struct {
	ID string
	// Payload is the ESC/POS byte stream. Strategies must treat it as read-only.
	Payload []byte
	// Receipt is the source sale, nil when printing pre-formatted bytes.
	Receipt *receipt.SaleReceipt
	// Time is when the payload was rendered.
	Time time.Time
}

// Strategy is one way of getting bytes onto paper.
type Strategy interface {
	// Name identifies the strategy in logs and results.
	Name() string
	// Available reports whether the mechanism exists in this environment.
	Available(ctx context.Context) bool
	// Attempt delivers job. It returns nil or a *Error, and releases every
	// handle it opened before returning.
	Attempt(ctx context.Context, job Job) error
}

// Kind classifies a delivery failure.
type Kind int

const (
	KindUnavailable Kind = iota + 1
	KindDeviceRejected
)

func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindDeviceRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

var (
	// ErrUnavailable matches failures where the mechanism does not exist here.
	ErrUnavailable = errors.New("transport unavailable")
	// ErrDeviceRejected matches failures where a device refused the transfer.
	ErrDeviceRejected = errors.New("device rejected transfer")
)

// Error is the failure type every strategy returns.
type Error struct {
	Strategy string
	Kind     Kind
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Strategy, e.sentinel(), e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Strategy, e.sentinel())
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.sentinel()}
	}
	return []error{e.sentinel(), e.Err}
}

func (e *Error) sentinel() error {
	if e.Kind == KindUnavailable {
		return ErrUnavailable
	}
	return ErrDeviceRejected
}

// Unavailable builds a KindUnavailable error.
func Unavailable(strategy string, err error) *Error {
	return &Error{Strategy: strategy, Kind: KindUnavailable, Err: err}
}

// Rejected builds a KindDeviceRejected error.
func Rejected(strategy string, err error) *Error {
	return &Error{Strategy: strategy, Kind: KindDeviceRejected, Err: err}
}

// AsError converts any error into a *Error, treating foreign errors as
// device rejections.
func AsError(strategy string, err error) *Error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	return Rejected(strategy, err)
}
