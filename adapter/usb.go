package adapter

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"

	"github.com/google/gousb"
)

// Interface class codes
// Reference: http://www.usb.org/developers/defined_class
const (
	IfaceClassPrinter = 0x07
	IfaceClassVendor  = 0xFF
)

// DefaultVendorIDs lists vendors of common ESC/POS thermal printers.
var DefaultVendorIDs = []uint16{
	0x04b8, // Epson
	0x0519, // Star Micronics
	0x1d90, // Citizen
	0x1504, // Bixolon
	0x0dd4, // Custom
	0x0416, // Winbond based generic POS
	0x0fe6, // ICS generic POS
	0x28e9, // GD32 based generic POS
}

// DeviceInfo identifies an enumerated USB printer.
type DeviceInfo struct {
	Bus     int
	Address int
	Vendor  uint16
	Product uint16
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%04x:%04x (bus %d, address %d)", d.Vendor, d.Product, d.Bus, d.Address)
}

// USBAdapter writes to a USB printer through its bulk OUT endpoint.
type USBAdapter struct {
	ctx         *gousb.Context
	device      *gousb.Device
	config      *gousb.Config
	iface       *gousb.Interface
	outEndpoint *gousb.OutEndpoint
	inEndpoint  *gousb.InEndpoint
	info        DeviceInfo
	isOpen      bool
	mu          sync.Mutex
}

// newContext initializes libusb. gousb panics when libusb is missing, which
// is reported as an error here.
func newContext() (ctx *gousb.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			ctx, err = nil, fmt.Errorf("libusb unavailable: %v", r)
		}
	}()
	return gousb.NewContext(), nil
}

// USBMatch selects which attached USB devices are treated as receipt
// printers.
type USBMatch struct {
	Vendors []uint16
	// PrinterClass also accepts devices of any vendor that declare the
	// printer interface class.
	PrinterClass bool
}

// IsPrinter reports whether desc matches m: its vendor is allow-listed, or
// m.PrinterClass is set and one of its interfaces declares the printer class.
func IsPrinter(desc *gousb.DeviceDesc, m USBMatch) bool {
	if desc == nil {
		return false
	}
	if slices.Contains(m.Vendors, uint16(desc.Vendor)) {
		return true
	}
	if !m.PrinterClass {
		return false
	}
	for _, cfg := range desc.Configs {
		for _, iface := range cfg.Interfaces {
			for _, alt := range iface.AltSettings {
				if alt.Class == IfaceClassPrinter {
					return true
				}
			}
		}
	}
	return false
}

// usable reports whether desc matches m and has an interface a payload can
// be written to.
func usable(desc *gousb.DeviceDesc, m USBMatch) bool {
	if !IsPrinter(desc, m) {
		return false
	}
	for _, cfg := range desc.Configs {
		if _, _, ok := printerInterface(cfg); ok {
			return true
		}
	}
	return false
}

func infoOf(desc *gousb.DeviceDesc) DeviceInfo {
	return DeviceInfo{
		Bus:     desc.Bus,
		Address: desc.Address,
		Vendor:  uint16(desc.Vendor),
		Product: uint16(desc.Product),
	}
}

// FindUSBPrinters enumerates attached printers without opening any of them.
func FindUSBPrinters(m USBMatch) ([]DeviceInfo, error) {
	ctx, err := newContext()
	if err != nil {
		return nil, err
	}
	defer ctx.Close()

	var found []DeviceInfo
	_, err = ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if usable(desc, m) {
			found = append(found, infoOf(desc))
		}
		return false
	})
	if err != nil {
		return found, fmt.Errorf("enumerate usb devices: %w", err)
	}
	return found, nil
}

// OpenUSBPrinter returns an adapter for the first attached printer matching
// m. Matching devices without a writable printer interface are skipped. The
// adapter still has to be opened.
func OpenUSBPrinter(m USBMatch) (*USBAdapter, error) {
	ctx, err := newContext()
	if err != nil {
		return nil, err
	}

	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return usable(desc, m)
	})
	if len(devices) == 0 {
		ctx.Close()
		if err != nil {
			return nil, fmt.Errorf("open usb devices: %w", err)
		}
		return nil, ErrNoPrinter
	}

	for _, dev := range devices[1:] {
		dev.Close()
	}

	return &USBAdapter{
		ctx:    ctx,
		device: devices[0],
		info:   infoOf(devices[0].Desc),
	}, nil
}

// Open claims the printer interface and resolves its bulk endpoints.
func (a *USBAdapter) Open() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.isOpen {
		return ErrAlreadyOpen
	}
	if a.device == nil {
		return ErrNoPrinter
	}

	// Set auto-detach kernel driver on Linux
	if runtime.GOOS == "linux" {
		_ = a.device.SetAutoDetach(true)
	}

	cfgNum, err := a.device.ActiveConfigNum()
	if err != nil {
		return fmt.Errorf("failed to get active config: %w", err)
	}

	cfg, err := a.device.Config(cfgNum)
	if err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}

	ifaceNum, altNum, ok := printerInterface(cfg.Desc)
	if !ok {
		cfg.Close()
		return errors.New("no printer interface found")
	}

	iface, err := cfg.Interface(ifaceNum, altNum)
	if err != nil {
		cfg.Close()
		return fmt.Errorf("failed to claim interface: %w", err)
	}

	var out *gousb.OutEndpoint
	var in *gousb.InEndpoint
	for _, epDesc := range iface.Setting.Endpoints {
		if epDesc.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if epDesc.Direction == gousb.EndpointDirectionOut && out == nil {
			if ep, err := iface.OutEndpoint(epDesc.Number); err == nil {
				out = ep
			}
		}
		if epDesc.Direction == gousb.EndpointDirectionIn && in == nil {
			if ep, err := iface.InEndpoint(epDesc.Number); err == nil {
				in = ep
			}
		}
	}

	if out == nil {
		iface.Close()
		cfg.Close()
		return errors.New("cannot find output endpoint from printer")
	}

	a.config = cfg
	a.iface = iface
	a.outEndpoint = out
	a.inEndpoint = in
	a.isOpen = true
	return nil
}

// printerInterface prefers an interface of the printer class and falls back
// to a vendor-specific one, which many cheap printers report instead.
func printerInterface(desc gousb.ConfigDesc) (iface, alt int, ok bool) {
	for _, class := range []gousb.Class{IfaceClassPrinter, IfaceClassVendor} {
		for _, id := range desc.Interfaces {
			for _, s := range id.AltSettings {
				if s.Class == class && hasBulkOut(s) {
					return id.Number, s.Alternate, true
				}
			}
		}
	}
	return 0, 0, false
}

func hasBulkOut(s gousb.InterfaceSetting) bool {
	for _, ep := range s.Endpoints {
		if ep.Direction == gousb.EndpointDirectionOut && ep.TransferType == gousb.TransferTypeBulk {
			return true
		}
	}
	return false
}

// Write sends data to the printer
func (a *USBAdapter) Write(data []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isOpen {
		return 0, ErrNotOpen
	}

	n, err := a.outEndpoint.Write(data)
	if err != nil {
		return n, fmt.Errorf("write failed: %w", err)
	}
	return n, nil
}

// Read reads status bytes from the printer, if it has an IN endpoint.
func (a *USBAdapter) Read(buf []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isOpen {
		return 0, ErrNotOpen
	}
	if a.inEndpoint == nil {
		return 0, errors.New("input endpoint not available")
	}

	n, err := a.inEndpoint.Read(buf)
	if err != nil {
		return n, fmt.Errorf("read failed: %w", err)
	}
	return n, nil
}

// Close releases interface, configuration, device and libusb context.
func (a *USBAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error

	if a.iface != nil {
		a.iface.Close()
		a.iface = nil
	}
	if a.config != nil {
		if err := a.config.Close(); err != nil {
			errs = append(errs, err)
		}
		a.config = nil
	}
	if a.device != nil {
		if err := a.device.Close(); err != nil {
			errs = append(errs, err)
		}
		a.device = nil
	}
	if a.ctx != nil {
		if err := a.ctx.Close(); err != nil {
			errs = append(errs, err)
		}
		a.ctx = nil
	}

	a.outEndpoint = nil
	a.inEndpoint = nil
	a.isOpen = false

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

// IsOpen returns whether the device is open
func (a *USBAdapter) IsOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isOpen
}

// Info describes the device this adapter was created for.
func (a *USBAdapter) Info() DeviceInfo {
	return a.info
}
