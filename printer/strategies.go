package printer

import (
	"fmt"
	"slices"

	"github.com/nixxel-company-limited/escpos-receipt-printer/adapter"
	"github.com/nixxel-company-limited/escpos-receipt-printer/config"
	"github.com/nixxel-company-limited/escpos-receipt-printer/transport"
)

// Strategies builds the enabled strategies from configuration. The result is
// always in transport.Priority order, whatever order the names were listed in.
func Strategies(cfg config.Printer) ([]transport.Strategy, error) {
	enabled := cfg.EnabledStrategies()
	for _, name := range enabled {
		if !slices.Contains(transport.Priority, name) {
			return nil, fmt.Errorf("unknown print strategy %q", name)
		}
	}

	match, err := USBMatch(cfg.USB)
	if err != nil {
		return nil, err
	}

	var strategies []transport.Strategy
	for _, name := range transport.Priority {
		if !slices.Contains(enabled, name) {
			continue
		}
		switch name {
		case transport.NameUSB:
			strategies = append(strategies, transport.NewUSBStrategy(match))
		case transport.NameBridge:
			strategies = append(strategies, transport.NewBridgeStrategy(hooks(cfg.Bridge.Hooks)))
		case transport.NameNetwork:
			strategies = append(strategies, transport.NewNetworkStrategy(
				cfg.Network.Candidates,
				cfg.Network.Port,
				cfg.NetworkMode(),
				cfg.Network.Timeout,
			))
		case transport.NameSerial:
			strategies = append(strategies, transport.NewSerialStrategy(
				cfg.Serial.Port,
				cfg.Serial.BaudRates,
				cfg.Serial.ChunkSize,
				cfg.Serial.ChunkDelay,
			))
		case transport.NameBrowser:
			strategies = append(strategies, transport.NewBrowserStrategy(cfg.Browser.Dir))
		}
	}
	return strategies, nil
}

// USBMatch converts the USB settings into a device selector.
func USBMatch(cfg config.USB) (adapter.USBMatch, error) {
	vendors, err := cfg.Vendors()
	if err != nil {
		return adapter.USBMatch{}, err
	}
	return adapter.USBMatch{Vendors: vendors, PrinterClass: cfg.MatchPrinterClass}, nil
}

func hooks(cfg []config.Hook) []transport.Hook {
	if len(cfg) == 0 {
		return transport.DefaultHooks
	}
	out := make([]transport.Hook, 0, len(cfg))
	for _, h := range cfg {
		out = append(out, transport.Hook{Name: h.Name, Command: h.Command})
	}
	return out
}
