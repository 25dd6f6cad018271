package adapter

import (
	"sort"

	"github.com/google/gousb"
)

// IfaceClassPrinter is the USB printer interface class.
// Reference: http://www.usb.org/developers/defined_class
const IfaceClassPrinter = 0x07

// AnyInterface disables the interface restriction of FindBulkOut.
const AnyInterface = -1

// BulkOutEndpoint locates a bulk OUT endpoint inside a configuration
type BulkOutEndpoint struct {
	Interface int
	Alternate int
	Number    int
	Address   gousb.EndpointAddress
	Class     gousb.Class
}

// IsPrinter reports whether the endpoint sits on a printer-class interface
func (e BulkOutEndpoint) IsPrinter() bool {
	return e.Class == IfaceClassPrinter
}

// FindBulkOut walks the interfaces of cfg, then their alternate settings,
// then their endpoints, and returns the first bulk OUT endpoint. When
// iface is not AnyInterface only that interface number is searched.
func FindBulkOut(cfg gousb.ConfigDesc, iface int) (BulkOutEndpoint, bool) {
	for _, intf := range cfg.Interfaces {
		if iface >= 0 && intf.Number != iface {
			continue
		}
		for _, alt := range intf.AltSettings {
			for _, ep := range sortedEndpoints(alt.Endpoints) {
				if ep.TransferType == gousb.TransferTypeBulk && ep.Direction == gousb.EndpointDirectionOut {
					return BulkOutEndpoint{
						Interface: intf.Number,
						Alternate: alt.Alternate,
						Number:    ep.Number,
						Address:   ep.Address,
						Class:     alt.Class,
					}, true
				}
			}
		}
	}
	return BulkOutEndpoint{}, false
}

// gousb keeps endpoints in a map; order them by address so the search is
// deterministic.
func sortedEndpoints(m map[gousb.EndpointAddress]gousb.EndpointDesc) []gousb.EndpointDesc {
	eps := make([]gousb.EndpointDesc, 0, len(m))
	for _, ep := range m {
		eps = append(eps, ep)
	}
	sort.Slice(eps, func(i, j int) bool { return eps[i].Address < eps[j].Address })
	return eps
}

// FirstConfig returns the configuration with the lowest number, used when a
// device has no active configuration yet.
func FirstConfig(desc *gousb.DeviceDesc) (gousb.ConfigDesc, bool) {
	if desc == nil || len(desc.Configs) == 0 {
		return gousb.ConfigDesc{}, false
	}
	first := -1
	for num := range desc.Configs {
		if first < 0 || num < first {
			first = num
		}
	}
	return desc.Configs[first], true
}
