package discovery

import (
	"fmt"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"github.com/nixxel-company-limited/escpos-transport/adapter"
)

// USBDiscoverer enumerates attached USB devices through libusb and keeps
// those exposing a bulk OUT endpoint.
type USBDiscoverer struct {
	logger *zap.Logger
}

// NewUSBDiscoverer creates a libusb backed discoverer
func NewUSBDiscoverer(logger *zap.Logger) *USBDiscoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &USBDiscoverer{logger: logger.Named("discovery.usb")}
}

func (d *USBDiscoverer) Transport() string { return TransportUSB }

type usbCandidate struct {
	desc     *gousb.DeviceDesc
	endpoint adapter.BulkOutEndpoint
	found    bool
}

func busKey(desc *gousb.DeviceDesc) string {
	return fmt.Sprintf("%d:%d", desc.Bus, desc.Address)
}

// hasBulkOut reports whether any configuration of desc has a bulk OUT endpoint
func hasBulkOut(desc *gousb.DeviceDesc) bool {
	for _, cfg := range desc.Configs {
		if _, ok := adapter.FindBulkOut(cfg, adapter.AnyInterface); ok {
			return true
		}
	}
	return false
}

func (d *USBDiscoverer) Discover() []Device {
	devices := []Device{}

	ctx, err := adapter.NewContext()
	if err != nil {
		d.logger.Debug("usb discovery unavailable", zap.Error(err))
		return devices
	}
	defer ctx.Close()

	var order []string
	candidates := make(map[string]*usbCandidate)

	// Only devices that could qualify are opened; opening is needed to read
	// the active configuration and the string descriptors.
	opened, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if !hasBulkOut(desc) {
			return false
		}
		c := &usbCandidate{desc: desc}
		if cfg, ok := adapter.FirstConfig(desc); ok {
			c.endpoint, c.found = adapter.FindBulkOut(cfg, adapter.AnyInterface)
		}
		key := busKey(desc)
		order = append(order, key)
		candidates[key] = c
		return true
	})
	if err != nil {
		d.logger.Debug("some usb devices could not be opened", zap.Error(err))
	}

	names := make(map[string]string)
	serials := make(map[string]string)
	for _, dev := range opened {
		key := busKey(dev.Desc)
		c, ok := candidates[key]
		if !ok {
			dev.Close()
			continue
		}
		if num, err := dev.ActiveConfigNum(); err == nil {
			if cfg, ok := dev.Desc.Configs[num]; ok {
				c.endpoint, c.found = adapter.FindBulkOut(cfg, adapter.AnyInterface)
			}
		}
		if name, err := dev.Product(); err == nil && name != "" {
			names[key] = name
		}
		if serial, err := dev.SerialNumber(); err == nil && serial != "" {
			serials[key] = serial
		}
		dev.Close()
	}

	for _, key := range order {
		c := candidates[key]
		if !c.found {
			continue
		}
		vid, pid := uint16(c.desc.Vendor), uint16(c.desc.Product)
		name := names[key]
		if name == "" {
			name = USBDeviceName(vid, pid)
		}
		metadata := map[string]any{
			"bus":             c.desc.Bus,
			"address":         c.desc.Address,
			"endpointAddress": int(c.endpoint.Address),
			"interfaceClass":  c.endpoint.Class.String(),
			"printerClass":    c.endpoint.IsPrinter(),
		}
		if s, ok := serials[key]; ok {
			metadata["serialNumber"] = s
		}
		devices = append(devices, Device{
			ID:              USBDeviceID(vid, pid, c.desc.Bus, c.desc.Address),
			Name:            name,
			Transport:       TransportUSB,
			VendorID:        uint16Ptr(vid),
			ProductID:       uint16Ptr(pid),
			InterfaceNumber: intPtr(c.endpoint.Interface),
			Metadata:        metadata,
		})
	}

	d.logger.Debug("usb discovery finished", zap.Int("devices", len(devices)))
	return devices
}
