// Package discovery enumerates printer candidates reachable over USB and
// Bluetooth. Discovery is advisory: every failure yields an empty list.
package discovery

import (
	"fmt"
	"strings"

	"github.com/google/gousb"
)

// Transport names accepted by the allow-list
const (
	TransportUSB       = "usb"
	TransportBluetooth = "bluetooth"
)

// Device is a printer candidate found during discovery
type Device struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Transport string `json:"transport"`

	// VendorID and ProductID are set for usb devices whose ids are known;
	// 0x0000 is a valid id.
	VendorID        *uint16 `json:"vendorId,omitempty"`
	ProductID       *uint16 `json:"productId,omitempty"`
	InterfaceNumber *int    `json:"interfaceNumber,omitempty"`
	ComPort         string  `json:"comPort,omitempty"`

	Address  string `json:"address,omitempty"`
	Mode     string `json:"mode,omitempty"`
	IsPaired bool   `json:"isPaired,omitempty"`

	Metadata map[string]any `json:"metadata"`
}

// Discoverer enumerates devices of one transport
type Discoverer interface {
	Transport() string
	Discover() []Device
}

// Selected reports whether transport passes the allow-list. A nil or empty
// list selects every transport.
func Selected(transports []string, transport string) bool {
	if len(transports) == 0 {
		return true
	}
	for _, t := range transports {
		if strings.EqualFold(strings.TrimSpace(t), transport) {
			return true
		}
	}
	return false
}

// Search runs every selected discoverer in order and concatenates results.
func Search(discoverers []Discoverer, transports []string) []Device {
	devices := []Device{}
	for _, d := range discoverers {
		if d == nil || !Selected(transports, d.Transport()) {
			continue
		}
		devices = append(devices, d.Discover()...)
	}
	return devices
}

// USBDeviceID builds the stable id of a USB device
func USBDeviceID(vid, pid uint16, bus, addr int) string {
	return fmt.Sprintf("usb:%s:%s:%d:%d", gousb.ID(vid), gousb.ID(pid), bus, addr)
}

// USBPortDeviceID builds the id of a USB device known only by its ids and
// the port it exposes, as reported by the device registry.
func USBPortDeviceID(vid, pid uint16, port string) string {
	return fmt.Sprintf("usb:%s:%s:%s", gousb.ID(vid), gousb.ID(pid), port)
}

// USBDeviceName is the fallback label of a USB device
func USBDeviceName(vid, pid uint16) string {
	return fmt.Sprintf("USB VID:%s PID:%s", gousb.ID(vid), gousb.ID(pid))
}

// BluetoothDeviceID builds the stable id of a Bluetooth device
func BluetoothDeviceID(address string) string {
	return "bluetooth:" + address
}

// MatchesUSB reports whether the device carries exactly vid and pid
func (d Device) MatchesUSB(vid, pid uint16) bool {
	return d.VendorID != nil && d.ProductID != nil && *d.VendorID == vid && *d.ProductID == pid
}

func intPtr(v int) *int { return &v }

func uint16Ptr(v uint16) *uint16 { return &v }
