package engine

import (
	"strings"

	"github.com/nixxel-company-limited/escpos-transport/adapter"
)

// OpenRequest selects a transport and carries the fields of that transport.
// Fields of other transports are ignored.
type OpenRequest struct {
	Transport string `json:"transport"`

	// wifi
	Host          string `json:"host,omitempty"`
	Port          int    `json:"port,omitempty"`
	TimeoutMillis int    `json:"timeout,omitempty"`

	// bluetooth
	Address string `json:"address,omitempty"`

	// usb
	VendorID        *int   `json:"vendorId,omitempty"`
	ProductID       *int   `json:"productId,omitempty"`
	InterfaceNumber *int   `json:"interfaceNumber,omitempty"`
	SerialNumber    string `json:"serialNumber,omitempty"`
	SerialPort      string `json:"serialPort,omitempty"`
}

// OpenResult is returned by a successful Open
type OpenResult struct {
	SessionID    string               `json:"sessionId"`
	Capabilities adapter.Capabilities `json:"capabilities"`
}

func (r OpenRequest) wifiParams(defaultPort int) (adapter.WifiParams, error) {
	host := strings.TrimSpace(r.Host)
	if host == "" {
		return adapter.WifiParams{}, adapter.InvalidArgs("missing or invalid required field: host")
	}
	port := r.Port
	if port == 0 {
		port = defaultPort
	}
	if port < 1 || port > 65535 {
		return adapter.WifiParams{}, adapter.InvalidArgs("invalid port %d", r.Port)
	}
	if r.TimeoutMillis < 0 {
		return adapter.WifiParams{}, adapter.InvalidArgs("invalid timeout %d", r.TimeoutMillis)
	}
	return adapter.WifiParams{Host: host, Port: port, TimeoutMillis: r.TimeoutMillis}, nil
}

func (r OpenRequest) bluetoothParams() (adapter.BluetoothParams, error) {
	address := strings.TrimSpace(r.Address)
	if address == "" {
		return adapter.BluetoothParams{}, adapter.InvalidArgs("missing or invalid required field: address")
	}
	if _, err := adapter.ParseBluetoothAddress(address); err != nil {
		return adapter.BluetoothParams{}, err
	}
	return adapter.BluetoothParams{Address: address}, nil
}

func (r OpenRequest) usbParams() (adapter.USBParams, error) {
	p := adapter.USBParams{
		InterfaceNumber: adapter.AnyInterface,
		SerialNumber:    strings.TrimSpace(r.SerialNumber),
		SerialPort:      strings.TrimSpace(r.SerialPort),
	}

	if r.InterfaceNumber != nil {
		if *r.InterfaceNumber < 0 || *r.InterfaceNumber > 0xff {
			return adapter.USBParams{}, adapter.InvalidArgs("invalid interfaceNumber %d", *r.InterfaceNumber)
		}
		p.InterfaceNumber = *r.InterfaceNumber
	}

	// a direct port needs no identifiers
	if p.SerialPort != "" && r.VendorID == nil && r.ProductID == nil {
		return p, nil
	}

	vid, err := usbID("vendorId", r.VendorID)
	if err != nil {
		return adapter.USBParams{}, err
	}
	pid, err := usbID("productId", r.ProductID)
	if err != nil {
		return adapter.USBParams{}, err
	}
	p.VendorID, p.ProductID = vid, pid
	return p, nil
}

func usbID(field string, v *int) (uint16, error) {
	if v == nil {
		return 0, adapter.InvalidArgs("missing or invalid required fields: vendorId/productId")
	}
	if *v < 0 || *v > 0xffff {
		return 0, adapter.InvalidArgs("invalid %s %d", field, *v)
	}
	return uint16(*v), nil
}
