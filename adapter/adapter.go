package adapter

import (
	"fmt"
	"io"
	"strings"
)

// Kind identifies the transport behind a channel
type Kind int

const (
	KindWifi Kind = iota + 1
	KindBluetooth
	KindUSB
)

func (k Kind) String() string {
	switch k {
	case KindWifi:
		return "wifi"
	case KindBluetooth:
		return "bluetooth"
	case KindUSB:
		return "usb"
	default:
		return "unknown"
	}
}

// ParseKind maps a transport name to its Kind
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wifi":
		return KindWifi, nil
	case "bluetooth":
		return KindBluetooth, nil
	case "usb":
		return KindUSB, nil
	default:
		return 0, invalidArgs("invalid transport %q, use wifi, usb or bluetooth", s)
	}
}

// Channel is an open, writable connection to a printer.
type Channel interface {
	// Kind returns the transport of the channel
	Kind() Kind

	// Write sends all of data or fails. A short transfer is an error.
	Write(data []byte) (int, error)

	// Close releases the OS resources of the channel. It is idempotent.
	Close() error
}

// Target names the peer behind ch: the socket peer address, the device
// address, the port path or the claimed bulk endpoint. Unknown channel
// types yield "".
func Target(ch Channel) string {
	switch c := ch.(type) {
	case *TCPChannel:
		return c.RemoteAddr().String()
	case *BluetoothChannel:
		return c.Address()
	case *SerialChannel:
		return c.Path()
	case *USBChannel:
		ep := c.Endpoint()
		return fmt.Sprintf("interface %d alt %d endpoint 0x%02x", ep.Interface, ep.Alternate, uint8(ep.Address))
	default:
		return ""
	}
}

// WifiParams selects a TCP printer
type WifiParams struct {
	Host string
	Port int
	// Timeout bounds each connect attempt; zero uses the driver default.
	TimeoutMillis int
}

// BluetoothParams selects an RFCOMM printer
type BluetoothParams struct {
	Address string
}

// USBParams selects a USB printer
type USBParams struct {
	VendorID  uint16
	ProductID uint16
	// InterfaceNumber restricts the endpoint search; negative means any.
	InterfaceNumber int
	// SerialNumber picks one device among several with the same VID/PID.
	SerialNumber string
	// SerialPort opens the given port directly instead of resolving VID/PID.
	SerialPort string
}

// Capabilities declares the protocol-level features available on a session.
type Capabilities struct {
	SupportsPartialCut     bool `json:"supportsPartialCut"`
	SupportsFullCut        bool `json:"supportsFullCut"`
	SupportsDrawerKick     bool `json:"supportsDrawerKick"`
	SupportsRealtimeStatus bool `json:"supportsRealtimeStatus"`
	SupportsQrCode         bool `json:"supportsQrCode"`
	SupportsBarcode        bool `json:"supportsBarcode"`
	SupportsImage          bool `json:"supportsImage"`
}

// DefaultCapabilities is reported for every session. No transport polls
// realtime status.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		SupportsPartialCut:     true,
		SupportsFullCut:        true,
		SupportsDrawerKick:     true,
		SupportsRealtimeStatus: false,
		SupportsQrCode:         true,
		SupportsBarcode:        true,
		SupportsImage:          true,
	}
}

// TriState is a status value that may not be known
type TriState string

const (
	Unknown TriState = "unknown"
	True    TriState = "true"
	False   TriState = "false"
)

// Status is a snapshot of printer state
type Status struct {
	PaperOut     TriState `json:"paperOut"`
	PaperNearEnd TriState `json:"paperNearEnd"`
	CoverOpen    TriState `json:"coverOpen"`
	CutterError  TriState `json:"cutterError"`
	Offline      TriState `json:"offline"`
	DrawerSignal TriState `json:"drawerSignal"`
}

// UnknownStatus returns a snapshot with every field unknown
func UnknownStatus() Status {
	return Status{
		PaperOut:     Unknown,
		PaperNearEnd: Unknown,
		CoverOpen:    Unknown,
		CutterError:  Unknown,
		Offline:      Unknown,
		DrawerSignal: Unknown,
	}
}

// writeFull loops until every byte of data is accepted by w.
func writeFull(w io.Writer, data []byte) (int, error) {
	total := 0
	for total < len(data) {
		n, err := w.Write(data[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, ErrShortWrite
		}
	}
	return total, nil
}

// sendAll wraps writeFull failures in a write_failed error.
func sendAll(w io.Writer, data []byte, what string) (int, error) {
	n, err := writeFull(w, data)
	if err != nil {
		return n, writeFailed(fmt.Sprintf("failed to send bytes over %s (%d of %d sent)", what, n, len(data)), err)
	}
	return n, nil
}
