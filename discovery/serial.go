package discovery

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/nixxel-company-limited/escpos-transport/adapter"
)

// SerialPortWalker walks the system device registry for USB devices bound
// to virtual serial ports.
type SerialPortWalker interface {
	Discoverer
	adapter.PortResolver
}

var (
	vidPattern      = regexp.MustCompile(`(?i)VID_([0-9A-F]{4})`)
	pidPattern      = regexp.MustCompile(`(?i)PID_([0-9A-F]{4})`)
	friendlyPattern = regexp.MustCompile(`\((COM\d+)\)`)
)

// ParseHardwareID extracts the VID_xxxx and PID_xxxx tokens of a hardware
// identifier such as `USB\VID_0416&PID_5011&REV_0200`.
func ParseHardwareID(s string) (vid, pid uint16, ok bool) {
	vm := vidPattern.FindStringSubmatch(s)
	pm := pidPattern.FindStringSubmatch(s)
	if vm == nil || pm == nil {
		return 0, 0, false
	}
	v, err := strconv.ParseUint(vm[1], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	p, err := strconv.ParseUint(pm[1], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	return uint16(v), uint16(p), true
}

// PortFromFriendlyName extracts "COM3" from "USB Serial Device (COM3)".
func PortFromFriendlyName(name string) string {
	m := friendlyPattern.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return m[1]
}

// HardwareID formats a hardware identifier for vid/pid
func HardwareID(vid, pid uint16) string {
	return fmt.Sprintf(`USB\VID_%04X&PID_%04X`, vid, pid)
}

// resolvePort returns the port of the first device matching vid/pid.
func resolvePort(devices []Device, vid, pid uint16) (string, error) {
	for _, d := range devices {
		if d.MatchesUSB(vid, pid) && d.ComPort != "" {
			return d.ComPort, nil
		}
	}
	return "", fmt.Errorf("%04x:%04x: %w", vid, pid, adapter.ErrPortNotFound)
}

// registryEntry holds the values the device registry records for one
// device instance.
type registryEntry struct {
	path        string
	key         string
	class       string
	friendly    string
	port        string
	hardwareIDs []string
}

// device maps the entry to a candidate. Ids come from the first parsable
// hardware id, else from the device key; the port falls back to the one
// named in the friendly name. Entries with neither ids nor port are skipped.
// Devices with ids get "usb:<vid>:<pid>:<port>", others "usb:<registry path>".
func (e registryEntry) device() (Device, bool) {
	var (
		vid, pid uint16
		hasIDs   bool
		hwid     string
	)
	for _, id := range e.hardwareIDs {
		if vid, pid, hasIDs = ParseHardwareID(id); hasIDs {
			hwid = id
			break
		}
	}
	if !hasIDs {
		vid, pid, hasIDs = ParseHardwareID(e.key)
		hwid = e.key
	}

	port := e.port
	if port == "" {
		port = PortFromFriendlyName(e.friendly)
	}
	if !hasIDs && port == "" {
		return Device{}, false
	}

	name := e.friendly
	if name == "" {
		name = port
	}
	if name == "" {
		name = USBDeviceName(vid, pid)
	}

	dev := Device{
		ID:        "usb:" + e.path,
		Name:      name,
		Transport: TransportUSB,
		ComPort:   port,
		Metadata: map[string]any{
			"registryPath": e.path,
			"hardwareId":   hwid,
			"class":        e.class,
		},
	}
	if hasIDs {
		dev.ID = USBPortDeviceID(vid, pid, port)
		dev.VendorID = uint16Ptr(vid)
		dev.ProductID = uint16Ptr(pid)
	}
	return dev, true
}
