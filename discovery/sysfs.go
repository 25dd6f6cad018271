package discovery

import (
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// DefaultSysfsRoot lists every USB device and interface known to the kernel
const DefaultSysfsRoot = "/sys/bus/usb/devices"

// SysfsWalker finds USB serial ports (ttyUSB, ttyACM) through sysfs
type SysfsWalker struct {
	Fs      afero.Fs
	Root    string
	DevRoot string
}

// NewSysfsWalker reads sysfs through fs
func NewSysfsWalker(fs afero.Fs) *SysfsWalker {
	return &SysfsWalker{Fs: fs, Root: DefaultSysfsRoot, DevRoot: "/dev"}
}

func (w *SysfsWalker) Transport() string { return TransportUSB }

func (w *SysfsWalker) ResolvePort(vid, pid uint16) (string, error) {
	return resolvePort(w.Discover(), vid, pid)
}

func (w *SysfsWalker) Discover() []Device {
	devices := []Device{}

	entries, err := afero.ReadDir(w.Fs, w.Root)
	if err != nil {
		return devices
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		// Interface entries ("1-1:1.0") sit next to devices; skip them.
		if strings.Contains(e.Name(), ":") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		dir := path.Join(w.Root, name)
		vid, ok1 := w.readHex(dir, "idVendor")
		pid, ok2 := w.readHex(dir, "idProduct")
		if !ok1 || !ok2 {
			continue
		}

		port, ifaceNum := w.findTTY(dir, name)
		if port == "" {
			continue
		}

		bus, _ := strconv.Atoi(w.readString(dir, "busnum"))
		addr, _ := strconv.Atoi(w.readString(dir, "devnum"))

		label := w.readString(dir, "product")
		if label == "" {
			label = USBDeviceName(vid, pid)
		}

		metadata := map[string]any{
			"sysfsPath":  dir,
			"hardwareId": HardwareID(vid, pid),
		}
		if m := w.readString(dir, "manufacturer"); m != "" {
			metadata["manufacturer"] = m
		}
		if s := w.readString(dir, "serial"); s != "" {
			metadata["serialNumber"] = s
		}

		dev := Device{
			ID:        USBDeviceID(vid, pid, bus, addr),
			Name:      label,
			Transport: TransportUSB,
			VendorID:  uint16Ptr(vid),
			ProductID: uint16Ptr(pid),
			ComPort:   path.Join(w.DevRoot, port),
			Metadata:  metadata,
		}
		if ifaceNum >= 0 {
			dev.InterfaceNumber = intPtr(ifaceNum)
		}
		devices = append(devices, dev)
	}
	return devices
}

// findTTY looks inside the interfaces of a device for a tty node. usb-serial
// drivers put ttyUSBn directly in the interface; cdc-acm nests it under tty/.
func (w *SysfsWalker) findTTY(dir, name string) (string, int) {
	entries, err := afero.ReadDir(w.Fs, dir)
	if err != nil {
		return "", -1
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), name+":") {
			continue
		}
		ifaceDir := path.Join(dir, e.Name())
		ifaceNum := -1
		if n, err := strconv.ParseInt(w.readString(ifaceDir, "bInterfaceNumber"), 16, 32); err == nil {
			ifaceNum = int(n)
		}
		if tty := firstTTY(w.Fs, ifaceDir); tty != "" {
			return tty, ifaceNum
		}
		if tty := firstTTY(w.Fs, path.Join(ifaceDir, "tty")); tty != "" {
			return tty, ifaceNum
		}
	}
	return "", -1
}

func firstTTY(fs afero.Fs, dir string) string {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		n := e.Name()
		if strings.HasPrefix(n, "ttyUSB") || strings.HasPrefix(n, "ttyACM") {
			return n
		}
	}
	return ""
}

func (w *SysfsWalker) readString(dir, file string) string {
	data, err := afero.ReadFile(w.Fs, path.Join(dir, file))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (w *SysfsWalker) readHex(dir, file string) (uint16, bool) {
	v, err := strconv.ParseUint(w.readString(dir, file), 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}
