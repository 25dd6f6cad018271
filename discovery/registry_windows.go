//go:build windows

package discovery

import (
	"strings"

	"golang.org/x/sys/windows/registry"
)

// DefaultEnumRoots are the device enumerators holding USB serial adapters
var DefaultEnumRoots = []string{
	`SYSTEM\CurrentControlSet\Enum\USB`,
	`SYSTEM\CurrentControlSet\Enum\FTDIBUS`,
}

// serialClasses are the setup classes worth inspecting
var serialClasses = map[string]bool{
	"":      true,
	"ports": true,
	"usb":   true,
	"modem": true,
}

// RegistryWalker finds virtual COM ports of USB devices in the registry
type RegistryWalker struct {
	Roots []string
}

// NewRegistryWalker walks the default enumerator keys
func NewRegistryWalker() *RegistryWalker {
	return &RegistryWalker{Roots: DefaultEnumRoots}
}

func (w *RegistryWalker) Transport() string { return TransportUSB }

func (w *RegistryWalker) ResolvePort(vid, pid uint16) (string, error) {
	return resolvePort(w.Discover(), vid, pid)
}

func (w *RegistryWalker) Discover() []Device {
	devices := []Device{}
	for _, root := range w.Roots {
		devices = append(devices, walkEnumRoot(root)...)
	}
	return devices
}

func walkEnumRoot(root string) []Device {
	var devices []Device

	k, err := registry.OpenKey(registry.LOCAL_MACHINE, root, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return nil
	}
	defer k.Close()

	deviceKeys, err := k.ReadSubKeyNames(-1)
	if err != nil {
		return nil
	}

	for _, dk := range deviceKeys {
		devPath := root + `\` + dk
		dkey, err := registry.OpenKey(registry.LOCAL_MACHINE, devPath, registry.ENUMERATE_SUB_KEYS)
		if err != nil {
			continue
		}
		instances, _ := dkey.ReadSubKeyNames(-1)
		dkey.Close()

		for _, inst := range instances {
			if dev, ok := readInstance(devPath+`\`+inst, dk); ok {
				devices = append(devices, dev)
			}
		}
	}
	return devices
}

func readInstance(instPath, deviceKey string) (Device, bool) {
	ik, err := registry.OpenKey(registry.LOCAL_MACHINE, instPath, registry.QUERY_VALUE)
	if err != nil {
		return Device{}, false
	}
	defer ik.Close()

	class, _, _ := ik.GetStringValue("Class")
	if !serialClasses[strings.ToLower(class)] {
		return Device{}, false
	}

	entry := registryEntry{path: instPath, key: deviceKey, class: class}
	entry.hardwareIDs, _, _ = ik.GetStringsValue("HardwareID")
	entry.friendly, _, _ = ik.GetStringValue("FriendlyName")
	if pk, err := registry.OpenKey(registry.LOCAL_MACHINE, instPath+`\Device Parameters`, registry.QUERY_VALUE); err == nil {
		entry.port, _, _ = pk.GetStringValue("PortName")
		pk.Close()
	}
	return entry.device()
}
