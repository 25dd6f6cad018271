package discovery

import (
	"context"
	"sort"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	bluezService        = "org.bluez"
	bluezDeviceIface    = "org.bluez.Device1"
	getManagedObjects   = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
	DefaultQueryTimeout = 2500 * time.Millisecond
)

// ManagedObjects is the reply shape of ObjectManager.GetManagedObjects
type ManagedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// BluetoothDiscoverer lists devices already paired with the system
// Bluetooth stack. No radio inquiry is started.
type BluetoothDiscoverer struct {
	Timeout time.Duration
	logger  *zap.Logger
}

// NewBluetoothDiscoverer queries BlueZ over the system bus, bounded by timeout
func NewBluetoothDiscoverer(timeout time.Duration, logger *zap.Logger) *BluetoothDiscoverer {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BluetoothDiscoverer{Timeout: timeout, logger: logger.Named("discovery.bluetooth")}
}

func (d *BluetoothDiscoverer) Transport() string { return TransportBluetooth }

func (d *BluetoothDiscoverer) Discover() []Device {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		d.logger.Debug("system bus unavailable", zap.Error(err))
		return []Device{}
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
	defer cancel()

	var objects ManagedObjects
	call := conn.Object(bluezService, "/").CallWithContext(ctx, getManagedObjects, 0)
	if err := call.Store(&objects); err != nil {
		d.logger.Debug("bluez query failed", zap.Error(err))
		return []Device{}
	}

	devices := PairedDevices(objects)
	d.logger.Debug("bluetooth discovery finished", zap.Int("devices", len(devices)))
	return devices
}

// PairedDevices extracts paired org.bluez.Device1 objects, ordered by path.
func PairedDevices(objects ManagedObjects) []Device {
	paths := make([]string, 0, len(objects))
	for p := range objects {
		paths = append(paths, string(p))
	}
	sort.Strings(paths)

	devices := []Device{}
	for _, p := range paths {
		props, ok := objects[dbus.ObjectPath(p)][bluezDeviceIface]
		if !ok {
			continue
		}
		if paired, _ := variantValue[bool](props, "Paired"); !paired {
			continue
		}
		address, _ := variantValue[string](props, "Address")
		if address == "" {
			continue
		}

		name, _ := variantValue[string](props, "Name")
		if name == "" {
			name, _ = variantValue[string](props, "Alias")
		}
		if name == "" {
			name = address
		}

		metadata := map[string]any{"objectPath": p}
		if adapterPath, ok := variantValue[dbus.ObjectPath](props, "Adapter"); ok {
			metadata["adapter"] = string(adapterPath)
		}
		if class, ok := variantValue[uint32](props, "Class"); ok {
			metadata["class"] = class
		}

		devices = append(devices, Device{
			ID:        BluetoothDeviceID(address),
			Name:      name,
			Transport: TransportBluetooth,
			Address:   address,
			Mode:      "classic",
			IsPaired:  true,
			Metadata:  metadata,
		})
	}
	return devices
}

func variantValue[T any](props map[string]dbus.Variant, key string) (T, bool) {
	var zero T
	v, ok := props[key]
	if !ok {
		return zero, false
	}
	out, ok := v.Value().(T)
	return out, ok
}
