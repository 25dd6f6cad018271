package discovery

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func device1(props map[string]any) map[string]map[string]dbus.Variant {
	m := make(map[string]dbus.Variant, len(props))
	for k, v := range props {
		m[k] = dbus.MakeVariant(v)
	}
	return map[string]map[string]dbus.Variant{bluezDeviceIface: m}
}

func TestPairedDevices(t *testing.T) {
	objects := ManagedObjects{
		"/org/bluez": {"org.bluez.AgentManager1": {}},
		"/org/bluez/hci0": {"org.bluez.Adapter1": {
			"Address": dbus.MakeVariant("AA:AA:AA:AA:AA:AA"),
		}},
		"/org/bluez/hci0/dev_66_55_44_33_22_11": device1(map[string]any{
			"Address": "66:55:44:33:22:11",
			"Name":    "MTP-II",
			"Paired":  true,
			"Adapter": dbus.ObjectPath("/org/bluez/hci0"),
			"Class":   uint32(0x040680),
		}),
		"/org/bluez/hci0/dev_00_11_22_33_44_55": device1(map[string]any{
			"Address": "00:11:22:33:44:55",
			"Paired":  true,
		}),
		"/org/bluez/hci0/dev_01_01_01_01_01_01": device1(map[string]any{
			"Address": "01:01:01:01:01:01",
			"Name":    "Headphones",
			"Paired":  false,
		}),
		"/org/bluez/hci0/dev_02_02_02_02_02_02": device1(map[string]any{
			"Address": "02:02:02:02:02:02",
			"Alias":   "Kitchen",
			"Paired":  true,
		}),
	}

	devices := PairedDevices(objects)
	require.Len(t, devices, 3)

	// Ordered by object path
	assert.Equal(t, "bluetooth:00:11:22:33:44:55", devices[0].ID)
	assert.Equal(t, "00:11:22:33:44:55", devices[0].Name)
	assert.Equal(t, "Kitchen", devices[1].Name)

	printer := devices[2]
	assert.Equal(t, "MTP-II", printer.Name)
	assert.Equal(t, TransportBluetooth, printer.Transport)
	assert.Equal(t, "66:55:44:33:22:11", printer.Address)
	assert.Equal(t, "classic", printer.Mode)
	assert.True(t, printer.IsPaired)
	assert.Equal(t, "/org/bluez/hci0/dev_66_55_44_33_22_11", printer.Metadata["objectPath"])
	assert.Equal(t, "/org/bluez/hci0", printer.Metadata["adapter"])
	assert.Equal(t, uint32(0x040680), printer.Metadata["class"])
}

func TestPairedDevicesEmpty(t *testing.T) {
	devices := PairedDevices(nil)
	assert.NotNil(t, devices)
	assert.Empty(t, devices)
}

func TestBluetoothDiscovererNeverFails(t *testing.T) {
	d := NewBluetoothDiscoverer(0, nil)
	assert.Equal(t, DefaultQueryTimeout, d.Timeout)
	assert.Equal(t, TransportBluetooth, d.Transport())

	// Without a system bus or BlueZ this is empty, never nil.
	assert.NotNil(t, d.Discover())
}
