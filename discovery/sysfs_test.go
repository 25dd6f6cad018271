package discovery

import (
	"path"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixxel-company-limited/escpos-transport/adapter"
)

func writeFiles(t *testing.T, fs afero.Fs, dir string, files map[string]string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(dir, 0o755))
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, path.Join(dir, name), []byte(content+"\n"), 0o644))
	}
}

func fakeSysfs(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()
	root := DefaultSysfsRoot

	// Root hub: no tty
	writeFiles(t, fs, root+"/usb1", map[string]string{"idVendor": "1d6b", "idProduct": "0002", "busnum": "1", "devnum": "1"})
	writeFiles(t, fs, root+"/usb1/1-0:1.0", map[string]string{"bInterfaceNumber": "00"})

	// usb-serial adapter (ttyUSB directly in the interface)
	writeFiles(t, fs, root+"/1-1", map[string]string{
		"idVendor": "0403", "idProduct": "6001", "busnum": "1", "devnum": "4",
		"product": "FT232R USB UART", "manufacturer": "FTDI", "serial": "A50285BI",
	})
	writeFiles(t, fs, root+"/1-1/1-1:1.0", map[string]string{"bInterfaceNumber": "00"})
	require.NoError(t, fs.MkdirAll(root+"/1-1/1-1:1.0/ttyUSB0", 0o755))

	// cdc-acm printer (tty/ttyACM0 under the interface)
	writeFiles(t, fs, root+"/1-2", map[string]string{"idVendor": "0416", "idProduct": "5011", "busnum": "1", "devnum": "7"})
	writeFiles(t, fs, root+"/1-2/1-2:1.0", map[string]string{"bInterfaceNumber": "00"})
	writeFiles(t, fs, root+"/1-2/1-2:1.1", map[string]string{"bInterfaceNumber": "01"})
	require.NoError(t, fs.MkdirAll(root+"/1-2/1-2:1.1/tty/ttyACM0", 0o755))

	// Interface entry at top level is ignored
	writeFiles(t, fs, root+"/1-2:1.1", map[string]string{"bInterfaceNumber": "01"})

	// Keyboard: no tty
	writeFiles(t, fs, root+"/2-1", map[string]string{"idVendor": "046d", "idProduct": "c31c", "busnum": "2", "devnum": "2"})
	writeFiles(t, fs, root+"/2-1/2-1:1.0", map[string]string{"bInterfaceNumber": "00"})

	return fs
}

func TestSysfsWalkerDiscover(t *testing.T) {
	w := NewSysfsWalker(fakeSysfs(t))
	devices := w.Discover()
	require.Len(t, devices, 2)

	ftdi := devices[0]
	assert.Equal(t, "usb:0403:6001:1:4", ftdi.ID)
	assert.Equal(t, "FT232R USB UART", ftdi.Name)
	assert.Equal(t, TransportUSB, ftdi.Transport)
	require.NotNil(t, ftdi.VendorID)
	require.NotNil(t, ftdi.ProductID)
	assert.Equal(t, uint16(0x0403), *ftdi.VendorID)
	assert.Equal(t, uint16(0x6001), *ftdi.ProductID)
	assert.Equal(t, "/dev/ttyUSB0", ftdi.ComPort)
	require.NotNil(t, ftdi.InterfaceNumber)
	assert.Equal(t, 0, *ftdi.InterfaceNumber)
	assert.Equal(t, "FTDI", ftdi.Metadata["manufacturer"])
	assert.Equal(t, "A50285BI", ftdi.Metadata["serialNumber"])
	assert.Equal(t, `USB\VID_0403&PID_6001`, ftdi.Metadata["hardwareId"])

	acm := devices[1]
	assert.Equal(t, "USB VID:0416 PID:5011", acm.Name)
	assert.Equal(t, "/dev/ttyACM0", acm.ComPort)
	require.NotNil(t, acm.InterfaceNumber)
	assert.Equal(t, 1, *acm.InterfaceNumber)
}

func TestSysfsWalkerResolvePort(t *testing.T) {
	w := NewSysfsWalker(fakeSysfs(t))

	port, err := w.ResolvePort(0x0416, 0x5011)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", port)

	_, err = w.ResolvePort(0x046d, 0xc31c)
	assert.ErrorIs(t, err, adapter.ErrPortNotFound)
}

func TestSysfsWalkerMissingRoot(t *testing.T) {
	w := NewSysfsWalker(afero.NewMemMapFs())
	devices := w.Discover()
	assert.NotNil(t, devices)
	assert.Empty(t, devices)
}
