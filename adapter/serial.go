package adapter

import (
	"os"
	"runtime"
	"strings"
	"sync"
)

// PortResolver maps a USB vendor/product pair to a virtual serial port.
type PortResolver interface {
	ResolvePort(vendorID, productID uint16) (string, error)
}

// SerialDriver reaches USB printers through the serial port their driver
// exposes, for platforms without direct bulk access.
type SerialDriver struct {
	Resolver PortResolver
}

// NewSerialDriver returns a driver that resolves ports through r
func NewSerialDriver(r PortResolver) *SerialDriver {
	return &SerialDriver{Resolver: r}
}

func (d *SerialDriver) Open(p USBParams) (Channel, error) {
	port := p.SerialPort
	if port == "" {
		if d.Resolver == nil {
			return nil, connectFailed("no serial port resolver", ErrPortNotFound)
		}
		var err error
		port, err = d.Resolver.ResolvePort(p.VendorID, p.ProductID)
		if err != nil {
			return nil, connectFailed("failed to resolve serial port", err)
		}
	}
	return OpenSerialPort(port)
}

// OpenSerialPort opens port as a write-only file handle.
func OpenSerialPort(port string) (Channel, error) {
	path := NormalizePortPath(runtime.GOOS, port)
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, connectFailed("failed to open usb/serial device at "+path, err)
	}
	return &SerialChannel{file: f, path: path}, nil
}

// NormalizePortPath prefixes bare COM port names with the device namespace
// on windows, so that COM10 and above open correctly.
func NormalizePortPath(goos, port string) string {
	if goos != "windows" {
		return port
	}
	if strings.HasPrefix(port, `\\.\`) {
		return port
	}
	if strings.HasPrefix(strings.ToUpper(port), "COM") {
		return `\\.\` + port
	}
	return port
}

// SerialChannel is an open serial port or device file
type SerialChannel struct {
	file      *os.File
	path      string
	closeOnce sync.Once
	closeErr  error
}

func (c *SerialChannel) Kind() Kind { return KindUSB }

func (c *SerialChannel) Write(data []byte) (int, error) {
	return sendAll(c.file, data, "usb serial port")
}

func (c *SerialChannel) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.file.Close()
	})
	return c.closeErr
}

// Path returns the opened port path
func (c *SerialChannel) Path() string {
	return c.path
}
