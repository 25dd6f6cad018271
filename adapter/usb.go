package adapter

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/gousb"
)

// DefaultUSBWriteTimeout bounds a single bulk transfer
const DefaultUSBWriteTimeout = 4 * time.Second

// USBMode selects how USB printers are reached
type USBMode string

const (
	USBModeAuto   USBMode = "auto"
	USBModeDirect USBMode = "direct"
	USBModeSerial USBMode = "serial"
)

// ResolveUSBMode turns auto into the platform default: serial ports on
// windows, direct bulk access everywhere else.
func ResolveUSBMode(mode USBMode, goos string) (USBMode, error) {
	switch USBMode(strings.ToLower(string(mode))) {
	case "", USBModeAuto:
		if goos == "windows" {
			return USBModeSerial, nil
		}
		return USBModeDirect, nil
	case USBModeDirect:
		return USBModeDirect, nil
	case USBModeSerial:
		return USBModeSerial, nil
	default:
		return "", fmt.Errorf("unknown usb mode %q", mode)
	}
}

// NewContext creates a libusb context. gousb panics when libusb cannot be
// initialized; the panic is returned as an error.
func NewContext() (ctx *gousb.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			ctx = nil
			err = fmt.Errorf("failed to initialize libusb: %v", r)
		}
	}()
	return gousb.NewContext(), nil
}

// USBDriver opens printers through direct bulk OUT transfers
type USBDriver struct {
	WriteTimeout time.Duration
}

// NewUSBDriver creates a new USB driver instance
func NewUSBDriver(writeTimeout time.Duration) *USBDriver {
	if writeTimeout <= 0 {
		writeTimeout = DefaultUSBWriteTimeout
	}
	return &USBDriver{WriteTimeout: writeTimeout}
}

// Open opens the device by VID/PID, finds a bulk OUT endpoint and claims
// its interface for the lifetime of the channel.
func (d *USBDriver) Open(p USBParams) (Channel, error) {
	if p.SerialPort != "" {
		return OpenSerialPort(p.SerialPort)
	}

	ctx, err := NewContext()
	if err != nil {
		return nil, connectFailed("failed to initialize libusb", err)
	}

	dev, err := openDevice(ctx, p)
	if err != nil {
		ctx.Close()
		return nil, err
	}

	ch, err := claimBulkOut(ctx, dev, p.InterfaceNumber, d.WriteTimeout)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}
	return ch, nil
}

func openDevice(ctx *gousb.Context, p USBParams) (*gousb.Device, error) {
	if p.SerialNumber == "" {
		dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(p.VendorID), gousb.ID(p.ProductID))
		if err != nil {
			return nil, connectFailed(fmt.Sprintf("failed to open usb device %04x:%04x", p.VendorID, p.ProductID), err)
		}
		if dev == nil {
			return nil, connectFailed(fmt.Sprintf("usb device %04x:%04x", p.VendorID, p.ProductID), ErrDeviceNotFound)
		}
		return dev, nil
	}
	return GetDeviceBySerial(ctx, p.VendorID, p.ProductID, p.SerialNumber)
}

// GetDeviceBySerial opens the device with the given VID/PID and serial
// number, closing every other match.
func GetDeviceBySerial(ctx *gousb.Context, vid, pid uint16, serial string) (*gousb.Device, error) {
	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(vid) && desc.Product == gousb.ID(pid)
	})
	if err != nil && len(devices) == 0 {
		return nil, connectFailed(fmt.Sprintf("failed to open usb device %04x:%04x", vid, pid), err)
	}

	var found *gousb.Device
	for _, dev := range devices {
		if found == nil {
			if s, err := dev.SerialNumber(); err == nil && s == serial {
				found = dev
				continue
			}
		}
		dev.Close()
	}

	if found == nil {
		return nil, connectFailed(fmt.Sprintf("usb device %04x:%04x serial %q", vid, pid, serial), ErrDeviceNotFound)
	}
	return found, nil
}

func claimBulkOut(ctx *gousb.Context, dev *gousb.Device, iface int, timeout time.Duration) (*USBChannel, error) {
	// Set auto-detach kernel driver on Linux
	if runtime.GOOS == "linux" {
		dev.SetAutoDetach(true)
	}

	cfgNum, err := dev.ActiveConfigNum()
	if err != nil {
		return nil, connectFailed("failed to get active config", err)
	}

	desc, ok := dev.Desc.Configs[cfgNum]
	if !ok {
		return nil, connectFailed(fmt.Sprintf("active config %d not described", cfgNum), ErrNoBulkOutEndpoint)
	}

	ep, ok := FindBulkOut(desc, iface)
	if !ok {
		return nil, connectFailed("usb", ErrNoBulkOutEndpoint)
	}

	cfg, err := dev.Config(cfgNum)
	if err != nil {
		return nil, connectFailed("failed to get config", err)
	}

	intf, err := cfg.Interface(ep.Interface, ep.Alternate)
	if err != nil {
		cfg.Close()
		return nil, connectFailed(fmt.Sprintf("failed to claim usb interface %d", ep.Interface), err)
	}

	out, err := intf.OutEndpoint(ep.Number)
	if err != nil {
		intf.Close()
		cfg.Close()
		return nil, connectFailed(fmt.Sprintf("failed to open endpoint %s", ep.Address), err)
	}

	return &USBChannel{
		ctx:      ctx,
		device:   dev,
		config:   cfg,
		iface:    intf,
		out:      out,
		endpoint: ep,
		timeout:  timeout,
	}, nil
}

// USBChannel is a claimed interface with its bulk OUT endpoint
type USBChannel struct {
	ctx      *gousb.Context
	device   *gousb.Device
	config   *gousb.Config
	iface    *gousb.Interface
	out      *gousb.OutEndpoint
	endpoint BulkOutEndpoint
	timeout  time.Duration

	mu     sync.Mutex
	closed bool
}

func (c *USBChannel) Kind() Kind { return KindUSB }

func (c *USBChannel) Write(data []byte) (int, error) {
	c.mu.Lock()
	out := c.out
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return 0, writeFailed("usb", ErrClosed)
	}
	return sendAll(bulkWriter{ep: out, timeout: c.timeout}, data, "usb")
}

// Endpoint returns the endpoint the channel writes to
func (c *USBChannel) Endpoint() BulkOutEndpoint {
	return c.endpoint
}

// Close releases the interface, the configuration, the device and the
// libusb context, in that order.
func (c *USBChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error

	if c.iface != nil {
		c.iface.Close()
		c.iface = nil
	}

	if c.config != nil {
		if err := c.config.Close(); err != nil {
			errs = append(errs, err)
		}
		c.config = nil
	}

	if c.device != nil {
		if err := c.device.Close(); err != nil {
			errs = append(errs, err)
		}
		c.device = nil
	}

	if c.ctx != nil {
		if err := c.ctx.Close(); err != nil {
			errs = append(errs, err)
		}
		c.ctx = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

type bulkWriter struct {
	ep      *gousb.OutEndpoint
	timeout time.Duration
}

func (w bulkWriter) Write(p []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	return w.ep.WriteContext(ctx, p)
}
