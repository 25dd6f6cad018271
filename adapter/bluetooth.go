package adapter

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// DefaultRFCOMMChannel is the RFCOMM channel printers listen on.
const DefaultRFCOMMChannel uint8 = 1

// BluetoothDriver opens RFCOMM printers
type BluetoothDriver struct {
	Channel uint8
}

// NewBluetoothDriver returns a driver connecting on the given RFCOMM channel
func NewBluetoothDriver(channel uint8) *BluetoothDriver {
	if channel == 0 {
		channel = DefaultRFCOMMChannel
	}
	return &BluetoothDriver{Channel: channel}
}

// Open parses the address and connects an RFCOMM socket synchronously.
// A malformed address is reported as invalid_args before any socket exists.
func (d *BluetoothDriver) Open(p BluetoothParams) (Channel, error) {
	if p.Address == "" {
		return nil, invalidArgs("missing or invalid required field: address")
	}
	addr, err := ParseBluetoothAddress(p.Address)
	if err != nil {
		return nil, err
	}
	channel := d.Channel
	if channel == 0 {
		channel = DefaultRFCOMMChannel
	}
	f, err := dialRFCOMM(addr, channel)
	if err != nil {
		return nil, err
	}
	return &BluetoothChannel{file: f, address: p.Address}, nil
}

// BluetoothAddress is a 6-byte device address in textual (big-endian) order.
type BluetoothAddress [6]byte

func (a BluetoothAddress) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4], a[5])
}

// Reversed returns the address in the little-endian order used by the kernel.
func (a BluetoothAddress) Reversed() [6]byte {
	var out [6]byte
	for i := range a {
		out[i] = a[len(a)-1-i]
	}
	return out
}

// ParseBluetoothAddress accepts "AA:BB:CC:DD:EE:FF", "AA-BB-CC-DD-EE-FF"
// or the same twelve hex digits without separators. A separated address
// uses one separator character between every pair of digits.
func ParseBluetoothAddress(s string) (BluetoothAddress, error) {
	var addr BluetoothAddress
	t := strings.TrimSpace(s)

	stride := 2
	switch len(t) {
	case 12:
	case 17:
		sep := t[2]
		if sep != ':' && sep != '-' {
			return addr, invalidArgs("invalid bluetooth address %q", s)
		}
		for i := 2; i < len(t); i += 3 {
			if t[i] != sep {
				return addr, invalidArgs("invalid bluetooth address %q", s)
			}
		}
		stride = 3
	default:
		return addr, invalidArgs("invalid bluetooth address %q", s)
	}

	for i := 0; i < 6; i++ {
		hi, ok1 := hexNibble(t[stride*i])
		lo, ok2 := hexNibble(t[stride*i+1])
		if !ok1 || !ok2 {
			return addr, invalidArgs("invalid bluetooth address %q", s)
		}
		addr[i] = hi<<4 | lo
	}
	return addr, nil
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// BluetoothChannel is a connected RFCOMM socket
type BluetoothChannel struct {
	file      *os.File
	address   string
	closeOnce sync.Once
	closeErr  error
}

func (c *BluetoothChannel) Kind() Kind { return KindBluetooth }

func (c *BluetoothChannel) Write(data []byte) (int, error) {
	return sendAll(c.file, data, "bluetooth")
}

func (c *BluetoothChannel) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.file.Close()
	})
	return c.closeErr
}

// Address returns the remote device address
func (c *BluetoothChannel) Address() string {
	return c.address
}
