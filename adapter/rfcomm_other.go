//go:build !linux

package adapter

import "os"

func dialRFCOMM(addr BluetoothAddress, channel uint8) (*os.File, error) {
	return nil, connectFailed("bluetooth RFCOMM sockets are not available", ErrUnsupportedPlatform)
}
