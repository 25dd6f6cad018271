//go:build linux

package adapter

import (
	"os"

	"golang.org/x/sys/unix"
)

func dialRFCOMM(addr BluetoothAddress, channel uint8) (*os.File, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, connectFailed("failed to create bluetooth socket", os.NewSyscallError("socket", err))
	}

	sa := &unix.SockaddrRFCOMM{Addr: addr.Reversed(), Channel: channel}
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return nil, connectFailed("failed to connect bluetooth RFCOMM", os.NewSyscallError("connect", err))
	}

	return os.NewFile(uintptr(fd), "rfcomm:"+addr.String()), nil
}
