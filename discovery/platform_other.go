//go:build !windows

package discovery

import "github.com/spf13/afero"

// NewSerialPortWalker returns the sysfs walker outside windows
func NewSerialPortWalker() SerialPortWalker {
	return NewSysfsWalker(afero.NewOsFs())
}
