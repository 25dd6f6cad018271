//go:build windows

package discovery

// NewSerialPortWalker returns the registry walker on windows
func NewSerialPortWalker() SerialPortWalker {
	return NewRegistryWalker()
}
