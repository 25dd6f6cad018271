package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

// DefaultTCPPort is the raw printing port used when none is given.
const DefaultTCPPort = 9100

// Resolver resolves a host name into candidate addresses, in order.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// TCPDriver opens network printers.
type TCPDriver struct {
	Resolver       Resolver
	ConnectTimeout time.Duration
	ResolveTimeout time.Duration
}

// NewTCPDriver returns a driver using the system resolver
func NewTCPDriver(connectTimeout, resolveTimeout time.Duration) *TCPDriver {
	return &TCPDriver{
		Resolver:       net.DefaultResolver,
		ConnectTimeout: connectTimeout,
		ResolveTimeout: resolveTimeout,
	}
}

// Open resolves the host and connects to each candidate in order, keeping
// the first connection that succeeds.
func (d *TCPDriver) Open(p WifiParams) (Channel, error) {
	if p.Host == "" {
		return nil, invalidArgs("missing or invalid required field: host")
	}
	port := p.Port
	if port == 0 {
		port = DefaultTCPPort
	}
	if port < 1 || port > 65535 {
		return nil, invalidArgs("invalid port %d", port)
	}

	resolveCtx := context.Background()
	if d.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		resolveCtx, cancel = context.WithTimeout(resolveCtx, d.ResolveTimeout)
		defer cancel()
	}

	resolver := d.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	candidates, err := resolver.LookupHost(resolveCtx, p.Host)
	if err != nil {
		return nil, connectFailed("failed to resolve host", err)
	}
	if len(candidates) == 0 {
		return nil, connectFailed("failed to resolve host", fmt.Errorf("no addresses for %s", p.Host))
	}

	timeout := d.ConnectTimeout
	if p.TimeoutMillis > 0 {
		timeout = time.Duration(p.TimeoutMillis) * time.Millisecond
	}
	dialer := net.Dialer{Timeout: timeout}

	var errs []error
	for _, addr := range candidates {
		conn, err := dialer.Dial("tcp", net.JoinHostPort(addr, strconv.Itoa(port)))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return &TCPChannel{conn: conn}, nil
	}
	return nil, connectFailed("failed to connect TCP socket", errors.Join(errs...))
}

// TCPChannel is an open stream socket to a network printer
type TCPChannel struct {
	conn      net.Conn
	closeOnce sync.Once
	closeErr  error
}

func (c *TCPChannel) Kind() Kind { return KindWifi }

func (c *TCPChannel) Write(data []byte) (int, error) {
	return sendAll(c.conn, data, "tcp")
}

func (c *TCPChannel) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr returns the connected peer address
func (c *TCPChannel) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
